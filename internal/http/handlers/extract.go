package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/wolfman30/solarbill-ai-platform/internal/extraction"
	"github.com/wolfman30/solarbill-ai-platform/internal/intake"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

const maxExtractBody = 256 << 10

// ExtractHandler runs the stateless bill analysis on posted text. It touches
// no store and sends nothing.
type ExtractHandler struct {
	analyzer *intake.Analyzer
	logger   *logging.Logger
}

func NewExtractHandler(analyzer *intake.Analyzer, logger *logging.Logger) *ExtractHandler {
	if analyzer == nil {
		analyzer = intake.NewAnalyzer(nil, nil, nil)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ExtractHandler{analyzer: analyzer, logger: logger}
}

type extractRequest struct {
	Text string `json:"text"`
}

// Extract serves POST /extract. JSON bodies carry {"text": "..."}; any other
// content type is read as the raw bill text.
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxExtractBody))
	if err != nil {
		jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	text := string(raw)
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/json" {
		var req extractRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			jsonError(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		text = req.Text
	}
	if strings.TrimSpace(text) == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return
	}

	analysis, err := h.analyzer.Analyze(text)
	var inputErr *extraction.InputError
	if errors.As(err, &inputErr) {
		jsonError(w, inputErr.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		h.logger.Error("extraction failed", "error", err)
		jsonError(w, "extraction failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, analysis.Report())
}
