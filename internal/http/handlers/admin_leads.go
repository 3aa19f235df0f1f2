package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/solarbill-ai-platform/internal/conversation"
	"github.com/wolfman30/solarbill-ai-platform/internal/messaging"
	"github.com/wolfman30/solarbill-ai-platform/internal/race"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

type transcriptLister interface {
	List(ctx context.Context, leadID string, limit int) ([]conversation.TranscriptMessage, error)
}

type raceInspector interface {
	Snapshot(id race.ID) (race.Snapshot, bool)
	Pending(leadID string) []race.ID
}

// AdminLeadsHandler exposes read-only views of conversation and race state.
type AdminLeadsHandler struct {
	contexts    conversation.Store
	transcripts transcriptLister
	races       raceInspector
	logger      *logging.Logger
}

func NewAdminLeadsHandler(contexts conversation.Store, transcripts transcriptLister, races raceInspector, logger *logging.Logger) *AdminLeadsHandler {
	if contexts == nil {
		panic("handlers: context store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminLeadsHandler{contexts: contexts, transcripts: transcripts, races: races, logger: logger}
}

type leadContextResponse struct {
	Known        bool                             `json:"known"`
	Context      conversation.Context             `json:"context"`
	PendingRaces []race.ID                        `json:"pending_races"`
	Transcript   []conversation.TranscriptMessage `json:"transcript,omitempty"`
}

func leadIDParam(r *http.Request) (string, bool) {
	raw, err := url.PathUnescape(chi.URLParam(r, "phone"))
	if err != nil {
		return "", false
	}
	id, err := messaging.NormalizePhone(raw)
	if err != nil {
		return "", false
	}
	return id, true
}

// GetContext serves GET /admin/leads/{phone}/context. An unknown lead is
// reported with its Initial view and known=false.
func (h *AdminLeadsHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	leadID, ok := leadIDParam(r)
	if !ok {
		jsonError(w, "invalid phone", http.StatusBadRequest)
		return
	}
	c, err := h.contexts.Get(r.Context(), leadID)
	if err != nil {
		h.logger.Error("failed to load conversation context", "error", err, "lead_id", leadID)
		jsonError(w, "failed to load context", http.StatusInternalServerError)
		return
	}
	resp := leadContextResponse{
		Known:        c != nil,
		Context:      conversation.OrInitial(c, leadID),
		PendingRaces: []race.ID{},
	}
	if h.races != nil {
		resp.PendingRaces = append(resp.PendingRaces, h.races.Pending(leadID)...)
	}
	if h.transcripts != nil && r.URL.Query().Get("transcript") != "false" {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		msgs, err := h.transcripts.List(r.Context(), leadID, limit)
		if err != nil {
			h.logger.Warn("failed to load transcript", "error", err, "lead_id", leadID)
		}
		resp.Transcript = msgs
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRace serves GET /admin/races/{raceID}.
func (h *AdminLeadsHandler) GetRace(w http.ResponseWriter, r *http.Request) {
	if h.races == nil {
		jsonError(w, "races unavailable", http.StatusServiceUnavailable)
		return
	}
	id := race.ID(chi.URLParam(r, "raceID"))
	snap, ok := h.races.Snapshot(id)
	if !ok {
		jsonError(w, "race not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
