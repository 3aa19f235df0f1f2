package leads

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/solarbill-ai-platform/internal/messaging"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

const maxListLimit = 100

// Handler serves the read-only admin lead endpoints.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("leads: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// GetLead handles GET /admin/leads/{phone}. The phone may be in any format
// a lead would type it; it is normalized to E.164 before lookup.
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "phone"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phone")
		return
	}
	phone, err := messaging.NormalizePhone(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid phone")
		return
	}

	lead, err := h.repo.GetByPhone(r.Context(), phone)
	switch {
	case errors.Is(err, ErrLeadNotFound):
		writeError(w, http.StatusNotFound, "lead not found")
	case err != nil:
		h.logger.Error("admin lead lookup failed", "error", err, "phone", phone)
		writeError(w, http.StatusInternalServerError, "failed to load lead")
	default:
		writeJSON(w, http.StatusOK, lead)
	}
}

// ListLeadsResponse is one page of leads, most recently updated first.
type ListLeadsResponse struct {
	Leads  []*Lead `json:"leads"`
	Count  int     `json:"count"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// parseListFilter rejects malformed paging instead of silently defaulting, so
// a typo in a dashboard query is visible.
func parseListFilter(q url.Values) (ListLeadsFilter, error) {
	filter := ListLeadsFilter{Limit: 50}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			return filter, fmt.Errorf("limit must be between 1 and %d", maxListLimit)
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	if v := q.Get("qualified"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("qualified must be true or false")
		}
		filter.QualifiedOnly = b
	}
	return filter, nil
}

// ListLeads handles GET /admin/leads?limit=&offset=&qualified=.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	leads, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("admin lead listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	if leads == nil {
		leads = []*Lead{}
	}
	writeJSON(w, http.StatusOK, ListLeadsResponse{
		Leads:  leads,
		Count:  len(leads),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}
