package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

func newTestRouter(repo Repository) http.Handler {
	h := NewHandler(repo, logging.Default())
	r := chi.NewRouter()
	r.Get("/admin/leads", h.ListLeads)
	r.Get("/admin/leads/{phone}", h.GetLead)
	return r
}

func TestGetLead_Success(t *testing.T) {
	repo := NewInMemoryRepository()
	name := "Maria Aparecida Souza"
	if _, err := repo.Upsert(context.Background(), &UpsertLeadRequest{Phone: "+5581999990000", Name: &name}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/leads/"+url.PathEscape("+5581999990000"), nil)
	w := httptest.NewRecorder()
	newTestRouter(repo).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var lead Lead
	if err := json.NewDecoder(w.Body).Decode(&lead); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if lead.Name != name {
		t.Errorf("expected name %s, got %s", name, lead.Name)
	}
}

func TestGetLead_NotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/leads/+5511000000000", nil)
	w := httptest.NewRecorder()
	newTestRouter(NewInMemoryRepository()).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

type failingRepository struct{ *InMemoryRepository }

func (failingRepository) GetByPhone(context.Context, string) (*Lead, error) {
	return nil, errors.New("boom")
}

func (failingRepository) List(context.Context, ListLeadsFilter) ([]*Lead, error) {
	return nil, errors.New("boom")
}

func TestHandlers_RepositoryError(t *testing.T) {
	router := newTestRouter(failingRepository{NewInMemoryRepository()})
	for _, path := range []string{"/admin/leads/+5581999990000", "/admin/leads"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected %d, got %d", path, http.StatusInternalServerError, w.Code)
		}
	}
}

func TestListLeads_QualifiedFilter(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	_, _ = repo.Upsert(ctx, &UpsertLeadRequest{Phone: "+5581999990001", IsQualified: true})
	_, _ = repo.Upsert(ctx, &UpsertLeadRequest{Phone: "+5581999990002"})

	w := httptest.NewRecorder()
	newTestRouter(repo).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/leads?qualified=true&limit=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp ListLeadsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Leads[0].Phone != "+5581999990001" || resp.Limit != 10 {
		t.Fatalf("unexpected response %#v", resp)
	}
}

func TestGetLead_NormalizesPhone(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := repo.Upsert(context.Background(), &UpsertLeadRequest{Phone: "+5581999990000"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	router := newTestRouter(repo)

	for _, path := range []string{"/admin/leads/81999990000", "/admin/leads/5581999990000", "/admin/leads/" + url.PathEscape("(81) 99999-0000")} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/leads/abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric phone, got %d", w.Code)
	}
}

func TestListLeads_RejectsMalformedQuery(t *testing.T) {
	router := newTestRouter(NewInMemoryRepository())
	for _, query := range []string{"limit=0", "limit=500", "limit=x", "offset=-1", "qualified=maybe"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/leads?"+query, nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/leads", nil))
	var resp ListLeadsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Leads == nil || resp.Limit != 50 {
		t.Fatalf("empty listing should be an empty array with default limit, got %#v", resp)
	}
}
