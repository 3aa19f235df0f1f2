package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		preflight  bool
		wantOrigin string
		wantStatus int
		wantNext   bool
	}{
		{name: "listed origin", allowed: []string{"https://painel.example.com"}, method: http.MethodGet, origin: "https://painel.example.com", wantOrigin: "https://painel.example.com", wantStatus: http.StatusOK, wantNext: true},
		{name: "unlisted origin passes without headers", allowed: []string{"https://painel.example.com"}, method: http.MethodGet, origin: "https://evil.example.com", wantStatus: http.StatusOK, wantNext: true},
		{name: "wildcard echoes origin", allowed: []string{" * "}, method: http.MethodGet, origin: "https://any.example.com", wantOrigin: "https://any.example.com", wantStatus: http.StatusOK, wantNext: true},
		{name: "blank entries ignored", allowed: []string{"", "  "}, method: http.MethodGet, origin: "https://painel.example.com", wantStatus: http.StatusOK, wantNext: true},
		{name: "preflight short circuits", allowed: []string{"https://painel.example.com"}, method: http.MethodOptions, origin: "https://painel.example.com", preflight: true, wantOrigin: "https://painel.example.com", wantStatus: http.StatusNoContent},
		{name: "options without request method reaches handler", allowed: []string{"https://painel.example.com"}, method: http.MethodOptions, origin: "https://painel.example.com", wantOrigin: "https://painel.example.com", wantStatus: http.StatusOK, wantNext: true},
		{name: "no origin header", allowed: []string{"*"}, method: http.MethodGet, wantStatus: http.StatusOK, wantNext: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/admin/leads/81999990000/context", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if reached != tt.wantNext {
				t.Fatalf("next reached = %v, want %v", reached, tt.wantNext)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("allow origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.wantOrigin != "" && rec.Header().Get("Access-Control-Allow-Headers") != corsAllowedHeaders {
				t.Fatalf("missing allow headers")
			}
		})
	}
}
