package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimitPerIP(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	h := RateLimit(limiter)(okHandler)

	codes := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/extract", nil)
		req.Header.Set("X-Real-Ip", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if codes("10.0.0.1") != http.StatusOK || codes("10.0.0.1") != http.StatusOK {
		t.Fatalf("burst requests should pass")
	}
	if got := codes("10.0.0.1"); got != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", got)
	}
	if got := codes("10.0.0.2"); got != http.StatusOK {
		t.Fatalf("other IPs keep their own bucket, got %d", got)
	}

	now = now.Add(time.Second)
	if got := codes("10.0.0.1"); got != http.StatusOK {
		t.Fatalf("expected refill after one second, got %d", got)
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }
	limiter.Allow("a")
	limiter.evictLocked(now.Add(limiterIdleTTL + time.Second))
	if len(limiter.clients) != 0 {
		t.Fatalf("expected idle client to be evicted")
	}
}

func TestRequireToken(t *testing.T) {
	h := RequireToken(WebhookTokenHeader, "s3cret")(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/chat", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req.Header.Set(WebhookTokenHeader, "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}

	open := RequireToken(WebhookTokenHeader, "")(okHandler)
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/chat", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("empty token should disable the check, got %d", rec.Code)
	}
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	h := RequestLogger(logging.New("error"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status to pass through, got %d", rec.Code)
	}
}
