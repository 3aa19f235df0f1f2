package messaging

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, srv *httptest.Server) *ChatAPIClient {
	t.Helper()
	client, err := NewChatAPIClient(ChatAPIConfig{
		BaseURL:    srv.URL,
		Token:      "secret",
		Instance:   "solar-01",
		Backoff:    time.Millisecond,
		HTTPClient: srv.Client(),
	}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestChatAPIClient_Send(t *testing.T) {
	var got sendTextRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = io.WriteString(w, `{"id":"msg-1","status":"queued"}`)
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv).Send(context.Background(), OutboundMessage{
		To:   "+5581999990000",
		Body: "Olá!",
		Kind: KindReply,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Provider != "chatapi" || res.ProviderMessageID != "msg-1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got.To != "5581999990000" || got.Text != "Olá!" || got.Instance != "solar-01" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestChatAPIClient_SendRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"id":"msg-3"}`)
	}))
	defer srv.Close()

	res, err := newTestClient(t, srv).Send(context.Background(), OutboundMessage{To: "+5581999990000", Body: "oi"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.ProviderMessageID != "msg-3" {
		t.Fatalf("unexpected result %+v", res)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestChatAPIClient_SendDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid number"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Send(context.Background(), OutboundMessage{To: "+5581999990000", Body: "oi"})
	if err == nil || !strings.Contains(err.Error(), "invalid number") {
		t.Fatalf("expected rejection error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestChatAPIClient_SendValidates(t *testing.T) {
	client, err := NewChatAPIClient(ChatAPIConfig{BaseURL: "http://localhost", Token: "x"}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Send(context.Background(), OutboundMessage{Body: "oi"}); err == nil {
		t.Fatalf("expected missing recipient error")
	}
	if _, err := client.Send(context.Background(), OutboundMessage{To: "+5581999990000", Body: "  "}); err == nil {
		t.Fatalf("expected missing body error")
	}
	if _, err := NewChatAPIClient(ChatAPIConfig{Token: "x"}, nil); err == nil {
		t.Fatalf("expected missing base url error")
	}
}

func TestChatAPIClient_FetchMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/media/abc123" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	}))
	defer srv.Close()
	client := newTestClient(t, srv)

	media, err := client.FetchMedia(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if media.ContentType != "image/jpeg" || len(media.Data) != 4 || media.FileName != "abc123" {
		t.Fatalf("unexpected media %+v", media)
	}

	if _, err := client.FetchMedia(context.Background(), "missing"); err == nil {
		t.Fatalf("expected 404 error")
	}
	abs, err := client.FetchMedia(context.Background(), srv.URL+"/media/abc123")
	if err != nil {
		t.Fatalf("fetch absolute: %v", err)
	}
	if len(abs.Data) != 4 {
		t.Fatalf("unexpected absolute media %+v", abs)
	}
}
