package main

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/wolfman30/solarbill-ai-platform/internal/intake"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

type recordingEnqueuer struct {
	events []intake.InboundEvent
	err    error
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, evt intake.InboundEvent) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.events = append(r.events, evt)
	return "job-42", nil
}

func request(method, path, body string, headers map[string]string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		Body:    body,
		Headers: headers,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: method, Path: path},
		},
	}
}

const textMessage = `{"event":"message.received","data":{"id":"A1","from":"5581999990000","text":"Oi"}}`

func TestHandleHealth(t *testing.T) {
	in := &ingress{enqueuer: &recordingEnqueuer{}, logger: logging.New("error")}
	resp, err := in.handle(context.Background(), request(http.MethodGet, "/health", "", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHandleRoutesAndMethods(t *testing.T) {
	in := &ingress{enqueuer: &recordingEnqueuer{}, logger: logging.New("error")}

	resp, _ := in.handle(context.Background(), request(http.MethodPost, "/webhooks/other", textMessage, nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp, _ = in.handle(context.Background(), request(http.MethodGet, webhookPath, "", nil))
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestHandleRequiresToken(t *testing.T) {
	enq := &recordingEnqueuer{}
	in := &ingress{enqueuer: enq, token: "s3cret", provider: "chatapi", logger: logging.New("error")}

	resp, _ := in.handle(context.Background(), request(http.MethodPost, webhookPath, textMessage, nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	resp, _ = in.handle(context.Background(), request(http.MethodPost, webhookPath, textMessage, map[string]string{"X-Webhook-Token": "s3cret"}))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.StatusCode, resp.Body)
	}
	if len(enq.events) != 1 || enq.events[0].Provider != "chatapi" {
		t.Fatalf("expected one queued chatapi event, got %+v", enq.events)
	}
}

func TestHandleDecodesBase64AndIgnoresEchoes(t *testing.T) {
	enq := &recordingEnqueuer{}
	in := &ingress{enqueuer: enq, logger: logging.New("error")}

	evt := request(http.MethodPost, webhookPath, base64.StdEncoding.EncodeToString([]byte(textMessage)), nil)
	evt.IsBase64Encoded = true
	resp, _ := in.handle(context.Background(), evt)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	echo := `{"event":"message.received","data":{"id":"A2","from":"5581999990000","from_me":true,"text":"Oi"}}`
	resp, _ = in.handle(context.Background(), request(http.MethodPost, webhookPath, echo, nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for echo, got %d", resp.StatusCode)
	}
	if len(enq.events) != 1 {
		t.Fatalf("echo must not be queued")
	}
}

func TestHandleEnqueueFailureAsksForRetry(t *testing.T) {
	in := &ingress{enqueuer: &recordingEnqueuer{err: errors.New("throttled")}, logger: logging.New("error")}
	resp, _ := in.handle(context.Background(), request(http.MethodPost, webhookPath, textMessage, nil))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	resp, _ = in.handle(context.Background(), request(http.MethodPost, webhookPath, "{", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
