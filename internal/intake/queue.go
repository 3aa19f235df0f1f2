package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

// Queue carries inbound jobs from the webhook to the workers.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// InboundEvent is one chat message delivered by the gateway.
type InboundEvent struct {
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	// PushName is the display name the lead set in the chat app.
	PushName   string    `json:"push_name,omitempty"`
	Body       string    `json:"body,omitempty"`
	MediaRef   string    `json:"media_ref,omitempty"`
	MediaType  string    `json:"media_type,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Kind labels the event for metrics and logs.
func (e InboundEvent) Kind() string {
	if strings.TrimSpace(e.MediaRef) != "" {
		return "media"
	}
	return "text"
}

type jobType string

const jobTypeInbound jobType = "inbound.v1"

type queuePayload struct {
	ID      string       `json:"id"`
	Kind    jobType      `json:"kind"`
	Inbound InboundEvent `json:"inbound"`
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("intake: failed to encode payload: %w", err)
	}
	return payload, string(body), nil
}

// Enqueuer publishes inbound events for asynchronous processing.
type Enqueuer struct {
	queue  Queue
	logger *logging.Logger
}

func NewEnqueuer(queue Queue, logger *logging.Logger) *Enqueuer {
	if queue == nil {
		panic("intake: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Enqueuer{queue: queue, logger: logger}
}

// Enqueue returns the job id assigned to the event.
func (e *Enqueuer) Enqueue(ctx context.Context, evt InboundEvent) (string, error) {
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now().UTC()
	}
	payload, body, err := encodePayload(queuePayload{Kind: jobTypeInbound, Inbound: evt})
	if err != nil {
		return "", err
	}
	if err := e.queue.Send(ctx, body); err != nil {
		return "", fmt.Errorf("intake: enqueue inbound: %w", err)
	}
	e.logger.Debug("inbound job enqueued", "job_id", payload.ID, "message_id", evt.MessageID, "kind", evt.Kind())
	return payload.ID, nil
}
