package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/wolfman30/solarbill-ai-platform/internal/intake"
	observemetrics "github.com/wolfman30/solarbill-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

const maxWebhookBody = 1 << 20

type inboundEnqueuer interface {
	Enqueue(ctx context.Context, evt intake.InboundEvent) (string, error)
}

// ChatWebhookHandler accepts gateway callbacks and queues inbound messages.
// The pipeline runs asynchronously so the gateway gets its ack quickly.
type ChatWebhookHandler struct {
	enqueuer inboundEnqueuer
	provider string
	metrics  *observemetrics.MessagingMetrics
	logger   *logging.Logger
}

func NewChatWebhookHandler(enqueuer inboundEnqueuer, provider string, metrics *observemetrics.MessagingMetrics, logger *logging.Logger) *ChatWebhookHandler {
	if enqueuer == nil {
		panic("handlers: enqueuer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatWebhookHandler{enqueuer: enqueuer, provider: provider, metrics: metrics, logger: logger}
}

// Handle serves POST /webhooks/chat.
func (h *ChatWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.metrics.ObserveInbound("webhook", "invalid")
		jsonError(w, "invalid payload", http.StatusBadRequest)
		return
	}
	evt, ok, err := intake.ParseChatWebhook(body, h.provider)
	if err != nil {
		h.metrics.ObserveInbound("webhook", "invalid")
		jsonError(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if !ok {
		h.metrics.ObserveInbound("webhook", "ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	jobID, err := h.enqueuer.Enqueue(r.Context(), evt)
	if err != nil {
		h.logger.Error("failed to enqueue inbound message", "error", err, "message_id", evt.MessageID)
		h.metrics.ObserveInbound(evt.Kind(), "enqueue_failed")
		jsonError(w, "failed to enqueue", http.StatusServiceUnavailable)
		return
	}
	h.metrics.ObserveInbound(evt.Kind(), "queued")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "job_id": jobID})
}
