package main

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/solarbill-ai-platform/cmd/mainconfig"
	appconfig "github.com/wolfman30/solarbill-ai-platform/internal/config"
	"github.com/wolfman30/solarbill-ai-platform/internal/intake"
	"github.com/wolfman30/solarbill-ai-platform/internal/messaging"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

const webhookPath = "/webhooks/chat"

type enqueuer interface {
	Enqueue(ctx context.Context, evt intake.InboundEvent) (string, error)
}

// ingress acks gateway callbacks at the edge and puts inbound messages
// straight onto the conversation queue.
type ingress struct {
	enqueuer enqueuer
	token    string
	provider string
	logger   *logging.Logger
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if strings.TrimSpace(cfg.ConversationQueueURL) == "" {
		panic(errors.New("CONVERSATION_QUEUE_URL is required"))
	}

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		panic(err)
	}
	queue := intake.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL)

	in := &ingress{
		enqueuer: intake.NewEnqueuer(queue, logger),
		token:    strings.TrimSpace(cfg.WebhookToken),
		provider: messaging.ProviderPrimary,
		logger:   logger,
	}
	lambda.Start(in.handle)
}

func (in *ingress) handle(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	if path == "/health" || path == "/_health" {
		return respond(http.StatusOK, map[string]string{"status": "ok"}), nil
	}
	if path != webhookPath {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNotFound}, nil
	}
	if method != http.MethodPost {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusMethodNotAllowed}, nil
	}
	if !in.authorized(evt.Headers) {
		return respond(http.StatusUnauthorized, map[string]string{"error": "invalid webhook token"}), nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return respond(http.StatusBadRequest, map[string]string{"error": "invalid body"}), nil
	}
	inbound, ok, err := intake.ParseChatWebhook(body, in.provider)
	if err != nil {
		return respond(http.StatusBadRequest, map[string]string{"error": "invalid payload"}), nil
	}
	if !ok {
		return respond(http.StatusOK, map[string]string{"status": "ignored"}), nil
	}

	jobID, err := in.enqueuer.Enqueue(ctx, inbound)
	if err != nil {
		in.logger.Error("failed to enqueue inbound message", "error", err, "message_id", inbound.MessageID)
		// 503 makes the gateway retry; the pipeline dedupes by message id.
		return respond(http.StatusServiceUnavailable, map[string]string{"error": "failed to enqueue"}), nil
	}
	return respond(http.StatusAccepted, map[string]string{"status": "queued", "job_id": jobID}), nil
}

func (in *ingress) authorized(headers map[string]string) bool {
	if in.token == "" {
		return true
	}
	got := strings.TrimSpace(headerValue(headers, "x-webhook-token"))
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(in.token)) == 1
}

func respond(status int, payload map[string]string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(payload)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"content-type": "application/json"},
	}
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
