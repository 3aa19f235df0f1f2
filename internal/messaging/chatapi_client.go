package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

var chatAPITracer = otel.Tracer("solarbill.internal.messaging.chatapi")

const (
	maxMediaBytes   = 20 << 20
	defaultAttempts = 3
)

// ChatAPIConfig configures a WhatsApp-style HTTP gateway instance.
type ChatAPIConfig struct {
	Name       string
	BaseURL    string
	Token      string
	Instance   string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
}

// ChatAPIClient sends text messages and downloads media through a chat gateway's
// JSON API. It is both a Sender and a MediaFetcher.
type ChatAPIClient struct {
	name       string
	baseURL    string
	token      string
	instance   string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
	logger     *logging.Logger
}

var (
	_ Sender       = (*ChatAPIClient)(nil)
	_ MediaFetcher = (*ChatAPIClient)(nil)
)

// NewChatAPIClient validates cfg and applies defaults.
func NewChatAPIClient(cfg ChatAPIConfig, logger *logging.Logger) (*ChatAPIClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("messaging: chat api base url required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("messaging: chat api token required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	attempts := cfg.MaxRetries + 1
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	name := cfg.Name
	if name == "" {
		name = "chatapi"
	}
	return &ChatAPIClient{
		name:       name,
		baseURL:    baseURL,
		token:      cfg.Token,
		instance:   cfg.Instance,
		httpClient: httpClient,
		attempts:   attempts,
		backoff:    backoff,
		logger:     logger,
	}, nil
}

// Name identifies the gateway in logs and failover chains.
func (c *ChatAPIClient) Name() string { return c.name }

type sendTextRequest struct {
	Instance string `json:"instance,omitempty"`
	To       string `json:"to"`
	Text     string `json:"text"`
}

type sendTextResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Send posts a text message, retrying network errors and 5xx/429 responses.
func (c *ChatAPIClient) Send(ctx context.Context, msg OutboundMessage) (SendResult, error) {
	if msg.To == "" {
		return SendResult{}, errors.New("messaging: to required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return SendResult{}, errors.New("messaging: body required")
	}

	ctx, span := chatAPITracer.Start(ctx, "messaging.chatapi.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("solarbill.provider", c.name),
		attribute.String("solarbill.kind", msg.Kind),
	)

	payload, err := json.Marshal(sendTextRequest{
		Instance: c.instance,
		To:       strings.TrimPrefix(msg.To, "+"),
		Text:     msg.Body,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("messaging: marshal chat payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		body, status, err := c.do(ctx, http.MethodPost, "/messages", payload)
		switch {
		case err != nil:
			lastErr = err
		case status >= 200 && status < 300:
			var parsed sendTextResponse
			_ = json.Unmarshal(body, &parsed)
			c.logger.Info("chat message sent", "provider", c.name, "to", msg.To, "kind", msg.Kind)
			return SendResult{Provider: c.name, ProviderMessageID: parsed.ID}, nil
		case status == http.StatusTooManyRequests || status >= 500:
			lastErr = fmt.Errorf("messaging: %s send failed: status %d", c.name, status)
		default:
			lastErr = fmt.Errorf("messaging: %s send rejected: status %d: %s", c.name, status, truncate(string(body), 200))
			attempt = c.attempts
		}

		if attempt < c.attempts {
			sleep := c.backoff + time.Duration(rand.Int63n(int64(c.backoff)))
			select {
			case <-ctx.Done():
				return SendResult{}, ctx.Err()
			case <-time.After(sleep):
			}
		}
	}
	span.RecordError(lastErr)
	c.logger.Error("failed to send chat message", "provider", c.name, "error", lastErr, "to", msg.To)
	return SendResult{}, lastErr
}

// FetchMedia downloads an inbound attachment by gateway media id or absolute URL.
func (c *ChatAPIClient) FetchMedia(ctx context.Context, mediaRef string) (*Media, error) {
	mediaRef = strings.TrimSpace(mediaRef)
	if mediaRef == "" {
		return nil, errors.New("messaging: media reference required")
	}
	ctx, span := chatAPITracer.Start(ctx, "messaging.chatapi.fetch_media")
	defer span.End()

	target := c.baseURL + "/media/" + url.PathEscape(mediaRef)
	if u, err := url.Parse(mediaRef); err == nil && u.IsAbs() {
		target = mediaRef
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: build media request: %w", err)
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("messaging: fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("messaging: fetch media: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("messaging: read media: %w", err)
	}
	if len(data) > maxMediaBytes {
		return nil, fmt.Errorf("messaging: media exceeds %d bytes", maxMediaBytes)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &Media{Data: data, ContentType: contentType, FileName: path0(mediaRef)}, nil
}

func (c *ChatAPIClient) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("messaging: build request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
	return body, resp.StatusCode, nil
}

func (c *ChatAPIClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

func path0(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
