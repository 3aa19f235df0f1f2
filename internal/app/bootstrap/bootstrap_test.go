package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/solarbill-ai-platform/internal/config"
	"github.com/wolfman30/solarbill-ai-platform/internal/conversation"
	"github.com/wolfman30/solarbill-ai-platform/internal/events"
	"github.com/wolfman30/solarbill-ai-platform/internal/messaging"
	"github.com/wolfman30/solarbill-ai-platform/internal/notify"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		LogLevel:                 "error",
		UseMemoryQueue:           true,
		WorkerCount:              1,
		ContextStore:             ContextStoreMemory,
		MinQualifyingAmount:      200,
		QualifyingScoreThreshold: 65,
		ReplyTimeout:             time.Hour,
		PublicRatePerSecond:      100,
		PublicBurst:              100,
		SweepInterval:            time.Minute,
		OutboxPollInterval:       time.Second,
	}
}

func TestBuildContextStoreSelection(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := logging.New("error")

	cfg := testConfig()
	cfg.ContextStore = ContextStoreRedis
	store, backend := BuildContextStore(cfg, client, nil, logger)
	assert.Equal(t, ContextStoreRedis, backend)
	assert.IsType(t, &conversation.RedisStore{}, store)

	_, backend = BuildContextStore(cfg, nil, nil, logger)
	assert.Equal(t, ContextStoreMemory, backend, "redis unavailable falls back to memory")

	cfg.ContextStore = ContextStorePostgres
	_, backend = BuildContextStore(cfg, client, nil, logger)
	assert.Equal(t, ContextStoreMemory, backend)

	cfg.ContextStore = "etcd"
	_, backend = BuildContextStore(cfg, client, nil, logger)
	assert.Equal(t, ContextStoreMemory, backend)
}

func TestBuildProcessedStoreFallsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	assert.IsType(t, &events.RedisProcessedStore{}, BuildProcessedStore(testConfig(), client, nil))
	assert.IsType(t, &events.MemoryProcessedStore{}, BuildProcessedStore(testConfig(), nil, nil))
}

func TestBuildEmailSenderSelection(t *testing.T) {
	logger := logging.New("error")
	awsCfg := aws.Config{Region: "sa-east-1"}

	tests := []struct {
		name string
		cfg  appconfig.Config
		want string
	}{
		{name: "nothing configured", cfg: appconfig.Config{}, want: EmailProviderStub},
		{name: "sendgrid key", cfg: appconfig.Config{SendGridAPIKey: "SG.key", SendGridFromEmail: "leads@example.com"}, want: EmailProviderSendGrid},
		{name: "ses address", cfg: appconfig.Config{SESFromEmail: "leads@example.com"}, want: EmailProviderSES},
		{name: "explicit ses without address", cfg: appconfig.Config{EmailProvider: "ses"}, want: EmailProviderStub},
		{name: "unknown provider", cfg: appconfig.Config{EmailProvider: "mailgun"}, want: EmailProviderStub},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			sender, provider := BuildEmailSender(&cfg, awsCfg, logger)
			require.NotNil(t, sender)
			assert.Equal(t, tt.want, provider)
			if tt.want == EmailProviderStub {
				assert.IsType(t, &notify.StubEmailSender{}, sender)
			}
		})
	}
}

func TestBuildLLMClientUnconfigured(t *testing.T) {
	client, closers := BuildLLMClient(context.Background(), testConfig(), aws.Config{}, logging.New("error"))
	assert.Nil(t, client)
	assert.Empty(t, closers)

	reader, closer := BuildVisionReader(context.Background(), testConfig(), logging.New("error"))
	assert.Nil(t, reader)
	assert.Nil(t, closer)
}

func TestBuildRequiresConfig(t *testing.T) {
	_, err := Build(context.Background(), Params{})
	require.Error(t, err)
}

func TestAppAnswersWebhookEndToEnd(t *testing.T) {
	app, err := Build(context.Background(), Params{
		Config: testConfig(),
		AWS:    aws.Config{Region: "sa-east-1"},
		Logger: logging.New("error"),
	})
	require.NoError(t, err)
	assert.Equal(t, ContextStoreMemory, app.ContextBackend)
	assert.Equal(t, time.Hour, app.Races.DefaultDeadline())
	assert.Equal(t, time.Hour, app.Followup.Deadline())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		app.Close()
	})

	handler := app.Router()
	body := `{"event":"message.received","data":{"id":"wamid-1","from":"5581999990000@s.whatsapp.net","push_name":"Maria","text":"Oi, moro em Recife PE","timestamp":1740830400}}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/chat", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	sender, ok := app.Sender.(*messaging.MemorySender)
	require.True(t, ok, "no gateway configured should record outbound messages in memory")
	require.Eventually(t, func() bool {
		return len(sender.Sent()) == 1 && len(app.Races.Pending("+5581999990000")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sent := sender.Sent()[0]
	assert.Equal(t, "+5581999990000", sent.To)
	assert.Equal(t, messaging.KindReply, sent.Kind)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/leads/81999990000/context", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Known        bool     `json:"known"`
		PendingRaces []string `json:"pending_races"`
		Context      struct {
			City  string `json:"city"`
			State string `json:"state"`
		} `json:"context"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Known)
	assert.Equal(t, "Recife", resp.Context.City)
	assert.Equal(t, "PE", resp.Context.State)
	assert.Len(t, resp.PendingRaces, 1)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "solarbill_race_armed_total")
	assert.Contains(t, rec.Body.String(), "solarbill_race_default_deadline_seconds 3600")
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions(&appconfig.Config{RedisAddr: "localhost:6379", RedisTLS: true})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.NotNil(t, opts.TLSConfig)

	opts, err = redisOptions(&appconfig.Config{RedisAddr: "rediss://:secret@cache.internal:6380/2"})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.NotNil(t, opts.TLSConfig)

	_, err = redisOptions(&appconfig.Config{RedisAddr: "redis://host:6379/notadb"})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.New("error"), true)
	require.NotNil(t, client)
	_ = client.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true))
}
