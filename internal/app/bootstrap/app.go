package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/solarbill-ai-platform/internal/api/router"
	appconfig "github.com/wolfman30/solarbill-ai-platform/internal/config"
	"github.com/wolfman30/solarbill-ai-platform/internal/conversation"
	"github.com/wolfman30/solarbill-ai-platform/internal/events"
	"github.com/wolfman30/solarbill-ai-platform/internal/extraction"
	"github.com/wolfman30/solarbill-ai-platform/internal/followup"
	"github.com/wolfman30/solarbill-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/solarbill-ai-platform/internal/http/middleware"
	"github.com/wolfman30/solarbill-ai-platform/internal/intake"
	"github.com/wolfman30/solarbill-ai-platform/internal/leads"
	"github.com/wolfman30/solarbill-ai-platform/internal/media"
	"github.com/wolfman30/solarbill-ai-platform/internal/messaging"
	"github.com/wolfman30/solarbill-ai-platform/internal/notify"
	"github.com/wolfman30/solarbill-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/solarbill-ai-platform/internal/qualification"
	"github.com/wolfman30/solarbill-ai-platform/internal/race"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

const memoryQueueBuffer = 256

// Params are the process-level inputs to Build. S3 is optional; without it
// bill archiving is off.
type Params struct {
	Config *appconfig.Config
	AWS    aws.Config
	S3     media.S3API
	Logger *logging.Logger
	// VerifyConnections pings Redis before using it.
	VerifyConnections bool
}

// App holds every long-lived component of the platform.
type App struct {
	Config *appconfig.Config
	Logger *logging.Logger

	Registry *prometheus.Registry
	Redis    *redis.Client
	Pool     *pgxpool.Pool
	SQL      *sql.DB

	Contexts       conversation.Store
	ContextBackend string
	Leads          leads.Repository
	Processed      events.Processed
	Transcripts    *conversation.TranscriptStore
	Sender         messaging.Sender
	Publisher      events.Publisher
	Notifier       *notify.Service

	Races     *race.Coordinator
	Journal   race.Journal
	Followup  *followup.Dispatcher
	Sweeper   *race.Sweeper
	Deliverer *events.Deliverer

	Analyzer  *intake.Analyzer
	Processor *intake.Processor
	Queue     intake.Queue
	Enqueuer  *intake.Enqueuer
	Worker    *intake.Worker

	MessagingMetrics *metrics.MessagingMetrics

	durableJournal bool
	closers        []func() error
}

// Build wires the platform from config. Optional backends that are missing or
// unreachable degrade to in-memory implementations.
func Build(ctx context.Context, p Params) (*App, error) {
	cfg := p.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	logger := p.Logger
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	a := &App{Config: cfg, Logger: logger}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.MessagingMetrics = metrics.NewMessagingMetrics(a.Registry)
	leadMetrics := metrics.NewLeadMetrics(a.Registry)
	raceMetrics := metrics.NewRaceMetrics(a.Registry)

	a.Redis = BuildRedisClient(ctx, cfg, logger, p.VerifyConnections)
	if a.Redis != nil {
		a.closers = append(a.closers, a.Redis.Close)
	}
	a.Pool = ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if a.Pool != nil {
		a.closers = append(a.closers, func() error { a.Pool.Close(); return nil })
	}

	a.Contexts, a.ContextBackend = BuildContextStore(cfg, a.Redis, a.Pool, logger)
	a.Processed = BuildProcessedStore(cfg, a.Redis, a.Pool)
	var finder leads.Finder
	a.Leads, finder = BuildLeadsRepository(a.Pool)

	if cfg.TranscriptsEnabled && a.Pool != nil {
		db, err := OpenSQLDB(cfg.DatabaseURL)
		if err != nil {
			logger.Warn("transcripts disabled", "error", err)
		} else {
			a.SQL = db
			a.Transcripts = conversation.NewTranscriptStore(db)
			a.closers = append(a.closers, db.Close)
		}
	}

	sender, senderDesc, chatClient := BuildSender(cfg, logger)
	a.Sender = sender
	var fetcher messaging.MediaFetcher
	if chatClient != nil {
		fetcher = chatClient
	}

	llmClient, llmClosers := BuildLLMClient(ctx, cfg, p.AWS, logger)
	a.closers = append(a.closers, llmClosers...)
	vision, visionClose := BuildVisionReader(ctx, cfg, logger)
	if visionClose != nil {
		a.closers = append(a.closers, visionClose)
	}

	var archive *media.Archive
	if p.S3 != nil && strings.TrimSpace(cfg.MediaBucket) != "" {
		archive = media.NewArchive(p.S3, cfg.MediaBucket, logger)
	}

	email, emailProvider := BuildEmailSender(cfg, p.AWS, logger)
	a.Notifier = notify.NewService(email, sender, notify.Recipients{
		Email: cfg.SalesAlertEmail,
		Phone: cfg.SalesAlertPhone,
	}, logger)

	if a.Pool != nil {
		outbox := events.NewOutboxStore(a.Pool)
		a.Publisher = outbox
		a.Deliverer = events.NewDeliverer(outbox, a.Notifier, logger).WithInterval(cfg.OutboxPollInterval)
	} else {
		a.Publisher = events.NewDirectPublisher(a.Notifier)
	}

	if table := strings.TrimSpace(cfg.RaceJournalTable); table != "" {
		a.Journal = race.NewDynamoJournal(dynamodb.NewFromConfig(p.AWS), table, logger)
		a.durableJournal = true
	} else {
		a.Journal = race.NewMemoryJournal()
	}
	a.Races = race.NewCoordinator(
		race.WithJournal(a.Journal),
		race.WithLogger(logger),
		race.WithMetrics(raceMetrics),
		race.WithDefaultDeadline(cfg.ReplyTimeout),
	)

	eventLog := conversation.NewEventLogger(logger)
	a.Followup = followup.New(followup.Config{
		Races:        a.Races,
		Contexts:     a.Contexts,
		Sender:       sender,
		Guard:        a.Processed,
		Publisher:    a.Publisher,
		Events:       eventLog,
		Metrics:      raceMetrics,
		Logger:       logger,
		Deadline:     a.Races.DefaultDeadline(),
		ReminderText: cfg.ReminderText,
	})
	a.Sweeper = race.NewSweeper(a.Journal, a.Followup.HandleTimeout, logger)

	a.Analyzer = intake.NewAnalyzer(
		extraction.NewExtractor(),
		extraction.NewValidator(time.Now),
		qualification.NewScorer(
			qualification.WithMinAmount(cfg.MinQualifyingAmount),
			qualification.WithScoreThreshold(cfg.QualifyingScoreThreshold),
		),
	)

	a.Processor = intake.NewProcessor(intake.Config{
		Contexts:    a.Contexts,
		Leads:       a.Leads,
		Finder:      finder,
		Sender:      sender,
		Media:       fetcher,
		Vision:      vision,
		Archive:     archive,
		LLM:         llmClient,
		Followup:    a.Followup,
		Processed:   a.Processed,
		Publisher:   a.Publisher,
		Transcripts: a.Transcripts,
		Analyzer:    a.Analyzer,
		Events:      eventLog,
		Messaging:   a.MessagingMetrics,
		LeadMetrics: leadMetrics,
		Logger:      logger,
	})

	workerOpts := []intake.WorkerOption{intake.WithWorkerCount(cfg.WorkerCount)}
	if cfg.UseMemoryQueue || strings.TrimSpace(cfg.ConversationQueueURL) == "" {
		if !cfg.UseMemoryQueue {
			logger.Warn("CONVERSATION_QUEUE_URL is empty; using in-memory queue")
		}
		a.Queue = intake.NewMemoryQueue(memoryQueueBuffer)
	} else {
		a.Queue = intake.NewSQSQueue(sqs.NewFromConfig(p.AWS), cfg.ConversationQueueURL)
		workerOpts = append(workerOpts, intake.WithReceiveWaitSeconds(20), intake.WithReceiveBatchSize(10))
	}
	a.Enqueuer = intake.NewEnqueuer(a.Queue, logger)
	a.Worker = intake.NewWorker(a.Processor, a.Queue, logger, workerOpts...)

	logger.Info("platform wired",
		"context_store", a.ContextBackend,
		"postgres", a.Pool != nil,
		"redis", a.Redis != nil,
		"sender", senderDesc,
		"email", emailProvider,
		"llm", llmClient != nil,
		"vision", vision != nil,
		"archive", archive.Enabled(),
		"durable_races", a.durableJournal,
		"reply_timeout", a.Followup.Deadline().String(),
	)
	return a, nil
}

// Router builds the HTTP surface over the wired components.
func (a *App) Router() http.Handler {
	var transcripts interface {
		List(ctx context.Context, leadID string, limit int) ([]conversation.TranscriptMessage, error)
	}
	if a.Transcripts != nil {
		transcripts = a.Transcripts
	}

	limiter := httpmiddleware.NewRateLimiter(a.Config.PublicRatePerSecond, a.Config.PublicBurst)
	return router.New(&router.Config{
		Logger:             a.Logger,
		Health:             handlers.NewHealthHandler(a.healthChecks()...),
		MetricsHandler:     promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		ChatWebhook:        handlers.NewChatWebhookHandler(a.Enqueuer, messaging.ProviderPrimary, a.MessagingMetrics, a.Logger),
		Extract:            handlers.NewExtractHandler(a.Analyzer, a.Logger),
		AdminLeads:         handlers.NewAdminLeadsHandler(a.Contexts, transcripts, a.Races, a.Logger),
		LeadsHandler:       leads.NewHandler(a.Leads, a.Logger),
		WebhookToken:       a.Config.WebhookToken,
		CORSAllowedOrigins: a.Config.CORSAllowedOrigins,
		PublicRateLimiter:  limiter,
	})
}

func (a *App) healthChecks() []handlers.HealthCheck {
	var checks []handlers.HealthCheck
	if a.Redis != nil {
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}})
	}
	if a.Pool != nil {
		checks = append(checks, handlers.HealthCheck{Name: "postgres", Check: a.Pool.Ping})
	}
	return checks
}

// Run starts the background loops: intake workers, the outbox deliverer and,
// with a durable journal, the race sweeper. It blocks until ctx is cancelled
// and every loop has returned.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.Worker.Start(gctx)
	g.Go(func() error {
		a.Worker.Wait()
		return nil
	})

	if a.Deliverer != nil {
		g.Go(func() error {
			a.Deliverer.Start(gctx)
			return nil
		})
	}
	if a.durableJournal {
		g.Go(func() error {
			return a.Sweeper.Run(gctx, a.Config.SweepInterval)
		})
	}
	return g.Wait()
}

// Close stops follow-up waiters and releases connections. Races still armed
// remain in the journal for the next sweep.
func (a *App) Close() {
	a.Followup.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", "error", err)
		}
	}
}
