package bootstrap

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	appconfig "github.com/wolfman30/solarbill-ai-platform/internal/config"
	"github.com/wolfman30/solarbill-ai-platform/internal/conversation"
	"github.com/wolfman30/solarbill-ai-platform/internal/events"
	"github.com/wolfman30/solarbill-ai-platform/internal/leads"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

const defaultProcessedRetention = 7 * 24 * time.Hour

// Context store backends accepted by CONTEXT_STORE.
const (
	ContextStoreMemory   = "memory"
	ContextStoreRedis    = "redis"
	ContextStorePostgres = "postgres"
)

// BuildContextStore picks the conversation context backend. A backend whose
// connection is missing degrades to memory with a warning.
func BuildContextStore(cfg *appconfig.Config, redisClient *redis.Client, pool *pgxpool.Pool, logger *logging.Logger) (conversation.Store, string) {
	if logger == nil {
		logger = logging.Default()
	}
	want := ContextStoreMemory
	if cfg != nil && cfg.ContextStore != "" {
		want = cfg.ContextStore
	}

	switch want {
	case ContextStoreRedis:
		if redisClient != nil {
			return conversation.NewRedisStore(redisClient, otel.Tracer("solarbill/conversation")), ContextStoreRedis
		}
		logger.Warn("redis context store requested but redis is unavailable; using memory")
	case ContextStorePostgres:
		if pool != nil {
			return conversation.NewPostgresStore(pool), ContextStorePostgres
		}
		logger.Warn("postgres context store requested but database is unavailable; using memory")
	case ContextStoreMemory:
	default:
		logger.Warn("unknown context store; using memory", "context_store", want)
	}
	return conversation.NewMemoryStore(), ContextStoreMemory
}

// BuildProcessedStore prefers Postgres, then Redis, then memory.
func BuildProcessedStore(cfg *appconfig.Config, redisClient *redis.Client, pool *pgxpool.Pool) events.Processed {
	if pool != nil {
		return events.NewProcessedStore(pool)
	}
	if redisClient != nil {
		ttl := defaultProcessedRetention
		if cfg != nil && cfg.ProcessedRetention > 0 {
			ttl = cfg.ProcessedRetention
		}
		return events.NewRedisProcessedStore(redisClient, ttl)
	}
	return events.NewMemoryProcessedStore()
}

// BuildLeadsRepository returns the Postgres repository when a pool exists.
// The finder consults the repository first, then any extra read-only sources.
func BuildLeadsRepository(pool *pgxpool.Pool, extra ...leads.Finder) (leads.Repository, leads.Finder) {
	var repo leads.Repository
	if pool != nil {
		repo = leads.NewPostgresRepository(pool)
	} else {
		repo = leads.NewInMemoryRepository()
	}
	if len(extra) == 0 {
		return repo, repo
	}
	return repo, leads.NewChainFinder(append([]leads.Finder{repo}, extra...)...)
}
