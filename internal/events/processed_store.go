package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ErrAlreadyProcessed is returned by guards when a key was claimed before.
var ErrAlreadyProcessed = errors.New("events: already processed")

// Processed records keys that must be handled at most once: inbound
// deliveries ("inbound", message id) and reminders ("reminder", race id).
type Processed interface {
	AlreadyProcessed(ctx context.Context, scope, key string) (bool, error)
	// MarkProcessed claims the key, returning false if it was claimed before.
	MarkProcessed(ctx context.Context, scope, key string) (bool, error)
}

// Claim wraps MarkProcessed, turning a duplicate into ErrAlreadyProcessed.
func Claim(ctx context.Context, store Processed, scope, key string) error {
	ok, err := store.MarkProcessed(ctx, scope, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyProcessed
	}
	return nil
}

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProcessedStore keeps processed keys in Postgres.
type ProcessedStore struct {
	pool rowQuerier
}

var _ Processed = (*ProcessedStore)(nil)

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// AlreadyProcessed checks if we've seen this key.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, scope, key string) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE scope = $1 AND event_key = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, scope, key).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

func (s *ProcessedStore) MarkProcessed(ctx context.Context, scope, key string) (bool, error) {
	query := `
		INSERT INTO processed_events (scope, event_key)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, scope, key)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// DefaultProcessedTTL bounds how long Redis remembers a key.
const DefaultProcessedTTL = 7 * 24 * time.Hour

// RedisProcessedStore claims keys with SET NX.
type RedisProcessedStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Processed = (*RedisProcessedStore)(nil)

func NewRedisProcessedStore(client *redis.Client, ttl time.Duration) *RedisProcessedStore {
	if client == nil {
		panic("events: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultProcessedTTL
	}
	return &RedisProcessedStore{client: client, ttl: ttl}
}

func processedKey(scope, key string) string {
	return "processed:" + strings.TrimSpace(scope) + ":" + strings.TrimSpace(key)
}

func (s *RedisProcessedStore) AlreadyProcessed(ctx context.Context, scope, key string) (bool, error) {
	n, err := s.client.Exists(ctx, processedKey(scope, key)).Result()
	if err != nil {
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return n > 0, nil
}

func (s *RedisProcessedStore) MarkProcessed(ctx context.Context, scope, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, processedKey(scope, key), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ok, nil
}

// MemoryProcessedStore is the in-process variant.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

var _ Processed = (*MemoryProcessedStore)(nil)

func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{seen: make(map[string]struct{})}
}

func (s *MemoryProcessedStore) AlreadyProcessed(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[processedKey(scope, key)]
	return ok, nil
}

func (s *MemoryProcessedStore) MarkProcessed(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := processedKey(scope, key)
	if _, ok := s.seen[k]; ok {
		return false, nil
	}
	s.seen[k] = struct{}{}
	return true, nil
}
