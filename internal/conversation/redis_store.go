package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	leadContextTTL        = 30 * 24 * time.Hour
	maxOptimisticAttempts = 25
)

// ErrConcurrentUpdate is returned when a Redis upsert keeps losing WATCH races.
var ErrConcurrentUpdate = errors.New("conversation: concurrent update retries exhausted")

// RedisStore persists contexts as JSON and applies upserts in WATCH/MULTI
// transactions, retrying when another writer touched the key.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("solarbill.internal.conversation.context")
	}
	return &RedisStore{redis: client, tracer: tracer, ttl: leadContextTTL, now: time.Now}
}

func leadContextKey(leadID string) string {
	return fmt.Sprintf("lead_context:%s", leadID)
}

func (s *RedisStore) Get(ctx context.Context, leadID string) (*Context, error) {
	leadID, err := normalizeLeadID(leadID)
	if err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "conversation.context.get")
	defer span.End()

	data, err := s.redis.Get(ctx, leadContextKey(leadID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load context: %w", err)
	}
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode context: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) Upsert(ctx context.Context, leadID string, partial PartialContext) (*Context, error) {
	leadID, err := normalizeLeadID(leadID)
	if err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "conversation.context.upsert")
	defer span.End()

	key := leadContextKey(leadID)
	var result *Context
	txf := func(tx *redis.Tx) error {
		var existing *Context
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			existing = &Context{}
			if err := json.Unmarshal(data, existing); err != nil {
				return fmt.Errorf("conversation: failed to decode context: %w", err)
			}
		}

		next := merge(existing, leadID, partial, s.now())
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("conversation: failed to marshal context: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for attempt := 0; attempt < maxOptimisticAttempts; attempt++ {
		err := s.redis.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Another writer committed in between; a losing writer retries at most once per rival.
			continue
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to upsert context: %w", err)
	}
	span.RecordError(ErrConcurrentUpdate)
	return nil, ErrConcurrentUpdate
}
