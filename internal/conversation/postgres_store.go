package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps contexts as JSONB rows. Upserts lock the lead's row with
// SELECT ... FOR UPDATE inside a transaction.
type PostgresStore struct {
	db     txBeginner
	tracer trace.Tracer
	now    func() time.Time
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return newPostgresStore(pool)
}

func newPostgresStore(db txBeginner) *PostgresStore {
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("solarbill.internal.conversation.context_pg"),
		now:    time.Now,
	}
}

func (s *PostgresStore) Get(ctx context.Context, leadID string) (*Context, error) {
	leadID, err := normalizeLeadID(leadID)
	if err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "conversation.context_pg.get")
	defer span.End()

	var data []byte
	err = s.db.QueryRow(ctx, `SELECT data FROM lead_contexts WHERE lead_id = $1`, leadID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load context: %w", err)
	}
	return decodeStoredContext(data)
}

func (s *PostgresStore) Upsert(ctx context.Context, leadID string, partial PartialContext) (*Context, error) {
	leadID, err := normalizeLeadID(leadID)
	if err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "conversation.context_pg.upsert")
	defer span.End()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Ensure a row exists so FOR UPDATE has something to lock for first-time leads.
	if _, err := tx.Exec(ctx, `
		INSERT INTO lead_contexts (lead_id, data, stage, updated_at)
		VALUES ($1, '{}'::jsonb, 'initial', NOW())
		ON CONFLICT (lead_id) DO NOTHING
	`, leadID); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: reserve context row: %w", err)
	}

	var data []byte
	if err := tx.QueryRow(ctx, `SELECT data FROM lead_contexts WHERE lead_id = $1 FOR UPDATE`, leadID).Scan(&data); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: lock context: %w", err)
	}
	existing, err := decodeStoredContext(data)
	if err != nil {
		return nil, err
	}

	next := merge(existing, leadID, partial, s.now())
	payload, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("conversation: marshal context: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE lead_contexts SET data = $2, stage = $3, updated_at = $4 WHERE lead_id = $1`,
		leadID, payload, next.Stage.String(), next.UpdatedAt,
	); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: save context: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: commit: %w", err)
	}
	return next, nil
}

// decodeStoredContext returns nil for the empty placeholder row.
func decodeStoredContext(data []byte) (*Context, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("conversation: decode context: %w", err)
	}
	if c.LeadID == "" {
		return nil, nil
	}
	return &c, nil
}
