package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool pgQuerier
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepository(q pgQuerier) *PostgresRepository {
	if q == nil {
		panic("leads: querier required")
	}
	return &PostgresRepository{pool: q}
}

const leadColumns = `id, phone, name, city, state, provider, monthly_amount_cents,
		qualification_score, is_qualified, qualified_at, source, created_at, updated_at`

// Upsert inserts the lead or merges the request into the existing row.
func (r *PostgresRepository) Upsert(ctx context.Context, req *UpsertLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO leads (id, phone, name, city, state, provider, monthly_amount_cents,
			qualification_score, is_qualified, qualified_at, source)
		VALUES ($1, $2, COALESCE($3, ''), COALESCE($4, ''), COALESCE($5, ''), COALESCE($6, ''), $7,
			COALESCE($8, 0), $9, CASE WHEN $9 THEN now() END, $10)
		ON CONFLICT (phone) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), leads.name),
			city = COALESCE(NULLIF(EXCLUDED.city, ''), leads.city),
			state = COALESCE(NULLIF(EXCLUDED.state, ''), leads.state),
			provider = COALESCE(NULLIF(EXCLUDED.provider, ''), leads.provider),
			monthly_amount_cents = COALESCE(EXCLUDED.monthly_amount_cents, leads.monthly_amount_cents),
			qualification_score = CASE WHEN $8::int IS NULL THEN leads.qualification_score ELSE EXCLUDED.qualification_score END,
			is_qualified = leads.is_qualified OR EXCLUDED.is_qualified,
			qualified_at = COALESCE(leads.qualified_at, EXCLUDED.qualified_at),
			source = CASE WHEN leads.source = '' THEN EXCLUDED.source ELSE leads.source END,
			updated_at = now()
		RETURNING ` + leadColumns

	row := r.pool.QueryRow(ctx, query,
		uuid.New(),
		strings.TrimSpace(req.Phone),
		nullableText(req.Name),
		nullableText(req.City),
		nullableText(req.State),
		nullableText(req.Provider),
		toCents(req.MonthlyAmount),
		req.QualificationScore,
		req.IsQualified,
		req.Source,
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, fmt.Errorf("leads: upsert failed: %w", err)
	}
	return lead, nil
}

// GetByPhone fetches a lead by its normalized phone.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE phone = $1`
	lead, err := scanLead(r.pool.QueryRow(ctx, query, strings.TrimSpace(phone)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// List returns leads ordered by most recent update.
func (r *PostgresRepository) List(ctx context.Context, filter ListLeadsFilter) ([]*Lead, error) {
	filter = filter.normalized()
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE ($1 = false OR is_qualified)
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, filter.QualifiedOnly, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	out := []*Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*Lead, error) {
	var (
		lead        Lead
		cents       *int64
		qualifiedAt *time.Time
	)
	if err := row.Scan(
		&lead.ID,
		&lead.Phone,
		&lead.Name,
		&lead.City,
		&lead.State,
		&lead.Provider,
		&cents,
		&lead.QualificationScore,
		&lead.IsQualified,
		&qualifiedAt,
		&lead.Source,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if cents != nil {
		amount := decimal.NewFromInt(*cents).Shift(-2)
		lead.MonthlyAmount = &amount
	}
	lead.QualifiedAt = qualifiedAt
	return &lead, nil
}

func nullableText(v *string) any {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return strings.TrimSpace(*v)
}

func toCents(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.Shift(2).Round(0).IntPart()
}
