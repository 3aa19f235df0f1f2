package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

func strp(s string) *string { return &s }

func TestInMemoryRepository_UpsertMerges(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if _, err := repo.Upsert(ctx, &UpsertLeadRequest{}); !errors.Is(err, ErrMissingPhone) {
		t.Fatalf("expected ErrMissingPhone, got %v", err)
	}

	amount := decimal.RequireFromString("487.35")
	score := 74
	first, err := repo.Upsert(ctx, &UpsertLeadRequest{
		Phone:              "+5531988887777",
		Name:               strp("João Carlos Pereira"),
		City:               strp("Belo Horizonte"),
		MonthlyAmount:      &amount,
		QualificationScore: &score,
		IsQualified:        true,
		Source:             "whatsapp",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.QualifiedAt == nil {
		t.Fatalf("expected qualified_at to be set")
	}

	lower := 40
	second, err := repo.Upsert(ctx, &UpsertLeadRequest{
		Phone:              "+5531988887777",
		State:              strp("MG"),
		Name:               strp("  "),
		QualificationScore: &lower,
		Source:             "web",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID || second.Name != "João Carlos Pereira" || second.State != "MG" {
		t.Fatalf("unexpected merge result %#v", second)
	}
	if !second.IsQualified || !second.QualifiedAt.Equal(*first.QualifiedAt) {
		t.Fatalf("qualification must be sticky: %#v", second)
	}
	if second.QualificationScore != 40 || second.Source != "whatsapp" {
		t.Fatalf("unexpected score/source %d %s", second.QualificationScore, second.Source)
	}
	if second.MonthlyAmount == nil || !second.MonthlyAmount.Equal(amount) {
		t.Fatalf("amount should be retained, got %v", second.MonthlyAmount)
	}
}

type staticFinder struct {
	lead *Lead
	err  error
	hits int
}

func (s *staticFinder) GetByPhone(context.Context, string) (*Lead, error) {
	s.hits++
	return s.lead, s.err
}

func TestChainFinder(t *testing.T) {
	miss := &staticFinder{err: ErrLeadNotFound}
	hit := &staticFinder{lead: &Lead{Phone: "+5581999990000"}}
	unused := &staticFinder{lead: &Lead{Phone: "other"}}

	lead, err := NewChainFinder(miss, nil, hit, unused).GetByPhone(context.Background(), "+5581999990000")
	if err != nil || lead.Phone != "+5581999990000" {
		t.Fatalf("unexpected result %#v %v", lead, err)
	}
	if unused.hits != 0 {
		t.Fatalf("chain should stop at first hit")
	}

	broken := &staticFinder{err: errors.New("db down")}
	if _, err := NewChainFinder(broken, hit).GetByPhone(context.Background(), "x"); err == nil || errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected infrastructure error to stop the chain, got %v", err)
	}
	if _, err := NewChainFinder(miss).GetByPhone(context.Background(), "x"); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

var leadRowColumns = []string{"id", "phone", "name", "city", "state", "provider", "monthly_amount_cents",
	"qualification_score", "is_qualified", "qualified_at", "source", "created_at", "updated_at"}

func TestPostgresRepository_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	repo := newPostgresRepository(mock)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cents := int64(48735)
	amount := decimal.RequireFromString("487.35")
	score := 74
	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), "+5531988887777", "João Carlos Pereira", nil, nil, "CEMIG", int64(48735),
			pgxmock.AnyArg(), true, "whatsapp").
		WillReturnRows(pgxmock.NewRows(leadRowColumns).AddRow(
			"1d7b3a4e-0000-4000-8000-000000000001", "+5531988887777", "João Carlos Pereira", "", "", "CEMIG",
			&cents, 74, true, &now, "whatsapp", now, now,
		))

	lead, err := repo.Upsert(context.Background(), &UpsertLeadRequest{
		Phone:              "+5531988887777",
		Name:               strp("João Carlos Pereira"),
		Provider:           strp("CEMIG"),
		MonthlyAmount:      &amount,
		QualificationScore: &score,
		IsQualified:        true,
		Source:             "whatsapp",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if lead.MonthlyAmount == nil || !lead.MonthlyAmount.Equal(amount) {
		t.Fatalf("unexpected amount %v", lead.MonthlyAmount)
	}
	if lead.QualifiedAt == nil || !lead.IsQualified {
		t.Fatalf("expected qualified lead %#v", lead)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_GetByPhone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()
	repo := newPostgresRepository(mock)

	mock.ExpectQuery("SELECT id, phone").WithArgs("+5511000000000").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.GetByPhone(context.Background(), "+5511000000000"); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, phone").
		WithArgs(true, 50, 0).
		WillReturnRows(pgxmock.NewRows(leadRowColumns).AddRow(
			"1d7b3a4e-0000-4000-8000-000000000002", "+5581999990000", "", "Recife", "PE", "",
			(*int64)(nil), 80, true, &now, "whatsapp", now, now,
		))
	leads, err := repo.List(context.Background(), ListLeadsFilter{QualifiedOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(leads) != 1 || leads[0].City != "Recife" || leads[0].MonthlyAmount != nil {
		t.Fatalf("unexpected leads %#v", leads)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
