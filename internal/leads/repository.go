package leads

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Finder looks leads up by phone.
type Finder interface {
	GetByPhone(ctx context.Context, phone string) (*Lead, error)
}

// Repository defines the interface for lead storage
type Repository interface {
	Finder
	Upsert(ctx context.Context, req *UpsertLeadRequest) (*Lead, error)
	List(ctx context.Context, filter ListLeadsFilter) ([]*Lead, error)
}

// InMemoryRepository is a stub implementation of Repository using in-memory storage
type InMemoryRepository struct {
	mu      sync.RWMutex
	byPhone map[string]*Lead
	now     func() time.Time
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byPhone: make(map[string]*Lead),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upsert creates or updates the lead keyed by phone.
func (r *InMemoryRepository) Upsert(ctx context.Context, req *UpsertLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	phone := strings.TrimSpace(req.Phone)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.byPhone[phone]
	if !ok {
		lead = &Lead{ID: uuid.NewString(), Phone: phone, CreatedAt: now}
		r.byPhone[phone] = lead
	}
	applyUpsert(lead, req, now)
	out := *lead
	return &out, nil
}

// GetByPhone retrieves a lead by phone
func (r *InMemoryRepository) GetByPhone(ctx context.Context, phone string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.byPhone[strings.TrimSpace(phone)]
	if !ok {
		return nil, ErrLeadNotFound
	}
	out := *lead
	return &out, nil
}

// List returns leads ordered by most recent update.
func (r *InMemoryRepository) List(ctx context.Context, filter ListLeadsFilter) ([]*Lead, error) {
	filter = filter.normalized()
	r.mu.RLock()
	all := make([]*Lead, 0, len(r.byPhone))
	for _, lead := range r.byPhone {
		if filter.QualifiedOnly && !lead.IsQualified {
			continue
		}
		out := *lead
		all = append(all, &out)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	if filter.Offset >= len(all) {
		return []*Lead{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], nil
}

// ChainFinder tries each finder in order and returns the first hit. Errors
// other than ErrLeadNotFound stop the chain.
type ChainFinder struct {
	finders []Finder
}

var _ Finder = (*ChainFinder)(nil)

func NewChainFinder(finders ...Finder) *ChainFinder {
	chain := make([]Finder, 0, len(finders))
	for _, f := range finders {
		if f != nil {
			chain = append(chain, f)
		}
	}
	return &ChainFinder{finders: chain}
}

func (c *ChainFinder) GetByPhone(ctx context.Context, phone string) (*Lead, error) {
	for _, f := range c.finders {
		lead, err := f.GetByPhone(ctx, phone)
		if err == nil && lead != nil {
			return lead, nil
		}
		if err != nil && !errors.Is(err, ErrLeadNotFound) {
			return nil, err
		}
	}
	return nil, ErrLeadNotFound
}
