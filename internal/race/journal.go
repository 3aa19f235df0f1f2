package race

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Record is the persisted form of a race.
type Record struct {
	RaceID     ID        `dynamodbav:"raceId" json:"race_id"`
	LeadID     string    `dynamodbav:"leadId" json:"lead_id"`
	ArmedAt    time.Time `dynamodbav:"armedAt" json:"armed_at"`
	Deadline   time.Time `dynamodbav:"deadline" json:"deadline"`
	DeadlineAt int64     `dynamodbav:"deadlineAt" json:"-"`
	Outcome    string    `dynamodbav:"outcome" json:"outcome"`
	ResolvedAt time.Time `dynamodbav:"resolvedAt,omitempty" json:"resolved_at,omitempty"`
	ExpiresAt  int64     `dynamodbav:"expiresAt,omitempty" json:"-"`
}

func (r Record) snapshot() Snapshot {
	s := Snapshot{
		ID:       r.RaceID,
		LeadID:   r.LeadID,
		ArmedAt:  r.ArmedAt,
		Deadline: r.Deadline,
		Outcome:  ParseOutcome(r.Outcome),
	}
	if !r.ResolvedAt.IsZero() {
		at := r.ResolvedAt
		s.ResolvedAt = &at
	}
	return s
}

// Journal persists races so a process restart (or another instance) can finish
// what this process armed. Resolve must be conditional: only the first caller
// for a pending race gets true. Lookup returns ErrRaceNotFound for unknown ids.
type Journal interface {
	Armed(ctx context.Context, rec Record) error
	Resolve(ctx context.Context, id ID, outcome Outcome, at time.Time) (bool, error)
	Expired(ctx context.Context, now time.Time, limit int) ([]Record, error)
	Lookup(ctx context.Context, id ID) (Record, error)
}

// MemoryJournal is an in-process Journal for tests and single-instance runs.
type MemoryJournal struct {
	mu      sync.Mutex
	records map[ID]Record
}

var _ Journal = (*MemoryJournal)(nil)

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{records: make(map[ID]Record)}
}

func (j *MemoryJournal) Armed(_ context.Context, rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, exists := j.records[rec.RaceID]; exists {
		return nil
	}
	rec.Outcome = Pending.String()
	j.records[rec.RaceID] = rec
	return nil
}

func (j *MemoryJournal) Resolve(_ context.Context, id ID, outcome Outcome, at time.Time) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.records[id]
	if !ok || rec.Outcome != Pending.String() {
		return false, nil
	}
	rec.Outcome = outcome.String()
	rec.ResolvedAt = at.UTC()
	j.records[id] = rec
	return true, nil
}

func (j *MemoryJournal) Expired(_ context.Context, now time.Time, limit int) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Record
	for _, rec := range j.records {
		if rec.Outcome == Pending.String() && !rec.Deadline.After(now) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Deadline.Before(out[b].Deadline) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (j *MemoryJournal) Lookup(_ context.Context, id ID) (Record, error) {
	rec, ok := j.Get(id)
	if !ok {
		return Record{}, ErrRaceNotFound
	}
	return rec, nil
}

// Get returns the stored record, mainly for tests and admin views.
func (j *MemoryJournal) Get(id ID) (Record, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rec, ok := j.records[id]
	return rec, ok
}
