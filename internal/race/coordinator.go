package race

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/solarbill-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

const (
	defaultRetention = 15 * time.Minute

	journalAttempts = 3
	journalBackoff  = 100 * time.Millisecond
	// A timeout whose journal write failed is retried after this delay.
	journalRetryDelay = 30 * time.Second
)

type race struct {
	id       ID
	leadID   string
	armedAt  time.Time
	deadline time.Time

	outcome    atomic.Int32
	resolvedAt atomic.Int64
	// settling admits one resolver at a time; it is released when a journal
	// write fails so the race can be settled later.
	settling   atomic.Bool
	done       chan struct{}
	timer      *time.Timer
}

func (r *race) snapshot() Snapshot {
	s := Snapshot{
		ID:       r.id,
		LeadID:   r.leadID,
		ArmedAt:  r.armedAt,
		Deadline: r.deadline,
		Outcome:  Outcome(r.outcome.Load()),
	}
	if ns := r.resolvedAt.Load(); ns != 0 && s.Outcome != Pending {
		at := time.Unix(0, ns).UTC()
		s.ResolvedAt = &at
	}
	return s
}

// ResolveHook observes every race exactly once, after it resolves.
type ResolveHook func(Snapshot)

// Coordinator owns all in-process races. Every race gets its own timer and is
// resolved by whichever of SignalReply or the timer wins a compare-and-swap,
// and, with a journal, the journal's conditional write.
type Coordinator struct {
	mu     sync.Mutex
	races  map[ID]*race
	byLead map[string]map[ID]struct{}

	journal    Journal
	logger     *logging.Logger
	metrics    *metrics.RaceMetrics
	now        func() time.Time
	newID      func() ID
	retention  time.Duration
	deadline   time.Duration
	retryDelay time.Duration
	hooks      []ResolveHook
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithDefaultDeadline sets the deadline used when Arm gets a non-positive
// duration and ArmISO an empty one. It is also the deadline reported in metrics.
func WithDefaultDeadline(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.deadline = d
		}
	}
}

// WithJournal persists armed and resolved races. With a journal, its
// conditional Resolve decides which resolution wins.
func WithJournal(j Journal) Option {
	return func(c *Coordinator) { c.journal = j }
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.RaceMetrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock overrides the wall clock used for timestamps. Timers still use real time.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRetention controls how long resolved races remain visible to Snapshot
// and late AwaitOutcome callers.
func WithRetention(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.retention = d
		}
	}
}

// WithResolveHook registers a callback run after each resolution.
func WithResolveHook(h ResolveHook) Option {
	return func(c *Coordinator) {
		if h != nil {
			c.hooks = append(c.hooks, h)
		}
	}
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		races:     make(map[ID]*race),
		byLead:    make(map[string]map[ID]struct{}),
		logger:    logging.Default(),
		now:       time.Now,
		newID:     func() ID { return ID(uuid.NewString()) },
		retention:  defaultRetention,
		deadline:   DefaultDeadline,
		retryDelay: journalRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics.SetDefaultDeadline(c.deadline.Seconds())
	return c
}

// DefaultDeadline is the deadline used when none is given.
func (c *Coordinator) DefaultDeadline() time.Duration { return c.deadline }

// Arm starts a race for leadID that times out after d. A non-positive d uses
// the coordinator's default deadline.
func (c *Coordinator) Arm(ctx context.Context, leadID string, d time.Duration) (ID, error) {
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return "", ErrLeadIDRequired
	}
	if d <= 0 {
		d = c.deadline
	}

	armedAt := c.now().UTC()
	r := &race{
		id:       c.newID(),
		leadID:   leadID,
		armedAt:  armedAt,
		deadline: armedAt.Add(d),
		done:     make(chan struct{}),
	}

	if c.journal != nil {
		rec := Record{RaceID: r.id, LeadID: leadID, ArmedAt: r.armedAt, Deadline: r.deadline}
		if err := c.journal.Armed(ctx, rec); err != nil {
			return "", fmt.Errorf("race: arm %s: %w", leadID, err)
		}
	}

	c.mu.Lock()
	c.races[r.id] = r
	pending := c.byLead[leadID]
	if pending == nil {
		pending = make(map[ID]struct{})
		c.byLead[leadID] = pending
	}
	pending[r.id] = struct{}{}
	r.timer = time.AfterFunc(d, func() { c.resolve(r, ResolvedByTimeout) })
	c.mu.Unlock()

	c.metrics.ObserveArmed()
	c.logger.Debug("race armed", "race_id", r.id, "lead_id", leadID, "deadline", r.deadline)
	return r.id, nil
}

// ArmISO arms with an ISO-8601 duration such as "PT2H". An empty string uses
// the default deadline.
func (c *Coordinator) ArmISO(ctx context.Context, leadID, iso string) (ID, error) {
	if strings.TrimSpace(iso) == "" {
		return c.Arm(ctx, leadID, 0)
	}
	d, err := ParseISODuration(iso)
	if err != nil {
		return "", err
	}
	if d <= 0 {
		return "", fmt.Errorf("race: deadline %q must be positive", iso)
	}
	return c.Arm(ctx, leadID, d)
}

// AwaitOutcome blocks until the race resolves. Context cancellation returns the
// context error and leaves the race untouched.
func (c *Coordinator) AwaitOutcome(ctx context.Context, id ID) (Outcome, error) {
	r, ok := c.lookup(id)
	if !ok {
		return Pending, ErrRaceNotFound
	}
	select {
	case <-r.done:
		return Outcome(r.outcome.Load()), nil
	case <-ctx.Done():
		return Pending, ctx.Err()
	}
}

// SignalReply resolves a pending race by reply. It reports whether this call
// performed the resolution; unknown or resolved races are a no-op.
func (c *Coordinator) SignalReply(id ID) bool {
	r, ok := c.lookup(id)
	if !ok {
		c.logger.Debug("reply for unknown race ignored", "race_id", id)
		return false
	}
	return c.resolve(r, ResolvedByReply)
}

// SignalLead resolves every pending race of leadID by reply and returns how
// many were resolved.
func (c *Coordinator) SignalLead(leadID string) int {
	c.mu.Lock()
	var pending []*race
	for id := range c.byLead[strings.TrimSpace(leadID)] {
		if r, ok := c.races[id]; ok {
			pending = append(pending, r)
		}
	}
	c.mu.Unlock()

	resolved := 0
	for _, r := range pending {
		if c.resolve(r, ResolvedByReply) {
			resolved++
		}
	}
	return resolved
}

// Snapshot returns the current view of a race.
func (c *Coordinator) Snapshot(id ID) (Snapshot, bool) {
	r, ok := c.lookup(id)
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// Pending returns the ids of the lead's unresolved races.
func (c *Coordinator) Pending(leadID string) []ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]ID, 0, len(c.byLead[leadID]))
	for id := range c.byLead[leadID] {
		ids = append(ids, id)
	}
	return ids
}

func (c *Coordinator) lookup(id ID) (*race, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.races[id]
	return r, ok
}

// resolve is the single resolution point. Only the caller that wins closes
// done and runs hooks. With a journal the winner is whoever the journal's
// conditional write accepts; a race the journal already settled elsewhere
// adopts that outcome without running hooks.
func (c *Coordinator) resolve(r *race, outcome Outcome) bool {
	if !r.settling.CompareAndSwap(false, true) {
		c.conflict(r, outcome)
		if outcome == ResolvedByTimeout {
			// The in-flight resolution may still fail to journal.
			c.retryTimeout(r)
		}
		return false
	}
	if Outcome(r.outcome.Load()) != Pending {
		c.conflict(r, outcome)
		return false
	}

	at := c.now().UTC()
	if c.journal != nil {
		won, err := c.journalResolve(r.id, outcome, at)
		if err != nil {
			r.settling.Store(false)
			c.logger.Error("race resolution not journaled; race stays pending", "race_id", r.id, "lead_id", r.leadID, "outcome", outcome.String(), "error", err)
			if outcome == ResolvedByTimeout {
				c.retryTimeout(r)
			}
			return false
		}
		if !won {
			c.adoptJournaled(r, outcome)
			return false
		}
	}

	c.settle(r, outcome, at)
	c.metrics.ObserveResolved(outcome.String())
	c.logger.Info("race resolved", "race_id", r.id, "lead_id", r.leadID, "outcome", outcome.String())

	snap := r.snapshot()
	for _, h := range c.hooks {
		h(snap)
	}
	return true
}

func (c *Coordinator) conflict(r *race, attempted Outcome) {
	c.metrics.ObserveConflict()
	c.logger.Debug("race already resolved", "race_id", r.id, "attempted", attempted.String(), "outcome", Outcome(r.outcome.Load()).String())
}

func (c *Coordinator) journalResolve(id ID, outcome Outcome, at time.Time) (bool, error) {
	var err error
	for attempt := 0; attempt < journalAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * journalBackoff)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		var won bool
		won, err = c.journal.Resolve(ctx, id, outcome, at)
		cancel()
		if err == nil {
			return won, nil
		}
	}
	return false, err
}

// adoptJournaled mirrors a resolution another writer (usually the sweeper)
// already recorded. Its terminal action ran there.
func (c *Coordinator) adoptJournaled(r *race, attempted Outcome) {
	c.metrics.ObserveConflict()
	outcome, at := ResolvedByTimeout, c.now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	rec, err := c.journal.Lookup(ctx, r.id)
	cancel()
	switch {
	case err != nil:
		c.logger.Warn("journaled race outcome unreadable; assuming timeout", "race_id", r.id, "error", err)
	case ParseOutcome(rec.Outcome) != Pending:
		outcome = ParseOutcome(rec.Outcome)
		if !rec.ResolvedAt.IsZero() {
			at = rec.ResolvedAt
		}
	}
	c.settle(r, outcome, at)
	c.logger.Info("race already resolved in journal", "race_id", r.id, "lead_id", r.leadID, "attempted", attempted.String(), "outcome", outcome.String())
}

func (c *Coordinator) retryTimeout(r *race) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.races[r.id]; !ok || Outcome(r.outcome.Load()) != Pending {
		return
	}
	r.timer = time.AfterFunc(c.retryDelay, func() { c.resolve(r, ResolvedByTimeout) })
}

// settle records the final outcome and releases waiters.
func (c *Coordinator) settle(r *race, outcome Outcome, at time.Time) {
	r.resolvedAt.Store(at.UnixNano())
	r.outcome.Store(int32(outcome))
	close(r.done)

	c.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	if pending := c.byLead[r.leadID]; pending != nil {
		delete(pending, r.id)
		if len(pending) == 0 {
			delete(c.byLead, r.leadID)
		}
	}
	c.mu.Unlock()
	time.AfterFunc(c.retention, func() { c.evict(r.id) })
}

func (c *Coordinator) evict(id ID) {
	c.mu.Lock()
	delete(c.races, id)
	c.mu.Unlock()
}
