package race

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

const defaultSweepBatch = 100

// TimeoutAction is the terminal action for a race resolved by timeout.
type TimeoutAction func(ctx context.Context, snap Snapshot) error

// Sweeper resolves journaled races whose deadline passed without the arming
// process resolving them (crash, redeploy, scale-in).
type Sweeper struct {
	journal Journal
	action  TimeoutAction
	logger  *logging.Logger
	now     func() time.Time
	batch   int
}

// NewSweeper wires a sweeper. Journal and action are required.
func NewSweeper(journal Journal, action TimeoutAction, logger *logging.Logger) *Sweeper {
	if journal == nil {
		panic("race: sweeper journal cannot be nil")
	}
	if action == nil {
		panic("race: sweeper action cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{journal: journal, action: action, logger: logger, now: time.Now, batch: defaultSweepBatch}
}

// Sweep resolves up to one batch of expired races and returns how many this
// call resolved. Races another writer resolved first are skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now().UTC()
	expired, err := s.journal.Expired(ctx, now, s.batch)
	if err != nil {
		return 0, fmt.Errorf("race: sweep: %w", err)
	}

	var (
		resolved int
		errs     []error
	)
	for _, rec := range expired {
		if rec.Deadline.After(now) {
			continue
		}
		won, err := s.journal.Resolve(ctx, rec.RaceID, ResolvedByTimeout, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !won {
			continue
		}
		resolved++
		rec.Outcome = ResolvedByTimeout.String()
		rec.ResolvedAt = now
		if err := s.action(ctx, rec.snapshot()); err != nil {
			s.logger.Error("timeout action failed", "race_id", rec.RaceID, "lead_id", rec.LeadID, "error", err)
			errs = append(errs, fmt.Errorf("race %s: %w", rec.RaceID, err))
		}
	}
	if len(expired) > 0 {
		s.logger.Info("race sweep complete", "expired", len(expired), "resolved", resolved)
	}
	return resolved, errors.Join(errs...)
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Warn("race sweep failed", "error", err)
			}
		}
	}
}
