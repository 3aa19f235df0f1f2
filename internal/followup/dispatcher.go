// Package followup arms a reply race after each outbound turn and sends a
// single reminder when the lead stays silent past the deadline.
package followup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/solarbill-ai-platform/internal/conversation"
	"github.com/wolfman30/solarbill-ai-platform/internal/events"
	"github.com/wolfman30/solarbill-ai-platform/internal/messaging"
	"github.com/wolfman30/solarbill-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/solarbill-ai-platform/internal/race"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

// ReminderScope namespaces reminder claims in the processed store.
const ReminderScope = "reminder"

// DefaultReminderText is sent when no text is configured.
const DefaultReminderText = "Oi! Ainda está por aí? Se puder, me mande a foto da sua conta de luz para eu calcular sua economia com energia solar."

// ReplyHook continues the conversation when the lead answered in time. It
// must not send anything on its own.
type ReplyHook func(ctx context.Context, snap race.Snapshot)

// Config wires a Dispatcher. Races, Contexts, Sender and Guard are required.
type Config struct {
	Races        *race.Coordinator
	Contexts     conversation.Store
	Sender       messaging.Sender
	Guard        events.Processed
	Publisher    events.Publisher
	Events       *conversation.EventLogger
	Metrics      *metrics.RaceMetrics
	Logger       *logging.Logger
	Deadline     time.Duration
	ReminderText string
	OnReply      ReplyHook
}

// Dispatcher owns the waiter goroutines of armed races.
type Dispatcher struct {
	races        *race.Coordinator
	contexts     conversation.Store
	sender       messaging.Sender
	guard        events.Processed
	publisher    events.Publisher
	events       *conversation.EventLogger
	metrics      *metrics.RaceMetrics
	logger       *logging.Logger
	deadline     time.Duration
	reminderText string
	onReply      ReplyHook

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New panics when a required collaborator is missing.
func New(cfg Config) *Dispatcher {
	if cfg.Races == nil {
		panic("followup: race coordinator cannot be nil")
	}
	if cfg.Contexts == nil {
		panic("followup: context store cannot be nil")
	}
	if cfg.Sender == nil {
		panic("followup: sender cannot be nil")
	}
	if cfg.Guard == nil {
		panic("followup: processed store cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Events == nil {
		cfg.Events = conversation.NewEventLogger(cfg.Logger)
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = race.DefaultDeadline
	}
	if strings.TrimSpace(cfg.ReminderText) == "" {
		cfg.ReminderText = DefaultReminderText
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		races:        cfg.Races,
		contexts:     cfg.Contexts,
		sender:       cfg.Sender,
		guard:        cfg.Guard,
		publisher:    cfg.Publisher,
		events:       cfg.Events,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		deadline:     cfg.Deadline,
		reminderText: cfg.ReminderText,
		onReply:      cfg.OnReply,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Deadline is the reply window used when arming.
func (d *Dispatcher) Deadline() time.Duration { return d.deadline }

// Arm starts the reply race for a turn whose first outbound message was sent,
// and waits for it in the background.
func (d *Dispatcher) Arm(ctx context.Context, leadID string) (race.ID, error) {
	if err := d.ctx.Err(); err != nil {
		return "", fmt.Errorf("followup: dispatcher closed: %w", err)
	}
	id, err := d.races.Arm(ctx, leadID, d.deadline)
	if err != nil {
		return "", fmt.Errorf("followup: arm: %w", err)
	}
	if snap, ok := d.races.Snapshot(id); ok {
		d.events.RaceArmed(ctx, leadID, string(id), snap.Deadline)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.await(id)
	}()
	return id, nil
}

// SignalReply resolves the lead's pending races by reply. Each race's reminder
// is claimed first, so a timeout resolved by another instance or a journal
// outage cannot still message a lead who already answered.
func (d *Dispatcher) SignalReply(ctx context.Context, leadID string) int {
	for _, id := range d.races.Pending(leadID) {
		err := events.Claim(ctx, d.guard, ReminderScope, string(id))
		if err != nil && !errors.Is(err, events.ErrAlreadyProcessed) {
			d.logger.Warn("claim reminder on reply failed", "race_id", id, "lead_id", leadID, "error", err)
		}
	}
	return d.races.SignalLead(leadID)
}

func (d *Dispatcher) await(id race.ID) {
	outcome, err := d.races.AwaitOutcome(d.ctx, id)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			d.logger.Error("await race failed", "race_id", id, "error", err)
		}
		return
	}
	snap, ok := d.races.Snapshot(id)
	if !ok {
		d.logger.Warn("race evicted before follow-up ran", "race_id", id)
		return
	}
	d.events.RaceResolved(d.ctx, snap.LeadID, string(id), outcome.String())

	switch outcome {
	case race.ResolvedByReply:
		if d.onReply != nil {
			d.onReply(d.ctx, snap)
		}
	case race.ResolvedByTimeout:
		if err := d.HandleTimeout(d.ctx, snap); err != nil {
			d.logger.Error("reminder failed", "race_id", id, "lead_id", snap.LeadID, "error", err)
		}
	}
}

// HandleTimeout is the terminal action of a race resolved by timeout. It is
// also the Sweeper's action, so it must stay idempotent per race id.
func (d *Dispatcher) HandleTimeout(ctx context.Context, snap race.Snapshot) error {
	leadID := snap.LeadID
	raceID := string(snap.ID)

	convo, err := d.contexts.Get(ctx, leadID)
	if err != nil {
		d.metrics.ObserveReminder("failed")
		return fmt.Errorf("followup: load context: %w", err)
	}
	if convo != nil && convo.Completed {
		d.metrics.ObserveReminder("suppressed")
		d.events.ReminderSuppressed(ctx, leadID, raceID, "completed")
		return nil
	}

	if err := events.Claim(ctx, d.guard, ReminderScope, raceID); err != nil {
		if errors.Is(err, events.ErrAlreadyProcessed) {
			d.metrics.ObserveReminder("suppressed")
			d.events.ReminderSuppressed(ctx, leadID, raceID, "already_processed")
			return nil
		}
		d.metrics.ObserveReminder("failed")
		return fmt.Errorf("followup: claim reminder: %w", err)
	}

	res, err := d.sender.Send(ctx, messaging.OutboundMessage{
		To:       leadID,
		Body:     d.reminderText,
		Kind:     messaging.KindReminder,
		Metadata: map[string]string{"race_id": raceID},
	})
	if err != nil {
		d.metrics.ObserveReminder("failed")
		d.events.ErrorOccurred(ctx, leadID, "reminder_send", err)
		return fmt.Errorf("followup: send reminder: %w", err)
	}
	d.metrics.ObserveReminder("sent")
	d.events.ReminderSent(ctx, leadID, raceID)

	if d.publisher != nil {
		evt := events.ReminderSentV1{LeadPhone: leadID, RaceID: raceID, Provider: res.Provider, SentAt: time.Now().UTC()}
		if err := d.publisher.Publish(ctx, events.LeadAggregate(leadID), evt, events.WithCorrelationID(raceID)); err != nil {
			d.logger.Warn("publish reminder event failed", "race_id", raceID, "error", err)
		}
	}
	return nil
}

// Wait blocks until every waiter goroutine has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops pending waiters. Races stay armed in the coordinator and
// journal; the sweeper finishes them.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}
