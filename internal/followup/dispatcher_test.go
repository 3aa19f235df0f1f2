package followup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/solarbill-ai-platform/internal/conversation"
	"github.com/wolfman30/solarbill-ai-platform/internal/events"
	"github.com/wolfman30/solarbill-ai-platform/internal/messaging"
	"github.com/wolfman30/solarbill-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/solarbill-ai-platform/internal/race"
)

const lead = "+5581999990000"

type harness struct {
	races    *race.Coordinator
	contexts *conversation.MemoryStore
	sender   *messaging.MemorySender
	guard    *events.MemoryProcessedStore
	replies  atomic.Int32
	d        *Dispatcher
}

func newHarness(t *testing.T, deadline time.Duration, opts ...race.Option) *harness {
	t.Helper()
	opts = append([]race.Option{race.WithMetrics(metrics.NewRaceMetrics(prometheus.NewRegistry()))}, opts...)
	h := &harness{
		races:    race.NewCoordinator(opts...),
		contexts: conversation.NewMemoryStore(),
		sender:   messaging.NewMemorySender(),
		guard:    events.NewMemoryProcessedStore(),
	}
	h.d = New(Config{
		Races:    h.races,
		Contexts: h.contexts,
		Sender:   h.sender,
		Guard:    h.guard,
		Deadline: deadline,
		OnReply: func(context.Context, race.Snapshot) {
			h.replies.Add(1)
		},
	})
	t.Cleanup(h.d.Close)
	return h
}

func TestDispatcher_TimeoutSendsSingleReminder(t *testing.T) {
	h := newHarness(t, 30*time.Millisecond)

	id, err := h.d.Arm(context.Background(), lead)
	require.NoError(t, err)
	h.d.Wait()

	sent := h.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, lead, sent[0].To)
	assert.Equal(t, messaging.KindReminder, sent[0].Kind)
	assert.Equal(t, DefaultReminderText, sent[0].Body)
	assert.Equal(t, string(id), sent[0].Metadata["race_id"])

	snap, ok := h.races.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, race.ResolvedByTimeout, snap.Outcome)
	assert.Zero(t, h.replies.Load())

	// A sweeper replaying the same race must not send again.
	require.NoError(t, h.d.HandleTimeout(context.Background(), snap))
	assert.Len(t, h.sender.Sent(), 1)
}

func TestDispatcher_ReplyBeforeDeadline(t *testing.T) {
	h := newHarness(t, time.Second)

	_, err := h.d.Arm(context.Background(), lead)
	require.NoError(t, err)
	assert.Equal(t, 1, h.d.SignalReply(context.Background(), lead))
	h.d.Wait()

	assert.Empty(t, h.sender.Sent())
	assert.EqualValues(t, 1, h.replies.Load())
	assert.Zero(t, h.d.SignalReply(context.Background(), lead))
}

func TestDispatcher_CompletedConversationSuppressesReminder(t *testing.T) {
	h := newHarness(t, 30*time.Millisecond)
	_, err := h.contexts.Upsert(context.Background(), lead, conversation.PartialContext{Completed: true})
	require.NoError(t, err)

	_, err = h.d.Arm(context.Background(), lead)
	require.NoError(t, err)
	h.d.Wait()

	assert.Empty(t, h.sender.Sent())
}

func TestDispatcher_ForceCompletedAfterArming(t *testing.T) {
	h := newHarness(t, 60*time.Millisecond)
	_, err := h.d.Arm(context.Background(), lead)
	require.NoError(t, err)

	_, err = h.contexts.Upsert(context.Background(), lead, conversation.PartialContext{Completed: true})
	require.NoError(t, err)
	h.d.Wait()

	assert.Empty(t, h.sender.Sent())
}

func TestDispatcher_SendFailureIsNotRetried(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.sender.FailWith(errors.New("gateway down"))

	snap := race.Snapshot{ID: "race-1", LeadID: lead, Outcome: race.ResolvedByTimeout}
	require.Error(t, h.d.HandleTimeout(context.Background(), snap))

	h.sender.FailWith(nil)
	require.NoError(t, h.d.HandleTimeout(context.Background(), snap))
	assert.Empty(t, h.sender.Sent())
}

func TestDispatcher_CloseStopsWaiters(t *testing.T) {
	h := newHarness(t, time.Hour)
	id, err := h.d.Arm(context.Background(), lead)
	require.NoError(t, err)

	h.d.Close()
	snap, ok := h.races.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, race.Pending, snap.Outcome)

	_, err = h.d.Arm(context.Background(), lead)
	assert.Error(t, err)
}

func TestDispatcher_PublishesReminderEvent(t *testing.T) {
	var got []events.Envelope
	pub := events.NewDirectPublisher(events.DeliveryHandlerFunc(func(_ context.Context, env events.Envelope) error {
		got = append(got, env)
		return nil
	}))
	d := New(Config{
		Races:     race.NewCoordinator(),
		Contexts:  conversation.NewMemoryStore(),
		Sender:    messaging.NewMemorySender(),
		Guard:     events.NewMemoryProcessedStore(),
		Publisher: pub,
	})
	defer d.Close()

	require.NoError(t, d.HandleTimeout(context.Background(), race.Snapshot{ID: "race-7", LeadID: lead}))
	require.Len(t, got, 1)
	var evt events.ReminderSentV1
	require.NoError(t, got[0].Decode(&evt))
	assert.Equal(t, "race-7", evt.RaceID)
	assert.Equal(t, "memory", evt.Provider)
	assert.Equal(t, race.DefaultDeadline, d.Deadline())
}

// unwritableJournal accepts arms but rejects every resolution.
type unwritableJournal struct {
	*race.MemoryJournal
}

func (unwritableJournal) Resolve(context.Context, race.ID, race.Outcome, time.Time) (bool, error) {
	return false, errors.New("journal unavailable")
}

func TestDispatcher_ReplyClaimsReminderWhenJournalIsDown(t *testing.T) {
	h := newHarness(t, time.Hour, race.WithJournal(unwritableJournal{race.NewMemoryJournal()}))

	id, err := h.d.Arm(context.Background(), lead)
	require.NoError(t, err)
	assert.Zero(t, h.d.SignalReply(context.Background(), lead))

	snap, ok := h.races.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, race.Pending, snap.Outcome)

	// The race later times out elsewhere; the lead already answered.
	snap.Outcome = race.ResolvedByTimeout
	require.NoError(t, h.d.HandleTimeout(context.Background(), snap))
	assert.Empty(t, h.sender.Sent())
}

func TestDispatcher_ReplyAfterSweptTimeoutSendsOneReminder(t *testing.T) {
	journal := race.NewMemoryJournal()
	h := newHarness(t, time.Hour, race.WithJournal(journal))

	id, err := h.d.Arm(context.Background(), lead)
	require.NoError(t, err)

	// Another instance sweeps the race first.
	won, err := journal.Resolve(context.Background(), id, race.ResolvedByTimeout, time.Now())
	require.NoError(t, err)
	require.True(t, won)
	swept, _ := journal.Get(id)
	require.NoError(t, h.d.HandleTimeout(context.Background(), race.Snapshot{ID: id, LeadID: swept.LeadID, Outcome: race.ResolvedByTimeout}))

	assert.Zero(t, h.d.SignalReply(context.Background(), lead))
	h.d.Wait()

	snap, ok := h.races.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, race.ResolvedByTimeout, snap.Outcome)
	assert.Len(t, h.sender.Sent(), 1)
	assert.Zero(t, h.replies.Load())
}
