package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

// ConversationEvent represents a structured event in the lead conversation.
// All events share the same base fields for easy filtering/grep.
type ConversationEvent struct {
	Time   string         `json:"time"`
	Event  string         `json:"event"`
	LeadID string         `json:"lead_id"`
	RaceID string         `json:"race_id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// EventLogger emits one JSON line per decision point:
//
//	grep '"event":"lead_qualified"' /var/log/app.log
//	grep '"lead_id":"+5581999990000"' /var/log/app.log
type EventLogger struct {
	logger *logging.Logger
	now    func() time.Time
}

func NewEventLogger(logger *logging.Logger) *EventLogger {
	return &EventLogger{logger: logger, now: time.Now}
}

// Log emits a structured conversation event.
func (e *EventLogger) Log(_ context.Context, event, leadID, raceID string, data map[string]any) {
	if e == nil || e.logger == nil {
		return
	}
	evt := ConversationEvent{
		Time:   e.now().UTC().Format(time.RFC3339Nano),
		Event:  event,
		LeadID: leadID,
		RaceID: raceID,
		Data:   data,
	}
	b, _ := json.Marshal(evt)
	e.logger.Info(string(b))
}

func (e *EventLogger) InboundReceived(ctx context.Context, leadID, kind, message string) {
	// Truncate message for logging
	msg := message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	e.Log(ctx, "inbound_received", leadID, "", map[string]any{
		"kind":    kind,
		"message": msg,
	})
}

func (e *EventLogger) LocationDetected(ctx context.Context, leadID, city, state string) {
	e.Log(ctx, "location_detected", leadID, "", map[string]any{
		"city":  city,
		"state": state,
	})
}

func (e *EventLogger) BillExtracted(ctx context.Context, leadID string, fields []string, confidence float64, errs []string) {
	e.Log(ctx, "bill_extracted", leadID, "", map[string]any{
		"fields":     fields,
		"confidence": confidence,
		"errors":     errs,
	})
}

func (e *EventLogger) LeadQualified(ctx context.Context, leadID string, score int, qualified bool) {
	e.Log(ctx, "lead_qualified", leadID, "", map[string]any{
		"score":     score,
		"qualified": qualified,
	})
}

func (e *EventLogger) ReplySent(ctx context.Context, leadID string, bodyLen int, source string) {
	e.Log(ctx, "reply_sent", leadID, "", map[string]any{
		"body_len": bodyLen,
		"source":   source, // "llm" or "template"
	})
}

func (e *EventLogger) RaceArmed(ctx context.Context, leadID, raceID string, deadline time.Time) {
	e.Log(ctx, "race_armed", leadID, raceID, map[string]any{
		"deadline": deadline.UTC().Format(time.RFC3339),
	})
}

func (e *EventLogger) RaceResolved(ctx context.Context, leadID, raceID, outcome string) {
	e.Log(ctx, "race_resolved", leadID, raceID, map[string]any{
		"outcome": outcome,
	})
}

func (e *EventLogger) ReminderSent(ctx context.Context, leadID, raceID string) {
	e.Log(ctx, "reminder_sent", leadID, raceID, nil)
}

func (e *EventLogger) ReminderSuppressed(ctx context.Context, leadID, raceID, reason string) {
	e.Log(ctx, "reminder_suppressed", leadID, raceID, map[string]any{
		"reason": reason,
	})
}

func (e *EventLogger) ErrorOccurred(ctx context.Context, leadID, step string, err error) {
	e.Log(ctx, "error", leadID, "", map[string]any{
		"step":  step,
		"error": err.Error(),
	})
}
