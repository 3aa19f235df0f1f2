package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type stubExec struct {
	args []any
}

type badEvent struct{}

func (badEvent) EventType() string { return "" }

func (s *stubExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.args = args
	return pgconn.CommandTag{}, nil
}

type recordingHandler struct {
	envelopes []Envelope
}

func (h *recordingHandler) Handle(_ context.Context, env Envelope) error {
	h.envelopes = append(h.envelopes, env)
	return nil
}

func TestNewEnvelope(t *testing.T) {
	fixedNow := time.Unix(0, 123456000).UTC()
	prevNow := nowFunc
	nowFunc = func() time.Time { return fixedNow }
	defer func() { nowFunc = prevNow }()

	id := uuid.MustParse("9a20d7d1-bf6a-4d33-bd55-5d25a816f1a8")
	env, err := NewEnvelope(LeadAggregate("+5581999990000"), LeadMessageReceivedV1{
		MessageID:  "msg-1",
		LeadPhone:  "+5581999990000",
		Body:       "oi",
		ReceivedAt: fixedNow,
	}, WithEventID(id), WithCorrelationID(" msg-1 "))
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if env.EventID != id {
		t.Fatalf("expected event id override, got %s", env.EventID)
	}
	if !env.Time().Equal(fixedNow) {
		t.Fatalf("unexpected timestamp: %s", env.Time())
	}
	if env.EventType != "leads.message.received.v1" {
		t.Fatalf("unexpected type: %s", env.EventType)
	}
	if env.Aggregate != "lead:+5581999990000" || env.CorrelationID != "msg-1" {
		t.Fatalf("unexpected envelope: %#v", env)
	}

	var decoded LeadMessageReceivedV1
	if err := env.Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.MessageID != "msg-1" {
		t.Fatalf("unexpected decoded payload %#v", decoded)
	}
	if err := env.Decode(&LeadQualifiedV1{}); err == nil {
		t.Fatal("expected type mismatch error")
	}
}

func TestAppendCanonicalEvent(t *testing.T) {
	exec := &stubExec{}
	amount := decimal.RequireFromString("487.35")
	env, err := AppendCanonicalEvent(context.Background(), exec, LeadAggregate("+5531988887777"), LeadQualifiedV1{
		LeadPhone:          "+5531988887777",
		TotalAmount:        &amount,
		QualificationScore: 74,
		QualifiedAt:        time.Unix(100, 0).UTC(),
	})
	if err != nil {
		t.Fatalf("append canonical failed: %v", err)
	}
	if env.EventID == uuid.Nil {
		t.Fatal("expected generated event id")
	}
	if len(exec.args) != 4 {
		t.Fatalf("expected exec args, got %#v", exec.args)
	}
	if exec.args[0] != env.EventID {
		t.Fatalf("id mismatch")
	}
	payloadBytes, ok := exec.args[3].([]byte)
	if !ok {
		t.Fatalf("payload arg type %T", exec.args[3])
	}
	var stored Envelope
	if err := json.Unmarshal(payloadBytes, &stored); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var evt LeadQualifiedV1
	if err := stored.Decode(&evt); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if evt.TotalAmount == nil || !evt.TotalAmount.Equal(amount) {
		t.Fatalf("amount mismatch: %#v", evt.TotalAmount)
	}
}

func TestEnvelopeValidation(t *testing.T) {
	if _, err := NewEnvelope("", ReminderSentV1{}); err == nil {
		t.Fatal("expected aggregate error")
	}
	if _, err := NewEnvelope("agg", nil); err == nil {
		t.Fatal("expected nil event error")
	}
	if _, err := NewEnvelope("agg", badEvent{}); err == nil {
		t.Fatal("expected event type error")
	}
	if _, err := AppendCanonicalEvent(context.Background(), nil, "agg", ReminderSentV1{}); err == nil {
		t.Fatal("expected exec error")
	}
}

func TestDirectPublisher(t *testing.T) {
	handler := &recordingHandler{}
	pub := NewDirectPublisher(handler)
	if err := pub.Publish(context.Background(), "lead:1", ReminderSentV1{RaceID: "r1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(handler.envelopes) != 1 || handler.envelopes[0].EventType != "followup.reminder.sent.v1" {
		t.Fatalf("unexpected envelopes %#v", handler.envelopes)
	}
	if err := NewDirectPublisher(nil).Publish(context.Background(), "lead:1", ReminderSentV1{}); err != nil {
		t.Fatalf("nil handler should drop events: %v", err)
	}
}
