package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/solarbill-ai-platform/internal/events"
	"github.com/wolfman30/solarbill-ai-platform/internal/messaging"
)

type mockEmailSender struct {
	sent    []EmailMessage
	callErr error
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

func qualifiedEvent() events.LeadQualifiedV1 {
	amount := decimal.RequireFromString("1487.35")
	return events.LeadQualifiedV1{
		LeadPhone:          "+5531988887777",
		CustomerName:       "João Carlos Pereira",
		City:               "Belo Horizonte",
		State:              "MG",
		Provider:           "CEMIG",
		TotalAmount:        &amount,
		QualificationScore: 89,
		QualifiedAt:        time.Date(2025, 3, 2, 15, 30, 0, 0, time.UTC),
	}
}

func TestNotifyLeadQualified_EmailAndChat(t *testing.T) {
	email := &mockEmailSender{}
	chat := messaging.NewMemorySender()
	svc := NewService(email, chat, Recipients{Email: "vendas@example.com", Phone: "+5531900000000"}, nil)

	if err := svc.NotifyLeadQualified(context.Background(), qualifiedEvent()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(email.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(email.sent))
	}
	msg := email.sent[0]
	if len(msg.To) != 1 || msg.To[0] != "vendas@example.com" || msg.Category != "lead_qualified" {
		t.Errorf("unexpected envelope %#v", msg)
	}
	if !strings.Contains(msg.Subject, "João Carlos Pereira") || !strings.Contains(msg.Subject, "89") {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{"Belo Horizonte/MG", "CEMIG", "R$ 1.487,35", "02/03/2025 12:30"} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("expected body to contain %q, got %q", want, msg.Text)
		}
	}

	sent := chat.Sent()
	if len(sent) != 1 || sent[0].Kind != messaging.KindAlert || sent[0].To != "+5531900000000" {
		t.Fatalf("unexpected chat alerts %#v", sent)
	}
}

func TestNotifyLeadQualified_JoinsErrors(t *testing.T) {
	email := &mockEmailSender{callErr: errors.New("smtp down")}
	chat := messaging.NewMemorySender()
	chat.FailWith(errors.New("gateway down"))
	svc := NewService(email, chat, Recipients{Email: "vendas@example.com", Phone: "+5531900000000"}, nil)

	err := svc.NotifyLeadQualified(context.Background(), qualifiedEvent())
	if err == nil || !strings.Contains(err.Error(), "smtp down") || !strings.Contains(err.Error(), "gateway down") {
		t.Fatalf("expected joined errors, got %v", err)
	}
}

func TestHandle_RoutesByEventType(t *testing.T) {
	email := &mockEmailSender{}
	svc := NewService(email, nil, Recipients{Email: "vendas@example.com"}, nil)

	env, err := events.NewEnvelope(events.LeadAggregate("+5531988887777"), qualifiedEvent())
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if err := svc.Handle(context.Background(), env); err != nil {
		t.Fatalf("handle: %v", err)
	}
	other, _ := events.NewEnvelope("lead:x", events.ReminderSentV1{RaceID: "r"})
	if err := svc.Handle(context.Background(), other); err != nil {
		t.Fatalf("unknown events should be ignored: %v", err)
	}
	if len(email.sent) != 1 {
		t.Fatalf("expected one alert, got %d", len(email.sent))
	}
}
