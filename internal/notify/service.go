package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/solarbill-ai-platform/internal/events"
	"github.com/wolfman30/solarbill-ai-platform/internal/extraction"
	"github.com/wolfman30/solarbill-ai-platform/internal/messaging"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

var saoPaulo = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}()

// Recipients lists who hears about qualified leads.
type Recipients struct {
	// Email may hold several addresses separated by commas.
	Email string
	Phone string
}

// Service turns domain events into sales-team alerts. It is an
// events.DeliveryHandler so it can sit behind the outbox or a direct publisher.
type Service struct {
	email  EmailSender
	chat   messaging.Sender
	to     Recipients
	logger *logging.Logger
}

var _ events.DeliveryHandler = (*Service)(nil)

// NewService creates a notification service. Either sender may be nil.
func NewService(email EmailSender, chat messaging.Sender, to Recipients, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, chat: chat, to: to, logger: logger}
}

// Handle routes an envelope by event type. Unknown types are ignored.
func (s *Service) Handle(ctx context.Context, env events.Envelope) error {
	switch env.EventType {
	case events.LeadQualifiedV1{}.EventType():
		var evt events.LeadQualifiedV1
		if err := env.Decode(&evt); err != nil {
			return err
		}
		return s.NotifyLeadQualified(ctx, evt)
	default:
		s.logger.Debug("notify: no alert for event", "type", env.EventType)
		return nil
	}
}

// NotifyLeadQualified alerts sales by e-mail and chat. Both channels are
// attempted; their errors are joined.
func (s *Service) NotifyLeadQualified(ctx context.Context, evt events.LeadQualifiedV1) error {
	subject, body := leadQualifiedText(evt)
	var errs []error

	if to := ParseRecipients(s.to.Email); s.email != nil && len(to) > 0 {
		err := s.email.Send(ctx, EmailMessage{
			To:        to,
			Subject:   subject,
			Text:      body,
			HTML:      "<pre>" + html.EscapeString(body) + "</pre>",
			Category:  "lead_qualified",
			LeadPhone: evt.LeadPhone,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("notify: email alert: %w", err))
		}
	}
	if s.chat != nil && s.to.Phone != "" {
		_, err := s.chat.Send(ctx, messaging.OutboundMessage{
			To:       s.to.Phone,
			Body:     subject + "\n" + body,
			Kind:     messaging.KindAlert,
			Metadata: map[string]string{"lead_phone": evt.LeadPhone},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("notify: chat alert: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("sales alert failed", "error", err, "lead_phone", evt.LeadPhone)
		return err
	}
	s.logger.Info("sales alert sent", "lead_phone", evt.LeadPhone, "score", evt.QualificationScore)
	return nil
}

func leadQualifiedText(evt events.LeadQualifiedV1) (string, string) {
	name := strings.TrimSpace(evt.CustomerName)
	if name == "" {
		name = "Lead sem nome"
	}
	subject := fmt.Sprintf("Novo lead qualificado: %s (%d pts)", name, evt.QualificationScore)

	var b strings.Builder
	fmt.Fprintf(&b, "Telefone: %s\n", evt.LeadPhone)
	if evt.City != "" {
		location := evt.City
		if evt.State != "" {
			location += "/" + evt.State
		}
		fmt.Fprintf(&b, "Cidade: %s\n", location)
	}
	if evt.Provider != "" {
		fmt.Fprintf(&b, "Distribuidora: %s\n", evt.Provider)
	}
	if evt.TotalAmount != nil {
		fmt.Fprintf(&b, "Valor da conta: R$ %s\n", extraction.FormatAmount(*evt.TotalAmount))
	}
	fmt.Fprintf(&b, "Pontuação: %d\n", evt.QualificationScore)
	at := evt.QualifiedAt
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(&b, "Qualificado em: %s", at.In(saoPaulo).Format("02/01/2006 15:04"))
	return subject, b.String()
}
