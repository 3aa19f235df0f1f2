package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

// EmailSender delivers sales alert e-mails.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one alert addressed to the sales team.
type EmailMessage struct {
	To      []string
	Subject string
	Text    string
	HTML    string
	// Category groups alerts in provider dashboards, e.g. "lead_qualified".
	Category string
	// LeadPhone is attached as tracking metadata, never shown to recipients.
	LeadPhone string
}

// ErrNoRecipients is returned when a message has nowhere to go.
var ErrNoRecipients = errors.New("notify: email has no recipients")

func (m EmailMessage) validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("notify: email subject is required")
	}
	if m.Text == "" && m.HTML == "" {
		return errors.New("notify: email body is required")
	}
	return nil
}

// ParseRecipients splits a comma or semicolon separated address list, drops
// invalid and repeated entries, and keeps the first-seen order.
func ParseRecipients(list string) []string {
	fields := strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ';' })
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		addr, err := mail.ParseAddress(strings.TrimSpace(f))
		if err != nil {
			continue
		}
		key := strings.ToLower(addr.Address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr.Address)
	}
	return out
}

// DefaultFromName is the sender display name when none is configured.
const DefaultFromName = "Solar Leads"

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender sends alerts through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
	logger *logging.Logger
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = DefaultFromName
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
}

// buildSendGridMail puts every recipient in a single personalization so the
// team shares one thread.
func buildSendGridMail(from *sgmail.Email, msg EmailMessage) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(from)
	m.Subject = msg.Subject

	p := sgmail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}
	if msg.LeadPhone != "" {
		p.SetCustomArg("lead_phone", msg.LeadPhone)
	}
	m.AddPersonalizations(p)

	if msg.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	if msg.Category != "" {
		m.AddCategories(msg.Category)
	}
	return m
}

// Send delivers msg; any 4xx/5xx status is an error.
func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	if err := msg.validate(); err != nil {
		return err
	}

	resp, err := s.client.SendWithContext(ctx, buildSendGridMail(s.from, msg))
	if err != nil {
		return fmt.Errorf("notify: sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Warn("sendgrid rejected alert", "status", resp.StatusCode, "body", resp.Body, "category", msg.Category)
		return fmt.Errorf("notify: sendgrid status %d", resp.StatusCode)
	}

	s.logger.Info("alert email accepted", "provider", "sendgrid", "recipients", len(msg.To), "category", msg.Category)
	return nil
}

// StubEmailSender only logs; used when no provider is configured.
type StubEmailSender struct {
	logger *logging.Logger
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.logger.Info("email disabled; alert logged only", "recipients", strings.Join(msg.To, ","), "subject", msg.Subject)
	return nil
}
