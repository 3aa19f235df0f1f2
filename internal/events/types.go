package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// LeadMessageReceivedV1 captures an inbound chat message from a lead.
type LeadMessageReceivedV1 struct {
	MessageID  string    `json:"message_id"`
	LeadPhone  string    `json:"lead_phone"`
	Body       string    `json:"body,omitempty"`
	HasMedia   bool      `json:"has_media"`
	Provider   string    `json:"provider,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

func (LeadMessageReceivedV1) EventType() string {
	return "leads.message.received.v1"
}

// BillExtractedV1 records the outcome of a bill extraction.
type BillExtractedV1 struct {
	LeadPhone       string           `json:"lead_phone"`
	Provider        string           `json:"provider,omitempty"`
	TotalAmount     *decimal.Decimal `json:"total_amount,omitempty"`
	ConfidenceScore float64          `json:"confidence_score"`
	IsValid         bool             `json:"is_valid"`
	ExtractedAt     time.Time        `json:"extracted_at"`
}

func (BillExtractedV1) EventType() string {
	return "leads.bill.extracted.v1"
}

// LeadQualifiedV1 fires the first time a lead crosses the qualification threshold.
type LeadQualifiedV1 struct {
	LeadPhone          string           `json:"lead_phone"`
	CustomerName       string           `json:"customer_name,omitempty"`
	City               string           `json:"city,omitempty"`
	State              string           `json:"state,omitempty"`
	Provider           string           `json:"provider,omitempty"`
	TotalAmount        *decimal.Decimal `json:"total_amount,omitempty"`
	QualificationScore int              `json:"qualification_score"`
	QualifiedAt        time.Time        `json:"qualified_at"`
}

func (LeadQualifiedV1) EventType() string {
	return "leads.lead.qualified.v1"
}

// ReminderSentV1 records a follow-up reminder delivered after a reply timeout.
type ReminderSentV1 struct {
	LeadPhone string    `json:"lead_phone"`
	RaceID    string    `json:"race_id"`
	Provider  string    `json:"provider,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

func (ReminderSentV1) EventType() string {
	return "followup.reminder.sent.v1"
}
