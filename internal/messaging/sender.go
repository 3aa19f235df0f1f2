package messaging

import (
	"context"
	"sync"
)

// Message kinds.
const (
	KindReply    = "reply"
	KindReminder = "reminder"
	KindAlert    = "alert"
)

// OutboundMessage is one chat message to a lead.
type OutboundMessage struct {
	To       string
	Body     string
	Kind     string
	Metadata map[string]string
}

// SendResult describes an accepted send.
type SendResult struct {
	Provider          string
	ProviderMessageID string
}

// Sender delivers outbound chat messages.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) (SendResult, error)
}

// Media is a downloaded attachment.
type Media struct {
	Data        []byte
	ContentType string
	FileName    string
}

// MediaFetcher downloads inbound attachments (bill photos, PDFs).
type MediaFetcher interface {
	FetchMedia(ctx context.Context, mediaRef string) (*Media, error)
}

// MemorySender records messages instead of delivering them. It backs local
// runs without gateway credentials and tests.
type MemorySender struct {
	mu   sync.Mutex
	sent []OutboundMessage
	err  error
}

var _ Sender = (*MemorySender)(nil)

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

// FailWith makes subsequent sends return err (nil restores success).
func (s *MemorySender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemorySender) Send(_ context.Context, msg OutboundMessage) (SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return SendResult{}, s.err
	}
	s.sent = append(s.sent, msg)
	return SendResult{Provider: "memory"}, nil
}

// Sent returns a copy of recorded messages.
func (s *MemorySender) Sent() []OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OutboundMessage(nil), s.sent...)
}
