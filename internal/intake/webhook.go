package intake

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type chatWebhookPayload struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     chatWebhookData `json:"data"`
}

type chatWebhookData struct {
	ID        string            `json:"id"`
	From      string            `json:"from"`
	FromMe    bool              `json:"from_me"`
	IsGroup   bool              `json:"is_group"`
	PushName  string            `json:"push_name"`
	Text      string            `json:"text"`
	Caption   string            `json:"caption"`
	Media     *chatWebhookMedia `json:"media,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

type chatWebhookMedia struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// ParseChatWebhook maps a gateway callback to an inbound event. ok is false
// for callbacks the pipeline does not handle: status updates, our own
// echoes, group messages and empty messages.
func ParseChatWebhook(body []byte, provider string) (evt InboundEvent, ok bool, err error) {
	var p chatWebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return InboundEvent{}, false, fmt.Errorf("intake: decode webhook: %w", err)
	}
	if p.Event != "" && p.Event != "message.received" && p.Event != "messages.upsert" {
		return InboundEvent{}, false, nil
	}
	d := p.Data
	if d.FromMe || d.IsGroup || strings.TrimSpace(d.From) == "" {
		return InboundEvent{}, false, nil
	}
	evt = InboundEvent{
		MessageID: strings.TrimSpace(d.ID),
		From:      d.From,
		PushName:  strings.TrimSpace(d.PushName),
		Body:      strings.TrimSpace(strings.Join([]string{d.Text, d.Caption}, "\n")),
		Provider:  provider,
	}
	if d.Media != nil {
		evt.MediaRef = d.Media.URL
		if evt.MediaRef == "" {
			evt.MediaRef = d.Media.ID
		}
		evt.MediaType = d.Media.MimeType
	}
	if d.Timestamp > 0 {
		evt.ReceivedAt = time.Unix(d.Timestamp, 0).UTC()
	}
	if evt.Body == "" && evt.MediaRef == "" {
		return InboundEvent{}, false, nil
	}
	return evt, true, nil
}
