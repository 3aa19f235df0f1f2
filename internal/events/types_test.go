package events

import "testing"

func TestLeadEventTypes(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"received", LeadMessageReceivedV1{}.EventType(), "leads.message.received.v1"},
		{"extracted", BillExtractedV1{}.EventType(), "leads.bill.extracted.v1"},
		{"qualified", LeadQualifiedV1{}.EventType(), "leads.lead.qualified.v1"},
		{"reminder", ReminderSentV1{}.EventType(), "followup.reminder.sent.v1"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("%s event type mismatch: got %s want %s", tt.name, tt.got, tt.want)
		}
	}
}
