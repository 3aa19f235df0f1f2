// Package race resolves the competition between a lead's reply and a
// follow-up deadline. Each race resolves exactly once.
package race

import (
	"errors"
	"time"
)

const (
	// DefaultDeadline is how long a lead has to reply before a reminder is due.
	DefaultDeadline = 2 * time.Hour
	// DefaultDeadlineISO is DefaultDeadline as an ISO-8601 duration.
	DefaultDeadlineISO = "PT2H"
)

var (
	ErrRaceNotFound   = errors.New("race: not found")
	ErrLeadIDRequired = errors.New("race: lead id required")
)

// ID identifies one race.
type ID string

// Outcome is the resolution of a race.
type Outcome int32

const (
	Pending Outcome = iota
	ResolvedByReply
	ResolvedByTimeout
)

func (o Outcome) String() string {
	switch o {
	case ResolvedByReply:
		return "reply"
	case ResolvedByTimeout:
		return "timeout"
	default:
		return "pending"
	}
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) Outcome {
	switch s {
	case "reply":
		return ResolvedByReply
	case "timeout":
		return ResolvedByTimeout
	default:
		return Pending
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(data []byte) error {
	*o = ParseOutcome(string(data))
	return nil
}

// Snapshot is a read-only view of a race.
type Snapshot struct {
	ID         ID         `json:"race_id"`
	LeadID     string     `json:"lead_id"`
	ArmedAt    time.Time  `json:"armed_at"`
	Deadline   time.Time  `json:"deadline"`
	Outcome    Outcome    `json:"outcome"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Resolved reports whether the race reached a terminal state.
func (s Snapshot) Resolved() bool {
	return s.Outcome != Pending
}
