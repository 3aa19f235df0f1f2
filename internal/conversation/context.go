package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/solarbill-ai-platform/internal/extraction"
	"github.com/wolfman30/solarbill-ai-platform/internal/qualification"
)

// ErrLeadIDRequired is returned when a store is called without a lead id.
var ErrLeadIDRequired = errors.New("conversation: lead id required")

// Stage marks how far a lead has progressed. Stages only move forward.
type Stage int

const (
	StageInitial Stage = iota
	StageLocationDetected
	StagePromotionsShown
	StageDocumentProcessed
	StageCompleted
)

var stageNames = []string{"initial", "location_detected", "promotions_shown", "document_processed", "completed"}

func (s Stage) String() string {
	if int(s) < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(data []byte) error {
	for i, name := range stageNames {
		if name == string(data) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("conversation: unknown stage %q", data)
}

// Promotion is an offer already presented to the lead.
type Promotion struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

// LastExtraction is the most recent processed bill with its scores.
type LastExtraction struct {
	Fields        extraction.ExtractedFields  `json:"fields"`
	Validation    extraction.ValidationResult `json:"validation"`
	Qualification qualification.Result        `json:"qualification"`
	ProcessedAt   time.Time                   `json:"processed_at"`
}

// Context is the per-lead conversation state.
type Context struct {
	LeadID           string          `json:"lead_id"`
	City             string          `json:"city,omitempty"`
	State            string          `json:"state,omitempty"`
	Intent           string          `json:"intent,omitempty"`
	Promotions       []Promotion     `json:"promotions,omitempty"`
	LastExtraction   *LastExtraction `json:"last_extraction,omitempty"`
	Stage            Stage           `json:"stage"`
	Completed        bool            `json:"completed"`
	InteractionCount int64           `json:"interaction_count"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// PartialContext carries the fields an event wants to change. Nil pointers and
// a nil Promotions slice leave the stored value untouched; a non-nil empty
// Promotions slice clears the list.
type PartialContext struct {
	City  *string
	State *string
	// CorrectLocation lets City/State replace a location that is already known.
	CorrectLocation bool
	Intent          *string
	Promotions      []Promotion
	LastExtraction  *LastExtraction
	// Completed marks the conversation done. False means "no change".
	Completed bool
}

// Store is the only way to read and mutate conversation state. Upsert must be
// atomic per lead.
type Store interface {
	Get(ctx context.Context, leadID string) (*Context, error)
	Upsert(ctx context.Context, leadID string, partial PartialContext) (*Context, error)
}

// OrInitial returns c, or an empty Initial-stage context when c is nil.
func OrInitial(c *Context, leadID string) Context {
	if c == nil {
		return Context{LeadID: leadID, Stage: StageInitial}
	}
	return *c.Clone()
}

// Clone returns a deep copy.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := *c
	if c.Promotions != nil {
		out.Promotions = append([]Promotion(nil), c.Promotions...)
	}
	if c.LastExtraction != nil {
		le := *c.LastExtraction
		le.Validation.ValidationErrors = append([]string(nil), le.Validation.ValidationErrors...)
		le.Validation.Warnings = append([]string(nil), le.Validation.Warnings...)
		le.Qualification.Reasons = append([]string(nil), le.Qualification.Reasons...)
		out.LastExtraction = &le
	}
	if c.CompletedAt != nil {
		at := *c.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}

// HasLocation reports whether both city and state are known.
func (c *Context) HasLocation() bool {
	return c != nil && c.City != "" && c.State != ""
}

func normalizeLeadID(leadID string) (string, error) {
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return "", ErrLeadIDRequired
	}
	return leadID, nil
}

// merge applies partial to a copy of existing (nil means a new lead) and
// returns the result.
func merge(existing *Context, leadID string, partial PartialContext, now time.Time) *Context {
	now = now.UTC()
	next := existing.Clone()
	if next == nil {
		next = &Context{LeadID: leadID, Stage: StageInitial, CreatedAt: now}
	}

	if partial.CorrectLocation || !next.HasLocation() {
		if partial.City != nil && strings.TrimSpace(*partial.City) != "" {
			next.City = strings.TrimSpace(*partial.City)
		}
		if partial.State != nil && strings.TrimSpace(*partial.State) != "" {
			next.State = strings.ToUpper(strings.TrimSpace(*partial.State))
		}
	}
	if partial.Intent != nil {
		next.Intent = *partial.Intent
	}
	if partial.Promotions != nil {
		next.Promotions = append([]Promotion{}, partial.Promotions...)
	}
	if partial.LastExtraction != nil {
		le := *partial.LastExtraction
		if le.ProcessedAt.IsZero() {
			le.ProcessedAt = now
		}
		next.LastExtraction = &le
	}
	if partial.Completed && !next.Completed {
		next.Completed = true
		at := now
		next.CompletedAt = &at
	}

	next.InteractionCount++
	next.UpdatedAt = now
	if derived := deriveStage(next); derived > next.Stage {
		next.Stage = derived
	}
	return next
}

func deriveStage(c *Context) Stage {
	switch {
	case c.Completed:
		return StageCompleted
	case c.LastExtraction != nil:
		return StageDocumentProcessed
	case len(c.Promotions) > 0:
		return StagePromotionsShown
	case c.HasLocation():
		return StageLocationDetected
	default:
		return StageInitial
	}
}
