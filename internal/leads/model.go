package leads

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Lead is a prospective solar customer identified by phone.
type Lead struct {
	ID                 string           `json:"id"`
	Phone              string           `json:"phone"`
	Name               string           `json:"name,omitempty"`
	City               string           `json:"city,omitempty"`
	State              string           `json:"state,omitempty"`
	Provider           string           `json:"provider,omitempty"`
	MonthlyAmount      *decimal.Decimal `json:"monthly_amount,omitempty"`
	QualificationScore int              `json:"qualification_score"`
	IsQualified        bool             `json:"is_qualified"`
	QualifiedAt        *time.Time       `json:"qualified_at,omitempty"`
	Source             string           `json:"source,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// UpsertLeadRequest carries what a turn learned about the lead. Nil pointers
// leave stored values untouched; qualification is sticky once reached.
type UpsertLeadRequest struct {
	Phone              string
	Name               *string
	City               *string
	State              *string
	Provider           *string
	MonthlyAmount      *decimal.Decimal
	QualificationScore *int
	IsQualified        bool
	Source             string
}

// Validate validates the upsert request
func (r *UpsertLeadRequest) Validate() error {
	if strings.TrimSpace(r.Phone) == "" {
		return ErrMissingPhone
	}
	return nil
}

// ListLeadsFilter narrows admin listings.
type ListLeadsFilter struct {
	QualifiedOnly bool
	Limit         int
	Offset        int
}

func (f ListLeadsFilter) normalized() ListLeadsFilter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func applyUpsert(lead *Lead, req *UpsertLeadRequest, now time.Time) {
	set := func(dst *string, src *string) {
		if src != nil && strings.TrimSpace(*src) != "" {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&lead.Name, req.Name)
	set(&lead.City, req.City)
	set(&lead.State, req.State)
	set(&lead.Provider, req.Provider)
	if req.MonthlyAmount != nil {
		amount := *req.MonthlyAmount
		lead.MonthlyAmount = &amount
	}
	if req.QualificationScore != nil {
		lead.QualificationScore = *req.QualificationScore
	}
	if req.IsQualified && !lead.IsQualified {
		lead.IsQualified = true
		qualifiedAt := now
		lead.QualifiedAt = &qualifiedAt
	}
	if lead.Source == "" {
		lead.Source = req.Source
	}
	lead.UpdatedAt = now
}
