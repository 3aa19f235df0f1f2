package extraction

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Checklist weights. The total is fixed at 8 points.
const (
	weightAmount      = 2
	weightName        = 2
	weightProvider    = 1
	weightConsumption = 1
	weightDueDate     = 1
	weightAddress     = 1
	totalPoints       = weightAmount + weightName + weightProvider + weightConsumption + weightDueDate + weightAddress

	minNameLength    = 10
	minAddressLength = 15
	dueDateWindow    = 365 * 24 * time.Hour
	minConsumption   = 1.0
	maxConsumption   = 10000.0
	minConfidence    = 0.5
)

var (
	// SanityCeiling is the largest amount accepted as a residential/commercial bill.
	SanityCeiling = decimal.NewFromInt(50000)
	// WarningCeiling flags amounts that are present but unusually high.
	WarningCeiling = decimal.NewFromInt(10000)
)

// ValidationResult scores one extraction.
type ValidationResult struct {
	ConfidenceScore  float64  `json:"confidence_score"`
	ValidationErrors []string `json:"validation_errors"`
	Warnings         []string `json:"warnings"`
	IsValid          bool     `json:"is_valid"`
}

// Validator applies the fixed-weight confidence checklist.
type Validator struct {
	now func() time.Time
}

// NewValidator creates a validator. A nil clock defaults to time.Now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

var defaultValidator = NewValidator(nil)

// Validate scores fields against the wall clock.
func Validate(fields ExtractedFields) ValidationResult {
	return defaultValidator.Validate(fields)
}

// Validate never fails; absence is reported through errors and warnings.
func (v *Validator) Validate(fields ExtractedFields) ValidationResult {
	res := ValidationResult{
		ValidationErrors: []string{},
		Warnings:         []string{},
	}
	points := 0

	if amount, ok := fields.TotalAmount(); !ok {
		res.ValidationErrors = append(res.ValidationErrors, "total_amount not found")
	} else if !amount.GreaterThan(decimal.Zero) || amount.GreaterThan(SanityCeiling) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("total_amount %s outside plausible range", amount.StringFixed(2)))
	} else {
		points += weightAmount
		if amount.GreaterThan(WarningCeiling) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("total_amount %s is unusually high", amount.StringFixed(2)))
		}
	}

	if name, ok := fields.CustomerName(); !ok {
		res.ValidationErrors = append(res.ValidationErrors, "customer_name not found")
	} else if utf8.RuneCountInString(name) < minNameLength {
		res.ValidationErrors = append(res.ValidationErrors, fmt.Sprintf("customer_name too short (%d chars)", utf8.RuneCountInString(name)))
	} else {
		points += weightName
	}

	if _, ok := fields.Provider(); ok {
		points += weightProvider
	} else {
		res.Warnings = append(res.Warnings, "provider not identified")
	}

	if kwh, ok := fields.ConsumptionKWh(); !ok {
		res.Warnings = append(res.Warnings, "consumption_kwh not found")
	} else if kwh < minConsumption || kwh > maxConsumption {
		res.Warnings = append(res.Warnings, fmt.Sprintf("consumption_kwh %.0f outside plausible range", kwh))
	} else {
		points += weightConsumption
	}

	if due, ok := fields.DueDate(); !ok {
		res.Warnings = append(res.Warnings, "due_date not found")
	} else if delta := due.Sub(v.now()); delta > dueDateWindow || delta < -dueDateWindow {
		res.Warnings = append(res.Warnings, fmt.Sprintf("due_date %s is more than a year from today", due))
	} else {
		points += weightDueDate
	}

	if addr, ok := fields.Address(); !ok {
		res.Warnings = append(res.Warnings, "address not found")
	} else if utf8.RuneCountInString(addr) < minAddressLength {
		res.Warnings = append(res.Warnings, "address too short")
	} else {
		points += weightAddress
	}

	res.ConfidenceScore = float64(points) / float64(totalPoints)
	res.IsValid = res.ConfidenceScore >= minConfidence && len(res.ValidationErrors) == 0
	return res
}
