package intake

import (
	"github.com/shopspring/decimal"

	"github.com/wolfman30/solarbill-ai-platform/internal/extraction"
	"github.com/wolfman30/solarbill-ai-platform/internal/qualification"
)

// ExtractionReport is the external JSON view of one processed bill. Absent
// fields serialize as null; the error and warning lists are never null.
type ExtractionReport struct {
	CustomerName       *string          `json:"customer_name"`
	TotalAmount        *decimal.Decimal `json:"total_amount"`
	ConsumptionKWh     *float64         `json:"consumption_kwh"`
	Provider           *string          `json:"provider"`
	DueDate            *extraction.Date `json:"due_date"`
	InstallationID     *string          `json:"installation_id"`
	Address            *string          `json:"address"`
	ConfidenceScore    float64          `json:"confidence_score"`
	ValidationErrors   []string         `json:"validation_errors"`
	Warnings           []string         `json:"warnings"`
	QualificationScore int              `json:"qualification_score"`
	IsQualified        bool             `json:"is_qualified"`
}

// Analysis bundles the three stages applied to one text.
type Analysis struct {
	Fields        extraction.ExtractedFields
	Validation    extraction.ValidationResult
	Qualification qualification.Result
}

// Report flattens the analysis into the external schema.
func (a Analysis) Report() ExtractionReport {
	v := a.Fields.Values()
	errs := a.Validation.ValidationErrors
	if errs == nil {
		errs = []string{}
	}
	warns := a.Validation.Warnings
	if warns == nil {
		warns = []string{}
	}
	return ExtractionReport{
		CustomerName:       v.CustomerName,
		TotalAmount:        v.TotalAmount,
		ConsumptionKWh:     v.ConsumptionKWh,
		Provider:           v.Provider,
		DueDate:            v.DueDate,
		InstallationID:     v.InstallationID,
		Address:            v.Address,
		ConfidenceScore:    a.Validation.ConfidenceScore,
		ValidationErrors:   errs,
		Warnings:           warns,
		QualificationScore: a.Qualification.Score,
		IsQualified:        a.Qualification.IsQualified,
	}
}

// Analyzer runs extraction, validation and qualification as one step. It is
// shared by the inbound pipeline, the HTTP debug endpoint and the CLI.
type Analyzer struct {
	extractor *extraction.Extractor
	validator *extraction.Validator
	scorer    *qualification.Scorer
}

// NewAnalyzer fills nil stages with their defaults.
func NewAnalyzer(extractor *extraction.Extractor, validator *extraction.Validator, scorer *qualification.Scorer) *Analyzer {
	if extractor == nil {
		extractor = extraction.NewExtractor()
	}
	if validator == nil {
		validator = extraction.NewValidator(nil)
	}
	if scorer == nil {
		scorer = qualification.NewScorer()
	}
	return &Analyzer{extractor: extractor, validator: validator, scorer: scorer}
}

// Analyze returns an *extraction.InputError for binary or non-UTF-8 input.
func (a *Analyzer) Analyze(text string) (Analysis, error) {
	fields, err := a.extractor.Extract(text)
	if err != nil {
		return Analysis{}, err
	}
	validation := a.validator.Validate(fields)
	return Analysis{
		Fields:        fields,
		Validation:    validation,
		Qualification: a.scorer.Qualify(fields, validation),
	}, nil
}
