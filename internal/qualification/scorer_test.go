package qualification

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/solarbill-ai-platform/internal/extraction"
)

func bill(amount, name, provider string) extraction.ExtractedFields {
	var v extraction.Values
	if amount != "" {
		d := decimal.RequireFromString(amount)
		v.TotalAmount = &d
	}
	if name != "" {
		v.CustomerName = &name
	}
	if provider != "" {
		v.Provider = &provider
	}
	return extraction.NewExtractedFields(v)
}

func TestQualifyScenarioQualifies(t *testing.T) {
	fields, err := extraction.Extract("TOTAL A PAGAR: R$ 387,45 ... CLIENTE: MARIA SILVA SANTOS ... CEMIG")
	require.NoError(t, err)

	res := Qualify(fields, extraction.Validate(fields))
	assert.GreaterOrEqual(t, res.Score, 65)
	assert.True(t, res.IsQualified, "reasons: %v", res.Reasons)
}

func TestQualifyScenarioBelowMinimum(t *testing.T) {
	fields, err := extraction.Extract("TOTAL A PAGAR: R$ 150,00 ... CLIENTE: MARIA SILVA SANTOS ... CEMIG")
	require.NoError(t, err)

	res := Qualify(fields, extraction.Validate(fields))
	assert.Less(t, res.Score, 65)
	assert.LessOrEqual(t, res.Score, 10)
	assert.False(t, res.IsQualified)
}

func TestQualifyHardGateIgnoresConfidence(t *testing.T) {
	perfect := extraction.ValidationResult{ConfidenceScore: 1, IsValid: true}
	for _, amount := range []string{"0.01", "50", "150", "199.99"} {
		res := Qualify(bill(amount, "MARIA SILVA SANTOS", "CEMIG"), perfect)
		assert.False(t, res.IsQualified, "amount %s", amount)
		assert.LessOrEqual(t, res.Score, 10, "amount %s", amount)
	}
}

func TestQualifyMissingAmount(t *testing.T) {
	res := Qualify(bill("", "MARIA SILVA SANTOS", "CEMIG"), extraction.ValidationResult{ConfidenceScore: 0.375})
	assert.Equal(t, 0, res.Score)
	assert.False(t, res.IsQualified)
	assert.NotEmpty(t, res.Reasons)
}

func TestQualifyBands(t *testing.T) {
	tests := []struct {
		amount string
		want   int
	}{
		{"200", 50},
		{"299.99", 50},
		{"300", 60},
		{"500", 70},
		{"800", 80},
		{"1500", 85},
		{"9000", 85},
	}
	for _, tt := range tests {
		res := Qualify(bill(tt.amount, "MARIA SILVA SANTOS", "CEMIG"), extraction.ValidationResult{})
		assert.Equal(t, tt.want, res.Score, "amount %s", tt.amount)
	}
}

func TestQualifyPenaltiesAndBonus(t *testing.T) {
	validation := extraction.ValidationResult{ConfidenceScore: 0.5}

	// 70 base, -20 short name, -5 no provider, +8 confidence
	res := Qualify(bill("500", "ANA", ""), validation)
	assert.Equal(t, 53, res.Score)
	assert.False(t, res.IsQualified)

	res = Qualify(bill("500", "MARIA SILVA SANTOS", "CEMIG"), validation)
	assert.Equal(t, 78, res.Score)
	assert.True(t, res.IsQualified)
}

func TestQualifyValidationErrorsBlockQualification(t *testing.T) {
	validation := extraction.ValidationResult{ConfidenceScore: 1, ValidationErrors: []string{"customer_name too short (3 chars)"}}
	res := Qualify(bill("2000", "ANA", "CEMIG"), validation)
	assert.Equal(t, 80, res.Score)
	assert.False(t, res.IsQualified)
}

func TestScorerOptions(t *testing.T) {
	s := NewScorer(WithMinAmount(400), WithScoreThreshold(90))
	assert.True(t, s.MinAmount().Equal(decimal.NewFromInt(400)))
	assert.Equal(t, 90, s.ScoreThreshold())

	res := s.Qualify(bill("350", "MARIA SILVA SANTOS", "CEMIG"), extraction.ValidationResult{ConfidenceScore: 1})
	assert.False(t, res.IsQualified)
	assert.LessOrEqual(t, res.Score, 10)

	res = s.Qualify(bill("1600", "MARIA SILVA SANTOS", "CEMIG"), extraction.ValidationResult{ConfidenceScore: 1})
	assert.Equal(t, 100, res.Score)
	assert.True(t, res.IsQualified)

	ignored := NewScorer(WithMinAmount(-1), WithScoreThreshold(0))
	assert.True(t, ignored.MinAmount().Equal(decimal.NewFromInt(DefaultMinAmount)))
	assert.Equal(t, DefaultScoreThreshold, ignored.ScoreThreshold())
}
