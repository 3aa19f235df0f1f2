package intake

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/solarbill-ai-platform/internal/extraction"
)

func TestAnalyzerReportSchema(t *testing.T) {
	a := NewAnalyzer(nil, extraction.NewValidator(fixedNow), nil)
	analysis, err := a.Analyze(qualifyingBill)
	require.NoError(t, err)

	raw, err := json.Marshal(analysis.Report())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	for _, key := range []string{
		"customer_name", "total_amount", "consumption_kwh", "provider", "due_date",
		"installation_id", "address", "confidence_score", "validation_errors",
		"warnings", "qualification_score", "is_qualified",
	} {
		assert.Contains(t, got, key)
	}
	assert.Equal(t, "387.45", got["total_amount"])
	assert.Equal(t, "2025-03-15", got["due_date"])
	assert.Equal(t, true, got["is_qualified"])
}

func TestAnalyzerEmptyTextHasExplicitErrors(t *testing.T) {
	analysis, err := NewAnalyzer(nil, nil, nil).Analyze("")
	require.NoError(t, err)

	report := analysis.Report()
	assert.Nil(t, report.TotalAmount)
	assert.Zero(t, report.ConfidenceScore)
	assert.NotEmpty(t, report.ValidationErrors)
	assert.NotNil(t, report.Warnings)
	assert.False(t, report.IsQualified)

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"customer_name":null`)
}

func TestAnalyzerRejectsBinary(t *testing.T) {
	_, err := NewAnalyzer(nil, nil, nil).Analyze("TOTAL\x00R$ 10,00")
	var inputErr *extraction.InputError
	require.True(t, errors.As(err, &inputErr))
}
