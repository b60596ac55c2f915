package schemas

import (
	"errors"
	"testing"

	schemafiles "github.com/jonathan/otj-helper/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validReport() map[string]any {
	ksb := map[string]any{"spec_code": "ST0787", "code": "K1", "category": "knowledge", "title": "Principles"}
	return map[string]any{
		"spec_code":     "ST0787",
		"ksb_gaps":      []any{map[string]any{"ksb": ksb, "hours": 0, "count": 0, "severity": "critical", "reason": "No evidence at all"}},
		"type_gaps":     []any{map[string]any{"type": "other", "label": "Other"}},
		"workflow_gaps": []any{},
		"staleness":     []any{},
		"quality_gaps":  []any{},
		"overall_score": 5,
		"coverage_pct":  5,
		"quality_pct":   5,
		"suggestions":   []any{"Try new activity types: Other"},
	}
}

func TestValidate_GapReport(t *testing.T) {
	assert.NoError(t, Validate(schemafiles.GapReport, validReport()))
}

func TestValidate_GapReportInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc map[string]any)
	}{
		{"missing suggestions", func(doc map[string]any) { delete(doc, "suggestions") }},
		{"score above 100", func(doc map[string]any) { doc["overall_score"] = 101 }},
		{"unknown severity", func(doc map[string]any) {
			doc["ksb_gaps"].([]any)[0].(map[string]any)["severity"] = "mild"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validReport()
			tt.mutate(doc)

			err := Validate(schemafiles.GapReport, doc)
			require.Error(t, err)
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "error should be ValidationError, got %T", err)
			assert.NotEmpty(t, validationErr.Errors)
			assert.Equal(t, schemafiles.GapReport, validationErr.Schema)
		})
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("missing.schema.json", map[string]any{})
	require.Error(t, err)
	var loadErr *SchemaLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.NotNil(t, loadErr.Unwrap())
}

func TestValidate_Catalog(t *testing.T) {
	doc := map[string]any{
		"specs": []any{map[string]any{
			"code": "ST0787", "name": "Systems Thinking Practitioner", "level": 7, "available": true,
			"ksbs": []any{map[string]any{"code": "K1", "category": "knowledge", "title": "Systems"}},
		}},
	}
	assert.NoError(t, Validate(schemafiles.Catalog, doc))

	doc["specs"].([]any)[0].(map[string]any)["code"] = "0787"
	assert.Error(t, Validate(schemafiles.Catalog, doc))
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Schema: "gap_report.schema.json",
		Errors: []FieldError{
			{Field: "overall_score", Message: "must be less than or equal to 100"},
			{Field: "suggestions", Message: "is required"},
		},
	}

	errorMsg := err.Error()
	assert.Contains(t, errorMsg, "gap_report.schema.json")
	assert.Contains(t, errorMsg, "overall_score")
	assert.Contains(t, errorMsg, "suggestions")
}
