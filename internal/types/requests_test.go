package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validActivity() ActivityRequest {
	return ActivityRequest{
		Title:         "Read the data engineering handbook",
		ActivityDate:  "2026-03-02",
		DurationHours: 1.5,
		ActivityType:  ActivitySelfStudy,
		KSBCodes:      []string{"k1", " S2 ", "K1"},
		Tags:          []string{"Reading", "reading", " ", "SQL"},
		Resources: []ResourceInput{
			{URL: "https://example.com/notes"},
			{URL: "   "},
		},
	}
}

func TestActivityRequest_Normalize(t *testing.T) {
	req := validActivity()
	req.Normalize()

	assert.Equal(t, QualityDraft, req.EvidenceQuality)
	assert.Equal(t, []string{"K1", "S2"}, req.KSBCodes)
	assert.Equal(t, []string{"reading", "sql"}, req.Tags)
	require.Len(t, req.Resources, 1)
	assert.Equal(t, "https://example.com/notes", req.Resources[0].Title)
	assert.Equal(t, StageEngage, req.Resources[0].WorkflowStage)
	assert.Equal(t, SourceOther, req.Resources[0].SourceType)
}

func TestActivityRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *ActivityRequest)
		wantErr string
	}{
		{name: "valid request", mutate: func(r *ActivityRequest) {}},
		{name: "invalid date", mutate: func(r *ActivityRequest) { r.ActivityDate = "02/03/2026" }, wantErr: "activity_date"},
		{name: "zero duration", mutate: func(r *ActivityRequest) { r.DurationHours = 0 }, wantErr: "duration_hours"},
		{name: "negative duration", mutate: func(r *ActivityRequest) { r.DurationHours = -2 }, wantErr: "duration_hours"},
		{name: "infinite duration", mutate: func(r *ActivityRequest) { r.DurationHours = math.Inf(1) }, wantErr: "duration_hours"},
		{name: "unknown type", mutate: func(r *ActivityRequest) { r.ActivityType = "napping" }, wantErr: "activity_type"},
		{name: "unknown quality", mutate: func(r *ActivityRequest) { r.EvidenceQuality = "perfect" }, wantErr: "evidence_quality"},
		{name: "missing title", mutate: func(r *ActivityRequest) { r.Title = "  " }, wantErr: "title"},
		{
			name:    "javascript resource url",
			mutate:  func(r *ActivityRequest) { r.Resources = []ResourceInput{{URL: "javascript:alert(1)"}} },
			wantErr: "resources[0].url",
		},
		{
			name:    "unknown stage",
			mutate:  func(r *ActivityRequest) { r.Resources = []ResourceInput{{URL: "https://x.test", WorkflowStage: "ship"}} },
			wantErr: "resources[0].workflow_stage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validActivity()
			tt.mutate(&req)
			req.Normalize()

			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			fields, ok := err.(FieldErrors)
			require.True(t, ok, "error should be FieldErrors, got %T", err)
			assert.Contains(t, fields, tt.wantErr)
		})
	}
}

func TestActivityRequest_Date(t *testing.T) {
	req := validActivity()
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, "2026-03-02", req.Date().String())
}

func TestTemplateRequest_Validate(t *testing.T) {
	day := func(d int) *int { return &d }
	hours := func(h float64) *float64 { return &h }

	tests := []struct {
		name    string
		req     TemplateRequest
		wantErr []string
	}{
		{
			name: "valid non-recurring",
			req:  TemplateRequest{Name: "Weekly seminar", Title: "Seminar", ActivityType: ActivityWorkshop},
		},
		{
			name: "valid recurring on Monday",
			req: TemplateRequest{Name: "Standup", Title: "Standup", ActivityType: ActivityMentoring,
				DurationHours: hours(0.5), IsRecurring: true, RecurrenceDay: day(0)},
		},
		{
			name:    "missing name and title",
			req:     TemplateRequest{ActivityType: ActivityOther},
			wantErr: []string{"name", "title"},
		},
		{
			name:    "zero duration",
			req:     TemplateRequest{Name: "n", Title: "t", ActivityType: ActivityOther, DurationHours: hours(0)},
			wantErr: []string{"duration_hours"},
		},
		{
			name:    "recurring without day",
			req:     TemplateRequest{Name: "n", Title: "t", ActivityType: ActivityOther, IsRecurring: true},
			wantErr: []string{"recurrence_day"},
		},
		{
			name:    "day out of range",
			req:     TemplateRequest{Name: "n", Title: "t", ActivityType: ActivityOther, IsRecurring: true, RecurrenceDay: day(7)},
			wantErr: []string{"recurrence_day"},
		},
		{
			name:    "unknown type",
			req:     TemplateRequest{Name: "n", Title: "t", ActivityType: "juggling"},
			wantErr: []string{"activity_type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			req.Normalize()
			err := req.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			fields, ok := err.(FieldErrors)
			require.True(t, ok, "error should be FieldErrors, got %T", err)
			for _, field := range tt.wantErr {
				assert.Contains(t, fields, field)
			}
		})
	}
}

func TestTemplateRequest_NormalizeCoercesQuality(t *testing.T) {
	req := TemplateRequest{EvidenceQuality: "excellent", IsRecurring: false, RecurrenceDay: new(int)}
	req.Normalize()
	assert.Equal(t, QualityDraft, req.EvidenceQuality)
	assert.Nil(t, req.RecurrenceDay)
}

func TestTargetsRequest_Validate(t *testing.T) {
	neg := -1.0
	ok := 400.0
	assert.NoError(t, (&TargetsRequest{}).Validate())
	assert.NoError(t, (&TargetsRequest{OTJTargetHours: &ok}).Validate())

	err := (&TargetsRequest{WeeklyTargetHours: &neg}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.(FieldErrors), "weekly_target_hours")
}

func TestRenameTagRequest_Validate(t *testing.T) {
	req := RenameTagRequest{Name: "  Python  "}
	require.NoError(t, req.Validate())
	assert.Equal(t, "python", req.Name)

	empty := RenameTagRequest{Name: "   "}
	assert.Error(t, empty.Validate())
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, SplitCSV(" a, ,b c,"))
	assert.Nil(t, SplitCSV(""))
}
