// Package gaps analyses an apprentice's logged evidence against the KSBs of their
// apprenticeship standard and produces a portfolio readiness report.
package gaps

import "github.com/jonathan/otj-helper/internal/types"

// Severity grades a KSB gap.
type Severity string

const (
	// SeverityCritical marks a KSB with no evidence at all.
	SeverityCritical Severity = "critical"
	// SeverityWarning marks a KSB with some, but under MinHours of, evidence.
	SeverityWarning Severity = "warning"
)

// Thresholds used by the analysis.
const (
	MinHours         = 2.0
	StaleAfterDays   = 30
	maxCriticalCodes = 5
	maxTypeLabels    = 3
	maxStaleCodes    = 3
	maxQualityCodes  = 5
)

// KSBGap is a KSB with no or too little evidence.
type KSBGap struct {
	KSB      types.KSB `json:"ksb"`
	Hours    float64   `json:"hours"`
	Count    int       `json:"count"`
	Severity Severity  `json:"severity"`
	Reason   string    `json:"reason"`
}

// TypeGap is an activity type the apprentice has never logged.
type TypeGap struct {
	Type  types.ActivityType `json:"type"`
	Label string             `json:"label"`
}

// WorkflowGap is a CORE stage with no linked resources.
type WorkflowGap struct {
	Stage  types.WorkflowStage `json:"stage"`
	Label  string              `json:"label"`
	Count  int                 `json:"count"`
	Reason string              `json:"reason"`
}

// StaleKSB is a covered KSB with no recent activity.
type StaleKSB struct {
	KSB      types.KSB  `json:"ksb"`
	LastDate types.Date `json:"last_date"`
	DaysAgo  int        `json:"days_ago"`
}

// QualityGap is a KSB whose evidence is all still draft.
type QualityGap struct {
	KSB    types.KSB `json:"ksb"`
	Count  int       `json:"count"`
	Reason string    `json:"reason"`
}

// Report is the result of one analysis. It is computed on demand and never stored.
type Report struct {
	SpecCode     string        `json:"spec_code"`
	GeneratedOn  types.Date    `json:"generated_on"`
	KSBGaps      []KSBGap      `json:"ksb_gaps"`
	TypeGaps     []TypeGap     `json:"type_gaps"`
	WorkflowGaps []WorkflowGap `json:"workflow_gaps"`
	Staleness    []StaleKSB    `json:"staleness"`
	QualityGaps  []QualityGap  `json:"quality_gaps"`
	OverallScore int           `json:"overall_score"`
	CoveragePct  int           `json:"coverage_pct"`
	QualityPct   int           `json:"quality_pct"`
	Suggestions  []string      `json:"suggestions"`
}

// Critical returns the critical KSB gaps in report order.
func (r *Report) Critical() []KSBGap {
	var out []KSBGap
	for _, g := range r.KSBGaps {
		if g.Severity == SeverityCritical {
			out = append(out, g)
		}
	}
	return out
}
