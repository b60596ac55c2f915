package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jonathan/otj-helper/internal/gaps"
	"github.com/jonathan/otj-helper/internal/types"
	"github.com/stretchr/testify/assert"
)

func ksb(code, title string) types.KSB {
	return types.KSB{Spec: "ST0787", Code: code, Title: title}
}

func TestPrintGapReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	generated, _ := types.ParseDate("2026-03-31")
	last, _ := types.ParseDate("2026-01-15")
	report := &gaps.Report{
		SpecCode:    "ST0787",
		GeneratedOn: generated,
		KSBGaps: []gaps.KSBGap{
			{KSB: ksb("B1", "Works independently"), Severity: gaps.SeverityCritical, Reason: "No evidence at all"},
			{KSB: ksb("K2", "Data structures"), Hours: 1.5, Count: 1, Severity: gaps.SeverityWarning, Reason: "Only 1.5h logged"},
		},
		TypeGaps:     []gaps.TypeGap{{Type: types.ActivityConference, Label: "Conference / Event"}},
		WorkflowGaps: []gaps.WorkflowGap{{Stage: types.StageCapture, Label: "Capture"}},
		Staleness:    []gaps.StaleKSB{{KSB: ksb("K1", "Programming"), LastDate: last, DaysAgo: 75}},
		QualityGaps:  []gaps.QualityGap{{KSB: ksb("K2", "Data structures"), Count: 1, Reason: "All evidence is still in draft quality"}},
		OverallScore: 42,
		CoveragePct:  50,
		QualityPct:   30,
		Suggestions:  []string{"Try new activity types: Conference / Event"},
	}

	p.PrintGapReport(report)
	output := buf.String()

	assert.Contains(t, output, "GAP ANALYSIS")
	assert.Contains(t, output, "Readiness:  42%")
	assert.Contains(t, output, "Coverage:   50%")
	assert.Contains(t, output, "Missing CORE stages: Capture")
	assert.Contains(t, output, "No evidence (1):")
	assert.Contains(t, output, "B1  Works independently")
	assert.Contains(t, output, "Thin evidence (1):")
	assert.Contains(t, output, "K2  Only 1.5h logged")
	assert.Contains(t, output, "last 2026-01-15 (75 days ago)")
	assert.Contains(t, output, "DRAFT-ONLY EVIDENCE")
	assert.Contains(t, output, "1. Try new activity types: Conference / Event")
}

func TestPrintGapReport_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintGapReport(nil)

	assert.Empty(t, buf.String())
}

func TestPrintGapReport_TruncatesLongLists(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	report := &gaps.Report{SpecCode: "ST0787"}
	for _, code := range []string{"B1", "B2", "B3", "B4", "B5", "B6", "K1"} {
		report.KSBGaps = append(report.KSBGaps, gaps.KSBGap{
			KSB: ksb(code, "Title"), Severity: gaps.SeverityCritical, Reason: "No evidence at all",
		})
	}

	p.PrintGapReport(report)
	output := buf.String()

	assert.Contains(t, output, "No evidence (7):")
	assert.Contains(t, output, "... and 2 more")
	assert.NotContains(t, output, "B6  Title")
	assert.NotContains(t, output, "SUGGESTIONS")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", 100))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 5)
	assert.Contains(t, lines[3], "...")
	assert.NotContains(t, lines[3], strings.Repeat("x", 60))
}
