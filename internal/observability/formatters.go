// Package observability provides Prometheus metrics for the server and formatted
// report output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/otj-helper/internal/gaps"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted report output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintGapReport outputs the readiness scores, gaps and suggestions of a report.
func (p *Printer) PrintGapReport(r *gaps.Report) {
	if r == nil {
		return
	}

	p.printScores(r)
	p.printKSBGaps(r.KSBGaps)
	p.printStaleness(r.Staleness)

	if len(r.QualityGaps) > 0 {
		var sb strings.Builder
		count := min(len(r.QualityGaps), maxItemsToShow)
		for _, g := range r.QualityGaps[:count] {
			sb.WriteString(fmt.Sprintf("  • %s  %s (%d)\n", g.KSB.Code, g.Reason, g.Count))
		}
		if len(r.QualityGaps) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(r.QualityGaps)-maxItemsToShow))
		}
		p.printBox("DRAFT-ONLY EVIDENCE", strings.TrimSuffix(sb.String(), "\n"))
	}

	if len(r.Suggestions) > 0 {
		var sb strings.Builder
		for i, s := range r.Suggestions {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, s))
		}
		p.printBox("SUGGESTIONS", strings.TrimSuffix(sb.String(), "\n"))
	}
}

func (p *Printer) printScores(r *gaps.Report) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Standard:   %s\n", r.SpecCode))
	sb.WriteString(fmt.Sprintf("As of:      %s\n", r.GeneratedOn))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Readiness:  %d%%\n", r.OverallScore))
	sb.WriteString(fmt.Sprintf("Coverage:   %d%%\n", r.CoveragePct))
	sb.WriteString(fmt.Sprintf("Quality:    %d%%", r.QualityPct))

	if len(r.TypeGaps) > 0 {
		sb.WriteString(fmt.Sprintf("\n\nUnused activity types: %d", len(r.TypeGaps)))
	}
	if len(r.WorkflowGaps) > 0 {
		labels := make([]string, 0, len(r.WorkflowGaps))
		for _, g := range r.WorkflowGaps {
			labels = append(labels, g.Label)
		}
		sb.WriteString(fmt.Sprintf("\nMissing CORE stages: %s", strings.Join(labels, ", ")))
	}

	p.printBox("GAP ANALYSIS", sb.String())
}

func (p *Printer) printKSBGaps(ksbGaps []gaps.KSBGap) {
	if len(ksbGaps) == 0 {
		return
	}

	var critical, warning []gaps.KSBGap
	for _, g := range ksbGaps {
		if g.Severity == gaps.SeverityCritical {
			critical = append(critical, g)
		} else {
			warning = append(warning, g)
		}
	}

	var sb strings.Builder
	if len(critical) > 0 {
		sb.WriteString(fmt.Sprintf("No evidence (%d):\n", len(critical)))
		count := min(len(critical), maxItemsToShow)
		for _, g := range critical[:count] {
			sb.WriteString(fmt.Sprintf("  • %s  %s\n", g.KSB.Code, g.KSB.Title))
		}
		if len(critical) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(critical)-maxItemsToShow))
		}
	}
	if len(warning) > 0 {
		if len(critical) > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("Thin evidence (%d):\n", len(warning)))
		count := min(len(warning), maxItemsToShow)
		for _, g := range warning[:count] {
			sb.WriteString(fmt.Sprintf("  • %s  %s\n", g.KSB.Code, g.Reason))
		}
		if len(warning) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(warning)-maxItemsToShow))
		}
	}

	p.printBox("KSB GAPS", strings.TrimSuffix(sb.String(), "\n"))
}

func (p *Printer) printStaleness(stale []gaps.StaleKSB) {
	if len(stale) == 0 {
		return
	}

	var sb strings.Builder
	count := min(len(stale), maxItemsToShow)
	for _, s := range stale[:count] {
		sb.WriteString(fmt.Sprintf("  • %s  last %s (%d days ago)\n", s.KSB.Code, s.LastDate, s.DaysAgo))
	}
	if len(stale) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(stale)-maxItemsToShow))
	}
	p.printBox("STALE KSBS", strings.TrimSuffix(sb.String(), "\n"))
}
