package gaps

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/otj-helper/internal/types"
)

// KSBReader returns the KSB definitions of a standard, ordered by code.
type KSBReader interface {
	ListKSBs(ctx context.Context, specCode string) ([]types.KSB, error)
}

// EvidenceReader returns every activity a user has logged, across all standards.
type EvidenceReader interface {
	ListEvidence(ctx context.Context, userID int64) ([]types.Evidence, error)
}

// Store is the read-only data the analysis depends on.
type Store interface {
	KSBReader
	EvidenceReader
}

// Analyser runs gap analyses against a Store. It holds no mutable state and is
// safe for concurrent use.
type Analyser struct {
	store   Store
	now     func() time.Time
	observe func(time.Duration)
}

// Option configures an Analyser.
type Option func(*Analyser)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(a *Analyser) { a.now = now }
}

// WithObserver receives the duration of every successful analysis.
func WithObserver(observe func(time.Duration)) Option {
	return func(a *Analyser) { a.observe = observe }
}

// NewAnalyser creates an Analyser reading from store.
func NewAnalyser(store Store, opts ...Option) *Analyser {
	a := &Analyser{store: store, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyse builds the readiness report for one user against one standard.
// A user with no activities, or a standard with no KSBs, yields a valid report;
// the only errors are store failures.
func (a *Analyser) Analyse(ctx context.Context, userID int64, specCode string) (*Report, error) {
	start := time.Now()

	ksbs, err := a.store.ListKSBs(ctx, specCode)
	if err != nil {
		return nil, fmt.Errorf("failed to load KSBs for %s: %w", specCode, err)
	}
	evidence, err := a.store.ListEvidence(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load evidence for user %d: %w", userID, err)
	}

	report := Build(specCode, ksbs, evidence, types.NewDate(a.now()))
	if a.observe != nil {
		a.observe(time.Since(start))
	}
	return report, nil
}

// tally accumulates the evidence recorded against one KSB.
type tally struct {
	hours     float64
	count     int
	last      types.Date
	qualities []types.EvidenceQuality
}

func (t *tally) allDraft() bool {
	for _, q := range t.qualities {
		if q != types.QualityDraft {
			return false
		}
	}
	return len(t.qualities) > 0
}

func (t *tally) anyGood() bool {
	for _, q := range t.qualities {
		if q == types.QualityGood || q == types.QualityReviewReady {
			return true
		}
	}
	return false
}

// Build computes a report from already-loaded data. ksbs must be ordered by code.
func Build(specCode string, ksbs []types.KSB, evidence []types.Evidence, today types.Date) *Report {
	tallies := make(map[types.KSBID]*tally)
	usedTypes := make(map[types.ActivityType]bool)
	stageCounts := make(map[types.WorkflowStage]int)

	for _, ev := range evidence {
		usedTypes[ev.Type] = true
		for _, stage := range ev.Stages {
			stageCounts[stage]++
		}
		for _, id := range ev.KSBs {
			t, ok := tallies[id]
			if !ok {
				t = &tally{}
				tallies[id] = t
			}
			t.hours += ev.Hours
			t.count++
			if t.last.IsZero() || ev.Date.After(t.last.Time) {
				t.last = ev.Date
			}
			t.qualities = append(t.qualities, ev.Quality.OrDraft())
		}
	}

	r := &Report{
		SpecCode:     specCode,
		GeneratedOn:  today,
		KSBGaps:      []KSBGap{},
		TypeGaps:     typeGaps(usedTypes),
		WorkflowGaps: workflowGaps(stageCounts),
		Staleness:    []StaleKSB{},
		QualityGaps:  []QualityGap{},
	}

	staleBefore := today.AddDays(-StaleAfterDays)
	var covered, good int
	for _, k := range ksbs {
		t := tallies[k.ID()]
		if t == nil {
			t = &tally{}
		}

		switch {
		case t.hours == 0:
			r.KSBGaps = append(r.KSBGaps, KSBGap{
				KSB: k, Severity: SeverityCritical, Reason: "No evidence at all",
			})
		case t.hours < MinHours:
			r.KSBGaps = append(r.KSBGaps, KSBGap{
				KSB:      k,
				Hours:    roundTo(t.hours, 1),
				Count:    t.count,
				Severity: SeverityWarning,
				Reason:   fmt.Sprintf("Only %.1fh logged", t.hours),
			})
		}

		if t.hours > 0 {
			covered++
			if t.last.Before(staleBefore.Time) {
				r.Staleness = append(r.Staleness, StaleKSB{
					KSB: k, LastDate: t.last, DaysAgo: t.last.DaysSince(today),
				})
			}
		}

		if t.allDraft() {
			r.QualityGaps = append(r.QualityGaps, QualityGap{
				KSB: k, Count: len(t.qualities), Reason: "All evidence is still in draft quality",
			})
		}
		if t.anyGood() {
			good++
		}
	}

	var coverage, quality float64
	if total := len(ksbs); total > 0 {
		coverage = float64(covered) / float64(total) * 100
		quality = float64(good) / float64(total) * 100
	}
	r.CoveragePct = int(math.RoundToEven(coverage))
	r.QualityPct = int(math.RoundToEven(quality))
	r.OverallScore = int(math.RoundToEven(coverage*0.6 + quality*0.4))
	r.Suggestions = suggestions(r)
	return r
}

func typeGaps(used map[types.ActivityType]bool) []TypeGap {
	out := []TypeGap{}
	for _, t := range types.ActivityTypes {
		if !used[t] {
			out = append(out, TypeGap{Type: t, Label: t.Label()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func workflowGaps(counts map[types.WorkflowStage]int) []WorkflowGap {
	out := []WorkflowGap{}
	for _, info := range types.WorkflowStages {
		if counts[info.Stage] == 0 {
			out = append(out, WorkflowGap{
				Stage:  info.Stage,
				Label:  info.Label,
				Reason: fmt.Sprintf("No %s resources linked yet", info.Label),
			})
		}
	}
	return out
}

// suggestions turns the gap lists into at most one line per category, in fixed order.
func suggestions(r *Report) []string {
	out := []string{}

	if critical := r.Critical(); len(critical) > 0 {
		codes := make([]string, 0, maxCriticalCodes)
		for _, g := range critical[:min(len(critical), maxCriticalCodes)] {
			codes = append(codes, g.KSB.Code)
		}
		out = append(out, fmt.Sprintf("Priority: log evidence for %s (no evidence yet)", strings.Join(codes, ", ")))
	}

	if len(r.TypeGaps) > 0 {
		labels := make([]string, 0, maxTypeLabels)
		for _, g := range r.TypeGaps[:min(len(r.TypeGaps), maxTypeLabels)] {
			labels = append(labels, g.Label)
		}
		out = append(out, "Try new activity types: "+strings.Join(labels, ", "))
	}

	if len(r.WorkflowGaps) > 0 {
		labels := make([]string, 0, len(r.WorkflowGaps))
		for _, g := range r.WorkflowGaps {
			labels = append(labels, g.Label)
		}
		out = append(out, "Add CORE workflow resources: "+strings.Join(labels, ", "))
	}

	if len(r.Staleness) > 0 {
		codes := make([]string, 0, maxStaleCodes)
		for _, s := range r.Staleness[:min(len(r.Staleness), maxStaleCodes)] {
			codes = append(codes, s.KSB.Code)
		}
		out = append(out, fmt.Sprintf("Revisit stale KSBs: %s (no activity in 30+ days)", strings.Join(codes, ", ")))
	}

	if len(r.QualityGaps) > 0 {
		codes := make([]string, 0, maxQualityCodes)
		for _, g := range r.QualityGaps[:min(len(r.QualityGaps), maxQualityCodes)] {
			codes = append(codes, g.KSB.Code)
		}
		out = append(out, fmt.Sprintf("Improve evidence quality: %s (all still draft)", strings.Join(codes, ", ")))
	}

	return out
}

// roundTo rounds v to places decimals exactly as %.*f formats it, so a
// rounded figure always agrees with the text printed beside it.
func roundTo(v float64, places int) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	return r
}
