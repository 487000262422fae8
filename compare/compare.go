// Package compare implements the period-comparison orchestrator (spec
// §4.9): it expands a query's compareDateRange into N independent
// sub-queries, runs them, and merges the results with period-alignment
// metadata. Concurrency is plain goroutines plus a sync.WaitGroup and a
// first-error latch — grounded on the teacher's hand-rolled fan-out in
// datalog/executor/executor_parallel.go — rather than pulling in
// golang.org/x/sync/errgroup for this one narrow case (see DESIGN.md).
package compare

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cubegraph/semantic/annotate"
	"github.com/cubegraph/semantic/executor"
	"github.com/cubegraph/semantic/filter"
	"github.com/cubegraph/semantic/query"
)

// RunFunc executes a single (non-comparison) SemanticQuery through the
// compiler's normal validate→plan→build→execute path and returns its
// rows. The comparison orchestrator calls it once per period.
type RunFunc func(q *query.SemanticQuery) ([]executor.Row, error)

// period is one resolved compareDateRange entry.
type period struct {
	index int
	label string
	start time.Time
	end   time.Time
}

// Run expands q's first comparison time dimension into one sub-query per
// compareDateRange entry, executes them (concurrently, first-error
// aborts), tags every row with __period/__periodIndex/__periodDayIndex,
// and returns the merged, sorted rows plus the periods annotation (spec
// §4.9 steps 1-6). now is the reference instant for relative keywords.
func Run(q *query.SemanticQuery, now time.Time, run RunFunc) ([]executor.Row, *annotate.PeriodsAnnotation, error) {
	tdIndex, td := findComparisonDimension(*q)
	if tdIndex < 0 {
		return nil, nil, fmt.Errorf("compare: no time dimension with compareDateRange found")
	}

	periods, err := resolvePeriods(td.CompareDateRange, now)
	if err != nil {
		return nil, nil, err
	}

	rowSets := make([][]executor.Row, len(periods))
	errs := make([]error, len(periods))

	var wg sync.WaitGroup
	for i, p := range periods {
		wg.Add(1)
		go func(i int, p period) {
			defer wg.Done()
			sub := q.Clone()
			subTD := sub.TimeDimensions[tdIndex]
			subTD.CompareDateRange = nil
			subTD.DateRange = []string{
				p.start.Format(time.RFC3339),
				p.end.Format(time.RFC3339),
			}
			sub.TimeDimensions[tdIndex] = subTD

			rows, err := run(&sub)
			if err != nil {
				errs[i] = err
				return
			}
			rowSets[i] = tagRows(rows, td.Dimension, string(td.Granularity), p)
		}(i, p)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}

	merged := make([]executor.Row, 0)
	for _, rs := range rowSets {
		merged = append(merged, rs...)
	}
	sortMerged(merged, td.Dimension)

	ann := &annotate.PeriodsAnnotation{}
	for _, p := range periods {
		ann.Ranges = append(ann.Ranges, [2]string{
			p.start.Format(time.RFC3339), p.end.Format(time.RFC3339),
		})
		ann.Labels = append(ann.Labels, p.label)
	}

	return merged, ann, nil
}

// findComparisonDimension returns the first time dimension that
// triggers the orchestrator (spec §4.8 step 2). Callers must have
// already confirmed q.HasComparison().
func findComparisonDimension(q query.SemanticQuery) (int, query.TimeDimension) {
	for i, td := range q.TimeDimensions {
		if td.IsComparison() {
			return i, td
		}
	}
	return -1, query.TimeDimension{}
}

func resolvePeriods(entries []any, now time.Time) ([]period, error) {
	periods := make([]period, 0, len(entries))
	for i, e := range entries {
		start, end, err := filter.ParseDateRange(e, now)
		if err != nil {
			return nil, err
		}
		periods = append(periods, period{
			index: i,
			label: periodLabel(e, start, end),
			start: start,
			end:   end,
		})
	}
	return periods, nil
}

// periodLabel prefers the caller's own keyword/string ("last 7 days") as
// the display label; an explicit [start, end] pair is rendered as its
// resolved bounds since there is no single source string to echo.
func periodLabel(entry any, start, end time.Time) string {
	if s, ok := entry.(string); ok {
		return s
	}
	return start.Format("2006-01-02") + " to " + end.Format("2006-01-02")
}

// tagRows attaches __period/__periodIndex/__periodDayIndex to each row
// (spec §4.9 step 4). A row whose time-dimension value cannot be parsed
// is left with __periodDayIndex unset rather than aborting the whole
// comparison — this mirrors the filter normalizer's "defensive
// log-and-skip" stance on unparseable dates (spec §4.3.1).
func tagRows(rows []executor.Row, dimension, granularity string, p period) []executor.Row {
	out := make([]executor.Row, len(rows))
	for i, r := range rows {
		tagged := make(executor.Row, len(r)+3)
		for k, v := range r {
			tagged[k] = v
		}
		tagged["__period"] = p.label
		tagged["__periodIndex"] = p.index
		if t, err := filter.ParseDateTime(r[dimension]); err == nil {
			tagged["__periodDayIndex"] = filter.GranularityDistance(p.start, t, granularity)
		}
		out[i] = tagged
	}
	return out
}

// sortMerged orders rows by (__periodIndex, time-dimension value
// ascending) per spec §4.9 step 5, using a stable sort so within-period
// ordering from the underlying query is otherwise preserved.
func sortMerged(rows []executor.Row, dimension string) {
	sort.SliceStable(rows, func(i, j int) bool {
		pi, _ := rows[i]["__periodIndex"].(int)
		pj, _ := rows[j]["__periodIndex"].(int)
		if pi != pj {
			return pi < pj
		}
		ti, erri := filter.ParseDateTime(rows[i][dimension])
		tj, errj := filter.ParseDateTime(rows[j][dimension])
		if erri != nil || errj != nil {
			return false
		}
		return ti.Before(tj)
	})
}
