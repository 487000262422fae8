// Package query defines the wire-level SemanticQuery request shape
// (Cube.js-compatible JSON) and its Filter sub-tree. It has no knowledge
// of the cube registry or SQL generation; those live in model, planner
// and sqlbuilder.
package query

import "strings"

// Operator enumerates the filter comparison operators a Filter may use.
type Operator string

const (
	OpEquals       Operator = "equals"
	OpNotEquals    Operator = "notEquals"
	OpContains     Operator = "contains"
	OpNotContains  Operator = "notContains"
	OpStartsWith   Operator = "startsWith"
	OpEndsWith     Operator = "endsWith"
	OpGt           Operator = "gt"
	OpGte          Operator = "gte"
	OpLt           Operator = "lt"
	OpLte          Operator = "lte"
	OpSet          Operator = "set"
	OpNotSet       Operator = "notSet"
	OpInDateRange  Operator = "inDateRange"
	OpBeforeDate   Operator = "beforeDate"
	OpAfterDate    Operator = "afterDate"
)

// KnownOperators is used by the validator to flag unrecognized operators.
var KnownOperators = map[Operator]bool{
	OpEquals: true, OpNotEquals: true, OpContains: true, OpNotContains: true,
	OpStartsWith: true, OpEndsWith: true, OpGt: true, OpGte: true, OpLt: true,
	OpLte: true, OpSet: true, OpNotSet: true, OpInDateRange: true,
	OpBeforeDate: true, OpAfterDate: true,
}

// Direction is an ORDER BY direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Granularity is a time-truncation unit.
type Granularity string

const (
	GranYear    Granularity = "year"
	GranQuarter Granularity = "quarter"
	GranMonth   Granularity = "month"
	GranWeek    Granularity = "week"
	GranDay     Granularity = "day"
	GranHour    Granularity = "hour"
	GranMinute  Granularity = "minute"
	GranSecond  Granularity = "second"
)

// Filter is the recursive sum type from spec §3.6: either a simple leaf
// predicate (Member/Operator/Values set) or a logical node (And or Or
// set, mutually exclusive, each holding child Filters).
type Filter struct {
	Member   string   `json:"member,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Values   []any    `json:"values,omitempty"`

	And []Filter `json:"and,omitempty"`
	Or  []Filter `json:"or,omitempty"`
}

// IsLogical reports whether f is an And/Or node rather than a leaf.
func (f Filter) IsLogical() bool {
	return len(f.And) > 0 || len(f.Or) > 0
}

// TimeDimension is one entry of the timeDimensions array.
type TimeDimension struct {
	Dimension        string      `json:"dimension"`
	Granularity      Granularity `json:"granularity,omitempty"`
	DateRange        any         `json:"dateRange,omitempty"`
	CompareDateRange []any       `json:"compareDateRange,omitempty"`
}

// IsComparison reports whether this time dimension triggers the
// comparison orchestrator (spec §4.8 step 2: >= 2 entries).
func (t TimeDimension) IsComparison() bool {
	return len(t.CompareDateRange) >= 2
}

// OrderEntry is one (field, direction) pair. SemanticQuery.Order is a
// slice, not a map, specifically to preserve the caller's field order —
// spec §4.5 step 9 builds ORDER BY "preserving map iteration order",
// which in a JSON object means insertion order; a Go map has no such
// guarantee, so we carry an ordered slice instead and parse it off the
// wire preserving JSON object key order (see unmarshal.go).
type OrderEntry struct {
	Field     string
	Direction Direction
}

// SemanticQuery is the compiler's input (spec §3.5 / §6.2).
type SemanticQuery struct {
	Measures       []string        `json:"measures,omitempty"`
	Dimensions     []string        `json:"dimensions,omitempty"`
	TimeDimensions []TimeDimension `json:"timeDimensions,omitempty"`
	Filters        []Filter        `json:"filters,omitempty"`
	Order          []OrderEntry    `json:"order,omitempty"`
	Limit          *int            `json:"limit,omitempty"`
	Offset         *int            `json:"offset,omitempty"`
}

// IsEmpty reports whether the query references no cube at all (spec
// §3.5 invariant: a query must use at least one of these four).
func (q SemanticQuery) IsEmpty() bool {
	return len(q.Measures) == 0 && len(q.Dimensions) == 0 &&
		len(q.TimeDimensions) == 0 && len(q.Filters) == 0
}

// HasComparison reports whether any time dimension requests a period
// comparison (spec §4.8 step 2).
func (q SemanticQuery) HasComparison() bool {
	for _, td := range q.TimeDimensions {
		if td.IsComparison() {
			return true
		}
	}
	return false
}

// SplitQualified splits a "Cube.field" qualified name into its two
// parts. ok is false unless the name contains exactly one '.' and both
// sides are non-empty (spec §4.2 rule 2).
func SplitQualified(name string) (cube, field string, ok bool) {
	idx := strings.Index(name, ".")
	if idx <= 0 || idx == len(name)-1 || strings.Count(name, ".") != 1 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

// UsedCubes returns the set of cube names this query touches through
// measures, dimensions, time dimensions, or filters (spec §4.5 step 1),
// in first-seen order for deterministic downstream tie-breaking.
func (q SemanticQuery) UsedCubes() []string {
	seen := make(map[string]bool)
	var order []string
	add := func(qualified string) {
		cube, _, ok := SplitQualified(qualified)
		if !ok {
			return
		}
		if !seen[cube] {
			seen[cube] = true
			order = append(order, cube)
		}
	}
	for _, m := range q.Measures {
		add(m)
	}
	for _, d := range q.Dimensions {
		add(d)
	}
	for _, td := range q.TimeDimensions {
		add(td.Dimension)
	}
	var walk func(f Filter)
	walk = func(f Filter) {
		if f.IsLogical() {
			for _, c := range f.And {
				walk(c)
			}
			for _, c := range f.Or {
				walk(c)
			}
			return
		}
		add(f.Member)
	}
	for _, f := range q.Filters {
		walk(f)
	}
	return order
}

// FilterMembers returns every qualified "Cube.field" reference appearing
// as a leaf filter's Member, across the whole And/Or tree, in first-seen
// order with duplicates removed.
func (q SemanticQuery) FilterMembers() []string {
	seen := make(map[string]bool)
	var order []string
	var walk func(f Filter)
	walk = func(f Filter) {
		if f.IsLogical() {
			for _, c := range f.And {
				walk(c)
			}
			for _, c := range f.Or {
				walk(c)
			}
			return
		}
		if f.Member != "" && !seen[f.Member] {
			seen[f.Member] = true
			order = append(order, f.Member)
		}
	}
	for _, f := range q.Filters {
		walk(f)
	}
	return order
}

// Clone returns a deep-enough copy of q suitable for the comparison
// orchestrator to mutate a single time dimension's DateRange without
// disturbing the original query (spec §4.9 step 2).
func (q SemanticQuery) Clone() SemanticQuery {
	clone := q
	clone.Measures = append([]string(nil), q.Measures...)
	clone.Dimensions = append([]string(nil), q.Dimensions...)
	clone.TimeDimensions = append([]TimeDimension(nil), q.TimeDimensions...)
	clone.Filters = append([]Filter(nil), q.Filters...)
	clone.Order = append([]OrderEntry(nil), q.Order...)
	return clone
}
