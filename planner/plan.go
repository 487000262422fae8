// Package planner turns a validated SemanticQuery into a QueryPlan: a
// primary cube, a deterministic join order, pre-aggregation CTEs where
// fanout would double-count a measure, and the selection/grouping/
// ordering lists the sqlbuilder renders verbatim (spec §4.4, §4.5).
package planner

import (
	"github.com/cubegraph/semantic/dialect"
	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/query"
)

// SelectionKind distinguishes what a Selection came from, so the
// sqlbuilder and annotator can treat GROUP BY membership and output
// typing differently per kind.
type SelectionKind int

const (
	SelectMeasure SelectionKind = iota
	SelectDimension
	SelectTimeDimension
)

// Selection is one SELECT list entry.
type Selection struct {
	Alias         string // qualified name, e.g. "Employees.count"
	Expr          string // fully resolved SQL expression (or CTE column ref)
	Kind          SelectionKind
	IsAggregating bool // true for non-window, non-"number" measures
	IsWindow      bool
}

// OrderExpr is one ORDER BY entry, resolved to the same expression text
// used in the SELECT list (or its alias, at the builder's discretion).
type OrderExpr struct {
	Alias     string
	Direction query.Direction
}

// CTE is a single pre-aggregation common table expression (spec §4.5
// step 5): it aggregates a hasMany/belongsToMany cube's measures down to
// one row per join key before the outer query joins it in, preventing
// row fanout from inflating the outer aggregate.
type CTE struct {
	Alias string // e.g. "cte_Productivity"
	Cube  string
	From  model.Table
	Joins []model.BaseJoin // the cube's own internal joins, carried through unchanged
	Where string

	// JoinOn mirrors the originating CubeJoin.On list: Source is the
	// column name on the primary/outer side, Target is this cube's own
	// column. KeyAliases[i] is the SELECT alias the CTE exposes for
	// JoinOn[i].Target, which the outer join condition references.
	JoinOn     []model.JoinColumn
	KeyAliases []string

	// Selections holds the key columns (first, aliased via KeyAliases),
	// then any of the cube's own dimensions also requested outside, then
	// its aggregated measures, then a passthrough column for each filter
	// member on this cube not already selected — in that order.
	Selections []Selection
	GroupBy    []string // raw exprs: key columns plus carried-through dimension exprs
}

// JoinStep is one resolved cross-cube join to render in the outer
// query's FROM/JOIN clause list, in application order.
type JoinStep struct {
	FromCube string
	ToCube   string
	Table    model.Table // the table/subquery to join — either the cube's own base table, or a CTE alias
	On       string
	Type     model.JoinType
}

// QueryPlan is the planner's complete output, consumed by sqlbuilder.
type QueryPlan struct {
	PrimaryCube string
	BaseFrom    model.Table
	BaseWhere   string // primary cube's own BaseQuery.Where fragment
	Joins       []JoinStep
	CTEs        []CTE

	Selections      []Selection
	WhereConditions []string // filter fragments, ANDed together by the builder
	GroupByExprs    []string
	OrderBy         []OrderExpr
	Limit           *int
	Offset          *int

	// Binder accumulated every bound value from the cubes' BaseQueryFn
	// calls, filter normalization and implicit dateRange predicates. The
	// sqlbuilder copies its params and numbers the LIMIT/OFFSET
	// placeholders after them; it never binds into Binder itself.
	Binder *dialect.Binder
}
