// Package sqlbuilder renders a planner.QueryPlan into the final
// parameterized SQL statement text plus its bound parameter list (spec
// §4.6), grounded on the parameterized-builder idiom sampled from the
// pack ($N placeholders threaded through a single args slice rather than
// ever formatted into the query string).
package sqlbuilder

import (
	"fmt"
	"strings"

	"github.com/cubegraph/semantic/dialect"
	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/planner"
)

// Statement is the final compiled SQL plus its bound parameters, in the
// order the dialect's placeholders reference them.
type Statement struct {
	SQL    string
	Params []any
}

// Build renders plan into a Statement using d's identifier/placeholder
// conventions. Every literal except LIMIT/OFFSET was already bound into
// plan.Binder by the planner and filter normalizer; Build appends the
// LIMIT/OFFSET values to a copy of those params and emits placeholders
// for them, so it never writes a literal into the SQL (spec §4.6
// invariant, tested directly in filter and again end-to-end in compiler).
func Build(plan *planner.QueryPlan, d dialect.Dialect) (*Statement, error) {
	if len(plan.Selections) == 0 {
		return nil, fmt.Errorf("sqlbuilder: plan has no selections")
	}

	var b strings.Builder

	if len(plan.CTEs) > 0 {
		if err := writeWithClause(&b, plan.CTEs, d); err != nil {
			return nil, err
		}
	}

	b.WriteString("SELECT ")
	writeSelectList(&b, plan.Selections, d)

	b.WriteString(" FROM ")
	writeTableRef(&b, plan.BaseFrom)

	for _, j := range plan.Joins {
		b.WriteByte(' ')
		b.WriteString(string(j.Type))
		b.WriteByte(' ')
		writeTableRef(&b, j.Table)
		b.WriteString(" ON ")
		b.WriteString(j.On)
	}

	if len(plan.WhereConditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(plan.WhereConditions, " AND "))
	}

	if len(plan.GroupByExprs) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(plan.GroupByExprs, ", "))
	}

	if len(plan.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		parts := make([]string, 0, len(plan.OrderBy))
		for _, o := range plan.OrderBy {
			dir := "ASC"
			if o.Direction == "desc" {
				dir = "DESC"
			}
			parts = append(parts, fmt.Sprintf("%s %s", o.Alias, dir))
		}
		b.WriteString(strings.Join(parts, ", "))
	}

	params := append([]any(nil), plan.Binder.Params()...)

	if plan.Limit != nil {
		b.WriteString(" LIMIT ")
		params = append(params, *plan.Limit)
		b.WriteString(d.Placeholder(len(params)))
	}
	if plan.Offset != nil {
		b.WriteString(" OFFSET ")
		params = append(params, *plan.Offset)
		b.WriteString(d.Placeholder(len(params)))
	}

	return &Statement{SQL: b.String(), Params: params}, nil
}

func writeSelectList(b *strings.Builder, selections []planner.Selection, d dialect.Dialect) {
	parts := make([]string, 0, len(selections))
	for _, s := range selections {
		parts = append(parts, fmt.Sprintf("%s AS %s", s.Expr, d.QuoteIdent(s.Alias)))
	}
	b.WriteString(strings.Join(parts, ", "))
}

func writeTableRef(b *strings.Builder, t model.Table) {
	if t.SQL != "" {
		fmt.Fprintf(b, "(%s)", t.SQL)
		if t.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(t.Alias)
		}
		return
	}
	b.WriteString(t.Name)
	if t.Alias != "" && t.Alias != t.Name {
		b.WriteString(" AS ")
		b.WriteString(t.Alias)
	}
}

// writeWithClause renders every pre-aggregation CTE as one entry of a
// WITH clause (spec §4.5 step 5 / §4.6).
func writeWithClause(b *strings.Builder, ctes []planner.CTE, d dialect.Dialect) error {
	b.WriteString("WITH ")
	parts := make([]string, 0, len(ctes))
	for _, c := range ctes {
		inner, err := buildCTEBody(c, d)
		if err != nil {
			return err
		}
		parts = append(parts, fmt.Sprintf("%s AS (%s)", c.Alias, inner))
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteString(" ")
	return nil
}

func buildCTEBody(c planner.CTE, d dialect.Dialect) (string, error) {
	var b strings.Builder
	b.WriteString("SELECT ")

	numKeys := len(c.KeyAliases)
	parts := make([]string, 0, len(c.Selections))
	for i, s := range c.Selections {
		if i < numKeys {
			// Join-key columns use a bare alias: they're synthetic
			// identifiers (__join_key_N), never a caller-facing
			// "Cube.field" name that requires quoting.
			parts = append(parts, fmt.Sprintf("%s AS %s", s.Expr, s.Alias))
		} else {
			parts = append(parts, fmt.Sprintf("%s AS %s", s.Expr, d.QuoteIdent(s.Alias)))
		}
	}
	b.WriteString(strings.Join(parts, ", "))

	b.WriteString(" FROM ")
	writeTableRef(&b, c.From)
	for _, j := range c.Joins {
		b.WriteByte(' ')
		b.WriteString(string(j.Type))
		b.WriteByte(' ')
		writeTableRef(&b, j.Table)
		b.WriteString(" ON ")
		b.WriteString(j.On)
	}

	if c.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(c.Where)
	}

	if len(c.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(c.GroupBy, ", "))
	}

	return b.String(), nil
}
