package planner

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/cubegraph/semantic/dialect"
	"github.com/cubegraph/semantic/filter"
	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/query"
)

// Plan builds a QueryPlan for q against reg, scoped to schema and
// secCtx, rendering SQL fragments in d's dialect (spec §4.4-§4.5). The
// caller is expected to have already run validator.Validate.
func Plan(reg *model.Registry, q *query.SemanticQuery, secCtx model.SecurityContext, schema string, d dialect.Dialect) (*QueryPlan, error) {
	used := q.UsedCubes()
	if len(used) == 0 {
		return nil, fmt.Errorf("planner: query touches no cube")
	}

	primary := selectPrimaryCube(q, used)
	binder := dialect.NewBinder(d)
	r := &cubeResolver{reg: reg, schema: schema, secCtx: secCtx, binder: binder, dialect: d}

	primaryCube := reg.Get(primary)
	if primaryCube == nil {
		return nil, fmt.Errorf("planner: unknown primary cube %q", primary)
	}
	ctx := r.contextFor(primaryCube)
	base := primaryCube.BaseQueryFn(ctx)
	primaryTable := flattenBaseQuery(base)

	needed := make([]string, 0, len(used))
	for _, c := range used {
		if c != primary {
			needed = append(needed, c)
		}
	}

	resolvedJoins, err := ResolveJoinPaths(reg, primary, needed)
	if err != nil {
		return nil, err
	}

	ctes, err := decideCTEs(reg, primary, resolvedJoins, q, r, d)
	if err != nil {
		return nil, err
	}
	// Populate r.ctes only now: decideCTEs itself resolves the CTE-ified
	// cube's own columns against its base table, not through the outer
	// alias substitution that ResolveColumn applies once ctes is set.
	r.ctes = ctes

	joinSteps, extraWheres, err := buildJoins(reg, primary, primaryTable, resolvedJoins, ctes, r)
	if err != nil {
		return nil, err
	}

	cteList := make([]CTE, 0, len(ctes))
	for _, name := range sortedCTECubeNames(ctes) {
		cteList = append(cteList, *ctes[name])
	}

	selections, err := buildAllSelections(reg, r, d, q, ctes)
	if err != nil {
		return nil, err
	}

	whereConds := make([]string, 0, len(extraWheres)+2)
	if base.Where != "" {
		whereConds = append(whereConds, base.Where)
	}
	whereConds = append(whereConds, extraWheres...)

	norm := &filter.Normalizer{Dialect: d, Binder: binder, Resolver: r}
	filterFrag, err := norm.Build(q.Filters)
	if err != nil {
		return nil, err
	}
	if filterFrag != "" {
		whereConds = append(whereConds, filterFrag)
	}

	dateRangeConds, err := buildImplicitDateRangeConditions(reg, r, d, binder, q, ctes)
	if err != nil {
		return nil, err
	}
	whereConds = append(whereConds, dateRangeConds...)

	groupBy := buildGroupBy(selections)
	orderBy := buildOrderBy(q.Order, selections)

	return &QueryPlan{
		PrimaryCube:     primary,
		BaseFrom:        primaryTable,
		BaseWhere:       base.Where,
		Joins:           joinSteps,
		CTEs:            cteList,
		Selections:      selections,
		WhereConditions: whereConds,
		GroupByExprs:    groupBy,
		OrderBy:         orderBy,
		Limit:           q.Limit,
		Offset:          q.Offset,
		Binder:          binder,
	}, nil
}

// selectPrimaryCube implements spec §4.5 step 2's primary-cube rule:
// the cube touched by measures, preferring dimensions when there are
// none, falling back to any used cube. Within whichever set applies we
// pick the alphabetically smallest name rather than literal array
// position — the spec's own determinism property test requires that
// permuting an equivalent query's measures array not change the chosen
// primary cube or CTE count, which "first mentioned" cannot guarantee
// when two different cubes are equally "first" under different
// orderings of the same set. This resolves spec §9's open question on
// primary-cube tie-breaking (see DESIGN.md).
func selectPrimaryCube(q *query.SemanticQuery, used []string) string {
	if cubes := uniqueCubes(q.Measures); len(cubes) > 0 {
		return alphabeticallyFirst(cubes)
	}
	if cubes := uniqueCubes(q.Dimensions); len(cubes) > 0 {
		return alphabeticallyFirst(cubes)
	}
	return alphabeticallyFirst(used)
}

func uniqueCubes(qualified []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, name := range qualified {
		cube, _, ok := query.SplitQualified(name)
		if !ok || seen[cube] {
			continue
		}
		seen[cube] = true
		out = append(out, cube)
	}
	return out
}

func alphabeticallyFirst(names []string) string {
	best := names[0]
	for _, n := range names[1:] {
		if n < best {
			best = n
		}
	}
	return best
}

func sortedCTECubeNames(ctes map[string]*CTE) []string {
	names := make([]string, 0, len(ctes))
	for name := range ctes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildAllSelections(reg *model.Registry, r *cubeResolver, d dialect.Dialect, q *query.SemanticQuery, ctes map[string]*CTE) ([]Selection, error) {
	var out []Selection
	for _, m := range q.Measures {
		sel, err := buildMeasureSelection(reg, r, d, m, ctes)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	for _, dm := range q.Dimensions {
		sel, err := buildDimensionSelection(reg, r, d, dm, ctes)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	for _, td := range q.TimeDimensions {
		sel, err := buildTimeDimensionSelection(reg, r, d, td, ctes)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

// buildImplicitDateRangeConditions adds a WHERE predicate for every
// non-comparison timeDimensions[] entry that set dateRange — the range
// restricts which rows participate, independent of whether the entry
// also requests a truncated SELECT column (spec §3.5/§4.3.1). Comparison
// entries (len(CompareDateRange) >= 2) are handled by the compare
// package, which expands them into per-period sub-queries each with a
// concrete dateRange before calling Plan.
func buildImplicitDateRangeConditions(reg *model.Registry, r *cubeResolver, d dialect.Dialect, binder *dialect.Binder, q *query.SemanticQuery, ctes map[string]*CTE) ([]string, error) {
	var conds []string
	for _, td := range q.TimeDimensions {
		if td.DateRange == nil || td.IsComparison() {
			continue
		}
		cubeName, field, ok := query.SplitQualified(td.Dimension)
		if !ok {
			continue
		}
		cube := reg.Get(cubeName)
		if cube == nil {
			continue
		}
		dim, ok := cube.Dimension(field)
		if !ok {
			continue
		}

		var raw string
		if cte, isCTE := ctes[cubeName]; isCTE {
			raw = fmt.Sprintf("%s.%s", cte.Alias, d.QuoteIdent(td.Dimension))
		} else {
			raw = dim.SQL.Resolve(r.contextFor(cube))
		}

		start, end, err := filter.ParseDateRange(td.DateRange, time.Now().UTC())
		if err != nil {
			log.Printf("planner: skipping unparseable dateRange %v for %s: %v", td.DateRange, td.Dimension, err)
			continue
		}
		conds = append(conds, fmt.Sprintf("%s BETWEEN %s AND %s", raw, binder.Bind(start), binder.Bind(end)))
	}
	return conds, nil
}

// buildGroupBy implements spec §4.5 step 8: GROUP BY every non-measure,
// non-window selection, but only when at least one selected measure
// actually aggregates (a query selecting only "number"-kind measures and
// dimensions is a flat per-row projection, not a grouped aggregate).
func buildGroupBy(selections []Selection) []string {
	anyAggregating := false
	for _, s := range selections {
		if s.Kind == SelectMeasure && s.IsAggregating {
			anyAggregating = true
			break
		}
	}
	if !anyAggregating {
		return nil
	}
	var groupBy []string
	for _, s := range selections {
		if s.IsWindow {
			continue
		}
		if s.Kind == SelectMeasure && s.IsAggregating {
			continue
		}
		groupBy = append(groupBy, s.Expr)
	}
	return groupBy
}

// buildOrderBy resolves ORDER BY entries against the already-built
// selection list, preserving the caller's field order (spec §4.5 step
// 9). An order field that was not itself selected is skipped: Cube.js
// semantic queries only order by projected fields.
func buildOrderBy(order []query.OrderEntry, selections []Selection) []OrderExpr {
	var out []OrderExpr
	for _, o := range order {
		for _, s := range selections {
			if s.Alias == o.Field {
				out = append(out, OrderExpr{Alias: s.Expr, Direction: o.Direction})
				break
			}
		}
	}
	return out
}
