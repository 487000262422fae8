package planner

import (
	"fmt"

	"github.com/cubegraph/semantic/dialect"
	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/query"
)

// decideCTEs implements spec §4.5 step 5: a cube reached from the
// primary by a single hasMany/belongsToMany hop, contributing at least
// one requested measure, is pre-aggregated into a CTE before the outer
// join so that cube's own one-to-many rows can't fan out and inflate a
// sibling measure computed at the primary cube's grain.
func decideCTEs(reg *model.Registry, primary string, joins []ResolvedJoin, q *query.SemanticQuery, r *cubeResolver, d dialect.Dialect) (map[string]*CTE, error) {
	measureCubes := map[string]bool{}
	for _, m := range q.Measures {
		cubeName, _, ok := query.SplitQualified(m)
		if ok {
			measureCubes[cubeName] = true
		}
	}

	ctes := map[string]*CTE{}
	for _, j := range joins {
		if j.FromCube != primary {
			continue
		}
		if j.Join.Relationship != model.RelHasMany && j.Join.Relationship != model.RelBelongsToMany {
			continue
		}
		if !measureCubes[j.ToCube] {
			continue
		}
		cte, err := buildCTE(reg, j, q, r, d)
		if err != nil {
			return nil, err
		}
		ctes[j.ToCube] = cte
	}
	return ctes, nil
}

func buildCTE(reg *model.Registry, j ResolvedJoin, q *query.SemanticQuery, r *cubeResolver, d dialect.Dialect) (*CTE, error) {
	cubeName := j.ToCube
	cube := reg.Get(cubeName)
	ctx := r.contextFor(cube)
	base := cube.BaseQueryFn(ctx)
	fromAlias := tableAlias(base.From)

	cte := &CTE{
		Alias: "cte_" + cubeName,
		Cube:  cubeName,
		From:  base.From,
		Joins: base.Joins,
		Where: base.Where,
		JoinOn: j.Join.On,
	}

	for i, col := range j.Join.On {
		keyAlias := fmt.Sprintf("__join_key_%d", i)
		expr := fmt.Sprintf("%s.%s", fromAlias, col.Target)
		cte.KeyAliases = append(cte.KeyAliases, keyAlias)
		cte.Selections = append(cte.Selections, Selection{Alias: keyAlias, Expr: expr, Kind: SelectDimension})
		cte.GroupBy = append(cte.GroupBy, expr)
	}

	for _, dName := range q.Dimensions {
		cn, field, ok := query.SplitQualified(dName)
		if !ok || cn != cubeName {
			continue
		}
		dim, ok := cube.Dimension(field)
		if !ok {
			return nil, fmt.Errorf("planner: unknown dimension %q on cube %q", field, cubeName)
		}
		expr := dim.SQL.Resolve(ctx)
		cte.Selections = append(cte.Selections, Selection{Alias: dName, Expr: expr, Kind: SelectDimension})
		cte.GroupBy = append(cte.GroupBy, expr)
	}

	for _, mName := range q.Measures {
		cn, field, ok := query.SplitQualified(mName)
		if !ok || cn != cubeName {
			continue
		}
		measure, ok := cube.Measure(field)
		if !ok {
			return nil, fmt.Errorf("planner: unknown measure %q on cube %q", field, cubeName)
		}
		if measure.AggregationType.IsWindow() {
			return nil, fmt.Errorf("planner: window measure %q cannot be pre-aggregated into a CTE", mName)
		}
		expr := wrapConditional(measure.SQL.Resolve(ctx), measure.Filters, ctx)
		aggExpr, err := aggregateExpr(d, measure.AggregationType, expr)
		if err != nil {
			return nil, err
		}
		cte.Selections = append(cte.Selections, Selection{
			Alias: mName, Expr: aggExpr, Kind: SelectMeasure,
			IsAggregating: measure.AggregationType.IsAggregating(),
		})
	}

	if err := addFilteredFields(cte, cube, cubeName, q, d, ctx); err != nil {
		return nil, err
	}

	return cte, nil
}

// addFilteredFields extends cte with a passthrough column for every
// filter Member that targets cubeName but was not already pulled in by
// the requested dimensions/measures loops above. Without this, a filter
// on a hasMany/belongsToMany cube folded into a CTE would reference an
// outer column the CTE never projects — the outer WHERE substitutes
// cte.Alias for cubeName (see cubeResolver.ResolveColumn), so the column
// has to exist inside the CTE for that substitution to produce valid
// SQL. A filtered dimension is added as a GROUP BY passthrough column; a
// filtered measure is added pre-aggregated, same as a requested measure.
func addFilteredFields(cte *CTE, cube *model.Cube, cubeName string, q *query.SemanticQuery, d dialect.Dialect, ctx *model.QueryContext) error {
	already := make(map[string]bool, len(cte.Selections))
	for _, s := range cte.Selections {
		already[s.Alias] = true
	}
	for _, member := range q.FilterMembers() {
		cn, field, ok := query.SplitQualified(member)
		if !ok || cn != cubeName || already[member] {
			continue
		}
		if dim, ok := cube.Dimension(field); ok {
			expr := dim.SQL.Resolve(ctx)
			cte.Selections = append(cte.Selections, Selection{Alias: member, Expr: expr, Kind: SelectDimension})
			cte.GroupBy = append(cte.GroupBy, expr)
			already[member] = true
			continue
		}
		if measure, ok := cube.Measure(field); ok {
			if measure.AggregationType.IsWindow() {
				return fmt.Errorf("planner: window measure %q cannot be pre-aggregated into a CTE", member)
			}
			expr := wrapConditional(measure.SQL.Resolve(ctx), measure.Filters, ctx)
			aggExpr, err := aggregateExpr(d, measure.AggregationType, expr)
			if err != nil {
				return err
			}
			cte.Selections = append(cte.Selections, Selection{
				Alias: member, Expr: aggExpr, Kind: SelectMeasure,
				IsAggregating: measure.AggregationType.IsAggregating(),
			})
			already[member] = true
		}
	}
	return nil
}

func tableAlias(t model.Table) string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}
