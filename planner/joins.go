package planner

import (
	"fmt"
	"strings"

	"github.com/cubegraph/semantic/model"
)

// flattenBaseQuery collapses a cube's own BaseQuery (FROM plus any joins
// it declares against its own supporting tables, distinct from
// cross-cube CubeJoins resolved by the planner) into one model.Table the
// planner can reference by alias in an outer join, since JoinStep only
// carries a single Table per cross-cube hop.
func flattenBaseQuery(base model.BaseQuery) model.Table {
	if len(base.Joins) == 0 {
		return base.From
	}
	alias := tableAlias(base.From)
	var b strings.Builder
	writeTableRef(&b, base.From)
	for _, j := range base.Joins {
		b.WriteByte(' ')
		b.WriteString(string(j.Type))
		b.WriteByte(' ')
		writeTableRef(&b, j.Table)
		b.WriteString(" ON ")
		b.WriteString(j.On)
	}
	return model.Table{SQL: b.String(), Alias: alias}
}

func writeTableRef(b *strings.Builder, t model.Table) {
	if t.SQL != "" {
		fmt.Fprintf(b, "(%s) AS %s", t.SQL, tableAlias(t))
		return
	}
	b.WriteString(t.Name)
	if t.Alias != "" {
		b.WriteString(" AS ")
		b.WriteString(t.Alias)
	}
}

// buildJoins renders the resolved cross-cube join path into the ordered
// JoinStep list the sqlbuilder emits, substituting each pre-aggregated
// cube's CTE alias for its raw table, and returns the base-query WHERE
// fragments contributed by every non-CTE cube it joined in (a CTE's own
// base WHERE is folded into the CTE itself, see cte.go).
func buildJoins(reg *model.Registry, primary string, primaryTable model.Table, resolved []ResolvedJoin, ctes map[string]*CTE, r *cubeResolver) ([]JoinStep, []string, error) {
	aliasOf := map[string]string{primary: tableAlias(primaryTable)}
	var steps []JoinStep
	var extraWheres []string

	for _, j := range resolved {
		var table model.Table
		if cte, ok := ctes[j.ToCube]; ok {
			table = model.Table{Name: cte.Alias}
			aliasOf[j.ToCube] = cte.Alias
		} else {
			toCube := reg.Get(j.ToCube)
			if toCube == nil {
				return nil, nil, fmt.Errorf("planner: unknown cube %q", j.ToCube)
			}
			ctx := r.contextFor(toCube)
			base := toCube.BaseQueryFn(ctx)
			table = flattenBaseQuery(base)
			aliasOf[j.ToCube] = tableAlias(table)
			if base.Where != "" {
				extraWheres = append(extraWheres, base.Where)
			}
		}

		fromAlias, ok := aliasOf[j.FromCube]
		if !ok {
			return nil, nil, fmt.Errorf("planner: join from cube %q placed after its dependent %q", j.FromCube, j.ToCube)
		}

		var onParts []string
		for i, col := range j.Join.On {
			lhs := fmt.Sprintf("%s.%s", fromAlias, col.Source)
			var rhs string
			if cte, ok := ctes[j.ToCube]; ok {
				rhs = fmt.Sprintf("%s.%s", cte.Alias, cte.KeyAliases[i])
			} else {
				rhs = fmt.Sprintf("%s.%s", aliasOf[j.ToCube], col.Target)
			}
			if col.As != nil {
				onParts = append(onParts, col.As(lhs, rhs))
			} else {
				onParts = append(onParts, fmt.Sprintf("%s = %s", lhs, rhs))
			}
		}

		steps = append(steps, JoinStep{
			FromCube: j.FromCube,
			ToCube:   j.ToCube,
			Table:    table,
			On:       strings.Join(onParts, " AND "),
			Type:     j.Join.ResolvedJoinType(),
		})
	}
	return steps, extraWheres, nil
}
