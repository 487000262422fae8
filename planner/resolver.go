package planner

import (
	"fmt"

	"github.com/cubegraph/semantic/dialect"
	"github.com/cubegraph/semantic/model"
)

// cubeResolver resolves "Cube.field" references against one Registry
// and a fixed (schema, securityContext) pair, building a fresh
// per-cube model.QueryContext for every lookup since a dimension or
// measure's Expr may be a function of the owning cube. Binder is set
// once Plan has created the statement's shared binder, so every
// BaseQueryFn call can parameterize security-context values instead of
// formatting them into SQL text.
type cubeResolver struct {
	reg     *model.Registry
	schema  string
	secCtx  model.SecurityContext
	binder  *dialect.Binder
	dialect dialect.Dialect
	// ctes is populated once decideCTEs has run (Plan sets it before
	// building the filter/date-range WHERE fragments); nil/empty before
	// that point means no cube has been pre-aggregated yet.
	ctes map[string]*CTE
}

func (r *cubeResolver) contextFor(cube *model.Cube) *model.QueryContext {
	return &model.QueryContext{Schema: r.schema, SecurityContext: r.secCtx, Cube: cube, Binder: r.binder}
}

// ResolveColumn implements filter.Resolver: it resolves a qualified
// dimension or measure reference to its raw SQL expression and declared
// type, for use in WHERE predicates. When the owning cube was folded
// into a pre-aggregation CTE, the reference resolves against that CTE's
// already-projected column instead of the cube's own base-table
// expression — mirroring buildMeasureSelection/buildDimensionSelection's
// substitution so a filter on a CTE-ified cube's field produces a valid
// reference to the outer join rather than to a table that was never
// joined in.
func (r *cubeResolver) ResolveColumn(cubeName, field string) (string, model.FieldType, error) {
	cube := r.reg.Get(cubeName)
	if cube == nil {
		return "", "", fmt.Errorf("planner: unknown cube %q", cubeName)
	}

	if cte, isCTE := r.ctes[cubeName]; isCTE {
		qualified := cubeName + "." + field
		if d, ok := cube.Dimension(field); ok {
			return cteColumnRef(r.dialect, cte, qualified), d.Type, nil
		}
		if _, ok := cube.Measure(field); ok {
			return cteColumnRef(r.dialect, cte, qualified), model.TypeNumber, nil
		}
		return "", "", fmt.Errorf("planner: unknown field %q on cube %q", field, cubeName)
	}

	ctx := r.contextFor(cube)
	if d, ok := cube.Dimension(field); ok {
		return d.SQL.Resolve(ctx), d.Type, nil
	}
	if m, ok := cube.Measure(field); ok {
		return m.SQL.Resolve(ctx), model.TypeNumber, nil
	}
	return "", "", fmt.Errorf("planner: unknown field %q on cube %q", field, cubeName)
}

// cteColumnRef renders a reference to qualified's column as projected by
// cte, matching the "alias.quoted-qualified-name" convention used
// throughout selections.go.
func cteColumnRef(d dialect.Dialect, cte *CTE, qualified string) string {
	return fmt.Sprintf("%s.%s", cte.Alias, d.QuoteIdent(qualified))
}

// localFieldResolver implements dialect.WindowResolver, resolving a
// window measure's own-cube partitionBy/orderBy field names (which are
// bare dimension names local to the owning cube, not qualified
// references) to SQL expressions.
type localFieldResolver struct {
	cube *model.Cube
	ctx  *model.QueryContext
}

func (r *localFieldResolver) ResolveField(name string) (string, error) {
	if d, ok := r.cube.Dimension(name); ok {
		return d.SQL.Resolve(r.ctx), nil
	}
	if m, ok := r.cube.Measure(name); ok {
		return m.SQL.Resolve(r.ctx), nil
	}
	return "", fmt.Errorf("planner: unknown window field %q on cube %q", name, r.cube.Name)
}
