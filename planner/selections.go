package planner

import (
	"fmt"
	"strings"

	"github.com/cubegraph/semantic/dialect"
	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/query"
	"github.com/cubegraph/semantic/semerr"
)

// aggregateExpr wraps expr in the dialect's rendering of agg, or returns
// expr unwrapped for the "number" pass-through kind. Window-family
// aggregations are handled separately by buildWindowSelection since they
// need a WindowResolver, not just an expression string.
func aggregateExpr(d dialect.Dialect, agg model.AggregationType, expr string) (string, error) {
	switch agg {
	case model.AggCount:
		return d.BuildCount(expr), nil
	case model.AggCountDistinct:
		return d.BuildCountDistinct(expr), nil
	case model.AggSum, model.AggMovingSum:
		return d.BuildSum(expr), nil
	case model.AggAvg, model.AggMovingAvg:
		return d.BuildAvg(expr), nil
	case model.AggMin:
		return d.BuildMin(expr), nil
	case model.AggMax:
		return d.BuildMax(expr), nil
	case model.AggNumber:
		return expr, nil
	default:
		return "", fmt.Errorf("planner: %q is not a scalar/GROUP BY aggregation", agg)
	}
}

// wrapConditional renders a measure's optional filter list as a CASE
// WHEN f1 AND f2 ... THEN expr END guard (spec §3.3 "conditional
// aggregation"). Filters are cube-author-supplied Expr values, not
// caller-controlled values, so they are spliced as SQL text like any
// other cube-defined expression — no parameter binding applies here.
func wrapConditional(expr string, filters []model.Expr, ctx *model.QueryContext) string {
	if len(filters) == 0 {
		return expr
	}
	conds := make([]string, 0, len(filters))
	for _, f := range filters {
		conds = append(conds, f.Resolve(ctx))
	}
	return fmt.Sprintf("CASE WHEN %s THEN %s END", strings.Join(conds, " AND "), expr)
}

func windowSpecFrom(w *model.WindowConfig) dialect.WindowSpec {
	if w == nil {
		return dialect.WindowSpec{}
	}
	spec := dialect.WindowSpec{PartitionBy: w.PartitionBy}
	for _, o := range w.OrderBy {
		spec.OrderBy = append(spec.OrderBy, dialect.WindowOrder{Field: o.Field, Direction: o.Direction})
	}
	if w.HasFrame {
		spec.HasFrame = true
		spec.FrameType = string(w.Frame.Type)
		spec.FrameStart = dialect.WindowBound{Kind: string(w.Frame.Start.Kind), Offset: w.Frame.Start.Offset}
		spec.FrameEnd = dialect.WindowBound{Kind: string(w.Frame.End.Kind), Offset: w.Frame.End.Offset}
	}
	return spec
}

// windowFunctionName maps a window AggregationType to its SQL function
// name and whether it takes the measure's own SQL expression as an
// argument (rowNumber/rank/denseRank take none).
func windowFunctionName(agg model.AggregationType) (fn string, takesArg bool) {
	switch agg {
	case model.AggRowNumber:
		return "ROW_NUMBER", false
	case model.AggRank:
		return "RANK", false
	case model.AggDenseRank:
		return "DENSE_RANK", false
	case model.AggLag:
		return "LAG", true
	case model.AggLead:
		return "LEAD", true
	case model.AggFirstValue:
		return "FIRST_VALUE", true
	case model.AggLastValue:
		return "LAST_VALUE", true
	case model.AggNTile:
		return "NTILE", false
	case model.AggMovingAvg:
		return "AVG", true
	case model.AggMovingSum:
		return "SUM", true
	default:
		return "", false
	}
}

func buildWindowSelection(d dialect.Dialect, cube *model.Cube, measure model.Measure, expr string, ctx *model.QueryContext) (string, error) {
	caps := d.Capabilities()
	if !caps.SupportsWindowFunctions {
		return "", semerr.NewUnsupportedFeatureError(d.Name(), "window functions")
	}
	if measure.Window != nil && measure.Window.HasFrame && !caps.SupportsFrameClause {
		return "", semerr.NewUnsupportedFeatureError(d.Name(), "window frame clauses")
	}

	fn, takesArg := windowFunctionName(measure.AggregationType)
	if fn == "" {
		return "", fmt.Errorf("planner: unknown window aggregation %q", measure.AggregationType)
	}
	arg := ""
	if takesArg {
		arg = expr
	}
	if measure.AggregationType == model.AggNTile && measure.Window != nil {
		arg = fmt.Sprintf("%d", measure.Window.NTile)
	}
	if (measure.AggregationType == model.AggLag || measure.AggregationType == model.AggLead) && measure.Window != nil {
		offset := 1
		if measure.Window.HasOffset {
			offset = measure.Window.Offset
		}
		if measure.Window.DefaultValue != nil {
			arg = fmt.Sprintf("%s, %d, %v", expr, offset, measure.Window.DefaultValue)
		} else {
			arg = fmt.Sprintf("%s, %d", expr, offset)
		}
	}

	resolver := &localFieldResolver{cube: cube, ctx: ctx}
	return d.BuildWindow(fn, arg, windowSpecFrom(measure.Window), resolver)
}

// buildMeasureSelection resolves one "Cube.measure" reference to a
// Selection, either against the cube's own base table or, if the cube
// was pre-aggregated into a CTE, against that CTE's already-aggregated
// column (re-wrapped in the same aggregate so the outer GROUP BY can
// combine multiple CTE rows, spec §4.5 step 5).
func buildMeasureSelection(reg *model.Registry, r *cubeResolver, d dialect.Dialect, qualified string, ctes map[string]*CTE) (Selection, error) {
	cubeName, field, ok := query.SplitQualified(qualified)
	if !ok {
		return Selection{}, fmt.Errorf("planner: malformed measure reference %q", qualified)
	}
	cube := reg.Get(cubeName)
	if cube == nil {
		return Selection{}, fmt.Errorf("planner: unknown cube %q", cubeName)
	}
	measure, ok := cube.Measure(field)
	if !ok {
		return Selection{}, fmt.Errorf("planner: unknown measure %q on cube %q", field, cubeName)
	}
	ctx := r.contextFor(cube)

	if cte, isCTE := ctes[cubeName]; isCTE {
		col := d.QuoteIdent(qualified)
		ref := fmt.Sprintf("%s.%s", cte.Alias, col)
		outerExpr, err := aggregateExpr(d, measure.AggregationType, ref)
		if err != nil {
			return Selection{}, err
		}
		return Selection{Alias: qualified, Expr: outerExpr, Kind: SelectMeasure, IsAggregating: measure.AggregationType.IsAggregating()}, nil
	}

	expr := measure.SQL.Resolve(ctx)
	expr = wrapConditional(expr, measure.Filters, ctx)

	if measure.AggregationType.IsWindow() {
		windowExpr, err := buildWindowSelection(d, cube, measure, expr, ctx)
		if err != nil {
			return Selection{}, err
		}
		return Selection{Alias: qualified, Expr: windowExpr, Kind: SelectMeasure, IsWindow: true}, nil
	}

	outExpr, err := aggregateExpr(d, measure.AggregationType, expr)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Alias: qualified, Expr: outExpr, Kind: SelectMeasure, IsAggregating: measure.AggregationType.IsAggregating()}, nil
}

// buildDimensionSelection resolves one "Cube.dimension" reference,
// substituting the pre-aggregation CTE's carried-through column when the
// owning cube was folded into one.
func buildDimensionSelection(reg *model.Registry, r *cubeResolver, d dialect.Dialect, qualified string, ctes map[string]*CTE) (Selection, error) {
	cubeName, field, ok := query.SplitQualified(qualified)
	if !ok {
		return Selection{}, fmt.Errorf("planner: malformed dimension reference %q", qualified)
	}
	cube := reg.Get(cubeName)
	if cube == nil {
		return Selection{}, fmt.Errorf("planner: unknown cube %q", cubeName)
	}
	dim, ok := cube.Dimension(field)
	if !ok {
		return Selection{}, fmt.Errorf("planner: unknown dimension %q on cube %q", field, cubeName)
	}

	if cte, isCTE := ctes[cubeName]; isCTE {
		ref := fmt.Sprintf("%s.%s", cte.Alias, d.QuoteIdent(qualified))
		return Selection{Alias: qualified, Expr: ref, Kind: SelectDimension}, nil
	}

	ctx := r.contextFor(cube)
	return Selection{Alias: qualified, Expr: dim.SQL.Resolve(ctx), Kind: SelectDimension}, nil
}

// buildTimeDimensionSelection resolves a timeDimensions[] entry,
// truncating to its granularity when one is set (spec §4.5 step 7); an
// entry with no granularity selects the raw dimension value.
func buildTimeDimensionSelection(reg *model.Registry, r *cubeResolver, d dialect.Dialect, td query.TimeDimension, ctes map[string]*CTE) (Selection, error) {
	cubeName, field, ok := query.SplitQualified(td.Dimension)
	if !ok {
		return Selection{}, fmt.Errorf("planner: malformed time dimension reference %q", td.Dimension)
	}
	cube := reg.Get(cubeName)
	if cube == nil {
		return Selection{}, fmt.Errorf("planner: unknown cube %q", cubeName)
	}
	dim, ok := cube.Dimension(field)
	if !ok {
		return Selection{}, fmt.Errorf("planner: unknown dimension %q on cube %q", field, cubeName)
	}

	var raw string
	if cte, isCTE := ctes[cubeName]; isCTE {
		raw = fmt.Sprintf("%s.%s", cte.Alias, d.QuoteIdent(td.Dimension))
	} else {
		ctx := r.contextFor(cube)
		raw = dim.SQL.Resolve(ctx)
	}

	expr := raw
	if td.Granularity != "" {
		var err error
		expr, err = d.BuildTimeDimension(td.Granularity, raw)
		if err != nil {
			return Selection{}, err
		}
	}
	return Selection{Alias: td.Dimension, Expr: expr, Kind: SelectTimeDimension}, nil
}
