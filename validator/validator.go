// Package validator checks a SemanticQuery against a cube Registry
// before planning (spec §4.2). Validation never short-circuits: every
// offending field is collected so the caller can report them all at
// once, mirroring the teacher's collect-don't-short-circuit style for
// plan-shape checks.
package validator

import (
	"fmt"

	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/query"
)

// Result is the outcome of validating one SemanticQuery.
type Result struct {
	Valid  bool
	Errors []string
}

// Validate checks q against reg and returns every violation found.
func Validate(reg *model.Registry, q *query.SemanticQuery) Result {
	var errs []string

	if q.IsEmpty() {
		errs = append(errs, "query must reference at least one measure, dimension, time dimension, or filter")
	}

	for _, m := range q.Measures {
		errs = append(errs, checkField(reg, m, model.FieldMeasure)...)
	}
	for _, d := range q.Dimensions {
		errs = append(errs, checkField(reg, d, model.FieldDimension)...)
	}
	for _, td := range q.TimeDimensions {
		errs = append(errs, checkTimeDimension(reg, td)...)
	}
	for _, f := range q.Filters {
		errs = append(errs, checkFilter(reg, f)...)
	}
	for _, o := range q.Order {
		errs = append(errs, checkOrderField(reg, o.Field)...)
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

func checkField(reg *model.Registry, qualified string, want model.FieldKind) []string {
	cubeName, field, ok := query.SplitQualified(qualified)
	if !ok {
		return []string{fmt.Sprintf("malformed member reference %q, expected \"Cube.field\"", qualified)}
	}
	cube := reg.Get(cubeName)
	if cube == nil {
		return []string{fmt.Sprintf("unknown cube %q (referenced by %q)", cubeName, qualified)}
	}
	kind := cube.Field(field)
	if kind == model.FieldUnknown {
		return []string{fmt.Sprintf("unknown field %q on cube %q", field, cubeName)}
	}
	if kind != want {
		return []string{fmt.Sprintf("%q is a %s, not a %s", qualified, kindName(kind), kindName(want))}
	}
	return nil
}

// checkOrderField accepts either a dimension or a measure, since ORDER
// BY may target either kind (spec §4.5 step 9).
func checkOrderField(reg *model.Registry, qualified string) []string {
	cubeName, field, ok := query.SplitQualified(qualified)
	if !ok {
		return []string{fmt.Sprintf("malformed order field %q, expected \"Cube.field\"", qualified)}
	}
	cube := reg.Get(cubeName)
	if cube == nil {
		return []string{fmt.Sprintf("unknown cube %q (referenced by order field %q)", cubeName, qualified)}
	}
	if kind := cube.Field(field); kind == model.FieldUnknown {
		return []string{fmt.Sprintf("unknown order field %q on cube %q", field, cubeName)}
	}
	return nil
}

func checkTimeDimension(reg *model.Registry, td query.TimeDimension) []string {
	cubeName, field, ok := query.SplitQualified(td.Dimension)
	if !ok {
		return []string{fmt.Sprintf("malformed time dimension reference %q, expected \"Cube.field\"", td.Dimension)}
	}
	cube := reg.Get(cubeName)
	if cube == nil {
		return []string{fmt.Sprintf("unknown cube %q (referenced by time dimension %q)", cubeName, td.Dimension)}
	}
	dim, ok := cube.Dimension(field)
	if !ok {
		return []string{fmt.Sprintf("unknown dimension %q on cube %q", field, cubeName)}
	}
	if dim.Type != model.TypeTime {
		return []string{fmt.Sprintf("%q is not a time dimension (type %q)", td.Dimension, dim.Type)}
	}
	return nil
}

func checkFilter(reg *model.Registry, f query.Filter) []string {
	if f.IsLogical() {
		var errs []string
		for _, c := range f.And {
			errs = append(errs, checkFilter(reg, c)...)
		}
		for _, c := range f.Or {
			errs = append(errs, checkFilter(reg, c)...)
		}
		return errs
	}

	cubeName, field, ok := query.SplitQualified(f.Member)
	if !ok {
		return []string{fmt.Sprintf("malformed filter member %q, expected \"Cube.field\"", f.Member)}
	}
	cube := reg.Get(cubeName)
	if cube == nil {
		return []string{fmt.Sprintf("unknown cube %q (referenced by filter on %q)", cubeName, f.Member)}
	}
	if kind := cube.Field(field); kind == model.FieldUnknown {
		return []string{fmt.Sprintf("unknown filter member %q on cube %q", field, cubeName)}
	}
	if !query.KnownOperators[f.Operator] {
		return []string{fmt.Sprintf("unknown filter operator %q on %q", f.Operator, f.Member)}
	}
	return nil
}

func kindName(k model.FieldKind) string {
	switch k {
	case model.FieldDimension:
		return "dimension"
	case model.FieldMeasure:
		return "measure"
	default:
		return "unknown field"
	}
}
