// Package filter recursively flattens a query.Filter tree into a single
// parameterized WHERE fragment, and normalizes date values and relative
// date-range keywords to concrete bounds (spec §4.3).
package filter

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cubegraph/semantic/dialect"
	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/query"
)

// Resolver maps a "Cube.field" reference to its SQL column expression
// and declared type, scoped to the cube that owns it. This is a narrow
// seam (rather than depending on the whole Registry) so filter can be
// tested without a planner or registry in play.
type Resolver interface {
	ResolveColumn(cube, field string) (expr string, ftype model.FieldType, err error)
}

// Normalizer builds a WHERE fragment from a filter tree.
type Normalizer struct {
	Dialect  dialect.Dialect
	Binder   *dialect.Binder
	Resolver Resolver
	// Now is the reference instant for relative date keywords. Tests set
	// this explicitly; zero means time.Now().UTC().
	Now time.Time
}

func (n *Normalizer) now() time.Time {
	if n.Now.IsZero() {
		return time.Now().UTC()
	}
	return n.Now
}

// Build combines a list of top-level filters (implicitly AND'd, as the
// SemanticQuery.Filters array is) into one WHERE fragment. An empty
// result means the filters contributed no predicate at all.
func (n *Normalizer) Build(filters []query.Filter) (string, error) {
	var parts []string
	for _, f := range filters {
		frag, err := n.buildOne(f)
		if err != nil {
			return "", err
		}
		if frag != "" {
			parts = append(parts, frag)
		}
	}
	return strings.Join(parts, " AND "), nil
}

func (n *Normalizer) buildOne(f query.Filter) (string, error) {
	if f.IsLogical() {
		return n.buildLogical(f)
	}
	return n.buildSimple(f)
}

func (n *Normalizer) buildLogical(f query.Filter) (string, error) {
	var children []query.Filter
	joiner := " AND "
	if len(f.And) > 0 {
		children = f.And
	} else {
		children = f.Or
		joiner = " OR "
	}

	var parts []string
	for _, c := range children {
		frag, err := n.buildOne(c)
		if err != nil {
			return "", err
		}
		if frag == "" {
			continue
		}
		if c.IsLogical() {
			frag = "(" + frag + ")"
		}
		parts = append(parts, frag)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, joiner), nil
}

func (n *Normalizer) buildSimple(f query.Filter) (string, error) {
	cubeName, field, ok := query.SplitQualified(f.Member)
	if !ok {
		return "", fmt.Errorf("filter: malformed member %q", f.Member)
	}
	col, ftype, err := n.Resolver.ResolveColumn(cubeName, field)
	if err != nil {
		return "", err
	}

	switch f.Operator {
	case query.OpEquals:
		return n.buildEqualsFamily(col, ftype, f.Values, false)
	case query.OpNotEquals:
		return n.buildEqualsFamily(col, ftype, f.Values, true)
	case query.OpContains, query.OpNotContains, query.OpStartsWith, query.OpEndsWith:
		return n.buildStringOp(col, f.Operator, f.Values)
	case query.OpGt, query.OpGte, query.OpLt, query.OpLte:
		return n.buildComparison(col, ftype, f.Operator, f.Values)
	case query.OpSet:
		return fmt.Sprintf("%s IS NOT NULL", col), nil
	case query.OpNotSet:
		return fmt.Sprintf("%s IS NULL", col), nil
	case query.OpInDateRange:
		return n.buildInDateRange(col, f.Values)
	case query.OpBeforeDate:
		return n.buildDateComparison(col, "<", f.Values)
	case query.OpAfterDate:
		return n.buildDateComparison(col, ">", f.Values)
	default:
		return "", fmt.Errorf("filter: unknown operator %q", f.Operator)
	}
}

// buildEqualsFamily implements spec §4.3's equals/notEquals rules: zero
// values collapses to a literal boolean, one value to = / !=, many to
// IN / NOT IN.
func (n *Normalizer) buildEqualsFamily(col string, ftype model.FieldType, values []any, negate bool) (string, error) {
	if len(values) == 0 {
		if negate {
			return "1=1", nil
		}
		return "1=0", nil
	}

	bound := n.bindValues(ftype, values)
	if len(bound) == 0 {
		// Every value was an unparseable time literal: log-and-skip per
		// spec §4.3.1, same as buildInDateRange — contribute no predicate
		// rather than failing the whole query.
		return "", nil
	}
	if len(bound) == 1 {
		op := "="
		if negate {
			op = "!="
		}
		return fmt.Sprintf("%s %s %s", col, op, bound[0]), nil
	}
	in := "IN"
	if negate {
		in = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", col, in, strings.Join(bound, ", ")), nil
}

func (n *Normalizer) bindValues(ftype model.FieldType, values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		bv := v
		if ftype == model.TypeTime {
			t, err := ParseDateTime(v)
			if err != nil {
				log.Printf("filter: skipping unparseable time value %v: %v", v, err)
				continue
			}
			bv = t
		}
		out = append(out, n.Binder.Bind(bv))
	}
	return out
}

func (n *Normalizer) buildStringOp(col string, op query.Operator, values []any) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("filter: operator %q requires a value", op)
	}
	placeholder := n.Binder.Bind(values[0])
	return n.Dialect.BuildStringCondition(col, op, placeholder)
}

func (n *Normalizer) buildComparison(col string, ftype model.FieldType, op query.Operator, values []any) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("filter: operator %q requires a value", op)
	}
	sqlOp := map[query.Operator]string{
		query.OpGt: ">", query.OpGte: ">=", query.OpLt: "<", query.OpLte: "<=",
	}[op]

	v := values[0]
	if ftype == model.TypeTime {
		t, err := ParseDateTime(v)
		if err != nil {
			log.Printf("filter: skipping unparseable time comparison value %v: %v", v, err)
			return "", nil
		}
		v = t
	}
	return fmt.Sprintf("%s %s %s", col, sqlOp, n.Binder.Bind(v)), nil
}

func (n *Normalizer) buildInDateRange(col string, values []any) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("filter: inDateRange requires a value")
	}
	start, end, err := ParseDateRange(values[0], n.now())
	if err != nil {
		log.Printf("filter: skipping unparseable date range %v: %v", values[0], err)
		return "", nil
	}
	startP := n.Binder.Bind(start)
	endP := n.Binder.Bind(end)
	return fmt.Sprintf("%s BETWEEN %s AND %s", col, startP, endP), nil
}

func (n *Normalizer) buildDateComparison(col, op string, values []any) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("filter: date comparison requires a value")
	}
	t, err := ParseDateTime(values[0])
	if err != nil {
		log.Printf("filter: skipping unparseable date %v: %v", values[0], err)
		return "", nil
	}
	return fmt.Sprintf("%s %s %s", col, op, n.Binder.Bind(t)), nil
}
