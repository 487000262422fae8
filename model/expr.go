package model

import "github.com/cubegraph/semantic/dialect"

// SecurityContext is the opaque, caller-supplied map threaded into every
// cube's BaseQueryFn (spec §3.7). The compiler itself never reads a
// specific key from it.
type SecurityContext map[string]any

// QueryContext is passed to every dynamic SQL-expression thunk
// (BaseQueryFn and Dimension/Measure Dynamic expressions; a JoinColumn.As
// callback receives only the source and target column strings). It
// carries exactly what those thunks are allowed to see: the schema name,
// the caller's security context, the cube the thunk belongs to, and the
// statement's parameter binder. The query being compiled is not part of
// it.
//
// Binder is the statement's shared parameter binder. A BaseQueryFn that
// needs to splice a SecurityContext value into its tenant predicate
// MUST do so via Binder.Bind(value), never by formatting the value
// directly into the returned SQL string — SecurityContext values are
// caller-controlled and are subject to the same "never interpolate a
// literal" invariant as filter values (spec §4.6/§8).
type QueryContext struct {
	Schema          string
	SecurityContext SecurityContext
	Cube            *Cube
	Binder          *dialect.Binder
}

// Expr is a "resolvable SQL expression": either a static SQL fragment or
// a function of QueryContext that produces one. This is the two-variant
// sum type spec.md's design notes describe for "Column | SqlFragment |
// (Context → Column | SqlFragment)". Every Dimension.SQL and Measure.SQL
// is one of these (Measure.Filters entries too); JoinColumn.As is a plain
// func(source, target string) string instead.
type Expr struct {
	static string
	fn     func(ctx *QueryContext) string
}

// Static builds an Expr from a fixed SQL fragment (typically a bare
// column reference, e.g. "employees.department_id").
func Static(sql string) Expr {
	return Expr{static: sql}
}

// Dynamic builds an Expr from a function of QueryContext, for
// expressions that depend on the security context or schema (e.g. a
// computed column or a tenant-scoped CASE expression).
func Dynamic(fn func(ctx *QueryContext) string) Expr {
	return Expr{fn: fn}
}

// Resolve dispatches the function form with ctx if present, otherwise
// returns the static fragment.
func (e Expr) Resolve(ctx *QueryContext) string {
	if e.fn != nil {
		return e.fn(ctx)
	}
	return e.static
}

// IsZero reports whether e was never assigned (neither Static nor
// Dynamic was used to construct it).
func (e Expr) IsZero() bool {
	return e.fn == nil && e.static == ""
}
