// Package dialect renders dialect-specific SQL fragments (aggregates,
// string predicates, date truncation, window functions) behind one
// interface per spec §4.7, grounded on sqldef's per-engine adapter split
// (database/{postgres,mysql,sqlite3}) but repurposed from DDL generation
// to query-expression rendering.
package dialect

import "github.com/cubegraph/semantic/query"

// BooleanRepresentation describes how a dialect spells TRUE/FALSE.
type BooleanRepresentation string

const (
	BooleanNative BooleanRepresentation = "native" // TRUE / FALSE keywords
	BooleanInt    BooleanRepresentation = "int"    // 1 / 0
)

// Capabilities are the feature flags the builder consults before
// emitting dialect-specific constructs (spec §4.6 "Dialect capability
// check", §4.7).
type Capabilities struct {
	SupportsWindowFunctions bool
	SupportsFrameClause     bool
	SupportsCTE             bool
	DateType                string // native column type used for time dimensions
	BooleanRepresentation   BooleanRepresentation
}

// WindowResolver resolves a measure's own-cube field references (used by
// partitionBy/orderBy) to SQL expressions. The dialect package depends
// only on this narrow interface, not on model.Cube, to avoid a package
// cycle between dialect and model/planner.
type WindowResolver interface {
	ResolveField(name string) (string, error)
}

// Dialect is the per-database adapter (spec §4.7).
type Dialect interface {
	Name() string
	Capabilities() Capabilities

	BuildCount(expr string) string
	BuildCountDistinct(expr string) string
	BuildSum(expr string) string
	BuildAvg(expr string) string
	BuildMin(expr string) string
	BuildMax(expr string) string

	// BuildStringCondition renders a LIKE-family predicate. placeholder is
	// the already-numbered/positioned bind placeholder for the value
	// (e.g. "$3" or "?"); the raw value itself never reaches this
	// function — the caller binds it and passes only the placeholder,
	// which a dialect may wrap (e.g. in LOWER(...)) like the column,
	// preserving the "never interpolate a literal" invariant (spec §4.6
	// Parameterization).
	BuildStringCondition(columnExpr string, op query.Operator, placeholder string) (string, error)

	// BuildTimeDimension truncates expr to the given granularity.
	BuildTimeDimension(granularity query.Granularity, expr string) (string, error)

	// BuildWindow renders fn(arg) OVER (...). arg may be empty for
	// argument-less window functions (rowNumber, rank, denseRank).
	BuildWindow(fn string, arg string, cfg WindowSpec, resolver WindowResolver) (string, error)

	TrueLiteral() string
	FalseLiteral() string

	// Placeholder renders the Nth (1-based) bind placeholder in this
	// dialect's native style.
	Placeholder(n int) string

	// QuoteIdent quotes name as a column/table alias identifier in this
	// dialect's native style ("..." for Postgres/SQLite, `...` for MySQL
	// where ANSI_QUOTES cannot be assumed).
	QuoteIdent(name string) string
}

// WindowSpec is the dialect-facing view of model.WindowConfig; it is a
// separate type (rather than importing model directly) to keep dialect
// a leaf package with no dependency on the cube registry.
type WindowSpec struct {
	PartitionBy []string
	OrderBy     []WindowOrder
	HasFrame    bool
	FrameType   string // "rows" | "range"
	FrameStart  WindowBound
	FrameEnd    WindowBound
}

// WindowOrder is one ORDER BY entry inside an OVER(...) clause.
type WindowOrder struct {
	Field     string
	Direction string
}

// WindowBound is one frame edge.
type WindowBound struct {
	Kind   string // "unbounded" | "current" | "offset"
	Offset int
}

// New constructs the Dialect for an engine name ("postgres", "mysql",
// "sqlite"). Unknown names return (nil, false).
func New(engine string) (Dialect, bool) {
	switch engine {
	case "postgres":
		return &Postgres{}, true
	case "mysql":
		return &MySQL{}, true
	case "sqlite":
		return &SQLite{}, true
	default:
		return nil, false
	}
}
