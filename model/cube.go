// Package model holds the cube registry and metadata model: Cube,
// Dimension, Measure, CubeJoin and the Registry that holds them keyed by
// name (spec §3.1-§3.4, §4.1).
package model

// FieldType is the data type of a Dimension.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeTime    FieldType = "time"
	TypeBoolean FieldType = "boolean"
)

// AggregationType enumerates every measure aggregation kind, including
// the window-function family.
type AggregationType string

const (
	AggCount         AggregationType = "count"
	AggCountDistinct AggregationType = "countDistinct"
	AggSum           AggregationType = "sum"
	AggAvg           AggregationType = "avg"
	AggMin           AggregationType = "min"
	AggMax           AggregationType = "max"
	AggNumber        AggregationType = "number"
	AggRowNumber     AggregationType = "rowNumber"
	AggRank          AggregationType = "rank"
	AggDenseRank     AggregationType = "denseRank"
	AggLag           AggregationType = "lag"
	AggLead          AggregationType = "lead"
	AggFirstValue    AggregationType = "firstValue"
	AggLastValue     AggregationType = "lastValue"
	AggNTile         AggregationType = "ntile"
	AggMovingAvg     AggregationType = "movingAvg"
	AggMovingSum     AggregationType = "movingSum"
)

// WindowAggregations is the subset of AggregationType that renders as an
// OVER(...) window expression rather than a GROUP BY aggregate.
var WindowAggregations = map[AggregationType]bool{
	AggRowNumber: true, AggRank: true, AggDenseRank: true, AggLag: true,
	AggLead: true, AggFirstValue: true, AggLastValue: true, AggNTile: true,
	AggMovingAvg: true, AggMovingSum: true,
}

// IsWindow reports whether a is a window-family aggregation.
func (a AggregationType) IsWindow() bool { return WindowAggregations[a] }

// IsAggregating reports whether a participates in GROUP BY semantics
// (i.e. is neither a window function nor the pass-through "number" kind)
// per spec §4.5 step 8.
func (a AggregationType) IsAggregating() bool {
	return !a.IsWindow() && a != AggNumber
}

// FrameType is the window frame unit.
type FrameType string

const (
	FrameRows  FrameType = "rows"
	FrameRange FrameType = "range"
)

// FrameBoundKind distinguishes an unbounded/current-row frame bound from
// a numeric offset.
type FrameBoundKind string

const (
	BoundUnbounded FrameBoundKind = "unbounded"
	BoundCurrent   FrameBoundKind = "current"
	BoundOffset    FrameBoundKind = "offset"
)

// FrameBound is one edge of a window frame.
type FrameBound struct {
	Kind   FrameBoundKind
	Offset int // meaningful only when Kind == BoundOffset
}

// Frame is a window frame clause.
type Frame struct {
	Type  FrameType
	Start FrameBound
	End   FrameBound
}

// OrderField is one entry of a WindowConfig.OrderBy list.
type OrderField struct {
	Field     string // a dimension name local to the owning cube
	Direction string // "asc" or "desc"
}

// WindowConfig configures a window-family measure (spec §3.3).
type WindowConfig struct {
	PartitionBy  []string // dimension names local to the owning cube
	OrderBy      []OrderField
	Offset       int  // for lag/lead
	HasOffset    bool // distinguishes an explicit 0 offset from unset
	DefaultValue any  // for lag/lead
	NTile        int  // for ntile
	HasFrame     bool
	Frame        Frame
}

// Measure is an aggregation (or window expression) over one or more
// rows (spec §3.3).
type Measure struct {
	Name            string
	AggregationType AggregationType
	SQL             Expr
	Filters         []Expr // conditional-aggregation CASE WHEN predicates
	Window          *WindowConfig
	Title           string
	Format          string
	Meta            map[string]string
}

// Dimension is a categorical or time attribute (spec §3.2).
type Dimension struct {
	Name       string
	Type       FieldType
	SQL        Expr
	PrimaryKey bool
	Title      string
	Format     string
	Meta       map[string]string
}

// JoinColumn is one (source, target) column pair of a CubeJoin.On list.
// As, when set, overrides the default equality comparator to allow
// range/inequality joins (spec §3.4).
type JoinColumn struct {
	Source string
	Target string
	As     func(source, target string) string
}

// Relationship is the cardinality of a CubeJoin.
type Relationship string

const (
	RelBelongsTo     Relationship = "belongsTo"
	RelHasOne        Relationship = "hasOne"
	RelHasMany       Relationship = "hasMany"
	RelBelongsToMany Relationship = "belongsToMany"
)

// JoinType is the SQL join keyword a CubeJoin renders as.
type JoinType string

const (
	InnerJoin JoinType = "INNER JOIN"
	LeftJoin  JoinType = "LEFT JOIN"
)

// DefaultJoinType derives the SQL join type for a relationship per
// spec §4.4's table: belongsTo -> inner, everything else -> left.
func DefaultJoinType(r Relationship) JoinType {
	if r == RelBelongsTo {
		return InnerJoin
	}
	return LeftJoin
}

// CubeJoin declares a relationship from the containing cube to a target
// cube, referenced lazily by name so mutually-referencing cubes can be
// declared in either order (spec §3.4, §9 "Cyclic cube references").
type CubeJoin struct {
	TargetCube   string
	Relationship Relationship
	On           []JoinColumn
	Type         JoinType // zero value means "derive from Relationship"
}

// ResolvedJoinType returns j.Type if set, else the relationship default.
func (j CubeJoin) ResolvedJoinType() JoinType {
	if j.Type != "" {
		return j.Type
	}
	return DefaultJoinType(j.Relationship)
}

// Table names a FROM/JOIN target: either a bare table name or a
// parenthesized subquery, with an alias.
type Table struct {
	Name  string // e.g. "public.employees" — empty if SQL is a subquery
	SQL   string // when non-empty, a subquery body (without parens)
	Alias string
}

// BaseJoin is one entry of a BaseQuery's join list.
type BaseJoin struct {
	Table Table
	On    string
	Type  JoinType
}

// BaseQuery is what a Cube's BaseQueryFn produces: the FROM target, any
// joins the cube itself declares as part of its own base SQL (distinct
// from CubeJoin cross-cube joins resolved by the planner), and a WHERE
// fragment that must encode the tenant/security predicate.
type BaseQuery struct {
	From  Table
	Joins []BaseJoin
	Where string
}

// BaseQueryFn builds a cube's base query for a given QueryContext. The
// returned BaseQuery.Where must reference ctx.SecurityContext (spec §3.1
// invariant; enforced by convention, not syntactically).
type BaseQueryFn func(ctx *QueryContext) BaseQuery

// Cube is a named logical dataset (spec §3.1).
type Cube struct {
	Name        string
	Title       string
	Description string
	BaseQueryFn BaseQueryFn
	Dimensions  map[string]Dimension
	Measures    map[string]Measure
	Joins       map[string]CubeJoin
}

// Dimension looks up a local dimension by name.
func (c *Cube) Dimension(name string) (Dimension, bool) {
	d, ok := c.Dimensions[name]
	return d, ok
}

// Measure looks up a local measure by name.
func (c *Cube) Measure(name string) (Measure, bool) {
	m, ok := c.Measures[name]
	return m, ok
}

// FieldKind reports what kind of field "name" is on this cube, used by
// the validator (spec §4.2 rule 3/5).
type FieldKind int

const (
	FieldUnknown FieldKind = iota
	FieldDimension
	FieldMeasure
)

// Field reports the kind of a local field by name, and whether it
// exists at all.
func (c *Cube) Field(name string) FieldKind {
	if _, ok := c.Dimensions[name]; ok {
		return FieldDimension
	}
	if _, ok := c.Measures[name]; ok {
		return FieldMeasure
	}
	return FieldUnknown
}
