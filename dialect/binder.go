package dialect

// Binder accumulates bound parameter values for a single statement and
// hands back the dialect-correct placeholder text for each one. Every
// literal from the input query — filter values, date bounds, limit,
// offset — passes through a Binder rather than ever being concatenated
// into SQL text (spec §4.6 Parameterization). The filter normalizer and
// the SQL builder share one Binder per statement so placeholders number
// consistently end to end.
type Binder struct {
	dialect Dialect
	params  []any
}

// NewBinder creates a Binder for the given dialect.
func NewBinder(d Dialect) *Binder {
	return &Binder{dialect: d}
}

// Bind records v and returns the placeholder text to splice into SQL.
func (b *Binder) Bind(v any) string {
	b.params = append(b.params, v)
	return b.dialect.Placeholder(len(b.params))
}

// Params returns the bound values in bind order.
func (b *Binder) Params() []any {
	return b.params
}
