package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubegraph/semantic/query"
)

func TestNewUnknownEngine(t *testing.T) {
	_, ok := New("oracle")
	assert.False(t, ok)
}

func TestAggregateRendering(t *testing.T) {
	for _, engine := range []string{"postgres", "mysql", "sqlite"} {
		d, ok := New(engine)
		require.True(t, ok, engine)
		assert.Equal(t, "COUNT(e.id)", d.BuildCount("e.id"))
		assert.Equal(t, "COUNT(DISTINCT e.id)", d.BuildCountDistinct("e.id"))
		assert.Equal(t, "SUM(e.amount)", d.BuildSum("e.amount"))
		assert.Equal(t, "AVG(e.amount)", d.BuildAvg("e.amount"))
	}
}

func TestStringConditionDialectDifferences(t *testing.T) {
	pg, _ := New("postgres")
	cond, err := pg.BuildStringCondition("e.name", query.OpContains, "$1")
	require.NoError(t, err)
	assert.Equal(t, "e.name ILIKE '%' || $1 || '%'", cond)

	my, _ := New("mysql")
	cond, err = my.BuildStringCondition("e.name", query.OpContains, "?")
	require.NoError(t, err)
	assert.Contains(t, cond, "LOWER(e.name)")

	lite, _ := New("sqlite")
	cond, err = lite.BuildStringCondition("e.name", query.OpContains, "?")
	require.NoError(t, err)
	assert.Contains(t, cond, "COLLATE NOCASE")
}

func TestStringConditionUnsupportedOperator(t *testing.T) {
	pg, _ := New("postgres")
	_, err := pg.BuildStringCondition("e.name", query.OpEquals, "$1")
	assert.Error(t, err)
}

func TestTimeDimensionTruncation(t *testing.T) {
	pg, _ := New("postgres")
	expr, err := pg.BuildTimeDimension(query.GranMonth, "p.occurred_at")
	require.NoError(t, err)
	assert.Equal(t, "DATE_TRUNC('month', p.occurred_at)", expr)

	_, err = pg.BuildTimeDimension("decade", "p.occurred_at")
	assert.Error(t, err)

	my, _ := New("mysql")
	expr, err = my.BuildTimeDimension(query.GranDay, "p.occurred_at")
	require.NoError(t, err)
	assert.Equal(t, "DATE(p.occurred_at)", expr)

	lite, _ := New("sqlite")
	expr, err = lite.BuildTimeDimension(query.GranSecond, "p.occurred_at")
	require.NoError(t, err)
	assert.Contains(t, expr, "strftime")
}

// TestQuarterTruncationAllDialects guards against the quarter unit
// silently aliasing to month truncation: every dialect must render an
// expression that depends on the source month, not a fixed "first of
// this month" format string.
func TestQuarterTruncationAllDialects(t *testing.T) {
	pg, _ := New("postgres")
	expr, err := pg.BuildTimeDimension(query.GranQuarter, "p.occurred_at")
	require.NoError(t, err)
	assert.Equal(t, "DATE_TRUNC('quarter', p.occurred_at)", expr)

	my, _ := New("mysql")
	expr, err = my.BuildTimeDimension(query.GranQuarter, "p.occurred_at")
	require.NoError(t, err)
	assert.Contains(t, expr, "MONTH(p.occurred_at)")
	assert.Contains(t, expr, "% 3 MONTH")

	lite, _ := New("sqlite")
	expr, err = lite.BuildTimeDimension(query.GranQuarter, "p.occurred_at")
	require.NoError(t, err)
	assert.NotEqual(t, "strftime('%Y-%m-01T00:00:00', p.occurred_at)", expr)
	assert.Contains(t, expr, "strftime('%m', p.occurred_at)")
	assert.Contains(t, expr, "% 3")
}

// TestWeekTruncationAllDialects guards against the week unit silently
// aliasing to day truncation: every dialect must render an expression
// that walks back to the start of week (Monday), not just strip
// time-of-day from the source value.
func TestWeekTruncationAllDialects(t *testing.T) {
	pg, _ := New("postgres")
	expr, err := pg.BuildTimeDimension(query.GranWeek, "p.occurred_at")
	require.NoError(t, err)
	assert.Equal(t, "DATE_TRUNC('week', p.occurred_at)", expr)

	my, _ := New("mysql")
	expr, err = my.BuildTimeDimension(query.GranWeek, "p.occurred_at")
	require.NoError(t, err)
	assert.Contains(t, expr, "WEEKDAY(p.occurred_at)")

	lite, _ := New("sqlite")
	expr, err = lite.BuildTimeDimension(query.GranWeek, "p.occurred_at")
	require.NoError(t, err)
	assert.NotEqual(t, "strftime('%Y-%m-%dT00:00:00', p.occurred_at)", expr)
	assert.Contains(t, expr, "strftime('%w', p.occurred_at)")
}

type fakeResolver map[string]string

func (f fakeResolver) ResolveField(name string) (string, error) {
	col, ok := f[name]
	if !ok {
		return "", assertErr(name)
	}
	return col, nil
}

func assertErr(name string) error {
	return &unknownFieldErr{name}
}

type unknownFieldErr struct{ name string }

func (e *unknownFieldErr) Error() string { return "unknown field: " + e.name }

func TestBuildWindowWithPartitionOrderAndFrame(t *testing.T) {
	pg, _ := New("postgres")
	resolver := fakeResolver{"department": "e.department_id", "hireDate": "e.hire_date"}
	spec := WindowSpec{
		PartitionBy: []string{"department"},
		OrderBy:     []WindowOrder{{Field: "hireDate", Direction: "desc"}},
		HasFrame:    true,
		FrameType:   "rows",
		FrameStart:  WindowBound{Kind: "unbounded"},
		FrameEnd:    WindowBound{Kind: "current"},
	}
	out, err := pg.BuildWindow("ROW_NUMBER", "", spec, resolver)
	require.NoError(t, err)
	assert.Equal(t,
		"ROW_NUMBER() OVER (PARTITION BY e.department_id ORDER BY e.hire_date DESC ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW)",
		out,
	)
}

func TestBuildWindowNoConfig(t *testing.T) {
	pg, _ := New("postgres")
	out, err := pg.BuildWindow("ROW_NUMBER", "", WindowSpec{}, fakeResolver{})
	require.NoError(t, err)
	assert.Equal(t, "ROW_NUMBER() OVER ()", out)
}

func TestPlaceholderStyles(t *testing.T) {
	pg, _ := New("postgres")
	assert.Equal(t, "$3", pg.Placeholder(3))

	my, _ := New("mysql")
	assert.Equal(t, "?", my.Placeholder(3))

	lite, _ := New("sqlite")
	assert.Equal(t, "?", lite.Placeholder(1))
}

func TestBooleanLiterals(t *testing.T) {
	pg, _ := New("postgres")
	assert.Equal(t, "TRUE", pg.TrueLiteral())
	assert.Equal(t, "FALSE", pg.FalseLiteral())

	my, _ := New("mysql")
	assert.Equal(t, "1", my.TrueLiteral())
	assert.Equal(t, "0", my.FalseLiteral())
}

func TestQuoteIdentStyles(t *testing.T) {
	pg, _ := New("postgres")
	assert.Equal(t, `"Employees.count"`, pg.QuoteIdent("Employees.count"))

	my, _ := New("mysql")
	assert.Equal(t, "`Employees.count`", my.QuoteIdent("Employees.count"))

	lite, _ := New("sqlite")
	assert.Equal(t, `"Employees.count"`, lite.QuoteIdent("Employees.count"))
}
