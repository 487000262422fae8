package compiler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubegraph/semantic/executor"
	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/query"
	"github.com/cubegraph/semantic/sqlbuilder"
)

func newFixtureCompiler(t *testing.T, fake *executor.Fake) *Compiler {
	t.Helper()
	c, err := New(Config{
		Executor: fake,
		Engine:   "postgres",
		Schema:   "public",
		Now:      func() time.Time { return time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	for _, cube := range fixtureRegistry().All() {
		c.RegisterCube(cube)
	}
	return c
}

// Scenario 1: simple count.
func TestScenarioSimpleCount(t *testing.T) {
	fake := &executor.Fake{Rows: []executor.Row{{"Employees.count": "12"}}}
	c := newFixtureCompiler(t, fake)

	res, err := c.Execute(context.Background(), &query.SemanticQuery{
		Measures: []string{"Employees.count"},
	}, fixtureSecCtx())
	require.NoError(t, err)

	require.Len(t, res.Data, 1)
	assert.Equal(t, int64(12), res.Data[0]["Employees.count"])
}

// Scenario 2: grouped by department (belongsTo join).
func TestScenarioGroupedByDepartmentBelongsToJoin(t *testing.T) {
	var rows []executor.Row
	for _, name := range departmentNames {
		rows = append(rows, executor.Row{
			"Departments.name": name,
			"Employees.count":  departmentHeadcount[name],
		})
	}
	fake := &executor.Fake{Rows: rows}
	c := newFixtureCompiler(t, fake)

	res, err := c.Execute(context.Background(), &query.SemanticQuery{
		Measures:   []string{"Employees.count"},
		Dimensions: []string{"Departments.name"},
	}, fixtureSecCtx())
	require.NoError(t, err)

	require.Len(t, res.Data, 4)
	require.Len(t, fake.Calls, 1)
	assert.Contains(t, fake.Calls[0].SQL, "JOIN")

	total := 0
	var engineeringCount int
	for _, r := range res.Data {
		n, ok := r["Employees.count"].(int)
		require.True(t, ok)
		total += n
		if r["Departments.name"] == "Engineering" {
			engineeringCount = n
		}
	}
	assert.Equal(t, 12, total)
	assert.Equal(t, 5, engineeringCount)
}

// Scenario 3: filtered equals-with-IN.
func TestScenarioFilteredEqualsWithIN(t *testing.T) {
	fake := &executor.Fake{Rows: []executor.Row{{"Employees.count": 2}}}
	c := newFixtureCompiler(t, fake)

	res, err := c.Execute(context.Background(), &query.SemanticQuery{
		Measures: []string{"Employees.count"},
		Filters: []query.Filter{
			{Member: "Employees.name", Operator: query.OpEquals, Values: []any{"Alex Chen", "Sarah Johnson"}},
		},
	}, fixtureSecCtx())
	require.NoError(t, err)

	require.Len(t, fake.Calls, 1)
	// $1 is the cube's own tenant predicate (bound before filters are
	// normalized); the IN clause's two values follow as $2, $3.
	assert.Contains(t, fake.Calls[0].SQL, "IN ($2, $3)")
	require.Len(t, res.Data, 1)
	assert.Equal(t, 2, res.Data[0]["Employees.count"])
}

// Scenario 4: multi-cube with hasMany CTE.
func TestScenarioMultiCubeHasManyCTE(t *testing.T) {
	var rows []executor.Row
	for _, name := range departmentNames {
		rows = append(rows, executor.Row{
			"Departments.name":              name,
			"Employees.count":               departmentHeadcount[name],
			"Productivity.totalLinesOfCode": departmentHeadcount[name] * 1000,
		})
	}
	fake := &executor.Fake{Rows: rows}
	c := newFixtureCompiler(t, fake)

	res, err := c.Execute(context.Background(), &query.SemanticQuery{
		Measures:   []string{"Employees.count", "Productivity.totalLinesOfCode"},
		Dimensions: []string{"Departments.name"},
	}, fixtureSecCtx())
	require.NoError(t, err)

	require.Len(t, fake.Calls, 1)
	assert.Contains(t, fake.Calls[0].SQL, "WITH")
	require.Len(t, res.Data, 4)

	total := 0
	for _, r := range res.Data {
		n, ok := r["Employees.count"].(int)
		require.True(t, ok)
		total += n
	}
	assert.Equal(t, 12, total)
}

// A filter targeting a field on a cube that gets pre-aggregated into a
// CTE must resolve against the CTE's own projected column, not the
// cube's base table (which is never joined into the outer query once
// it's folded into a CTE).
func TestScenarioFilteredDimensionOnCTEIfiedCube(t *testing.T) {
	fake := &executor.Fake{Rows: []executor.Row{
		{"Departments.name": "Engineering", "Employees.count": 5, "Productivity.totalLinesOfCode": 5000},
	}}
	c := newFixtureCompiler(t, fake)

	res, err := c.Execute(context.Background(), &query.SemanticQuery{
		Measures:   []string{"Employees.count", "Productivity.totalLinesOfCode"},
		Dimensions: []string{"Departments.name"},
		Filters: []query.Filter{
			{Member: "Productivity.employeeId", Operator: query.OpEquals, Values: []any{7}},
		},
	}, fixtureSecCtx())
	require.NoError(t, err)

	require.Len(t, fake.Calls, 1)
	sql := fake.Calls[0].SQL
	assert.Contains(t, sql, "WITH")
	assert.Contains(t, sql, `cte_Productivity."Productivity.employeeId"`)
	assert.NotContains(t, sql, "productivity.employee_id =")
	require.Len(t, res.Data, 1)
}

// Repeating the exact same (schema, dialect, securityContext, query)
// combination must hit the plan cache instead of replanning: the second
// call's generated SQL is identical and Stats() reports a hit.
func TestExecuteReusesCachedPlanForIdenticalQuery(t *testing.T) {
	fake := &executor.Fake{Rows: []executor.Row{{"Employees.count": 2}}}
	c := newFixtureCompiler(t, fake)

	q := &query.SemanticQuery{
		Measures: []string{"Employees.count"},
		Filters: []query.Filter{
			{Member: "Employees.name", Operator: query.OpEquals, Values: []any{"Alex Chen"}},
		},
	}

	_, err := c.Execute(context.Background(), q, fixtureSecCtx())
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), q, fixtureSecCtx())
	require.NoError(t, err)

	hits, misses, size := c.PlanCache().Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1, size)

	require.Len(t, fake.Calls, 2)
	assert.Equal(t, fake.Calls[0].SQL, fake.Calls[1].SQL)
	assert.Equal(t, fake.Calls[0].Params, fake.Calls[1].Params)
}

// A different securityContext must not reuse another tenant's cached
// plan, even when the query is otherwise byte-identical.
func TestExecuteDoesNotShareCachedPlanAcrossSecurityContexts(t *testing.T) {
	fake := &executor.Fake{Rows: []executor.Row{{"Employees.count": 2}}}
	c := newFixtureCompiler(t, fake)

	q := &query.SemanticQuery{Measures: []string{"Employees.count"}}

	_, err := c.Execute(context.Background(), q, model.SecurityContext{"organisationId": 1})
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), q, model.SecurityContext{"organisationId": 2})
	require.NoError(t, err)

	_, misses, size := c.PlanCache().Stats()
	assert.Equal(t, int64(2), misses)
	assert.Equal(t, 2, size)
}

// Scenario 5: time dimension with granularity and date range.
func TestScenarioTimeDimensionGranularityAndDateRange(t *testing.T) {
	fake := &executor.Fake{Rows: []executor.Row{
		{"Productivity.date": "2024-01-01T00:00:00Z", "Productivity.totalLinesOfCode": 100},
		{"Productivity.date": "2024-02-01T00:00:00Z", "Productivity.totalLinesOfCode": 200},
		{"Productivity.date": "2024-03-01T00:00:00Z", "Productivity.totalLinesOfCode": 300},
	}}
	c := newFixtureCompiler(t, fake)

	res, err := c.Execute(context.Background(), &query.SemanticQuery{
		Measures: []string{"Productivity.totalLinesOfCode"},
		TimeDimensions: []query.TimeDimension{
			{Dimension: "Productivity.date", Granularity: query.GranMonth, DateRange: []string{"2024-01-01", "2024-03-31"}},
		},
		Order: []query.OrderEntry{{Field: "Productivity.date", Direction: query.Asc}},
	}, fixtureSecCtx())
	require.NoError(t, err)

	require.Len(t, res.Data, 3)
	var prev time.Time
	for i, r := range res.Data {
		ts, err := time.Parse(time.RFC3339, r["Productivity.date"].(string))
		require.NoError(t, err)
		if i > 0 {
			assert.True(t, ts.After(prev), "row %d not monotonically increasing", i)
		}
		prev = ts
	}
}

// Scenario 6: compareDateRange period-over-period.
func TestScenarioCompareDateRangePeriodOverPeriod(t *testing.T) {
	fake := &executor.Fake{
		RowsFunc: func(stmt *sqlbuilder.Statement) ([]executor.Row, error) {
			require.Len(t, stmt.Params, 2)
			start, ok := stmt.Params[0].(time.Time)
			require.True(t, ok)

			if start.Month() == time.March {
				return []executor.Row{
					{"Productivity.date": "2024-03-01T00:00:00Z", "Productivity.totalLinesOfCode": 10},
					{"Productivity.date": "2024-03-02T00:00:00Z", "Productivity.totalLinesOfCode": 20},
				}, nil
			}
			return []executor.Row{
				{"Productivity.date": "2024-02-01T00:00:00Z", "Productivity.totalLinesOfCode": 5},
				{"Productivity.date": "2024-02-02T00:00:00Z", "Productivity.totalLinesOfCode": 15},
			}, nil
		},
	}
	c := newFixtureCompiler(t, fake)

	res, err := c.Execute(context.Background(), &query.SemanticQuery{
		Measures: []string{"Productivity.totalLinesOfCode"},
		TimeDimensions: []query.TimeDimension{
			{
				Dimension:   "Productivity.date",
				Granularity: query.GranDay,
				CompareDateRange: []any{
					[]string{"2024-03-01", "2024-03-05"},
					[]string{"2024-02-01", "2024-02-05"},
				},
			},
		},
	}, fixtureSecCtx())
	require.NoError(t, err)

	assert.Equal(t, "compareDateRangeQuery", res.QueryType)
	require.NotNil(t, res.Annotation.Periods)
	assert.Len(t, res.Annotation.Periods.Labels, 2)

	seenPeriod1 := false
	for _, r := range res.Data {
		idx, ok := r["__periodIndex"].(int)
		require.True(t, ok)
		if idx == 1 {
			seenPeriod1 = true
		} else {
			assert.False(t, seenPeriod1, "a period-0 row appeared after a period-1 row")
		}
	}

	minDayIndex := map[int]int{}
	for _, r := range res.Data {
		idx := r["__periodIndex"].(int)
		day := r["__periodDayIndex"].(int)
		if cur, ok := minDayIndex[idx]; !ok || day < cur {
			minDayIndex[idx] = day
		}
	}
	assert.Equal(t, 0, minDayIndex[0])
	assert.Equal(t, 0, minDayIndex[1])
}
