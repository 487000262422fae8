package sqlbuilder

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubegraph/semantic/dialect"
	"github.com/cubegraph/semantic/planner"
	"github.com/cubegraph/semantic/query"
)

// TestBuildNeverInterpolatesFilterLiterals is the spec §8 property 1
// test: for every literal in a SemanticQuery, the emitted SQL contains
// a placeholder, never the literal itself. Fuzzed with a set of
// SQL-injection payloads as filter values; none may appear as a
// substring of the generated SQL text.
func TestBuildNeverInterpolatesFilterLiterals(t *testing.T) {
	d, ok := dialect.New("postgres")
	require.True(t, ok)
	reg := testRegistry()

	payloads := []string{
		`'; DROP TABLE employees; --`,
		`' OR '1'='1`,
		`x' UNION SELECT password FROM users --`,
		`\"'); DELETE FROM employees WHERE ('1'='1`,
		`Robert'); DROP TABLE students;--`,
		`$1$2$3`,
		`" OR ""="`,
	}

	for i, payload := range payloads {
		t.Run(fmt.Sprintf("payload_%d", i), func(t *testing.T) {
			q := &query.SemanticQuery{
				Measures: []string{"Employees.count"},
				Filters: []query.Filter{
					{Member: "Employees.name", Operator: query.OpEquals, Values: []any{payload}},
				},
			}
			plan, err := planner.Plan(reg, q, testSecCtx(), "public", d)
			require.NoError(t, err)

			stmt, err := Build(plan, d)
			require.NoError(t, err)

			assert.NotContains(t, stmt.SQL, payload)
			assert.Contains(t, stmt.Params, payload)
		})
	}
}

// TestBuildNeverInterpolatesSecurityContextValues extends the same
// property to a BaseQueryFn's own security-context binding, not just
// filter values.
func TestBuildNeverInterpolatesSecurityContextValues(t *testing.T) {
	d, ok := dialect.New("postgres")
	require.True(t, ok)
	reg := testRegistry()

	sentinel := `1; DROP TABLE employees; --`
	q := &query.SemanticQuery{Measures: []string{"Employees.count"}}
	secCtx := map[string]any{"tenantId": sentinel}

	plan, err := planner.Plan(reg, q, secCtx, "public", d)
	require.NoError(t, err)

	stmt, err := Build(plan, d)
	require.NoError(t, err)

	assert.NotContains(t, stmt.SQL, sentinel)
	assert.Contains(t, stmt.Params, sentinel)
}
