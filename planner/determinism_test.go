package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubegraph/semantic/dialect"
	"github.com/cubegraph/semantic/query"
)

// TestPrimaryCubeSelectionIsOrderIndependent is the planner determinism
// property: for two queries equivalent up to permutation of the
// measures array, the planner must choose the same primary cube and the
// same number of pre-aggregation CTEs (spec §9).
func TestPrimaryCubeSelectionIsOrderIndependent(t *testing.T) {
	d, ok := dialect.New("postgres")
	require.True(t, ok)
	reg := testRegistry()

	forward := &query.SemanticQuery{
		Measures:   []string{"Employees.count", "Productivity.totalLinesOfCode"},
		Dimensions: []string{"Departments.name"},
	}
	reversed := &query.SemanticQuery{
		Measures:   []string{"Productivity.totalLinesOfCode", "Employees.count"},
		Dimensions: []string{"Departments.name"},
	}

	planA, err := Plan(reg, forward, testSecCtx(), "public", d)
	require.NoError(t, err)
	planB, err := Plan(reg, reversed, testSecCtx(), "public", d)
	require.NoError(t, err)

	assert.Equal(t, planA.PrimaryCube, planB.PrimaryCube)
	assert.Equal(t, len(planA.CTEs), len(planB.CTEs))
}

func TestSelectPrimaryCubeAlphabeticalTieBreak(t *testing.T) {
	used := []string{"Zebra", "Alpha", "Mango"}
	q := &query.SemanticQuery{Measures: []string{"Zebra.x", "Alpha.y", "Mango.z"}}
	assert.Equal(t, "Alpha", selectPrimaryCube(q, used))
}

func TestSelectPrimaryCubeFallsBackToDimensionsThenUsed(t *testing.T) {
	q := &query.SemanticQuery{Dimensions: []string{"Zebra.x", "Alpha.y"}}
	assert.Equal(t, "Alpha", selectPrimaryCube(q, []string{"Zebra", "Alpha"}))

	q2 := &query.SemanticQuery{}
	assert.Equal(t, "Alpha", selectPrimaryCube(q2, []string{"Zebra", "Alpha"}))
}
