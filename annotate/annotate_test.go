package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubegraph/semantic/executor"
	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/query"
)

func testRegistry() *model.Registry {
	reg := model.NewRegistry()
	reg.Register(&model.Cube{
		Name: "Employees",
		BaseQueryFn: func(ctx *model.QueryContext) model.BaseQuery {
			return model.BaseQuery{From: model.Table{Name: "employees"}}
		},
		Dimensions: map[string]model.Dimension{
			"name":     {Name: "name", Type: model.TypeString, Title: "Employee Name"},
			"hireDate": {Name: "hireDate", Type: model.TypeTime},
		},
		Measures: map[string]model.Measure{
			"count": {Name: "count", AggregationType: model.AggCount},
		},
	})
	return reg
}

func TestBuildCoercesNumericStringMeasure(t *testing.T) {
	reg := testRegistry()
	q := &query.SemanticQuery{Measures: []string{"Employees.count"}}
	rows := []executor.Row{{"Employees.count": "12"}}

	res, err := Build(reg, q, rows, "regularQuery", "2026-07-30T00:00:00Z")
	require.NoError(t, err)

	assert.Equal(t, int64(12), res.Data[0]["Employees.count"])
	assert.Equal(t, "regularQuery", res.QueryType)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, "2026-07-30T00:00:00Z", res.LastRefreshTime)
}

func TestBuildLeavesDimensionStringsAlone(t *testing.T) {
	reg := testRegistry()
	q := &query.SemanticQuery{Dimensions: []string{"Employees.name"}}
	rows := []executor.Row{{"Employees.name": "12 Angry Men"}}

	res, err := Build(reg, q, rows, "regularQuery", "now")
	require.NoError(t, err)
	assert.Equal(t, "12 Angry Men", res.Data[0]["Employees.name"])
}

func TestBuildAnnotationIncludesMeasureDimensionAndTimeDimension(t *testing.T) {
	reg := testRegistry()
	q := &query.SemanticQuery{
		Measures:   []string{"Employees.count"},
		Dimensions: []string{"Employees.name"},
		TimeDimensions: []query.TimeDimension{
			{Dimension: "Employees.hireDate", Granularity: query.GranMonth},
		},
	}
	res, err := Build(reg, q, nil, "regularQuery", "now")
	require.NoError(t, err)

	require.Contains(t, res.Annotation.Measures, "Employees.count")
	assert.Equal(t, "count", res.Annotation.Measures["Employees.count"].Type)

	require.Contains(t, res.Annotation.Dimensions, "Employees.name")
	assert.Equal(t, "Employee Name", res.Annotation.Dimensions["Employees.name"].Title)

	require.Contains(t, res.Annotation.TimeDimensions, "Employees.hireDate")
	assert.Equal(t, "month", res.Annotation.TimeDimensions["Employees.hireDate"].Granularity)
}

func TestBuildEmptyDataProducesEmptySlice(t *testing.T) {
	reg := testRegistry()
	q := &query.SemanticQuery{Measures: []string{"Employees.count"}}
	res, err := Build(reg, q, []executor.Row{}, "regularQuery", "now")
	require.NoError(t, err)
	assert.Empty(t, res.Data)
}
