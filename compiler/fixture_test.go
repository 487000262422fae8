package compiler

import (
	"fmt"

	"github.com/cubegraph/semantic/model"
)

// fixtureSecCtx is the security context every scenario test uses.
func fixtureSecCtx() model.SecurityContext {
	return model.SecurityContext{"organisationId": 1}
}

// fixtureRegistry builds the 12-employee / 4-department / Q1-2024
// productivity dataset named by spec §8's end-to-end scenarios.
// Employees belongs to Departments; Employees has many Productivity
// rows, so a query spanning both Employees and Productivity measures
// must plan a pre-aggregation CTE to avoid row-fanout double counting.
func fixtureRegistry() *model.Registry {
	reg := model.NewRegistry()

	reg.Register(&model.Cube{
		Name: "Departments",
		BaseQueryFn: func(ctx *model.QueryContext) model.BaseQuery {
			return model.BaseQuery{From: model.Table{Name: "departments", Alias: "departments"}}
		},
		Dimensions: map[string]model.Dimension{
			"id":   {Name: "id", Type: model.TypeNumber, SQL: model.Static("departments.id"), PrimaryKey: true},
			"name": {Name: "name", Type: model.TypeString, SQL: model.Static("departments.name")},
		},
		Measures: map[string]model.Measure{
			"count": {Name: "count", AggregationType: model.AggCount, SQL: model.Static("departments.id")},
		},
	})

	reg.Register(&model.Cube{
		Name: "Employees",
		BaseQueryFn: func(ctx *model.QueryContext) model.BaseQuery {
			return model.BaseQuery{
				From:  model.Table{Name: "employees", Alias: "employees"},
				Where: fmt.Sprintf("employees.organisation_id = %s", ctx.Binder.Bind(ctx.SecurityContext["organisationId"])),
			}
		},
		Dimensions: map[string]model.Dimension{
			"id":           {Name: "id", Type: model.TypeNumber, SQL: model.Static("employees.id"), PrimaryKey: true},
			"name":         {Name: "name", Type: model.TypeString, SQL: model.Static("employees.name")},
			"departmentId": {Name: "departmentId", Type: model.TypeNumber, SQL: model.Static("employees.department_id")},
			"hireDate":     {Name: "hireDate", Type: model.TypeTime, SQL: model.Static("employees.hire_date")},
		},
		Measures: map[string]model.Measure{
			"count": {Name: "count", AggregationType: model.AggCount, SQL: model.Static("employees.id")},
		},
		Joins: map[string]model.CubeJoin{
			"Departments": {
				TargetCube:   "Departments",
				Relationship: model.RelBelongsTo,
				On:           []model.JoinColumn{{Source: "department_id", Target: "id"}},
			},
			"Productivity": {
				TargetCube:   "Productivity",
				Relationship: model.RelHasMany,
				On:           []model.JoinColumn{{Source: "id", Target: "employee_id"}},
			},
		},
	})

	reg.Register(&model.Cube{
		Name: "Productivity",
		BaseQueryFn: func(ctx *model.QueryContext) model.BaseQuery {
			return model.BaseQuery{From: model.Table{Name: "productivity", Alias: "productivity"}}
		},
		Dimensions: map[string]model.Dimension{
			"employeeId": {Name: "employeeId", Type: model.TypeNumber, SQL: model.Static("productivity.employee_id")},
			"date":       {Name: "date", Type: model.TypeTime, SQL: model.Static("productivity.recorded_at")},
		},
		Measures: map[string]model.Measure{
			"totalLinesOfCode": {Name: "totalLinesOfCode", AggregationType: model.AggSum, SQL: model.Static("productivity.lines_of_code")},
		},
	})

	return reg
}

// departmentNames mirrors the fixture dataset's 4 departments, used by
// scenario 2's fake rows.
var departmentNames = []string{"Engineering", "Sales", "Marketing", "Support"}

// departmentHeadcount mirrors the 12-employee split across 4
// departments named by spec §8 scenario 2 (Engineering gets 5).
var departmentHeadcount = map[string]int{
	"Engineering": 5,
	"Sales":       3,
	"Marketing":   2,
	"Support":     2,
}
