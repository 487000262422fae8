package planner

import (
	"fmt"

	"github.com/cubegraph/semantic/model"
)

// tenantWhere builds a parameterized tenant predicate via ctx.Binder
// rather than formatting the security-context value into SQL text.
func tenantWhere(ctx *model.QueryContext, column string) string {
	return fmt.Sprintf("%s = %s", column, ctx.Binder.Bind(ctx.SecurityContext["tenantId"]))
}

// testRegistry builds the Employees/Departments/Productivity fixture
// used across the planner test suite, mirroring the dataset spec §8's
// worked scenarios describe: employees belong to departments, and each
// employee has many productivity rows.
func testRegistry() *model.Registry {
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
				Where: tenantWhere(ctx, "employees.tenant_id"),
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
			"recordedAt": {Name: "recordedAt", Type: model.TypeTime, SQL: model.Static("productivity.recorded_at")},
		},
		Measures: map[string]model.Measure{
			"totalLinesOfCode": {Name: "totalLinesOfCode", AggregationType: model.AggSum, SQL: model.Static("productivity.lines_of_code")},
		},
	})

	return reg
}
