package main

import (
	"fmt"

	"github.com/cubegraph/semantic/model"
)

// demoRegistry returns the Employees/Departments/Productivity cube set
// that every subcommand of this CLI registers, and so the schema queries
// are validated and compiled against (spec.md's
// "defining cubes" is out of this module's scope — see DESIGN.md).
func demoRegistry() []*model.Cube {
	tenantPredicate := func(ctx *model.QueryContext, column string) string {
		return fmt.Sprintf("%s = %s", column, ctx.Binder.Bind(ctx.SecurityContext["organisationId"]))
	}

	departments := &model.Cube{
		Name:  "Departments",
		Title: "Departments",
		BaseQueryFn: func(ctx *model.QueryContext) model.BaseQuery {
			return model.BaseQuery{From: model.Table{Name: "departments", Alias: "departments"}}
		},
		Dimensions: map[string]model.Dimension{
			"id":   {Name: "id", Type: model.TypeNumber, SQL: model.Static("departments.id"), PrimaryKey: true},
			"name": {Name: "name", Type: model.TypeString, SQL: model.Static("departments.name"), Title: "Department"},
		},
		Measures: map[string]model.Measure{
			"count": {Name: "count", AggregationType: model.AggCount, SQL: model.Static("departments.id")},
		},
	}

	employees := &model.Cube{
		Name:  "Employees",
		Title: "Employees",
		BaseQueryFn: func(ctx *model.QueryContext) model.BaseQuery {
			return model.BaseQuery{
				From:  model.Table{Name: "employees", Alias: "employees"},
				Where: tenantPredicate(ctx, "employees.organisation_id"),
			}
		},
		Dimensions: map[string]model.Dimension{
			"id":           {Name: "id", Type: model.TypeNumber, SQL: model.Static("employees.id"), PrimaryKey: true},
			"name":         {Name: "name", Type: model.TypeString, SQL: model.Static("employees.name"), Title: "Employee Name"},
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
	}

	productivity := &model.Cube{
		Name:  "Productivity",
		Title: "Productivity",
		BaseQueryFn: func(ctx *model.QueryContext) model.BaseQuery {
			return model.BaseQuery{From: model.Table{Name: "productivity", Alias: "productivity"}}
		},
		Dimensions: map[string]model.Dimension{
			"employeeId": {Name: "employeeId", Type: model.TypeNumber, SQL: model.Static("productivity.employee_id")},
			"date":       {Name: "date", Type: model.TypeTime, SQL: model.Static("productivity.recorded_at")},
		},
		Measures: map[string]model.Measure{
			"totalLinesOfCode": {Name: "totalLinesOfCode", AggregationType: model.AggSum, SQL: model.Static("productivity.lines_of_code"), Title: "Lines of Code"},
		},
	}

	return []*model.Cube{departments, employees, productivity}
}
