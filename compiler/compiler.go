// Package compiler is the semantic-layer facade (spec §4.8, §6.1): it
// chains validate -> plan -> build -> execute -> annotate (or, for a
// compareDateRange query, delegates the middle three stages to
// compare.Run once per period) behind four entry points: Execute,
// ValidateQuery, SQL (dry run) and Metadata. Grounded on the teacher's
// top-level Database facade in datalog/storage/database.go, which
// likewise owns a registry and fronts it with a handful of verbs rather
// than exposing its internal stages.
package compiler

import (
	"context"
	"time"

	"github.com/cubegraph/semantic/annotate"
	"github.com/cubegraph/semantic/compare"
	"github.com/cubegraph/semantic/dialect"
	"github.com/cubegraph/semantic/executor"
	"github.com/cubegraph/semantic/model"
	"github.com/cubegraph/semantic/planner"
	"github.com/cubegraph/semantic/query"
	"github.com/cubegraph/semantic/semerr"
	"github.com/cubegraph/semantic/sqlbuilder"
	"github.com/cubegraph/semantic/validator"
)

// Compiler owns one cube registry and fronts it with the compile
// pipeline. It holds no package-level/global state (spec §9); every
// caller constructs its own via New.
type Compiler struct {
	registry  *model.Registry
	db        executor.DatabaseExecutor
	dialect   dialect.Dialect
	schema    string
	now       func() time.Time
	planCache *planner.PlanCache
}

// Config configures a new Compiler.
type Config struct {
	Executor executor.DatabaseExecutor
	Engine   string // "postgres" | "mysql" | "sqlite"
	Schema   string
	// Now stamps LastRefreshTime and resolves relative date keywords.
	// Defaults to time.Now when nil.
	Now func() time.Time
}

// New constructs a Compiler against an empty registry. Cubes are added
// afterward via RegisterCube.
func New(cfg Config) (*Compiler, error) {
	d, ok := dialect.New(cfg.Engine)
	if !ok {
		return nil, semerr.NewUnsupportedFeatureError(cfg.Engine, "unknown SQL dialect")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Compiler{
		registry:  model.NewRegistry(),
		db:        cfg.Executor,
		dialect:   d,
		schema:    cfg.Schema,
		now:       now,
		planCache: planner.NewPlanCache(1000, 0),
	}, nil
}

// PlanCache returns the compiler's query plan cache.
func (c *Compiler) PlanCache() *planner.PlanCache {
	return c.planCache
}

// SetPlanCache installs a custom plan cache, or disables caching entirely
// when cache is nil (PlanCache.Get/Set are both nil-receiver safe).
func (c *Compiler) SetPlanCache(cache *planner.PlanCache) {
	c.planCache = cache
}

// ClearPlanCache empties the compiler's plan cache, e.g. after a schema
// migration invalidates previously-planned SQL.
func (c *Compiler) ClearPlanCache() {
	c.planCache.Clear()
}

// RegisterCube adds or replaces a cube definition (spec §4.1).
func (c *Compiler) RegisterCube(cube *model.Cube) {
	c.registry.Register(cube)
}

// Metadata returns discovery info for every registered cube, without
// touching the database (spec §4.8 metadata()).
func (c *Compiler) Metadata() []model.CubeMetadata {
	return c.registry.Metadata()
}

// ValidateQuery runs q through the validator only (spec §4.2).
func (c *Compiler) ValidateQuery(q *query.SemanticQuery) validator.Result {
	return validator.Validate(c.registry, q)
}

// SQL compiles q down to its final parameterized statement without
// executing it — a dry run for callers that want to inspect or log the
// generated SQL (spec §4.8 "dry run" mode). It does not support
// compareDateRange queries, since those compile to N statements, not
// one; callers needing SQL for each period should call SQL once per
// already-expanded sub-query instead.
func (c *Compiler) SQL(q *query.SemanticQuery, secCtx model.SecurityContext) (*sqlbuilder.Statement, error) {
	if q.HasComparison() {
		return nil, semerr.NewUnsupportedFeatureError(c.dialect.Name(), "SQL() dry run for a compareDateRange query")
	}
	return c.planAndBuild(q, secCtx)
}

// Execute runs q end to end: validate, plan, build, execute, annotate
// (spec §4.8). A compareDateRange query is instead expanded into one
// sub-query per period by the compare package, with each sub-query
// (its comparison dimension replaced by a plain dateRange) planned,
// built and executed through execOne; the outer query's validation
// covers the sub-queries, so they are not validated again.
func (c *Compiler) Execute(ctx context.Context, q *query.SemanticQuery, secCtx model.SecurityContext) (*annotate.QueryResult, error) {
	result := validator.Validate(c.registry, q)
	if !result.Valid {
		return nil, semerr.NewValidationError(result.Errors)
	}

	if q.HasComparison() {
		rows, periods, err := compare.Run(q, c.now(), func(sub *query.SemanticQuery) ([]executor.Row, error) {
			return c.execOne(ctx, sub, secCtx)
		})
		if err != nil {
			return nil, err
		}
		res, err := annotate.Build(c.registry, q, rows, "compareDateRangeQuery", c.now().Format(time.RFC3339))
		if err != nil {
			return nil, err
		}
		res.Annotation.Periods = periods
		return res, nil
	}

	rows, err := c.execOne(ctx, q, secCtx)
	if err != nil {
		return nil, err
	}
	return annotate.Build(c.registry, q, rows, "regularQuery", c.now().Format(time.RFC3339))
}

// execOne plans, builds and executes a single (non-comparison)
// SemanticQuery, wrapping any driver error into semerr.DatabaseExecutionError.
func (c *Compiler) execOne(ctx context.Context, q *query.SemanticQuery, secCtx model.SecurityContext) ([]executor.Row, error) {
	stmt, err := c.planAndBuild(q, secCtx)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.Execute(ctx, stmt)
	if err != nil {
		return nil, wrapExecError(stmt, err)
	}
	return rows, nil
}

func (c *Compiler) planAndBuild(q *query.SemanticQuery, secCtx model.SecurityContext) (*sqlbuilder.Statement, error) {
	if plan, ok := c.planCache.Get(c.dialect.Name(), c.schema, secCtx, q); ok {
		return sqlbuilder.Build(plan, c.dialect)
	}

	plan, err := planner.Plan(c.registry, q, secCtx, c.schema, c.dialect)
	if err != nil {
		return nil, err
	}
	c.planCache.Set(c.dialect.Name(), c.schema, secCtx, q, plan)
	return sqlbuilder.Build(plan, c.dialect)
}

// sqlTexter is implemented by executor's internal error type; extracted
// here via an interface so compiler doesn't need executor to export a
// concrete error type.
type sqlTexter interface {
	SQL() string
}

func wrapExecError(stmt *sqlbuilder.Statement, err error) error {
	if st, ok := err.(sqlTexter); ok {
		return semerr.NewDatabaseExecutionError(st.SQL(), err)
	}
	return semerr.NewDatabaseExecutionError(stmt.SQL, err)
}
