// Package executor runs a sqlbuilder.Statement against a concrete
// database and returns rows, behind the DatabaseExecutor contract (spec
// §6.4). Three concrete drivers are provided (Postgres, MySQL, SQLite)
// plus an in-memory Fake used by the rest of the test suite, grounded on
// the teacher's fixture-executor pattern in
// datalog/executor/test_fixtures.go.
package executor

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/cubegraph/semantic/dialect"
	"github.com/cubegraph/semantic/sqlbuilder"
)

// Row is one returned record, keyed by the SELECT list's qualified alias.
type Row map[string]any

// DatabaseExecutor runs a built statement and reports the engine's
// capabilities and type (spec §6.4).
type DatabaseExecutor interface {
	Execute(ctx context.Context, stmt *sqlbuilder.Statement) ([]Row, error)
	Capabilities() dialect.Capabilities
	EngineType() string
}

// sqlExecutor is the shared implementation behind Postgres/MySQL/SQLite:
// each only differs in driver name, placeholder rewriting, and
// capabilities. The dialects already render their own native
// placeholder style; rewrite only converts any "$N" left in the
// statement to the driver's style.
type sqlExecutor struct {
	db           *sql.DB
	engine       string
	capabilities dialect.Capabilities
	rewrite      func(sql string) string
}

func (e *sqlExecutor) Execute(ctx context.Context, stmt *sqlbuilder.Statement) ([]Row, error) {
	rows, err := e.db.QueryContext(ctx, e.rewrite(stmt.SQL), stmt.Params...)
	if err != nil {
		return nil, &execError{sqlText: stmt.SQL, err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &execError{sqlText: stmt.SQL, err: err}
	}

	var out []Row
	for rows.Next() {
		scanTargets := make([]any, len(cols))
		scanValues := make([]any, len(cols))
		for i := range scanTargets {
			scanTargets[i] = &scanValues[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, &execError{sqlText: stmt.SQL, err: err}
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = scanValues[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &execError{sqlText: stmt.SQL, err: err}
	}
	return out, nil
}

func (e *sqlExecutor) Capabilities() dialect.Capabilities { return e.capabilities }
func (e *sqlExecutor) EngineType() string                 { return e.engine }

// execError lets the compiler facade wrap it into semerr.DatabaseExecutionError
// without this package importing semerr (avoiding a dependency the
// executor's own tests don't need).
type execError struct {
	sqlText string
	err     error
}

func (e *execError) Error() string { return e.err.Error() }
func (e *execError) Unwrap() error { return e.err }
func (e *execError) SQL() string   { return e.sqlText }

// PostgresConfig holds connection parameters for NewPostgres.
type PostgresConfig struct {
	DSN string
}

// NewPostgres opens a pgx/v5-backed executor using $N-style placeholders
// natively, so no rewriting is required.
func NewPostgres(cfg PostgresConfig) (DatabaseExecutor, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &sqlExecutor{
		db:      db,
		engine:  "postgres",
		rewrite: identity,
		capabilities: dialect.Capabilities{
			SupportsWindowFunctions: true,
			SupportsFrameClause:     true,
			SupportsCTE:             true,
			DateType:                "timestamptz",
			BooleanRepresentation:   dialect.BooleanNative,
		},
	}, nil
}

// MySQLConfig holds connection parameters for NewMySQL.
type MySQLConfig struct {
	DSN string
}

// NewMySQL opens a go-sql-driver/mysql-backed executor. The MySQL dialect
// (dialect/mysql.go) already renders positional "?" placeholders; this
// executor additionally rewrites any "$N" placeholder in the statement
// to "?" before the driver sees it.
func NewMySQL(cfg MySQLConfig) (DatabaseExecutor, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &sqlExecutor{
		db:      db,
		engine:  "mysql",
		rewrite: rewriteNumberedToQuestion,
		capabilities: dialect.Capabilities{
			SupportsWindowFunctions: true,
			SupportsFrameClause:     false,
			SupportsCTE:             true,
			DateType:                "datetime",
			BooleanRepresentation:   dialect.BooleanInt,
		},
	}, nil
}

// SQLiteConfig holds connection parameters for NewSQLite.
type SQLiteConfig struct {
	Path string
}

// NewSQLite opens a modernc.org/sqlite-backed executor (pure Go, no cgo).
// Like MySQL it takes positional "?" placeholders.
func NewSQLite(cfg SQLiteConfig) (DatabaseExecutor, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	return &sqlExecutor{
		db:      db,
		engine:  "sqlite",
		rewrite: rewriteNumberedToQuestion,
		capabilities: dialect.Capabilities{
			SupportsWindowFunctions: true,
			SupportsFrameClause:     false,
			SupportsCTE:             true,
			DateType:                "text",
			BooleanRepresentation:   dialect.BooleanInt,
		},
	}, nil
}

func identity(s string) string { return s }

// rewriteNumberedToQuestion rewrites every "$N" placeholder to "?" in
// left-to-right occurrence order. The builder always emits $N in
// ascending, gap-free order (one per Binder.Bind call plus any
// limit/offset appended at the end), so a simple left-to-right scan
// preserves parameter order without needing to parse N.
func rewriteNumberedToQuestion(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '$' {
			j := i + 1
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			if j > i+1 {
				if _, err := strconv.Atoi(s[i+1 : j]); err == nil {
					b.WriteByte('?')
					i = j - 1
					continue
				}
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
