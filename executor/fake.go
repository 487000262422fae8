package executor

import (
	"context"

	"github.com/cubegraph/semantic/dialect"
	"github.com/cubegraph/semantic/sqlbuilder"
)

// Fake is an in-memory DatabaseExecutor test double: it records every
// call it receives and returns pre-seeded rows, letting the compiler and
// compare test suites assert on exact SQL text and params without a live
// database (grounded on the teacher's MockPatternMatcher fixture in
// datalog/executor/test_fixtures.go).
type Fake struct {
	Engine string
	Caps   dialect.Capabilities

	// Rows, if set, is returned verbatim for every call regardless of the
	// statement. RowsFunc, if set, takes precedence and lets a test vary
	// the response per call (e.g. the comparison orchestrator's N
	// sub-queries, or simulating a mid-run failure).
	Rows     []Row
	RowsFunc func(stmt *sqlbuilder.Statement) ([]Row, error)

	Calls []FakeCall
}

// FakeCall is one recorded invocation.
type FakeCall struct {
	SQL    string
	Params []any
}

func (f *Fake) Execute(ctx context.Context, stmt *sqlbuilder.Statement) ([]Row, error) {
	f.Calls = append(f.Calls, FakeCall{SQL: stmt.SQL, Params: append([]any(nil), stmt.Params...)})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.RowsFunc != nil {
		return f.RowsFunc(stmt)
	}
	return f.Rows, nil
}

func (f *Fake) Capabilities() dialect.Capabilities {
	if f.Caps == (dialect.Capabilities{}) {
		return dialect.Capabilities{
			SupportsWindowFunctions: true,
			SupportsFrameClause:     true,
			SupportsCTE:             true,
			DateType:                "timestamptz",
			BooleanRepresentation:   dialect.BooleanNative,
		}
	}
	return f.Caps
}

func (f *Fake) EngineType() string {
	if f.Engine == "" {
		return "postgres"
	}
	return f.Engine
}
