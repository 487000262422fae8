package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cubegraph/semantic/sqlbuilder"
)

func TestRewriteNumberedToQuestion(t *testing.T) {
	in := `SELECT * FROM t WHERE a = $1 AND b = $2 LIMIT $3`
	out := rewriteNumberedToQuestion(in)
	assert.Equal(t, `SELECT * FROM t WHERE a = ? AND b = ? LIMIT ?`, out)
}

func TestRewriteNumberedToQuestionLeavesDollarSignsAlone(t *testing.T) {
	in := `SELECT '$' || name FROM t WHERE id = $1`
	out := rewriteNumberedToQuestion(in)
	assert.Equal(t, `SELECT '$' || name FROM t WHERE id = ?`, out)
}

func TestFakeRecordsCallsAndReturnsSeededRows(t *testing.T) {
	f := &Fake{Rows: []Row{{"Employees.count": 12}}}
	stmt := &sqlbuilder.Statement{SQL: "SELECT 1", Params: []any{42}}

	rows, err := f.Execute(context.Background(), stmt)
	assert.NoError(t, err)
	assert.Equal(t, []Row{{"Employees.count": 12}}, rows)

	assert.Len(t, f.Calls, 1)
	assert.Equal(t, "SELECT 1", f.Calls[0].SQL)
	assert.Equal(t, []any{42}, f.Calls[0].Params)
}

func TestFakeHonorsContextCancellation(t *testing.T) {
	f := &Fake{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Execute(ctx, &sqlbuilder.Statement{SQL: "SELECT 1"})
	assert.Error(t, err)
}

func TestFakeRowsFuncVariesPerCall(t *testing.T) {
	call := 0
	f := &Fake{
		RowsFunc: func(stmt *sqlbuilder.Statement) ([]Row, error) {
			call++
			return []Row{{"n": call}}, nil
		},
	}
	r1, _ := f.Execute(context.Background(), &sqlbuilder.Statement{SQL: "a"})
	r2, _ := f.Execute(context.Background(), &sqlbuilder.Statement{SQL: "b"})
	assert.Equal(t, 1, r1[0]["n"])
	assert.Equal(t, 2, r2[0]["n"])
}

func TestFakeDefaultsEngineAndCapabilities(t *testing.T) {
	f := &Fake{}
	assert.Equal(t, "postgres", f.EngineType())
	assert.True(t, f.Capabilities().SupportsWindowFunctions)
}
