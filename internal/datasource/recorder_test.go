package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_RecordsAndForwards(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t, "sqlite3")
	rec := NewRecorder(conn, false)

	_, err := rec.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)", nil)
	require.NoError(t, err)
	_, err = rec.Execute(ctx, "INSERT INTO t (v) VALUES (:t0)", map[string]any{"t0": "x"})
	require.NoError(t, err)
	row, err := rec.Fetch(ctx, "SELECT v FROM t", nil)
	require.NoError(t, err)
	require.NotNil(t, row)

	stmts := rec.Statements()
	require.Len(t, stmts, 3)
	assert.Equal(t, "execute", stmts[1].Kind)
	assert.Equal(t, map[string]any{"t0": "x"}, stmts[1].Params)
	assert.Equal(t, "query", stmts[2].Kind)
	assert.Equal(t, int64(1), rec.LastInsertID())

	rec.Reset()
	assert.Empty(t, rec.Statements())
}

func TestRecorder_DryRun(t *testing.T) {
	ctx := context.Background()
	conn := openMemory(t, "sqlite3")
	rec := NewRecorder(conn, true)

	res, err := rec.Execute(ctx, "DROP TABLE does_not_exist", nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	rows, err := rec.FetchAll(ctx, "SELECT * FROM does_not_exist", nil)
	require.NoError(t, err)
	assert.Nil(t, rows)

	list, err := rec.FetchList(ctx, "SELECT 1", nil)
	require.NoError(t, err)
	assert.Nil(t, list)

	assert.Len(t, rec.Statements(), 3)
}
