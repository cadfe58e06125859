package datasource

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/roach88/recordkit/internal/querybuilder"
)

// Datasource is the database surface models depend on.
type Datasource interface {
	// Name is the registry name of the connection.
	Name() string

	// Driver is the database/sql driver name.
	Driver() string

	// Execute runs a statement that returns no rows.
	Execute(ctx context.Context, query string, params map[string]any) (Result, error)

	// Fetch returns the first row, or nil when there is none.
	Fetch(ctx context.Context, query string, params map[string]any) (*Row, error)

	// FetchAll returns every row.
	FetchAll(ctx context.Context, query string, params map[string]any) ([]Row, error)

	// FetchList returns the first column of every row.
	FetchList(ctx context.Context, query string, params map[string]any) ([]any, error)

	// LastInsertID returns the id generated by the last INSERT.
	LastInsertID() int64

	Begin(ctx context.Context) error
	Commit() error
	Rollback() error
	InTransaction() bool

	// Schema describes a table's columns.
	Schema(ctx context.Context, table string) (*Schema, error)
}

// Result reports the effect of Execute.
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

// Row is one result row with columns in select order.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of a column.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row as a column → value map.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		out[c] = r.Values[i]
	}
	return out
}

// NamedArgs converts a placeholder map to sql.Named arguments in natural
// placeholder order (u2 before u10). A leading colon on a key is dropped.
func NamedArgs(params map[string]any) []any {
	if len(params) == 0 {
		return nil
	}
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		return querybuilder.NaturalLess(names[i], names[j])
	})
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = sql.Named(strings.TrimPrefix(n, ":"), params[n])
	}
	return args
}

// normalize converts driver values to plain Go values.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
