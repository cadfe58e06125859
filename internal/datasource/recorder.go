package datasource

import (
	"context"
	"sync"
)

// Statement is one recorded call.
type Statement struct {
	Kind   string // "execute" or "query"
	SQL    string
	Params map[string]any
}

// Recorder decorates a Datasource and records every statement it sees. In
// dry-run mode statements are recorded but not sent to the wrapped
// datasource: Execute reports nothing affected and fetches return no rows.
type Recorder struct {
	Datasource

	dryRun bool

	mu         sync.Mutex
	statements []Statement
}

// NewRecorder wraps inner.
func NewRecorder(inner Datasource, dryRun bool) *Recorder {
	return &Recorder{Datasource: inner, dryRun: dryRun}
}

func (r *Recorder) record(kind, query string, params map[string]any) {
	cp := make(map[string]any, len(params))
	for k, v := range params {
		cp[k] = v
	}
	r.mu.Lock()
	r.statements = append(r.statements, Statement{Kind: kind, SQL: query, Params: cp})
	r.mu.Unlock()
}

// Execute records and forwards the statement.
func (r *Recorder) Execute(ctx context.Context, query string, params map[string]any) (Result, error) {
	r.record("execute", query, params)
	if r.dryRun {
		return Result{}, nil
	}
	return r.Datasource.Execute(ctx, query, params)
}

// Fetch records and forwards the query.
func (r *Recorder) Fetch(ctx context.Context, query string, params map[string]any) (*Row, error) {
	r.record("query", query, params)
	if r.dryRun {
		return nil, nil
	}
	return r.Datasource.Fetch(ctx, query, params)
}

// FetchAll records and forwards the query.
func (r *Recorder) FetchAll(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	r.record("query", query, params)
	if r.dryRun {
		return nil, nil
	}
	return r.Datasource.FetchAll(ctx, query, params)
}

// FetchList records and forwards the query.
func (r *Recorder) FetchList(ctx context.Context, query string, params map[string]any) ([]any, error) {
	r.record("query", query, params)
	if r.dryRun {
		return nil, nil
	}
	return r.Datasource.FetchList(ctx, query, params)
}

// Statements returns the recorded statements in order.
func (r *Recorder) Statements() []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Statement(nil), r.statements...)
}

// Reset forgets recorded statements.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.statements = nil
	r.mu.Unlock()
}
