package model

import (
	"context"
	"errors"

	"github.com/roach88/recordkit/internal/datasource"
)

// transactional runs fn inside a transaction on ds. When a transaction is
// already open, or enabled is false, fn joins the current one. A false
// result or an error rolls back.
func transactional(ctx context.Context, ds datasource.Datasource, enabled bool, fn func() (bool, error)) (bool, error) {
	if !enabled || ds.InTransaction() {
		return fn()
	}
	if err := ds.Begin(ctx); err != nil {
		return false, err
	}
	ok, err := fn()
	if err != nil || !ok {
		if rbErr := ds.Rollback(); rbErr != nil {
			return false, errors.Join(err, rbErr)
		}
		return false, err
	}
	if err := ds.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Transaction runs fn inside one transaction on the model's connection.
// Saves and deletes made by fn join it.
func (m *Model) Transaction(ctx context.Context, fn func(ctx context.Context) (bool, error)) (bool, error) {
	ds, err := m.Datasource(ctx)
	if err != nil {
		return false, err
	}
	return transactional(ctx, ds, true, func() (bool, error) {
		return fn(ctx)
	})
}
