package model

import (
	"context"
	"strings"

	"github.com/roach88/recordkit/internal/cond"
	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/querybuilder"
)

// Delete removes the record with the given primary key. Join table rows of
// HABTM associations are always removed; dependent hasOne and hasMany
// records are removed unless WithoutCascade is passed. It returns false
// when no such record exists or a callback aborts.
func (m *Model) Delete(ctx context.Context, id any, opts ...Option) (bool, error) {
	o := applyOptions(defaultOptions(), opts)
	ds, err := m.Datasource(ctx)
	if err != nil {
		return false, err
	}
	return transactional(ctx, ds, o.transaction, func() (bool, error) {
		return m.delete(ctx, id, o)
	})
}

// DeleteAll removes every record matching conditions. Empty conditions
// delete nothing. Callbacks are off unless WithCallbacks is passed; with
// callbacks or dependent associations records are deleted one by one.
func (m *Model) DeleteAll(ctx context.Context, conditions cond.Conditions, opts ...Option) (bool, error) {
	if conditions.IsEmpty() {
		return false, nil
	}
	base := defaultOptions()
	base.callbacks = false
	o := applyOptions(base, opts)
	ds, err := m.Datasource(ctx)
	if err != nil {
		return false, err
	}

	return transactional(ctx, ds, o.transaction, func() (bool, error) {
		_, rows, err := m.fetch(ctx, fetchSpec{
			opts:  FindOptions{Conditions: conditions, Fields: []string{m.primaryKey}, Order: []string{}},
			graph: &graph{depth: -1},
		})
		if err != nil {
			return false, err
		}
		ids := make([]any, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.Values[0])
		}
		if len(ids) == 0 {
			return true, nil
		}

		if o.callbacks || (o.cascade && m.hasDependents()) {
			for _, id := range ids {
				if _, err := m.delete(ctx, id, o); err != nil {
					return false, err
				}
			}
			return true, nil
		}

		for _, batch := range chunk(ids, m.batchSize) {
			if err := m.deleteLinks(ctx, batch); err != nil {
				return false, err
			}
			b := querybuilder.New(m.table, m.name).Delete().Where(cond.Conditions{cond.F(m.primaryKey, batch)})
			if _, err := m.execute(ctx, b); err != nil {
				return false, err
			}
		}
		m.logger.Info("deleted", "rows", len(ids))
		return true, nil
	})
}

func (m *Model) delete(ctx context.Context, id any, o options) (bool, error) {
	exists, err := m.Exists(ctx, id)
	if err != nil || !exists {
		return false, err
	}
	if o.callbacks && !m.before(func(c Callbacks) bool { return c.BeforeDelete(ctx, m, id, o.cascade) }) {
		return false, nil
	}
	if o.cascade {
		if err := m.deleteDependents(ctx, id, o); err != nil {
			return false, err
		}
	}
	if err := m.deleteLinks(ctx, []any{id}); err != nil {
		return false, err
	}
	b := querybuilder.New(m.table, m.name).Delete().Where(cond.Conditions{cond.F(m.primaryKey, id)})
	if _, err := m.execute(ctx, b); err != nil {
		return false, err
	}
	m.id = id
	if o.callbacks {
		m.after(func(c Callbacks) { c.AfterDelete(ctx, m, id) })
	}
	m.logger.Info("deleted", "id", id)
	return true, nil
}

func (m *Model) hasDependents() bool {
	for _, a := range m.Associations(HasOne, HasMany) {
		if a.Dependent {
			return true
		}
	}
	return false
}

// deleteDependents deletes, one by one and with cascade, the records of
// dependent hasOne and hasMany associations.
func (m *Model) deleteDependents(ctx context.Context, id any, o options) error {
	for _, a := range m.Associations(HasOne, HasMany) {
		if !a.Dependent {
			continue
		}
		t, err := m.target(a)
		if err != nil {
			return err
		}
		_, rows, err := t.fetch(ctx, fetchSpec{
			opts: FindOptions{
				Conditions: cond.Conditions{cond.F(a.ForeignKey, id)}.Append(a.UserConditions()...),
				Fields:     []string{t.primaryKey},
				Order:      []string{},
			},
			graph: &graph{depth: -1},
			alias: a.Alias,
		})
		if err != nil {
			return err
		}
		for _, r := range rows {
			if _, err := t.delete(ctx, r.Values[0], o); err != nil {
				return err
			}
		}
	}
	return nil
}

// deleteLinks removes HABTM join rows of the given owners.
func (m *Model) deleteLinks(ctx context.Context, ids []any) error {
	var owner any = ids
	if len(ids) == 1 {
		owner = ids[0]
	}
	for _, a := range m.assocs.of(HasAndBelongsToMany) {
		jm, err := m.registry.joinModel(a, m.dsName)
		if err != nil {
			return err
		}
		b := querybuilder.New(a.JoinTable, a.With).Delete().Where(cond.Conditions{cond.F(a.ForeignKey, owner)})
		if _, err := jm.execute(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// UpdateAll sets fields on every row matching conditions and returns the
// number of rows changed. Conditions are not qualified; values of type
// querybuilder.Expr are written as SQL.
func (m *Model) UpdateAll(ctx context.Context, fields map[string]any, conditions cond.Conditions) (int64, error) {
	if len(fields) == 0 {
		return 0, &Error{Code: ErrCodeInvalidData, Model: m.name, Message: "update requires fields"}
	}
	b := querybuilder.New(m.table, m.name).Update(querybuilder.DataFromMap(fields)).Where(conditions)
	res, err := m.execute(ctx, b)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// Query runs raw SQL with named parameters. Statements that return rows
// are fetched; anything else is executed and returns no rows.
func (m *Model) Query(ctx context.Context, query string, params map[string]any) ([]datasource.Row, error) {
	ds, err := m.Datasource(ctx)
	if err != nil {
		return nil, err
	}
	if returnsRows(query) {
		return ds.FetchAll(ctx, query, params)
	}
	_, err = ds.Execute(ctx, query, params)
	return nil, err
}

func returnsRows(query string) bool {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "PRAGMA", "SHOW", "EXPLAIN", "DESCRIBE", "VALUES":
		return true
	}
	return false
}
