package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/recordkit/internal/cond"
	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/entity"
	"github.com/roach88/recordkit/internal/querybuilder"
)

// fetchSpec is one SELECT level of a find.
type fetchSpec struct {
	opts  FindOptions
	graph *graph

	// alias replaces the model name as table alias, so association
	// conditions written against the association alias still apply.
	alias string

	// hidden joins and fields carry keys needed to attach results to their
	// owners. Their columns never become entity fields.
	hiddenJoins  []querybuilder.Join
	hiddenFields []string
}

// fetch runs one SELECT, hydrates entities and loads their associations.
// Rows are returned in the same order as entities.
func (m *Model) fetch(ctx context.Context, spec fetchSpec) ([]*entity.Entity, []datasource.Row, error) {
	ds, err := m.Datasource(ctx)
	if err != nil {
		return nil, nil, err
	}
	g := spec.graph
	if g == nil {
		g = &graph{depth: -1}
	}
	if err := g.check(m); err != nil {
		return nil, nil, err
	}
	alias := spec.alias
	if alias == "" {
		alias = m.name
	}
	opts := spec.opts

	var joined []*Association
	for _, a := range m.assocs.all() {
		if a.Kind.joined() && g.includes(a) {
			joined = append(joined, a)
		}
	}

	fields := append([]string(nil), opts.Fields...)
	if len(fields) == 0 && (len(joined) > 0 || len(spec.hiddenFields) > 0) {
		s, err := m.Schema(ctx)
		if err != nil {
			return nil, nil, err
		}
		fields = s.Names()
	}
	order := opts.Order
	if order == nil {
		order = m.order
	}
	order = append([]string(nil), order...)

	joins := append([]querybuilder.Join(nil), opts.Joins...)
	joins = append(joins, spec.hiddenJoins...)
	targets := make(map[string]*Model, len(joined))
	for _, a := range joined {
		t, err := m.target(a)
		if err != nil {
			return nil, nil, err
		}
		cols, err := t.columns(ctx, a.Fields)
		if err != nil {
			return nil, nil, err
		}
		for _, c := range cols {
			fields = append(fields, fmt.Sprintf("%s.%s AS %s__%s", a.Alias, c, a.Alias, c))
		}
		joins = append(joins, querybuilder.Join{
			Type:       querybuilder.JoinLeft,
			Table:      t.table,
			Alias:      a.Alias,
			Conditions: a.on(alias),
		})
		order = append(order, qualifyAll(a.Alias, a.Order)...)
		targets[a.Alias] = t
	}
	fields = append(fields, spec.hiddenFields...)

	b := querybuilder.New(m.table, alias).
		Select(fields...).
		Where(opts.Conditions).
		Group(opts.Group...).
		Having(opts.Having).
		Order(order...)
	for _, j := range joins {
		b.Join(j)
	}
	if opts.Limit > 0 {
		b.Limit(opts.Limit)
	}
	if opts.Page > 0 {
		b.Page(opts.Page)
	}
	if opts.Offset > 0 {
		b.Offset(opts.Offset)
	}

	query, err := b.Write()
	if err != nil {
		return nil, nil, err
	}
	rows, err := ds.FetchAll(ctx, query, b.Values().Map())
	if err != nil {
		return nil, nil, err
	}

	hidden := make(map[string]bool, len(spec.hiddenJoins))
	for _, j := range spec.hiddenJoins {
		hidden[j.Alias] = true
	}
	results := m.hydrate(rows, joined, hidden)
	m.logger.Debug("find", "rows", len(rows), "joined", len(joined))

	for _, a := range joined {
		var children []*entity.Entity
		for _, e := range results {
			if c, ok := e.Get(a.Property).(*entity.Entity); ok && c != nil {
				children = append(children, c)
			}
		}
		if len(children) == 0 {
			continue
		}
		if err := targets[a.Alias].loadAssociations(ctx, children, g.child(a), false); err != nil {
			return nil, nil, err
		}
	}
	if err := m.loadAssociations(ctx, results, g, true); err != nil {
		return nil, nil, err
	}
	return results, rows, nil
}

// hydrate splits each row into the root entity and one nested entity per
// joined association. A joined association whose columns are all NULL is
// set to nil.
func (m *Model) hydrate(rows []datasource.Row, joined []*Association, hidden map[string]bool) []*entity.Entity {
	byAlias := make(map[string]*Association, len(joined))
	for _, a := range joined {
		byAlias[a.Alias] = a
	}

	type part struct {
		cols []string
		vals []any
	}
	out := make([]*entity.Entity, 0, len(rows))
	for _, row := range rows {
		var root part
		parts := make(map[string]*part)
		for i, col := range row.Columns {
			if prefix, field, ok := strings.Cut(col, "__"); ok {
				if hidden[prefix] {
					continue
				}
				if _, known := byAlias[prefix]; known {
					p := parts[prefix]
					if p == nil {
						p = &part{}
						parts[prefix] = p
					}
					p.cols = append(p.cols, field)
					p.vals = append(p.vals, row.Values[i])
					continue
				}
			}
			root.cols = append(root.cols, col)
			root.vals = append(root.vals, row.Values[i])
		}

		e := entity.Hydrate(m.name, root.cols, root.vals)
		for _, a := range joined {
			p := parts[a.Alias]
			if p == nil || allNil(p.vals) {
				e.Set(a.Property, nil)
				continue
			}
			e.Set(a.Property, entity.Hydrate(a.ClassName, p.cols, p.vals))
		}
		e.Clean()
		out = append(out, e)
	}
	return out
}

// loadAssociations attaches associations of the owners selected by g with
// batched queries. skipJoined leaves belongsTo and hasOne alone because the
// owners' own query already joined them.
func (m *Model) loadAssociations(ctx context.Context, owners []*entity.Entity, g *graph, skipJoined bool) error {
	if g == nil || len(owners) == 0 {
		return nil
	}
	if err := g.check(m); err != nil {
		return err
	}
	for _, a := range m.assocs.all() {
		if !g.includes(a) || (skipJoined && a.Kind.joined()) {
			continue
		}
		t, err := m.target(a)
		if err != nil {
			return err
		}
		switch a.Kind {
		case BelongsTo:
			err = m.loadBelongsTo(ctx, t, a, owners, g.child(a))
		case HasOne, HasMany:
			err = m.loadHasMany(ctx, t, a, owners, g.child(a))
		case HasAndBelongsToMany:
			err = m.loadHABTM(ctx, t, a, owners, g.child(a))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) loadBelongsTo(ctx context.Context, t *Model, a *Association, owners []*entity.Entity, g *graph) error {
	index := make(map[string]*entity.Entity)
	for _, batch := range chunk(distinct(owners, a.ForeignKey), m.batchSize) {
		results, _, err := t.fetch(ctx, fetchSpec{
			opts: FindOptions{
				Conditions: cond.Conditions{cond.F(t.primaryKey, batch)}.Append(a.UserConditions()...),
				Fields:     withField(a.Fields, t.primaryKey),
				Order:      []string{},
			},
			graph: g,
			alias: a.Alias,
		})
		if err != nil {
			return err
		}
		for _, r := range results {
			index[keyOf(r.Get(t.primaryKey))] = r
		}
	}
	for _, o := range owners {
		attach(o, a.Property, nil)
		if fk := o.Get(a.ForeignKey); fk != nil {
			if r, ok := index[keyOf(fk)]; ok {
				attach(o, a.Property, r)
			}
		}
	}
	return nil
}

// loadHasMany serves hasOne and hasMany: target rows hold the owner key.
func (m *Model) loadHasMany(ctx context.Context, t *Model, a *Association, owners []*entity.Entity, g *graph) error {
	groups := make(map[string][]*entity.Entity)
	for _, batch := range chunk(distinct(owners, m.primaryKey), m.batchSize) {
		results, _, err := t.fetch(ctx, fetchSpec{
			opts: FindOptions{
				Conditions: cond.Conditions{cond.F(a.ForeignKey, batch)}.Append(a.UserConditions()...),
				Fields:     withField(a.Fields, a.ForeignKey),
				Order:      a.Order,
			},
			graph: g,
			alias: a.Alias,
		})
		if err != nil {
			return err
		}
		for _, r := range results {
			k := keyOf(r.Get(a.ForeignKey))
			groups[k] = append(groups[k], r)
		}
	}
	for _, o := range owners {
		list := window(groups[keyOf(o.Get(m.primaryKey))], a.Offset, a.Limit)
		if a.Kind == HasOne {
			var first any
			if len(list) > 0 {
				first = list[0]
			}
			attach(o, a.Property, first)
			continue
		}
		attach(o, a.Property, list)
	}
	return nil
}

// loadHABTM queries targets through the join table. The join table key is
// selected as a hidden column and used to group results by owner.
func (m *Model) loadHABTM(ctx context.Context, t *Model, a *Association, owners []*entity.Entity, g *graph) error {
	key := a.With + "__" + a.ForeignKey
	groups := make(map[string][]*entity.Entity)
	for _, batch := range chunk(distinct(owners, m.primaryKey), m.batchSize) {
		results, rows, err := t.fetch(ctx, fetchSpec{
			opts: FindOptions{
				Conditions: cond.Conditions{cond.F(a.With+"."+a.ForeignKey, batch)}.Append(a.UserConditions()...),
				Fields:     a.Fields,
				Order:      a.Order,
			},
			graph: g,
			alias: a.Alias,
			hiddenJoins: []querybuilder.Join{{
				Type:       querybuilder.JoinInner,
				Table:      a.JoinTable,
				Alias:      a.With,
				Conditions: cond.Conditions{a.JoinCondition()},
			}},
			hiddenFields: []string{fmt.Sprintf("%s.%s AS %s", a.With, a.ForeignKey, key)},
		})
		if err != nil {
			return err
		}
		for i, r := range results {
			owner, _ := rows[i].Get(key)
			k := keyOf(owner)
			groups[k] = append(groups[k], r)
		}
	}
	for _, o := range owners {
		attach(o, a.Property, window(groups[keyOf(o.Get(m.primaryKey))], a.Offset, a.Limit))
	}
	return nil
}

// columns returns the requested fields, or every schema column.
func (m *Model) columns(ctx context.Context, fields []string) ([]string, error) {
	if len(fields) > 0 {
		return fields, nil
	}
	s, err := m.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return s.Names(), nil
}

// attach sets a loaded association without marking the owner dirty.
func attach(e *entity.Entity, property string, value any) {
	e.Set(property, value)
	e.SetDirty(property, false)
}

func allNil(values []any) bool {
	for _, v := range values {
		if v != nil {
			return false
		}
	}
	return true
}

// distinct collects the non-nil values of field, first occurrence first.
func distinct(entities []*entity.Entity, field string) []any {
	seen := make(map[string]bool)
	var out []any
	for _, e := range entities {
		v := e.Get(field)
		if v == nil {
			continue
		}
		k := keyOf(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

func chunk(values []any, size int) [][]any {
	var out [][]any
	for len(values) > 0 {
		n := min(size, len(values))
		out = append(out, values[:n])
		values = values[n:]
	}
	return out
}

// window applies a per-owner offset and limit. The result is never nil.
func window(list []*entity.Entity, offset, limit int) []*entity.Entity {
	if offset > 0 {
		if offset >= len(list) {
			return []*entity.Entity{}
		}
		list = list[offset:]
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return append([]*entity.Entity{}, list...)
}

// withField appends field to a non-empty field list that lacks it.
func withField(fields []string, field string) []string {
	if len(fields) == 0 {
		return nil
	}
	for _, f := range fields {
		if f == field {
			return fields
		}
	}
	return append(append([]string(nil), fields...), field)
}

func qualifyAll(alias string, items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		if strings.ContainsAny(strings.Fields(item + " x")[0], ".(") {
			out[i] = item
			continue
		}
		out[i] = alias + "." + item
	}
	return out
}

// keyOf normalizes key values so int and int64 ids compare equal.
func keyOf(v any) string {
	return fmt.Sprint(v)
}
