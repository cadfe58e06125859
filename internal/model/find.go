package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/recordkit/internal/cond"
	"github.com/roach88/recordkit/internal/entity"
	"github.com/roach88/recordkit/internal/querybuilder"
)

// FindKind selects the result shape of Find.
type FindKind string

const (
	FindFirst FindKind = "first"
	FindAll   FindKind = "all"
	FindCount FindKind = "count"
	FindList  FindKind = "list"
)

// FindOptions shapes a find. Field names without an alias are qualified
// with the model alias.
type FindOptions struct {
	Conditions cond.Conditions
	Fields     []string
	Joins      []querybuilder.Join

	// Order replaces the model's default order. Nil keeps the default; an
	// empty slice removes it.
	Order []string

	Group  []string
	Having cond.Conditions
	Limit  int
	Page   int
	Offset int

	// Recursive overrides the model's eager-loading depth.
	Recursive *int

	// Associated loads exactly these association paths ("Author",
	// "Comments.User") instead of following Recursive.
	Associated []string

	SkipCallbacks bool
}

// Find dispatches to First, All, Count or List.
func (m *Model) Find(ctx context.Context, kind FindKind, opts FindOptions) (any, error) {
	switch kind {
	case FindFirst:
		e, err := m.First(ctx, opts)
		if err != nil || e == nil {
			return nil, err
		}
		return e, nil
	case FindAll:
		return m.All(ctx, opts)
	case FindCount:
		return m.Count(ctx, opts)
	case FindList:
		return m.List(ctx, opts)
	default:
		return nil, &Error{Code: ErrCodeInvalidData, Model: m.name, Message: fmt.Sprintf("unknown find kind %q", kind)}
	}
}

// First returns the first matching entity, or nil.
func (m *Model) First(ctx context.Context, opts FindOptions) (*entity.Entity, error) {
	opts.Limit = 1
	results, err := m.All(ctx, opts)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

// Get returns the entity with the given primary key or a NOT_FOUND error.
func (m *Model) Get(ctx context.Context, id any, opts FindOptions) (*entity.Entity, error) {
	opts.Conditions = cond.Conditions{cond.F(m.primaryKey, id)}.Append(opts.Conditions...)
	e, err := m.First(ctx, opts)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, NewNotFoundError(m.name, id)
	}
	return e, nil
}

// All returns every matching entity with associations loaded.
func (m *Model) All(ctx context.Context, opts FindOptions) ([]*entity.Entity, error) {
	if !opts.SkipCallbacks && !m.before(func(c Callbacks) bool { return c.BeforeFind(ctx, m, &opts) }) {
		return []*entity.Entity{}, nil
	}
	results, _, err := m.fetch(ctx, fetchSpec{opts: opts, graph: m.graphFor(opts)})
	if err != nil {
		return nil, err
	}
	if !opts.SkipCallbacks {
		for _, h := range m.hooks() {
			results = h.AfterFind(ctx, m, results, true)
		}
	}
	return results, nil
}

// Count returns the number of matching rows. Order, limit and paging are
// ignored; belongsTo and hasOne joins are kept so conditions may reference
// them.
func (m *Model) Count(ctx context.Context, opts FindOptions) (int64, error) {
	if !opts.SkipCallbacks && !m.before(func(c Callbacks) bool { return c.BeforeFind(ctx, m, &opts) }) {
		return 0, nil
	}
	ds, err := m.Datasource(ctx)
	if err != nil {
		return 0, err
	}

	b := querybuilder.New(m.table, m.name).Select("COUNT(*) AS count").Where(opts.Conditions)
	for _, j := range opts.Joins {
		b.Join(j)
	}
	g := m.graphFor(opts)
	if err := g.check(m); err != nil {
		return 0, err
	}
	for _, a := range m.assocs.all() {
		if !a.Kind.joined() || !g.includes(a) {
			continue
		}
		t, err := m.target(a)
		if err != nil {
			return 0, err
		}
		b.Join(querybuilder.Join{Type: querybuilder.JoinLeft, Table: t.table, Alias: a.Alias, Conditions: a.Conditions})
	}

	query, err := b.Write()
	if err != nil {
		return 0, err
	}
	row, err := ds.Fetch(ctx, query, b.Values().Map())
	if err != nil || row == nil {
		return 0, err
	}
	v, _ := row.Get("count")
	return toInt64(v), nil
}

// List returns key/value data without eager loading unless Recursive or
// Associated ask for it. The shape depends on the field count:
//
//	1 field   []any of values
//	3 fields  map[any]map[any]any grouped by the third field
//	otherwise map[any]any of first field to second
//
// Without Fields the primary key and display field are used.
func (m *Model) List(ctx context.Context, opts FindOptions) (any, error) {
	if opts.Recursive == nil && opts.Associated == nil {
		opts.Recursive = Depth(-1)
	}
	if len(opts.Fields) == 0 {
		opts.Fields = []string{m.primaryKey}
		if f := m.DisplayField(ctx); f != "" && f != m.primaryKey {
			opts.Fields = append(opts.Fields, f)
		}
	}
	if !opts.SkipCallbacks && !m.before(func(c Callbacks) bool { return c.BeforeFind(ctx, m, &opts) }) {
		return emptyList(len(opts.Fields)), nil
	}
	_, rows, err := m.fetch(ctx, fetchSpec{opts: opts, graph: m.graphFor(opts)})
	if err != nil {
		return nil, err
	}

	switch n := len(opts.Fields); {
	case n == 1:
		out := make([]any, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.Values[0])
		}
		return out, nil
	case n == 3:
		out := make(map[any]map[any]any)
		for _, r := range rows {
			group, ok := out[r.Values[2]]
			if !ok {
				group = make(map[any]any)
				out[r.Values[2]] = group
			}
			group[r.Values[0]] = r.Values[1]
		}
		return out, nil
	default:
		out := make(map[any]any, len(rows))
		for _, r := range rows {
			out[r.Values[0]] = r.Values[1]
		}
		return out, nil
	}
}

func emptyList(fields int) any {
	switch fields {
	case 1:
		return []any{}
	case 3:
		return map[any]map[any]any{}
	default:
		return map[any]any{}
	}
}

// Exists reports whether a row with the given primary key exists.
func (m *Model) Exists(ctx context.Context, id any) (bool, error) {
	if id == nil {
		return false, nil
	}
	n, err := m.Count(ctx, FindOptions{
		Conditions:    cond.Conditions{cond.F(m.primaryKey, id)},
		Recursive:     Depth(-1),
		SkipCallbacks: true,
	})
	return n > 0, err
}

func (m *Model) graphFor(opts FindOptions) *graph {
	if opts.Associated != nil {
		return explicitGraph(opts.Associated)
	}
	if opts.Recursive != nil {
		return &graph{depth: *opts.Recursive}
	}
	return &graph{depth: m.recursive}
}

// graph decides which associations a level loads: by remaining depth, or
// by an explicit alias tree.
type graph struct {
	depth    int
	explicit map[string]*graph
}

func explicitGraph(paths []string) *graph {
	root := &graph{explicit: make(map[string]*graph)}
	for _, p := range paths {
		cur := root
		for _, part := range strings.Split(p, ".") {
			if part == "" {
				continue
			}
			next, ok := cur.explicit[part]
			if !ok {
				next = &graph{explicit: make(map[string]*graph)}
				cur.explicit[part] = next
			}
			cur = next
		}
	}
	return root
}

func (g *graph) includes(a *Association) bool {
	if g.explicit != nil {
		_, ok := g.explicit[a.Alias]
		return ok
	}
	if a.Kind.joined() {
		return g.depth >= 0
	}
	return g.depth >= 1
}

func (g *graph) child(a *Association) *graph {
	if g.explicit != nil {
		return g.explicit[a.Alias]
	}
	return &graph{depth: g.depth - 1}
}

// check rejects explicit aliases the model does not declare.
func (g *graph) check(m *Model) error {
	for alias := range g.explicit {
		if _, ok := m.assocs.get(alias); !ok {
			return &Error{Code: ErrCodeInvalidAssociation, Model: m.name, Association: alias, Message: "association is not declared"}
		}
	}
	return nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		var out int64
		_, _ = fmt.Sscan(n, &out)
		return out
	}
	return 0
}
