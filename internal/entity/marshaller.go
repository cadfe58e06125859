package entity

import (
	"reflect"
	"sort"
)

// IDsKey is the nested-data key that lists associated primary keys instead of
// full records: {"tags": {"_ids": [1, 2]}}.
const IDsKey = "_ids"

// Options controls how raw data becomes an entity.
type Options struct {
	// Source is the model alias assigned to built entities.
	Source string

	// PrimaryKey names the primary key field, used for "_ids" lists.
	PrimaryKey string

	// Fields whitelists assignable fields. Empty allows every field.
	Fields []string

	// Associated maps a property name to the options of the nested entities
	// it holds. Properties missing from this map are assigned as they are.
	Associated map[string]Options
}

// Marshaller converts request-shaped data into entities.
type Marshaller struct{}

// NewMarshaller returns a Marshaller.
func NewMarshaller() *Marshaller {
	return &Marshaller{}
}

// One builds a new entity from data.
func (m *Marshaller) One(data map[string]any, opts Options) *Entity {
	e := New(opts.Source)
	m.assign(e, data, opts, false)
	return e
}

// Many builds one new entity per element of data.
func (m *Marshaller) Many(data []map[string]any, opts Options) []*Entity {
	out := make([]*Entity, 0, len(data))
	for _, d := range data {
		out = append(out, m.One(d, opts))
	}
	return out
}

// Patch merges data into an existing entity. Only values that differ from
// the current ones are assigned, so unchanged fields stay clean.
func (m *Marshaller) Patch(e *Entity, data map[string]any, opts Options) *Entity {
	if opts.Source == "" {
		opts.Source = e.Source()
	}
	m.assign(e, data, opts, true)
	return e
}

func (m *Marshaller) assign(e *Entity, data map[string]any, opts Options, patch bool) {
	allowed := allowList(opts.Fields)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if allowed != nil && !allowed[k] {
			continue
		}
		v := data[k]
		if nested, ok := opts.Associated[k]; ok {
			v = m.nested(e.Get(k), v, nested, patch)
		}
		if patch {
			if cur, ok := e.Lookup(k); ok && sameValue(cur, v) {
				continue
			}
		}
		e.Set(k, v)
	}
}

// nested converts a map into *Entity and a list of maps (or an "_ids"
// map) into []*Entity. When patching, an existing nested entity is patched
// in place.
func (m *Marshaller) nested(current, v any, opts Options, patch bool) any {
	switch t := v.(type) {
	case map[string]any:
		if ids, ok := t[IDsKey]; ok {
			return m.idList(ids, opts)
		}
		if cur, ok := current.(*Entity); ok && patch && cur != nil {
			return m.Patch(cur, t, opts)
		}
		return m.One(t, opts)
	case []map[string]any:
		return m.Many(t, opts)
	case []any:
		out := make([]*Entity, 0, len(t))
		for _, item := range t {
			switch it := item.(type) {
			case map[string]any:
				out = append(out, m.One(it, opts))
			case *Entity:
				out = append(out, it)
			}
		}
		return out
	}
	return v
}

func (m *Marshaller) idList(ids any, opts Options) []*Entity {
	pk := opts.PrimaryKey
	if pk == "" {
		pk = "id"
	}
	rv := reflect.ValueOf(ids)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []*Entity{}
	}
	out := make([]*Entity, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		e := New(opts.Source)
		e.Set(pk, rv.Index(i).Interface())
		out = append(out, e)
	}
	return out
}

func allowList(fields []string) map[string]bool {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f] = true
	}
	return out
}

func sameValue(a, b any) bool {
	if !IsScalar(a) || !IsScalar(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}
