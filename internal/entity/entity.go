package entity

import (
	"reflect"
	"sort"
)

// Entity is a mutable record. It is not safe for concurrent use.
type Entity struct {
	source   string
	fields   []string
	values   map[string]any
	dirty    map[string]bool
	original map[string]any
	isNew    bool
	errors   map[string][]string
}

// New returns an empty, new entity for the named source model.
func New(source string) *Entity {
	return &Entity{
		source:   source,
		values:   make(map[string]any),
		dirty:    make(map[string]bool),
		original: make(map[string]any),
		isNew:    true,
		errors:   make(map[string][]string),
	}
}

// FromMap returns a new entity populated from m with keys in sorted order.
// Every field starts dirty.
func FromMap(source string, m map[string]any) *Entity {
	e := New(source)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.Set(k, m[k])
	}
	return e
}

// Hydrate returns a persisted, clean entity holding columns and values in
// order. Finders use it for rows read from storage.
func Hydrate(source string, columns []string, values []any) *Entity {
	e := New(source)
	for i, c := range columns {
		var v any
		if i < len(values) {
			v = values[i]
		}
		e.Set(c, v)
	}
	e.Clean()
	e.isNew = false
	return e
}

// Source returns the model alias the entity belongs to.
func (e *Entity) Source() string { return e.source }

// SetSource changes the model alias.
func (e *Entity) SetSource(source string) { e.source = source }

// Get returns a field value, or nil when the field is absent.
func (e *Entity) Get(field string) any {
	return e.values[field]
}

// Lookup returns a field value and whether the field is present.
func (e *Entity) Lookup(field string) (any, bool) {
	v, ok := e.values[field]
	return v, ok
}

// Has reports whether the field is present and not nil.
func (e *Entity) Has(field string) bool {
	v, ok := e.values[field]
	return ok && v != nil
}

// HasProperty reports whether the field is present, even when nil.
func (e *Entity) HasProperty(field string) bool {
	_, ok := e.values[field]
	return ok
}

// Set assigns a field and marks it dirty.
func (e *Entity) Set(field string, value any) {
	if _, ok := e.values[field]; !ok {
		e.fields = append(e.fields, field)
	} else if _, seen := e.original[field]; !seen && !e.dirty[field] {
		e.original[field] = e.values[field]
	}
	e.values[field] = value
	e.dirty[field] = true
}

// SetMany assigns every entry of m in sorted key order.
func (e *Entity) SetMany(m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e.Set(k, m[k])
	}
}

// Unset removes a field.
func (e *Entity) Unset(field string) {
	if _, ok := e.values[field]; !ok {
		return
	}
	delete(e.values, field)
	delete(e.dirty, field)
	delete(e.original, field)
	for i, f := range e.fields {
		if f == field {
			e.fields = append(e.fields[:i], e.fields[i+1:]...)
			break
		}
	}
}

// Fields returns field names in insertion order.
func (e *Entity) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Original returns the value a field held before it was first changed.
func (e *Entity) Original(field string) any {
	if v, ok := e.original[field]; ok {
		return v
	}
	return e.values[field]
}

// IsDirty reports whether a field changed since the entity was loaded or
// last cleaned. With no field it reports whether any field is dirty.
func (e *Entity) IsDirty(field ...string) bool {
	if len(field) == 0 {
		return len(e.dirty) > 0
	}
	return e.dirty[field[0]]
}

// SetDirty marks or unmarks a field as dirty.
func (e *Entity) SetDirty(field string, dirty bool) {
	if dirty {
		e.dirty[field] = true
		return
	}
	delete(e.dirty, field)
}

// DirtyFields returns dirty field names in insertion order.
func (e *Entity) DirtyFields() []string {
	var out []string
	for _, f := range e.fields {
		if e.dirty[f] {
			out = append(out, f)
		}
	}
	return out
}

// Clean clears dirty state, original values and errors.
func (e *Entity) Clean() {
	e.dirty = make(map[string]bool)
	e.original = make(map[string]any)
	e.errors = make(map[string][]string)
}

// IsNew reports whether the entity has not been persisted yet.
func (e *Entity) IsNew() bool { return e.isNew }

// SetNew sets the persisted flag.
func (e *Entity) SetNew(isNew bool) { e.isNew = isNew }

// Invalidate records a validation message for field.
func (e *Entity) Invalidate(field, message string) {
	e.errors[field] = append(e.errors[field], message)
}

// Errors returns a copy of the field → messages map.
func (e *Entity) Errors() map[string][]string {
	out := make(map[string][]string, len(e.errors))
	for k, v := range e.errors {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// FieldErrors returns the messages recorded for one field.
func (e *Entity) FieldErrors(field string) []string {
	return append([]string(nil), e.errors[field]...)
}

// HasErrors reports whether any validation message is recorded, including
// on nested entities.
func (e *Entity) HasErrors() bool {
	if len(e.errors) > 0 {
		return true
	}
	for _, f := range e.fields {
		switch v := e.values[f].(type) {
		case *Entity:
			if v != nil && v.HasErrors() {
				return true
			}
		case []*Entity:
			for _, child := range v {
				if child != nil && child.HasErrors() {
					return true
				}
			}
		}
	}
	return false
}

// ClearErrors removes all validation messages.
func (e *Entity) ClearErrors() {
	e.errors = make(map[string][]string)
}

// ToMap returns the entity as nested maps: *Entity values become
// map[string]any and []*Entity values become []map[string]any.
func (e *Entity) ToMap() map[string]any {
	out := make(map[string]any, len(e.fields))
	for _, f := range e.fields {
		switch v := e.values[f].(type) {
		case *Entity:
			if v == nil {
				out[f] = nil
				continue
			}
			out[f] = v.ToMap()
		case []*Entity:
			list := make([]map[string]any, 0, len(v))
			for _, child := range v {
				if child != nil {
					list = append(list, child.ToMap())
				}
			}
			out[f] = list
		default:
			out[f] = v
		}
	}
	return out
}

// IsScalar reports whether v can be written to a single column.
func IsScalar(v any) bool {
	if v == nil {
		return true
	}
	switch v.(type) {
	case []byte, string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer, reflect.Func, reflect.Chan:
		// time.Time is a struct but a valid column value
		_, ok := v.(interface{ UnixNano() int64 })
		return ok
	}
	return true
}
