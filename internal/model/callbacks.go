package model

import (
	"context"

	"github.com/roach88/recordkit/internal/entity"
)

// Callbacks receives model lifecycle hooks. A Before hook returning false
// aborts the operation without an error.
type Callbacks interface {
	BeforeFind(ctx context.Context, m *Model, opts *FindOptions) bool
	AfterFind(ctx context.Context, m *Model, results []*entity.Entity, primary bool) []*entity.Entity
	BeforeValidate(ctx context.Context, m *Model, e *entity.Entity) bool
	AfterValidate(ctx context.Context, m *Model, e *entity.Entity)
	BeforeSave(ctx context.Context, m *Model, e *entity.Entity) bool
	AfterSave(ctx context.Context, m *Model, e *entity.Entity, created bool)
	BeforeDelete(ctx context.Context, m *Model, id any, cascade bool) bool
	AfterDelete(ctx context.Context, m *Model, id any)
}

// Extension is a named, reusable set of callbacks attached to models.
type Extension interface {
	Callbacks
	Name() string
}

// BaseCallbacks implements every hook as a no-op. Embed it to override only
// the hooks you need.
type BaseCallbacks struct{}

func (BaseCallbacks) BeforeFind(context.Context, *Model, *FindOptions) bool { return true }

func (BaseCallbacks) AfterFind(_ context.Context, _ *Model, results []*entity.Entity, _ bool) []*entity.Entity {
	return results
}

func (BaseCallbacks) BeforeValidate(context.Context, *Model, *entity.Entity) bool { return true }
func (BaseCallbacks) AfterValidate(context.Context, *Model, *entity.Entity)       {}
func (BaseCallbacks) BeforeSave(context.Context, *Model, *entity.Entity) bool     { return true }
func (BaseCallbacks) AfterSave(context.Context, *Model, *entity.Entity, bool)     {}
func (BaseCallbacks) BeforeDelete(context.Context, *Model, any, bool) bool        { return true }
func (BaseCallbacks) AfterDelete(context.Context, *Model, any)                    {}

// hooks returns extensions in attachment order followed by the model's own
// callbacks.
func (m *Model) hooks() []Callbacks {
	out := make([]Callbacks, 0, len(m.extensions)+1)
	for _, ext := range m.extensions {
		out = append(out, ext)
	}
	if m.callbacks != nil {
		out = append(out, m.callbacks)
	}
	return out
}

// before runs fn over every hook, stopping at the first false.
func (m *Model) before(fn func(Callbacks) bool) bool {
	for _, h := range m.hooks() {
		if !fn(h) {
			return false
		}
	}
	return true
}

func (m *Model) after(fn func(Callbacks)) {
	for _, h := range m.hooks() {
		fn(h)
	}
}

// AddExtension attaches ext, replacing an extension with the same name.
func (m *Model) AddExtension(ext Extension) {
	for i, cur := range m.extensions {
		if cur.Name() == ext.Name() {
			m.extensions[i] = ext
			return
		}
	}
	m.extensions = append(m.extensions, ext)
}

// Extension returns the attached extension with the given name.
func (m *Model) Extension(name string) (Extension, bool) {
	for _, ext := range m.extensions {
		if ext.Name() == name {
			return ext, true
		}
	}
	return nil, false
}

// Extensions returns attached extension names in order.
func (m *Model) Extensions() []string {
	out := make([]string, len(m.extensions))
	for i, ext := range m.extensions {
		out[i] = ext.Name()
	}
	return out
}

// SetCallbacks replaces the model's own callbacks.
func (m *Model) SetCallbacks(c Callbacks) {
	m.callbacks = c
}
