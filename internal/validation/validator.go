package validation

import (
	"context"

	"github.com/roach88/recordkit/internal/entity"
)

// When restricts a rule to creates or updates.
type When string

const (
	Always   When = ""
	OnCreate When = "create"
	OnUpdate When = "update"
)

// Default messages.
const (
	MessageRequired = "This field is required"
	MessageNotBlank = "This field cannot be left empty"
	MessageInvalid  = "The provided value is invalid"
)

// Rule is one check on one field.
type Rule struct {
	// Name selects a registered rule. Ignored when Func is set.
	Name string

	// Func is an inline rule.
	Func Func

	// Args are passed to the rule through Context.Args.
	Args []any

	// Message replaces the default failure message.
	Message string

	// On limits the rule to creates or updates.
	On When

	// Required rejects entities that lack the field entirely.
	Required bool

	// RunOnEmpty runs the rule even when the value is empty.
	RunOnEmpty bool
}

// Validator holds ordered rule lists per field.
type Validator struct {
	registry *Registry
	fields   []string
	rules    map[string][]Rule
}

// New returns a validator resolving rule names through reg. A nil registry
// uses the built-ins.
func New(reg *Registry) *Validator {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Validator{
		registry: reg,
		rules:    make(map[string][]Rule),
	}
}

// Registry returns the rule registry.
func (v *Validator) Registry() *Registry { return v.registry }

// Add appends rules for field.
func (v *Validator) Add(field string, rules ...Rule) *Validator {
	if _, ok := v.rules[field]; !ok {
		v.fields = append(v.fields, field)
	}
	v.rules[field] = append(v.rules[field], rules...)
	return v
}

// Set replaces the rules for field.
func (v *Validator) Set(field string, rules ...Rule) *Validator {
	if _, ok := v.rules[field]; !ok {
		v.fields = append(v.fields, field)
	}
	v.rules[field] = append([]Rule(nil), rules...)
	return v
}

// Rules returns the rules declared for field.
func (v *Validator) Rules(field string) []Rule {
	return append([]Rule(nil), v.rules[field]...)
}

// Fields returns validated fields in declaration order.
func (v *Validator) Fields() []string {
	return append([]string(nil), v.fields...)
}

// Validate checks e, recording failures on it. It returns false when any
// field failed.
func (v *Validator) Validate(ctx context.Context, e *entity.Entity) (bool, error) {
	valid := true
	for _, field := range v.fields {
		ok, err := v.validateField(ctx, e, field)
		if err != nil {
			return false, err
		}
		if !ok {
			valid = false
		}
	}
	return valid, nil
}

func (v *Validator) validateField(ctx context.Context, e *entity.Entity, field string) (bool, error) {
	isNew := e.IsNew()
	var active []Rule
	for _, r := range v.rules[field] {
		if r.On == OnCreate && !isNew || r.On == OnUpdate && isNew {
			continue
		}
		active = append(active, r)
	}
	if len(active) == 0 {
		return true, nil
	}
	for _, r := range active {
		if r.Func != nil || r.Name == "" {
			continue
		}
		if _, ok := v.registry.Lookup(r.Name); !ok {
			return false, &Error{Code: ErrCodeUnknownRule, Rule: r.Name, Field: field}
		}
	}

	// Required only applies to creates; updates carry partial data.
	if !e.HasProperty(field) {
		for _, r := range active {
			if r.Required && (isNew || r.On == OnUpdate) {
				e.Invalidate(field, message(r, MessageRequired))
				return false, nil
			}
		}
		return true, nil
	}

	value := e.Get(field)
	c := Context{Ctx: ctx, Field: field, Entity: e, IsNew: isNew}

	for _, r := range active {
		if r.Name != "notBlank" || r.Func != nil {
			continue
		}
		if IsEmpty(value) {
			e.Invalidate(field, message(r, MessageNotBlank))
			return false, nil
		}
	}

	empty := IsEmpty(value)
	for _, r := range active {
		if r.Name == "notBlank" && r.Func == nil {
			continue
		}
		if r.Func == nil && r.Name == "" {
			// a bare Required marker
			continue
		}
		if empty && !r.RunOnEmpty {
			continue
		}
		fn := r.Func
		if fn == nil {
			fn, _ = v.registry.Lookup(r.Name)
		}
		c.Args = r.Args
		ok, err := fn(value, c)
		if err != nil {
			return false, err
		}
		if !ok {
			e.Invalidate(field, message(r, MessageInvalid))
			return false, nil
		}
	}
	return true, nil
}

func message(r Rule, fallback string) string {
	if r.Message != "" {
		return r.Message
	}
	return fallback
}
