package compiler

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/roach88/recordkit/internal/model"
	"github.com/roach88/recordkit/internal/validation"
)

// Validation error codes (E100-E199)
const (
	ErrUnknownModel       = "E100" // association targets an undeclared model
	ErrDuplicateAlias     = "E101" // alias declared under two association kinds
	ErrUnknownRule        = "E102" // validation rule not registered
	ErrInvalidMode        = "E103" // bad HABTM save mode
	ErrUnknownExtension   = "E104" // extension name has no factory
	ErrInvalidOrder       = "E105" // malformed order entry
	ErrInvalidRecursive   = "E106" // recursive below -1
	ErrInvalidPaging      = "E107" // negative or misplaced limit/offset
	ErrInvalidSchema      = "E108" // static schema lacks the primary key
	ErrInvalidModelName   = "E109" // model name is not CamelCase
	ErrDependentBelongsTo = "E110" // dependent set on a belongsTo
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Model   string `json:"model"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s.%s: %s", e.Code, e.Line, e.Model, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Model, e.Field, e.Message)
}

var (
	modelNamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	orderPattern     = regexp.MustCompile(`(?i)^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?( (asc|desc))?$`)
)

// Validate checks compiled specs against each other and against the rule
// registry. It returns all errors found (does not fail-fast). A nil rules
// registry uses the built-in rules plus isUnique.
func Validate(specs []Spec, rules *validation.Registry) []ValidationError {
	known := make(map[string]bool, len(specs))
	for _, s := range specs {
		known[s.Definition.Name] = true
	}

	var errs []ValidationError
	for _, s := range specs {
		errs = append(errs, validateSpec(s, known, rules)...)
	}
	return errs
}

func validateSpec(s Spec, known map[string]bool, rules *validation.Registry) []ValidationError {
	def := s.Definition
	line := 0
	if s.Pos.IsValid() {
		line = s.Pos.Line()
	}
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Model:   def.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			Line:    line,
		})
	}

	if !modelNamePattern.MatchString(def.Name) {
		add("name", ErrInvalidModelName, "model name %q must be CamelCase", def.Name)
	}
	if def.Recursive != nil && *def.Recursive < -1 {
		add("recursive", ErrInvalidRecursive, "recursive must be -1 or more, got %d", *def.Recursive)
	}
	for i, o := range def.Order {
		if !orderPattern.MatchString(o) {
			add(fmt.Sprintf("order[%d]", i), ErrInvalidOrder, "invalid order entry %q", o)
		}
	}
	for _, name := range s.Extensions {
		if _, ok := extensionFactories[name]; !ok {
			add("extensions", ErrUnknownExtension, "unknown extension %q", name)
		}
	}

	if def.Schema != nil {
		pk := def.PrimaryKey
		if pk == "" {
			pk = "id"
		}
		if !def.Schema.Has(pk) {
			add("schema", ErrInvalidSchema, "schema has no primary key column %q", pk)
		}
	}

	for _, field := range sortedKeys(def.Validate) {
		for i, r := range def.Validate[field] {
			if r.Name == "" || r.Func != nil || ruleKnown(rules, r.Name) {
				continue
			}
			add(fmt.Sprintf("validate.%s[%d]", field, i), ErrUnknownRule, "unknown validation rule %q", r.Name)
		}
	}

	seen := make(map[string]model.Kind)
	sections := []struct {
		kind  model.Kind
		label string
		opts  map[string]model.AssociationOptions
	}{
		{model.BelongsTo, "belongs_to", def.BelongsTo},
		{model.HasOne, "has_one", def.HasOne},
		{model.HasMany, "has_many", def.HasMany},
		{model.HasAndBelongsToMany, "has_and_belongs_to_many", def.HasAndBelongsToMany},
	}
	for _, sec := range sections {
		for _, alias := range sortedKeys(sec.opts) {
			opts := sec.opts[alias]
			path := sec.label + "." + alias

			if prev, dup := seen[alias]; dup {
				add(path, ErrDuplicateAlias, "alias %q is already declared as %s", alias, prev)
			}
			seen[alias] = sec.kind

			target := opts.ClassName
			if target == "" {
				target = alias
			}
			if !known[target] {
				add(path, ErrUnknownModel, "association targets undeclared model %q", target)
			}

			if opts.Mode != "" {
				if sec.kind != model.HasAndBelongsToMany {
					add(path+".mode", ErrInvalidMode, "mode only applies to has_and_belongs_to_many")
				} else if opts.Mode != model.Replace && opts.Mode != model.Append {
					add(path+".mode", ErrInvalidMode, "mode must be %q or %q, got %q", model.Replace, model.Append, opts.Mode)
				}
			}

			if opts.Limit < 0 || opts.Offset < 0 {
				add(path, ErrInvalidPaging, "limit and offset must not be negative")
			} else if (opts.Limit > 0 || opts.Offset > 0) && (sec.kind == model.BelongsTo || sec.kind == model.HasOne) {
				add(path, ErrInvalidPaging, "limit and offset only apply to has_many and has_and_belongs_to_many")
			}

			if opts.Dependent && sec.kind == model.BelongsTo {
				add(path+".dependent", ErrDependentBelongsTo, "dependent cannot be set on belongs_to")
			}

			for i, o := range opts.Order {
				if !orderPattern.MatchString(o) {
					add(fmt.Sprintf("%s.order[%d]", path, i), ErrInvalidOrder, "invalid order entry %q", o)
				}
			}
		}
	}

	return errs
}

func ruleKnown(rules *validation.Registry, name string) bool {
	if rules == nil {
		if name == "isUnique" {
			return true
		}
		rules = validation.NewRegistry()
	}
	_, ok := rules.Lookup(name)
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
