package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/recordkit/internal/cond"
	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/model"
	"github.com/roach88/recordkit/internal/validation"
)

// Spec is a compiled model declaration. Extensions are kept by name and
// instantiated by Define, since they need the registry's clock.
type Spec struct {
	Definition model.Definition
	Extensions []string
	Pos        token.Pos
}

// CompileModels compiles every field of the top-level "model" struct.
// Errors are collected, not returned on the first failure.
//
//	model: Article: {
//		table: "articles"
//		belongs_to: Author: {}
//		has_many: Comment: {dependent: true}
//	}
func CompileModels(v cue.Value) ([]Spec, []error) {
	modelsVal := v.LookupPath(cue.ParsePath("model"))
	if !modelsVal.Exists() {
		return nil, nil
	}

	iter, err := modelsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var (
		specs []Spec
		errs  []error
	)
	for iter.Next() {
		spec, err := CompileModel(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		specs = append(specs, *spec)
	}
	return specs, errs
}

// CompileModel parses one model struct. The model name is the struct label.
func CompileModel(v cue.Value) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &Spec{Pos: v.Pos()}
	def := &spec.Definition

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = labels[len(labels)-1].Unquoted()
	}
	if def.Name == "" {
		return nil, &CompileError{Field: "model", Message: "model name is required", Pos: v.Pos()}
	}

	var err error
	if def.Table, err = optionalString(v, "table"); err != nil {
		return nil, err
	}
	if def.PrimaryKey, err = optionalString(v, "primary_key"); err != nil {
		return nil, err
	}
	if def.DisplayField, err = optionalString(v, "display_field"); err != nil {
		return nil, err
	}
	if def.Datasource, err = optionalString(v, "datasource"); err != nil {
		return nil, err
	}
	if def.Order, err = optionalStrings(v, "order"); err != nil {
		return nil, err
	}
	if spec.Extensions, err = optionalStrings(v, "extensions"); err != nil {
		return nil, err
	}

	if rv := v.LookupPath(cue.ParsePath("recursive")); rv.Exists() {
		n, err := rv.Int64()
		if err != nil {
			return nil, &CompileError{Field: "recursive", Message: "must be an integer", Pos: rv.Pos()}
		}
		def.Recursive = model.Depth(int(n))
	}
	if bv := v.LookupPath(cue.ParsePath("batch_size")); bv.Exists() {
		n, err := bv.Int64()
		if err != nil {
			return nil, &CompileError{Field: "batch_size", Message: "must be an integer", Pos: bv.Pos()}
		}
		def.BatchSize = int(n)
	}

	if def.Schema, err = parseSchema(v, def.Table); err != nil {
		return nil, err
	}
	if def.Validate, err = parseValidate(v); err != nil {
		return nil, err
	}

	sections := []struct {
		label string
		dst   *map[string]model.AssociationOptions
	}{
		{"belongs_to", &def.BelongsTo},
		{"has_one", &def.HasOne},
		{"has_many", &def.HasMany},
		{"has_and_belongs_to_many", &def.HasAndBelongsToMany},
	}
	for _, s := range sections {
		assocs, err := parseAssociations(v, s.label)
		if err != nil {
			return nil, err
		}
		*s.dst = assocs
	}

	return spec, nil
}

// parseAssociations reads one association section: alias -> options.
func parseAssociations(v cue.Value, label string) (map[string]model.AssociationOptions, error) {
	section := v.LookupPath(cue.ParsePath(label))
	if !section.Exists() {
		return nil, nil
	}
	iter, err := section.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := make(map[string]model.AssociationOptions)
	for iter.Next() {
		alias := iter.Selector().Unquoted()
		av := iter.Value()

		var opts model.AssociationOptions
		fields := []struct {
			name string
			dst  *string
		}{
			{"class_name", &opts.ClassName},
			{"foreign_key", &opts.ForeignKey},
			{"association_foreign_key", &opts.AssociationForeignKey},
			{"join_table", &opts.JoinTable},
			{"with", &opts.With},
			{"property", &opts.Property},
		}
		for _, f := range fields {
			if *f.dst, err = optionalString(av, f.name); err != nil {
				return nil, err
			}
		}
		if opts.Fields, err = optionalStrings(av, "fields"); err != nil {
			return nil, err
		}
		if opts.Order, err = optionalStrings(av, "order"); err != nil {
			return nil, err
		}
		if opts.Limit, err = optionalInt(av, "limit"); err != nil {
			return nil, err
		}
		if opts.Offset, err = optionalInt(av, "offset"); err != nil {
			return nil, err
		}
		if dv := av.LookupPath(cue.ParsePath("dependent")); dv.Exists() {
			if opts.Dependent, err = dv.Bool(); err != nil {
				return nil, &CompileError{Field: label + ".dependent", Message: "must be a bool", Pos: dv.Pos()}
			}
		}
		mode, err := optionalString(av, "mode")
		if err != nil {
			return nil, err
		}
		opts.Mode = model.SaveMode(mode)

		if cv := av.LookupPath(cue.ParsePath("conditions")); cv.Exists() {
			var m map[string]any
			if err := cv.Decode(&m); err != nil {
				return nil, &CompileError{Field: label + ".conditions", Message: "must be a struct of field: value", Pos: cv.Pos()}
			}
			opts.Conditions = cond.FromMap(m)
		}

		out[alias] = opts
	}
	return out, nil
}

// parseValidate reads field -> [...rule].
func parseValidate(v cue.Value) (map[string][]validation.Rule, error) {
	section := v.LookupPath(cue.ParsePath("validate"))
	if !section.Exists() {
		return nil, nil
	}
	iter, err := section.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := make(map[string][]validation.Rule)
	for iter.Next() {
		field := iter.Selector().Unquoted()
		list, err := iter.Value().List()
		if err != nil {
			return nil, &CompileError{Field: "validate." + field, Message: "must be a list of rules", Pos: iter.Value().Pos()}
		}
		for list.Next() {
			rule, err := parseRule(list.Value())
			if err != nil {
				return nil, err
			}
			out[field] = append(out[field], rule)
		}
	}
	return out, nil
}

// parseRule accepts a bare rule name or a rule struct.
func parseRule(v cue.Value) (validation.Rule, error) {
	if name, err := v.String(); err == nil {
		return validation.Rule{Name: name}, nil
	}

	var (
		r   validation.Rule
		err error
	)
	if r.Name, err = optionalString(v, "rule"); err != nil {
		return r, err
	}
	if r.Message, err = optionalString(v, "message"); err != nil {
		return r, err
	}
	on, err := optionalString(v, "on")
	if err != nil {
		return r, err
	}
	switch validation.When(on) {
	case validation.Always, validation.OnCreate, validation.OnUpdate:
		r.On = validation.When(on)
	default:
		return r, &CompileError{Field: "on", Message: fmt.Sprintf("unknown value %q: must be create or update", on), Pos: v.Pos()}
	}
	if bv := v.LookupPath(cue.ParsePath("required")); bv.Exists() {
		if r.Required, err = bv.Bool(); err != nil {
			return r, formatCUEError(err)
		}
	}
	if bv := v.LookupPath(cue.ParsePath("run_on_empty")); bv.Exists() {
		if r.RunOnEmpty, err = bv.Bool(); err != nil {
			return r, formatCUEError(err)
		}
	}
	if av := v.LookupPath(cue.ParsePath("args")); av.Exists() {
		if err := av.Decode(&r.Args); err != nil {
			return r, &CompileError{Field: "args", Message: "must be a list", Pos: av.Pos()}
		}
	}
	if r.Name == "" && !r.Required {
		return r, &CompileError{Field: "rule", Message: "rule name is required", Pos: v.Pos()}
	}
	return r, nil
}

// parseSchema reads an optional static column list.
func parseSchema(v cue.Value, table string) (*datasource.Schema, error) {
	section := v.LookupPath(cue.ParsePath("schema"))
	if !section.Exists() {
		return nil, nil
	}
	list, err := section.List()
	if err != nil {
		return nil, &CompileError{Field: "schema", Message: "must be a list of columns", Pos: section.Pos()}
	}

	schema := &datasource.Schema{Table: table}
	for list.Next() {
		cv := list.Value()
		name, err := optionalString(cv, "name")
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, &CompileError{Field: "schema.name", Message: "column name is required", Pos: cv.Pos()}
		}
		declared, err := optionalString(cv, "type")
		if err != nil {
			return nil, err
		}
		typ, length := datasource.ParseType(declared)
		col := datasource.Column{Name: name, Type: typ, Length: length}
		if col.Key, err = optionalString(cv, "key"); err != nil {
			return nil, err
		}
		if nv := cv.LookupPath(cue.ParsePath("null")); nv.Exists() {
			if col.Null, err = nv.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if dv := cv.LookupPath(cue.ParsePath("default")); dv.Exists() {
			if err := dv.Decode(&col.Default); err != nil {
				return nil, formatCUEError(err)
			}
		}
		schema.Columns = append(schema.Columns, col)
	}
	return schema, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func optionalStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	if s, err := fv.String(); err == nil {
		return []string{s}, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a string or a list of strings", Pos: fv.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

func optionalInt(v cue.Value, field string) (int, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, &CompileError{Field: field, Message: "must be an integer", Pos: fv.Pos()}
	}
	return int(n), nil
}

// Names returns the model names of specs, sorted.
func Names(specs []Spec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Definition.Name
	}
	sort.Strings(out)
	return out
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
