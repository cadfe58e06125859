package compiler

import (
	"fmt"
	"sort"

	"github.com/roach88/recordkit/internal/model"
)

// ExtensionFactory builds a named extension for a registry.
type ExtensionFactory func(r *model.Registry) model.Extension

var extensionFactories = map[string]ExtensionFactory{
	"Timestamp": func(r *model.Registry) model.Extension {
		return model.NewTimestamp(r.Clock())
	},
}

// RegisterExtension makes an extension available to the "extensions" list
// of model files. Registering an existing name replaces it.
func RegisterExtension(name string, factory ExtensionFactory) {
	extensionFactories[name] = factory
}

// ExtensionNames returns the registered extension names, sorted.
func ExtensionNames() []string {
	names := make([]string, 0, len(extensionFactories))
	for name := range extensionFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Define registers every spec with r, instantiating its extensions.
func Define(r *model.Registry, specs []Spec) error {
	for _, s := range specs {
		def := s.Definition
		def.Extensions = append([]model.Extension(nil), def.Extensions...)
		for _, name := range s.Extensions {
			factory, ok := extensionFactories[name]
			if !ok {
				return &CompileError{
					Field:   "extensions",
					Message: fmt.Sprintf("model %s: unknown extension %q", def.Name, name),
					Pos:     s.Pos,
				}
			}
			def.Extensions = append(def.Extensions, factory(r))
		}
		r.Define(def)
	}
	return nil
}
