package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// LoadFiles compiles each CUE file and unifies them into one value. Files
// may carry a package clause but cannot import other packages.
func LoadFiles(paths []string) (cue.Value, error) {
	ctx := cuecontext.New()
	var v cue.Value
	for i, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, fmt.Errorf("reading %s: %w", path, err)
		}
		fv := ctx.CompileBytes(src, cue.Filename(path))
		if err := fv.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		if i == 0 {
			v = fv
			continue
		}
		v = v.Unify(fv)
	}
	if len(paths) == 0 {
		v = ctx.CompileString("{}")
	}
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	if err := v.Validate(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

// FindFiles returns the .cue files under dir, sorted.
func FindFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// LoadDir loads and compiles every model file under dir.
func LoadDir(dir string) ([]Spec, []error) {
	files, err := FindFiles(dir)
	if err != nil {
		return nil, []error{err}
	}
	if len(files) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}
	v, err := LoadFiles(files)
	if err != nil {
		return nil, []error{err}
	}
	return CompileModels(v)
}
