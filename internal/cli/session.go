package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/recordkit/internal/compiler"
	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/model"
	"github.com/roach88/recordkit/internal/querybuilder"
	"github.com/roach88/recordkit/internal/validation"
)

// session is a model registry over the configured connections.
type session struct {
	conns     *datasource.Manager
	registry  *model.Registry
	recorders []*datasource.Recorder

	// wrapped are the connections behind recorders; the manager only
	// sees the recorders and cannot close them.
	wrapped []datasource.Datasource
}

// openSession loads the configured models and registers them. In dry-run
// mode every datasource a model uses is wrapped in a recording dry-run
// decorator: statements are captured, nothing is executed.
func openSession(ctx context.Context, opts *RootOptions, dryRun bool) (*session, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, NewExitError(ExitCommandError, "configuration not loaded")
	}

	loadResult, loadErrors := LoadModels(cfg.ModelsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, WrapExitError(ExitCommandError, "failed to load models", loadErrors[0])
	}
	specs := loadResult.Models
	if cfg.BatchSize > 0 {
		for i := range specs {
			if specs[i].Definition.BatchSize == 0 {
				specs[i].Definition.BatchSize = cfg.BatchSize
			}
		}
	}

	conns := datasource.NewManager(opts.Logger)
	cfg.Configure(conns)

	s := &session{conns: conns}
	if dryRun {
		for _, name := range datasourceNames(specs) {
			ds, err := conns.Get(ctx, name)
			if err != nil {
				s.Close()
				return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open datasource %q", name), err)
			}
			rec := datasource.NewRecorder(ds, true)
			conns.Register(rec)
			s.recorders = append(s.recorders, rec)
			s.wrapped = append(s.wrapped, ds)
		}
	}

	s.registry = model.NewRegistry(conns, model.WithLogger(opts.Logger))
	if err := compiler.Define(s.registry, specs); err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "failed to define models", err)
	}
	return s, nil
}

// datasourceNames returns the distinct connection names specs use.
func datasourceNames(specs []compiler.Spec) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range specs {
		name := s.Definition.Datasource
		if name == "" {
			name = datasource.DefaultName
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Statements returns what the dry-run recorders captured.
func (s *session) Statements() []datasource.Statement {
	var out []datasource.Statement
	for _, r := range s.recorders {
		out = append(out, r.Statements()...)
	}
	return out
}

func (s *session) Close() error {
	errs := []error{s.conns.Close()}
	for _, ds := range s.wrapped {
		if c, ok := ds.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// withTimeout bounds ctx by the configured query timeout.
func withTimeout(ctx context.Context, opts *RootOptions) (context.Context, context.CancelFunc) {
	if opts.Config == nil || opts.Config.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, opts.Config.QueryTimeout)
}

// recordErrorCode returns the code of a typed error, or ErrCodeGeneric.
func recordErrorCode(err error) string {
	var me *model.Error
	if errors.As(err, &me) {
		return string(me.Code)
	}
	var de *datasource.Error
	if errors.As(err, &de) {
		return string(de.Code)
	}
	var ve *validation.Error
	if errors.As(err, &ve) {
		return string(ve.Code)
	}
	var qe *querybuilder.Error
	if errors.As(err, &qe) {
		return string(qe.Code)
	}
	return ErrCodeGeneric
}

// outputRecordError reports a failed model operation.
func outputRecordError(formatter *OutputFormatter, err error) error {
	code := recordErrorCode(err)
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitFailure, code, err)
}
