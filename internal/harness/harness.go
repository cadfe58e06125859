package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/recordkit/internal/compiler"
	"github.com/roach88/recordkit/internal/cond"
	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/entity"
	"github.com/roach88/recordkit/internal/model"
	"github.com/roach88/recordkit/internal/querybuilder"
	"github.com/roach88/recordkit/internal/testutil"
	"github.com/roach88/recordkit/internal/validation"
)

// Harness runs one scenario. Every run gets its own in-memory SQLite
// database, a fixed clock and sequential UUIDs, so traces are identical
// across runs.
type Harness struct {
	conn     *datasource.Connection
	recorder *datasource.Recorder
	registry *model.Registry
	clock    *testutil.FixedClock
	logger   *slog.Logger
}

// Option configures a run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
	rules  *validation.Registry
}

// WithLogger routes model and datasource logs to l. Runs are silent by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// WithRules resolves validation rule names through rules.
func WithRules(rules *validation.Registry) Option {
	return func(c *runConfig) { c.rules = rules }
}

// Run executes a scenario and returns its result. The returned error
// reports a scenario that could not be set up; failed expectations and
// assertions are recorded on the result instead.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx := context.Background()

	h, err := setup(ctx, scenario, cfg)
	if err != nil {
		return nil, err
	}
	defer h.conn.Close()

	if err := h.loadFixtures(ctx, scenario.Fixtures); err != nil {
		return nil, fmt.Errorf("failed to load fixtures: %w", err)
	}
	h.recorder.Reset()

	result := NewResult()
	for i, step := range scenario.Steps {
		if step.Advance != "" {
			d, _ := time.ParseDuration(step.Advance)
			h.clock.Advance(d)
		}
		before := len(h.recorder.Statements())
		sr, stepErr := h.executeStep(ctx, step)
		issued := h.recorder.Statements()[before:]
		for _, st := range issued {
			result.Statements = append(result.Statements, TracedStatement{Statement: st, Step: i + 1})
		}
		sr.Statements = len(issued)
		result.Steps = append(result.Steps, sr)

		for _, msg := range checkExpect(step, sr, stepErr) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i+1, stepLabel(step), msg))
		}
	}

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, h.conn) {
		result.AddError(msg)
	}
	return result, nil
}

func setup(ctx context.Context, scenario *Scenario, cfg runConfig) (*Harness, error) {
	start := time.Time{}
	if scenario.Clock != "" {
		t, err := time.Parse(time.RFC3339, scenario.Clock)
		if err != nil {
			return nil, fmt.Errorf("invalid clock: %w", err)
		}
		start = t
	}

	conn, err := datasource.Open(ctx, datasource.DefaultName,
		datasource.Config{Driver: datasource.DefaultDriver, DSN: ":memory:"},
		datasource.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory database: %w", err)
	}

	if scenario.Migrations != "" {
		if err := conn.Migrate(ctx, os.DirFS(scenario.Migrations)); err != nil {
			conn.Close()
			return nil, err
		}
	}
	for i, ddl := range scenario.Schema {
		if _, err := conn.DB().ExecContext(ctx, ddl); err != nil {
			conn.Close()
			return nil, fmt.Errorf("schema[%d]: %w", i, err)
		}
	}

	v, err := compiler.LoadFiles(scenario.Models)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to load models: %w", err)
	}
	specs, errs := compiler.CompileModels(v)
	if len(errs) > 0 {
		conn.Close()
		return nil, fmt.Errorf("failed to compile models: %w", errors.Join(errs...))
	}

	recorder := datasource.NewRecorder(conn, false)
	conns := datasource.NewManager(cfg.logger)
	conns.Register(recorder)

	clock := testutil.NewFixedClock(start)
	regOpts := []model.RegistryOption{
		model.WithLogger(cfg.logger),
		model.WithClock(clock),
		model.WithIDGenerator(testutil.NewSequentialUUIDs()),
	}
	if cfg.rules != nil {
		regOpts = append(regOpts, model.WithRules(cfg.rules))
	}
	registry := model.NewRegistry(conns, regOpts...)
	if err := compiler.Define(registry, specs); err != nil {
		conn.Close()
		return nil, err
	}

	return &Harness{
		conn:     conn,
		recorder: recorder,
		registry: registry,
		clock:    clock,
		logger:   cfg.logger,
	}, nil
}

// loadFixtures saves fixture rows without validation or callbacks.
func (h *Harness) loadFixtures(ctx context.Context, fixtures []Fixture) error {
	for i, f := range fixtures {
		m, err := h.registry.Model(f.Model)
		if err != nil {
			return fmt.Errorf("fixtures[%d]: %w", i, err)
		}
		entities := m.NewEntities(f.Rows)
		ok, err := m.SaveMany(ctx, entities, model.WithoutValidation(), model.WithoutCallbacks())
		if err != nil {
			return fmt.Errorf("fixtures[%d]: %w", i, err)
		}
		if !ok {
			return fmt.Errorf("fixtures[%d]: %s rows were not saved", i, f.Model)
		}
	}
	return nil
}

// executeStep runs one step. The error is the operation's error, if any.
func (h *Harness) executeStep(ctx context.Context, step Step) (StepResult, error) {
	sr := StepResult{Name: step.Name, Op: step.Op, Model: step.Model}

	m, err := h.registry.Model(step.Model)
	if err != nil {
		sr.Error = errorCode(err)
		return sr, err
	}
	opts := saveOptions(step.Options)

	switch step.Op {
	case OpSave:
		data, ok := step.Data.(map[string]any)
		if !ok {
			err = fmt.Errorf("save data must be a mapping, got %T", step.Data)
			break
		}
		e := m.NewEntity(data)
		sr.OK, err = m.Save(ctx, e, opts...)
		sr.Errors = e.Errors()
		sr.Value = e

	case OpSaveAll:
		var entities []*entity.Entity
		switch d := step.Data.(type) {
		case map[string]any:
			e := m.NewEntity(d)
			sr.OK, err = m.SaveAll(ctx, e, opts...)
			sr.Errors = e.Errors()
			sr.Value = e
		case []any:
			for _, item := range d {
				row, ok := item.(map[string]any)
				if !ok {
					err = fmt.Errorf("save_all items must be mappings, got %T", item)
					break
				}
				entities = append(entities, m.NewEntity(row))
			}
			if err != nil {
				break
			}
			sr.OK, err = m.SaveAll(ctx, entities, opts...)
			sr.Errors = listErrors(entities)
			sr.Value = entities
		default:
			err = fmt.Errorf("save_all data must be a mapping or a list, got %T", step.Data)
		}

	case OpSaveField:
		sr.OK, err = m.SaveField(ctx, step.ID, step.Field, step.Value, opts...)

	case OpFind:
		kind, fo := findOptions(step.Find)
		sr.Value, err = m.Find(ctx, kind, fo)
		sr.OK = err == nil

	case OpGet:
		_, fo := findOptions(step.Find)
		var e *entity.Entity
		e, err = m.Get(ctx, step.ID, fo)
		sr.OK = err == nil
		if e != nil {
			sr.Value = e
		}

	case OpExists:
		var found bool
		found, err = m.Exists(ctx, step.ID)
		sr.OK = err == nil
		sr.Value = found

	case OpDelete:
		sr.OK, err = m.Delete(ctx, step.ID, opts...)

	case OpDeleteAll:
		sr.OK, err = m.DeleteAll(ctx, cond.FromMap(step.Conditions), opts...)

	case OpUpdateAll:
		var n int64
		n, err = m.UpdateAll(ctx, step.Set, cond.FromMap(step.Conditions))
		sr.OK = err == nil
		sr.Value = n

	case OpQuery:
		var rows []datasource.Row
		rows, err = m.Query(ctx, step.SQL, step.Params)
		sr.OK = err == nil
		out := make([]any, len(rows))
		for i, r := range rows {
			out[i] = r.Map()
		}
		sr.Value = out
	}

	if err != nil {
		sr.OK = false
		sr.Error = errorCode(err)
		h.logger.Debug("step failed", "op", step.Op, "model", step.Model, "error", err)
	}
	if len(sr.Errors) == 0 {
		sr.Errors = nil
	}
	return sr, err
}

func saveOptions(o StepOptions) []model.Option {
	var opts []model.Option
	if o.Validate != nil {
		if *o.Validate {
			opts = append(opts, model.WithValidation())
		} else {
			opts = append(opts, model.WithoutValidation())
		}
	}
	if o.Callbacks != nil {
		if *o.Callbacks {
			opts = append(opts, model.WithCallbacks())
		} else {
			opts = append(opts, model.WithoutCallbacks())
		}
	}
	if o.Cascade != nil && !*o.Cascade {
		opts = append(opts, model.WithoutCascade())
	}
	if o.Transaction != nil && !*o.Transaction {
		opts = append(opts, model.WithoutTransaction())
	}
	if len(o.FieldList) > 0 {
		opts = append(opts, model.WithFields(o.FieldList...))
	}
	return opts
}

func findOptions(f *FindStep) (model.FindKind, model.FindOptions) {
	if f == nil {
		return model.FindAll, model.FindOptions{}
	}
	kind := model.FindKind(f.Kind)
	if kind == "" {
		kind = model.FindAll
	}
	opts := model.FindOptions{
		Fields:     f.Fields,
		Order:      f.Order,
		Group:      f.Group,
		Limit:      f.Limit,
		Page:       f.Page,
		Offset:     f.Offset,
		Recursive:  f.Recursive,
		Associated: f.Associated,
	}
	if len(f.Conditions) > 0 {
		opts.Conditions = cond.FromMap(f.Conditions)
	}
	return kind, opts
}

func listErrors(entities []*entity.Entity) map[string][]string {
	out := make(map[string][]string)
	for i, e := range entities {
		for field, msgs := range e.Errors() {
			out[fmt.Sprintf("%d.%s", i, field)] = msgs
		}
	}
	return out
}

// errorCode returns the code of a typed error, or its message.
func errorCode(err error) string {
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
	return err.Error()
}

func stepLabel(s Step) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Op + " " + s.Model
}
