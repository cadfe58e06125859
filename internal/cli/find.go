package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/recordkit/internal/cond"
	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/entity"
	"github.com/roach88/recordkit/internal/model"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	Kind       string   // all | first | count | list
	Where      []string // field=value pairs
	Conditions string   // JSON conditions object
	Fields     []string
	Order      []string
	Group      []string
	Limit      int
	Page       int
	Offset     int
	Recursive  int
	Contain    []string // association paths to load
	DryRun     bool
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <Model> [id]",
		Short: "Find records through a model",
		Long: `Find records through a model, loading associations the way the
model declares them.

With an id the record is fetched by primary key and a missing record is
an error. Conditions come from repeated --where field=value flags or a
JSON --conditions object; both may be given.

Examples:
  recordkit find Article --where author_id=1 --order "Article.title DESC"
  recordkit find Article 3 --contain Author --contain Tag
  recordkit find Tag --kind list
  recordkit find Article --kind count --dry-run`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", string(model.FindAll), "result shape (all|first|count|list)")
	cmd.Flags().StringArrayVarP(&opts.Where, "where", "w", nil, "condition as field=value (repeatable)")
	cmd.Flags().StringVar(&opts.Conditions, "conditions", "", "conditions as a JSON object")
	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "fields to select")
	cmd.Flags().StringArrayVar(&opts.Order, "order", nil, "order clause (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Group, "group", nil, "group by fields")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of records")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "page number, requires --limit")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of records to skip")
	cmd.Flags().IntVar(&opts.Recursive, "recursive", 0, "association depth (-1 disables eager loading)")
	cmd.Flags().StringArrayVar(&opts.Contain, "contain", nil, "association path to load, e.g. Comment.Author (repeatable)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the SQL instead of running it")

	return cmd
}

func runFind(opts *FindOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	findOpts, err := opts.toFindOptions(cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid find options", err)
	}

	ctx, cancel := withTimeout(cmd.Context(), opts.RootOptions)
	defer cancel()

	sess, err := openSession(ctx, opts.RootOptions, opts.DryRun)
	if err != nil {
		_ = formatter.Error(ErrCodeDatasource, err.Error(), nil)
		return err
	}
	defer sess.Close()

	m, err := sess.registry.Model(args[0])
	if err != nil {
		return outputRecordError(formatter, err)
	}

	var result any
	if len(args) == 2 {
		formatter.VerboseLog("Getting %s %s", m.Name(), args[1])
		result, err = m.Get(ctx, parseScalar(args[1]), findOpts)
	} else {
		formatter.VerboseLog("Finding %s %s", opts.Kind, m.Name())
		result, err = m.Find(ctx, model.FindKind(opts.Kind), findOpts)
	}
	if opts.DryRun {
		// a dry run fetches nothing, so a NOT_FOUND from Get is expected
		return outputStatements(formatter, sess.Statements())
	}
	if err != nil {
		return outputRecordError(formatter, err)
	}

	return outputFindResult(formatter, result)
}

// toFindOptions converts flags into model.FindOptions.
func (o *FindOptions) toFindOptions(cmd *cobra.Command) (model.FindOptions, error) {
	var out model.FindOptions

	switch model.FindKind(o.Kind) {
	case model.FindAll, model.FindFirst, model.FindCount, model.FindList:
	default:
		return out, fmt.Errorf("unknown kind %q: must be all, first, count or list", o.Kind)
	}

	conditions := make(map[string]any)
	if o.Conditions != "" {
		dec := json.NewDecoder(strings.NewReader(o.Conditions))
		dec.UseNumber()
		if err := dec.Decode(&conditions); err != nil {
			return out, fmt.Errorf("--conditions must be a JSON object: %w", err)
		}
		if conditions == nil {
			conditions = make(map[string]any)
		}
		numbersToScalars(conditions)
	}
	where, err := parseWhere(o.Where)
	if err != nil {
		return out, err
	}
	for k, v := range where {
		conditions[k] = v
	}
	if len(conditions) > 0 {
		out.Conditions = cond.FromMap(conditions)
	}

	out.Fields = o.Fields
	out.Order = o.Order
	out.Group = o.Group
	out.Limit = o.Limit
	out.Page = o.Page
	out.Offset = o.Offset
	if cmd.Flags().Changed("recursive") {
		out.Recursive = model.Depth(o.Recursive)
	}
	if len(o.Contain) > 0 {
		out.Associated = o.Contain
	}
	return out, nil
}

// parseScalar reads a flag value as null, a bool, an integer, a float or
// a string, in that order.
func parseScalar(s string) any {
	switch s {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// numbersToScalars replaces json.Number values with int64 or float64.
func numbersToScalars(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, item := range val {
			val[k] = numbersToScalars(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = numbersToScalars(item)
		}
		return val
	}
	return v
}

// outputFindResult renders any find result shape.
func outputFindResult(formatter *OutputFormatter, result any) error {
	if formatter.Format == "json" {
		return formatter.Records(result)
	}

	switch r := result.(type) {
	case nil:
		fmt.Fprintln(formatter.Writer, "(0 rows)")
	case int64:
		fmt.Fprintln(formatter.Writer, r)
	case *entity.Entity:
		renderEntities(formatter, []*entity.Entity{r})
	case []*entity.Entity:
		renderEntities(formatter, r)
	case []any:
		rows := make([]map[string]any, len(r))
		for i, v := range r {
			rows[i] = map[string]any{"value": v}
		}
		formatter.Table([]string{"value"}, rows)
	case map[any]any:
		var rows []map[string]any
		for _, k := range sortedAnyKeys(r) {
			rows = append(rows, map[string]any{"key": k, "value": r[k]})
		}
		formatter.Table([]string{"key", "value"}, rows)
	case map[any]map[any]any:
		groups := make(map[any]any, len(r))
		for g := range r {
			groups[g] = nil
		}
		var rows []map[string]any
		for _, g := range sortedAnyKeys(groups) {
			for _, k := range sortedAnyKeys(r[g]) {
				rows = append(rows, map[string]any{"group": g, "key": k, "value": r[g][k]})
			}
		}
		formatter.Table([]string{"group", "key", "value"}, rows)
	default:
		fmt.Fprintln(formatter.Writer, result)
	}
	return nil
}

// renderEntities prints entities as a table. Columns are the union of
// entity fields in order of first appearance; associations print as JSON.
func renderEntities(formatter *OutputFormatter, entities []*entity.Entity) {
	var cols []string
	seen := make(map[string]bool)
	rows := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		for _, f := range e.Fields() {
			if !seen[f] {
				seen[f] = true
				cols = append(cols, f)
			}
		}
		rows = append(rows, e.ToMap())
	}
	formatter.Table(cols, rows)
}

// sortedAnyKeys sorts integers numerically before everything else, which
// sorts by its printed form.
func sortedAnyKeys(m map[any]any) []any {
	keys := make([]any, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aok := toInt(keys[i])
		b, bok := toInt(keys[j])
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		}
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})
	return keys
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// outputStatements prints recorded statements.
func outputStatements(formatter *OutputFormatter, statements []datasource.Statement) error {
	if formatter.Format == "json" {
		items := make([]any, len(statements))
		for i, st := range statements {
			items[i] = statementMap(st)
		}
		return formatter.Records(items)
	}

	rows := make([]map[string]any, len(statements))
	for i, st := range statements {
		row := statementMap(st)
		row["#"] = i + 1
		rows[i] = row
	}
	formatter.Table([]string{"#", "kind", "sql", "params"}, rows)
	return nil
}

func statementMap(st datasource.Statement) map[string]any {
	params := make(map[string]any, len(st.Params))
	for k, v := range st.Params {
		params[k] = v
	}
	return map[string]any{"kind": st.Kind, "sql": st.SQL, "params": params}
}
