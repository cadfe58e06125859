package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/roach88/recordkit/internal/datasource"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RECORDKIT_"

// Defaults.
const (
	DefaultModelsDir     = "models"
	DefaultMigrationsDir = "migrations"
	DefaultScenariosDir  = "scenarios"
	DefaultLogLevel      = "warn"
	DefaultFormat        = "text"
	DefaultQueryTimeout  = 30 * time.Second
	DefaultDSN           = "recordkit.db"
)

// ConfigFiles are looked up in the working directory, in order.
var ConfigFiles = []string{"recordkit.yaml", "recordkit.yml"}

// Config holds all recordkit settings.
type Config struct {
	ModelsDir     string                       `koanf:"models_dir"`
	MigrationsDir string                       `koanf:"migrations_dir"`
	ScenariosDir  string                       `koanf:"scenarios_dir"`
	LogLevel      string                       `koanf:"log_level"`
	Format        string                       `koanf:"format"`
	QueryTimeout  time.Duration                `koanf:"query_timeout"`
	BatchSize     int                          `koanf:"batch_size"`
	Datasources   map[string]datasource.Config `koanf:"datasources"`

	// ProjectRoot is where relative paths were resolved from.
	ProjectRoot string `koanf:"-"`

	// File is the config file that was read, empty when none.
	File string `koanf:"-"`
}

func defaults() map[string]any {
	return map[string]any{
		"models_dir":                 DefaultModelsDir,
		"migrations_dir":             DefaultMigrationsDir,
		"scenarios_dir":              DefaultScenariosDir,
		"log_level":                  DefaultLogLevel,
		"format":                     DefaultFormat,
		"query_timeout":              DefaultQueryTimeout.String(),
		"datasources.default.driver": datasource.DefaultDriver,
		"datasources.default.dsn":    DefaultDSN,
	}
}

// flagKeys are the config keys a flag may set. Other flags, such as
// --verbose, are not configuration.
var flagKeys = map[string]bool{
	"models_dir":     true,
	"migrations_dir": true,
	"scenarios_dir":  true,
	"log_level":      true,
	"format":         true,
	"query_timeout":  true,
	"batch_size":     true,
}

// Load reads configuration from cfgFile (or a recordkit.yaml found in the
// working directory), the environment and flags. Only flags the user
// changed are applied; flag names map to keys by replacing "-" with "_".
// Unknown keys are an error.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	cfgFile = findConfigFile(cfgFile)
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !f.Changed || !flagKeys[key] {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.File = cfgFile
	cfg.ProjectRoot = projectRoot(cfgFile)
	cfg.ModelsDir = resolvePathRelativeTo(cfg.ModelsDir, cfg.ProjectRoot)
	cfg.MigrationsDir = resolvePathRelativeTo(cfg.MigrationsDir, cfg.ProjectRoot)
	cfg.ScenariosDir = resolvePathRelativeTo(cfg.ScenariosDir, cfg.ProjectRoot)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps RECORDKIT_DATASOURCES__DEFAULT__DSN to datasources.default.dsn.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// findConfigFile returns explicit, or the first default config file present.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range ConfigFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func projectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Validate checks values koanf cannot type-check.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", c.Format)
	}
	if c.QueryTimeout < 0 {
		return fmt.Errorf("query_timeout must not be negative")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative")
	}
	for _, name := range c.DatasourceNames() {
		if c.Datasources[name].DSN == "" {
			return fmt.Errorf("datasource %q has no dsn", name)
		}
	}
	return nil
}

// DatasourceNames returns configured connection names, sorted.
func (c *Config) DatasourceNames() []string {
	names := make([]string, 0, len(c.Datasources))
	for name := range c.Datasources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configure registers every configured connection with m.
func (c *Config) Configure(m *datasource.Manager) {
	for _, name := range c.DatasourceNames() {
		m.Configure(name, c.Datasources[name])
	}
}

// ParseLevel parses a slog level name such as "debug" or "WARN".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger returns a text logger writing to w at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
