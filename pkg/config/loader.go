package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "BIPFLOW_"
	configEnvVar = "CONFIG_PATH"
)

// Loader reads the configuration from its sources.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	configFile  string
}

// NewLoader creates a loader with the default search paths.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"bipflow.yaml",
			"config/bipflow.yaml",
			"/etc/bipflow/config.yaml",
		},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption customises a Loader.
type LoaderOption func(*Loader)

// WithConfigPaths replaces the config file search paths.
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// ConfigFile returns the file the last Load read, or "" if none was found.
func (l *Loader) ConfigFile() string {
	return l.configFile
}

// Load merges the sources, lowest priority first:
//  1. defaults
//  2. YAML file ($CONFIG_PATH or the first existing search path)
//  3. environment variables
//
// A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := l.loadConfigFile(); err != nil {
		return nil, err
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() map[string]any {
	return map[string]any{
		// App
		"app.name":        "bipflow",
		"app.version":     "1.0.0",
		"app.environment": "development",

		// Log
		"log.level":       "info",
		"log.format":      "text",
		"log.output":      "stderr",
		"log.file_path":   "",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		// Metrics
		"metrics.enabled":   false,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "bipflow",
		"metrics.subsystem": "",

		// Tracing
		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "bipflow",
		"tracing.sample_rate":  1.0,

		// Solver
		"solver.global_relabel_alpha": 0,
		"solver.validate":             true,
		"solver.algorithms":           []string{"fifo", "highest_label", "dinic"},

		// Benchmark
		"benchmark.workers":       0, // 0 means one per CPU
		"benchmark.timeout":       time.Duration(0),
		"benchmark.report_format": "",
		"benchmark.report_output": "",
		"benchmark.patterns":      []string{"data/*.in"},
		"benchmark.tags":          []string{},

		// Cache
		"cache.enabled":     false,
		"cache.driver":      "memory",
		"cache.host":        "localhost",
		"cache.port":        6379,
		"cache.password":    "",
		"cache.db":          0,
		"cache.default_ttl": 24 * time.Hour,
		"cache.max_entries": 10000,

		// Database
		"database.enabled":            false,
		"database.driver":             "postgres",
		"database.host":               "localhost",
		"database.port":               5432,
		"database.database":           "bipflow",
		"database.username":           "postgres",
		"database.password":           "",
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     10,
		"database.max_idle_conns":     2,
		"database.conn_max_lifetime":  30 * time.Minute,
		"database.conn_max_idle_time": 5 * time.Minute,
		"database.auto_migrate":       true,
	}
}

func (l *Loader) loadConfigFile() error {
	l.configFile = ""

	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("%s=%s: %w", configEnvVar, configPath, err)
		}
		return l.loadFile(configPath)
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			return l.loadFile(absPath)
		}
	}

	return nil
}

func (l *Loader) loadFile(path string) error {
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	l.configFile = path
	return nil
}

// loadEnv maps BIPFLOW_SOLVER_GLOBAL_RELABEL_ALPHA to
// solver.global_relabel_alpha. Keys with underscores in their names are
// resolved against the known default keys; anything else has every
// underscore turned into a dot.
func (l *Loader) loadEnv() error {
	known := envKeys()

	return l.k.Load(env.ProviderWithValue(envPrefix, ".", func(envKey string, value string) (string, interface{}) {
		key := strings.ToLower(strings.TrimPrefix(envKey, envPrefix))

		if mapped, ok := known[key]; ok {
			key = mapped
		} else {
			key = strings.ReplaceAll(key, "_", ".")
		}

		if sliceFields[key] {
			return key, splitAndTrim(value)
		}

		return key, value
	}), nil)
}

// envKeys indexes every default key by its environment spelling.
func envKeys() map[string]string {
	d := defaults()
	keys := make(map[string]string, len(d))
	for key := range d {
		keys[strings.ReplaceAll(key, ".", "_")] = key
	}
	return keys
}

var sliceFields = map[string]bool{
	"solver.algorithms":  true,
	"benchmark.patterns": true,
	"benchmark.tags":     true,
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Load loads the configuration with the default loader settings.
func Load() (*Config, error) {
	return NewLoader().Load()
}
