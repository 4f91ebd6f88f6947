// Package config loads bipflow settings from defaults, a YAML file and
// BIPFLOW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bipflow/pkg/apperror"
)

// ErrInvalidConfig is wrapped by every error returned from Validate.
var ErrInvalidConfig = errors.New("configuration validation failed")

// Config is the root configuration.
type Config struct {
	App       AppConfig       `koanf:"app"`
	Log       LogConfig       `koanf:"log"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Tracing   TracingConfig   `koanf:"tracing"`
	Solver    SolverConfig    `koanf:"solver"`
	Benchmark BenchmarkConfig `koanf:"benchmark"`
	Cache     CacheConfig     `koanf:"cache"`
	Database  DatabaseConfig  `koanf:"database"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level      string `koanf:"level"`  // debug, info, warn, error
	Format     string `koanf:"format"` // json, text
	Output     string `koanf:"output"` // stdout, stderr, file
	FilePath   string `koanf:"file_path"`
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // rotated files kept
	MaxAge     int    `koanf:"max_age"`     // days
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// SolverConfig tunes the max-flow solvers.
type SolverConfig struct {
	// GlobalRelabelAlpha triggers a global relabel in the FIFO solver after
	// alpha*n relabels. Zero disables it.
	GlobalRelabelAlpha int `koanf:"global_relabel_alpha"`

	// Validate checks every computed flow for conservation and maximality.
	Validate bool `koanf:"validate"`

	// Algorithms lists the solvers the benchmark runs, in order.
	Algorithms []string `koanf:"algorithms"`
}

// BenchmarkConfig configures suite runs.
type BenchmarkConfig struct {
	Workers      int           `koanf:"workers"`
	Timeout      time.Duration `koanf:"timeout"`
	ReportFormat string        `koanf:"report_format"` // csv, xlsx, pdf
	ReportOutput string        `koanf:"report_output"`
	Patterns     []string      `koanf:"patterns"`
	Tags         []string      `koanf:"tags"`
}

// CacheConfig configures the solve result cache.
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	MaxEntries int           `koanf:"max_entries"` // memory driver only
}

// Address returns host:port of the cache server.
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig configures the run history store.
type DatabaseConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Driver          string        `koanf:"driver"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	switch strings.ToLower(d.Driver) {
	case "postgres", "postgresql":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode,
		)
	default:
		return ""
	}
}

var (
	validLevels        = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats    = map[string]bool{"json": true, "text": true}
	validLogOutputs    = map[string]bool{"stdout": true, "stderr": true, "file": true}
	validAlgorithms    = map[string]bool{"fifo": true, "highest_label": true, "dinic": true}
	validReportFormats = map[string]bool{"csv": true, "xlsx": true, "pdf": true}
	validCacheDrivers  = map[string]bool{"memory": true, "redis": true}
)

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	v := apperror.NewValidationErrors()
	invalid := func(field, format string, args ...any) {
		v.Add(apperror.NewWithField(apperror.CodeInvalidArgument, fmt.Sprintf(format, args...), field))
	}

	if c.App.Name == "" {
		invalid("app.name", "is required")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		invalid("log.level", "must be one of: debug, info, warn, error, got %s", c.Log.Level)
	}
	if c.Log.Format != "" && !validLogFormats[c.Log.Format] {
		invalid("log.format", "must be json or text, got %s", c.Log.Format)
	}
	if c.Log.Output != "" && !validLogOutputs[c.Log.Output] {
		invalid("log.output", "must be one of: stdout, stderr, file, got %s", c.Log.Output)
	}
	if c.Log.Output == "file" && c.Log.FilePath == "" {
		invalid("log.file_path", "is required when log.output is file")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		invalid("metrics.port", "must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		invalid("tracing.sample_rate", "must be within [0, 1], got %g", c.Tracing.SampleRate)
	}

	if c.Solver.GlobalRelabelAlpha < 0 {
		invalid("solver.global_relabel_alpha", "must be non-negative, got %d", c.Solver.GlobalRelabelAlpha)
	}
	if len(c.Solver.Algorithms) == 0 {
		invalid("solver.algorithms", "must name at least one algorithm")
	}
	for _, a := range c.Solver.Algorithms {
		if !validAlgorithms[a] {
			invalid("solver.algorithms", "unknown algorithm %s", a)
		}
	}

	if c.Benchmark.Workers < 0 {
		invalid("benchmark.workers", "must be non-negative, got %d", c.Benchmark.Workers)
	}
	if c.Benchmark.ReportFormat != "" && !validReportFormats[c.Benchmark.ReportFormat] {
		invalid("benchmark.report_format", "must be one of: csv, xlsx, pdf, got %s", c.Benchmark.ReportFormat)
	}

	if c.Cache.Enabled && !validCacheDrivers[c.Cache.Driver] {
		invalid("cache.driver", "must be memory or redis, got %s", c.Cache.Driver)
	}

	if c.Database.Enabled && c.Database.DSN() == "" {
		invalid("database.driver", "%q is not supported", c.Database.Driver)
	}

	if v.HasErrors() {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(v.ErrorMessages(), "; "))
	}

	return nil
}
