package main

import (
	"context"
	"fmt"
	"time"

	"bipflow/internal/benchmark"
	"bipflow/internal/repository"
	"bipflow/pkg/apperror"
	"bipflow/pkg/cache"
	"bipflow/pkg/config"
	"bipflow/pkg/database"
	"bipflow/pkg/logger"
	"bipflow/pkg/metrics"
	"bipflow/pkg/telemetry"
)

// app holds the process-wide dependencies of one command.
type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	results  *cache.ResultCache
	runs     repository.RunRepository
	migrator *database.Migrator

	closers []func()
}

// loadConfig reads path when given, otherwise the default search paths.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.NewLoader(config.WithConfigPaths(path)).Load()
	}
	return config.Load()
}

// newApp initializes logging, metrics and tracing, then the optional result
// cache and run history store. Tracing, cache and database failures are
// logged and the command runs without them. overrides adjust the loaded
// configuration before anything is initialized.
func newApp(ctx context.Context, configPath string, overrides ...func(*config.Config)) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}

	logger.InitWithConfig(logger.FromConfig(cfg.Log))

	a := &app{cfg: cfg}
	a.metrics = metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	a.metrics.SetBuildInfo(cfg.App.Version, cfg.App.Environment)

	tp, err := telemetry.Init(ctx, telemetry.FromConfig(cfg))
	if err != nil {
		logger.Log.Warn("Failed to init telemetry", "error", err)
	} else {
		a.onClose(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Log.Warn("Failed to shutdown telemetry", "error", err)
			}
		})
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(cache.FromConfig(cfg.Cache))
		if err != nil {
			logger.Log.Warn("Result cache disabled", "driver", cfg.Cache.Driver, "error", err)
		} else {
			a.results = cache.NewResultCache(c, cfg.Cache.DefaultTTL)
			a.onClose(func() { c.Close() })
			logger.Info("Result cache initialized", "driver", cfg.Cache.Driver)
		}
	}

	if cfg.Database.Enabled {
		if err := a.openDatabase(ctx); err != nil {
			logger.Log.Warn("Run history disabled", "error", err)
		}
	}

	return a, nil
}

func (a *app) openDatabase(ctx context.Context) error {
	db, err := database.NewPostgresDB(ctx, a.cfg.Database)
	if err != nil {
		return err
	}

	a.migrator = database.NewMigrator(db.Pool())
	if a.cfg.Database.AutoMigrate {
		if err := a.migrator.Up(ctx); err != nil {
			db.Close()
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	a.runs = repository.NewPostgresRunRepository(db)
	a.onClose(db.Close)
	return nil
}

func (a *app) requireRuns() error {
	if a.runs == nil {
		return apperror.Newf(apperror.CodeNotConfigured, "run history requires database.enabled")
	}
	return nil
}

func (a *app) requireResults() error {
	if a.results == nil {
		return apperror.Newf(apperror.CodeNotConfigured, "result cache requires cache.enabled (driver %s)", a.cfg.Cache.Driver)
	}
	return nil
}

// runner builds a benchmark runner over the app's dependencies.
func (a *app) runner() (*benchmark.Runner, error) {
	opts, err := benchmark.OptionsFromConfig(a.cfg)
	if err != nil {
		return nil, err
	}

	options := []benchmark.Option{benchmark.WithMetrics(a.metrics)}
	if a.results != nil {
		options = append(options, benchmark.WithResultCache(a.results))
	}
	if a.runs != nil {
		options = append(options, benchmark.WithRepository(a.runs))
	}
	return benchmark.NewRunner(opts, options...)
}

// serveMetrics exposes the metrics endpoint until ctx is done.
func (a *app) serveMetrics(ctx context.Context) {
	if !a.cfg.Metrics.Enabled {
		return
	}
	srv := metrics.NewServer(a.cfg.Metrics.Port, a.cfg.Metrics.Path)
	go func() {
		logger.Info("Metrics server started", "addr", srv.Addr, "path", a.cfg.Metrics.Path)
		if err := metrics.Serve(ctx, srv); err != nil {
			logger.Log.Error("Metrics server failed", "error", err)
		}
	}()
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
