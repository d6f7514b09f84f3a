// Package app builds the pipeline and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"go-person-etl/internal/config"
	"go-person-etl/internal/logging"
	"go-person-etl/internal/metrics"
	"go-person-etl/internal/pipeline"
	"go-person-etl/internal/rate"
	"go-person-etl/internal/storage"
	"go-person-etl/internal/store"
)

// App holds the wired components. Store and Objects are nil when their
// sections are disabled; Metrics is nil when metrics are off.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Store        *store.Store
	Objects      *storage.BlobStore
	Rates        *rate.Provider
	Orchestrator *pipeline.Orchestrator
}

// New opens every enabled backend and wires the orchestrator.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	a := &App{Config: cfg, Logger: logger}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New(cfg.Metrics.Namespace, prometheus.NewRegistry())
	}

	if cfg.Database.Enabled {
		s, err := store.Open(ctx, store.Config{
			Driver:       cfg.Database.Driver,
			DSN:          cfg.Database.ConnectionString(),
			MaxOpenConns: cfg.Database.MaxOpenConns,
			BatchSize:    cfg.Database.BatchSize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.Store = s
	}

	if cfg.Storage.Enabled {
		objects, err := storage.New(ctx, storage.Config{
			Backend:  cfg.Storage.Backend,
			Bucket:   cfg.Storage.Bucket,
			Prefix:   cfg.Storage.Prefix,
			Region:   cfg.Storage.Region,
			Endpoint: cfg.Storage.Endpoint,
			LocalDir: cfg.Storage.LocalDir,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open object storage: %w", err)
		}
		a.Objects = objects
	}

	var cache rate.Cache = rate.NoCache()
	if cfg.Rate.CacheEnabled {
		cache = rate.NewFileCache(cfg.Rate.CacheFile, cfg.Rate.CacheTTL, logger)
	}
	a.Rates = rate.NewProvider(cfg.Rate.APIURL, cfg.Rate.Timeout,
		rate.WithCache(cache),
		rate.WithFallback(cfg.Rate.Fallback),
		rate.WithLogger(logger),
		rate.WithMetrics(a.Metrics),
	)

	opts := pipeline.Options{Metrics: a.Metrics, Logger: logger}
	if a.Store != nil {
		opts.Executions = a.Store
		opts.Records = recordSink{a.Store}
	}
	if a.Objects != nil {
		opts.Cloud = a.Objects
	}
	loader := pipeline.NewLoader(cfg.Output.Dir, cfg.Output.BackupDir, logger, a.Metrics)
	a.Orchestrator = pipeline.NewOrchestrator(pipeline.NewTransformer(a.Rates, logger), loader, opts)

	logger.Info("pipeline ready",
		zap.Bool("database", a.Store != nil),
		zap.Bool("storage", a.Objects != nil),
		zap.Bool("rate_cache", cfg.Rate.CacheEnabled),
		zap.String("output_dir", cfg.Output.Dir),
	)
	return a, nil
}

// Close releases the database pool and the bucket.
func (a *App) Close() error {
	var errs []error
	if a.Objects != nil {
		errs = append(errs, a.Objects.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

// recordSink adapts the store's load transaction to the pipeline.
type recordSink struct {
	s *store.Store
}

func (r recordSink) BeginLoad(ctx context.Context) (pipeline.RecordTx, error) {
	tx, err := r.s.BeginLoad(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (r recordSink) BatchSize() int { return r.s.BatchSize() }
