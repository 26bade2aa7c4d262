package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"flowpanel/internal/adapters/export"
	"flowpanel/internal/blob"
	"flowpanel/internal/config"
	"flowpanel/internal/core"
)

// app holds the storage backend and the service wired with the configured
// observability.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    core.PersistentStore
	svc      *core.Service
	expvar   *core.ExpvarMetricsRecorder
	registry *prometheus.Registry
	trace    *os.File
	tracer   *core.JSONTraceTracer
}

func openApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := core.OpenStorage(ctx, cfg.StorageConfig(), core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		expvar:   core.NewExpvarMetricsRecorder(""),
		registry: prometheus.NewRegistry(),
	}
	prom, err := core.NewPrometheusMetricsRecorder(a.registry)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	sugared := core.NewZapLogger(logger)
	opts := []core.ServiceOption{
		core.WithLogger(sugared),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{a.expvar, prom}),
		core.WithAuditRecorder(core.LoggerAuditRecorder{Logger: sugared}),
	}
	if cfg.Trace.Path != "" {
		f, err := os.OpenFile(cfg.Trace.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.trace = f
		a.tracer = core.NewJSONTracer(f)
		opts = append(opts, core.WithTracer(a.tracer))
	}
	a.svc = core.NewService(store, opts...)
	logger.Debug("storage opened", zap.String("driver", string(cfg.StorageConfig().Driver)))
	return a, nil
}

// exporter opens the configured blob store and builds an exporter over it.
func (a *app) exporter(ctx context.Context) (*export.Exporter, error) {
	store, err := blob.OpenConfig(ctx, a.cfg.BlobConfig())
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	sugared := core.NewZapLogger(a.logger)
	return export.NewExporter(a.svc, store,
		export.WithLogger(sugared),
		export.WithAuditRecorder(core.LoggerAuditRecorder{Logger: sugared}),
	), nil
}

// Close releases the store and the trace file.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, core.CloseStore(a.store))
	}
	if a.tracer != nil {
		if err := a.tracer.Err(); err != nil {
			errs = append(errs, fmt.Errorf("write trace: %w", err))
		}
	}
	if a.trace != nil {
		errs = append(errs, a.trace.Close())
	}
	return errors.Join(errs...)
}
