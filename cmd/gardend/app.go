package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gardenkeep/internal/adapters/httpapi"
	"gardenkeep/internal/blob"
	"gardenkeep/internal/config"
	"gardenkeep/internal/core"
	"gardenkeep/internal/observability"
	"gardenkeep/pkg/domain"
)

const shutdownTimeout = 10 * time.Second

// app is the fully wired server process.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    domain.PersistentStore
	service  *core.Service
	images   *core.ImageService
	registry *prometheus.Registry
	tracer   *observability.JSONTracer
	handler  http.Handler
}

// newApp opens storage and wires instrumentation. traceOut receives finished
// spans as JSON lines when non-nil.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, traceOut io.Writer) (*app, error) {
	store, err := core.OpenPersistentStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom, err := observability.NewPrometheusRecorder(registry)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	tracer := observability.NewJSONTracer(traceOut, 0)

	svc := core.NewService(store,
		core.WithLogger(observability.NewZapLogger(logger)),
		core.WithMetricsRecorder(observability.FanOut{prom, observability.NewExpvarRecorder("")}),
		core.WithTracer(tracer),
		core.WithAuditRecorder(observability.NewAuditLogger(logger)),
		core.WithSpeciesGateway(cfg.Botanical()),
	)
	images := core.NewImageService(svc, blobs)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		service:  svc,
		images:   images,
		registry: registry,
		tracer:   tracer,
		handler: httpapi.NewRouter(httpapi.Options{
			Service:     svc,
			Images:      images,
			Logger:      logger,
			Gatherer:    registry,
			CORSOrigins: cfg.CORSOrigins,
		}),
	}, nil
}

// Close releases the store.
func (a *app) Close() error {
	return a.store.Close()
}

// worker returns the recurrence worker, or nil when it is disabled.
func (a *app) worker() *core.RecurrenceWorker {
	if a.cfg.RecurrenceInterval <= 0 || len(a.cfg.RecurrenceUsers) == 0 {
		return nil
	}
	return core.NewRecurrenceWorker(a.service, a.cfg.RecurrenceInterval, a.cfg.RecurrenceUsers)
}

// serve runs the HTTP server on ln and the recurrence worker until ctx is
// cancelled or the server fails.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: a.handler, ReadHeaderTimeout: 10 * time.Second}
	worker := a.worker()
	if worker != nil {
		worker.Start()
		a.logger.Info("recurrence worker started",
			zap.Duration("interval", a.cfg.RecurrenceInterval),
			zap.Int("users", len(a.cfg.RecurrenceUsers)))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if worker != nil {
			errs = append(errs, worker.Stop(shutdownCtx))
		}
		errs = append(errs, srv.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})
	return g.Wait()
}
