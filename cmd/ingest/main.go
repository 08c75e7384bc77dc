// Command ingest runs the analytics ingestion service.
//
// Configuration is read from INGEST_-prefixed environment variables, see
// package config.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/flooanalytics/ingest/pkg/admission"
	"github.com/flooanalytics/ingest/pkg/api"
	"github.com/flooanalytics/ingest/pkg/config"
	"github.com/flooanalytics/ingest/pkg/observability"
	"github.com/flooanalytics/ingest/pkg/quota"
)

// version is set at build time
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Ingest service stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	defer func() {
		if err := shutdown.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("Shutdown completed with errors")
		}
	}()

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return err
	}
	shutdown.Register("otel", providers.Shutdown)

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	health := observability.NewHealthChecker(version)
	d := &deps{cfg: cfg, logger: logger, metrics: metrics, health: health, shutdown: shutdown}

	g, gctx := errgroup.WithContext(ctx)

	store, err := d.quotaStore(ctx)
	if err != nil {
		return err
	}
	catalog, err := d.catalog(gctx, g)
	if err != nil {
		return err
	}
	resolver, err := d.resolver(ctx)
	if err != nil {
		return err
	}
	out, err := d.sink(ctx)
	if err != nil {
		return err
	}

	actor := quota.NewActor(quota.ActorConfig{
		Store:       store,
		Catalog:     catalog,
		Locks:       quota.NewKeyLock(cfg.Quota.LockShards),
		LockTimeout: cfg.Quota.LockTimeout,
		Logger:      logger,
		Metrics:     metrics,
	})
	router := admission.NewRouter(admission.Config{
		Quota:    actor,
		Resolver: resolver,
		Sink:     out,
		Logger:   logger,
		Metrics:  metrics,

		SinkTimeout: cfg.Sink.WriteTimeout,
	})

	server := api.NewServer(api.Config{
		Admitter:       router,
		Quota:          actor,
		Health:         health,
		Logger:         logger,
		Metrics:        metrics,
		Registry:       registry,
		HomepageURL:    cfg.Server.HomepageURL,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	// registered last so it stops accepting requests before the sinks drain
	shutdown.Register("http", httpServer.Shutdown)

	g.Go(func() error {
		logger.WithFields(map[string]interface{}{
			"addr":        httpServer.Addr,
			"version":     version,
			"quota_store": cfg.Quota.Store,
			"plans":       cfg.Plans.Source,
			"owners":      cfg.Owners.Source,
			"sink":        cfg.Sink.Type,
		}).Info("Starting ingest server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down ingest server")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}
