// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks and graceful shutdown for the
// ingestion service.
//
// # Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("site_id", siteID).Info("Batch admitted")
//
// Handlers pull a request-scoped logger (carrying request_id) with
// FromContext(ctx).
//
// # Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	http.Handle("/metrics", metrics.Handler(registry))
//
// All Record* methods are safe on a nil *Metrics, so components can be built
// without metrics in tests.
//
// # Tracing
//
// InitOTel installs global tracer and meter providers exporting over OTLP gRPC.
// When disabled the global no-op providers stay in place.
//
// # Health
//
//	checker := observability.NewHealthChecker("1.4.0")
//	checker.AddCheck("redis", true, redisStore.Ping)
//	checker.RegisterRoutes(router)
package observability
