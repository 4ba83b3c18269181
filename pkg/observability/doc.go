// Package observability provides structured logging, Prometheus metrics, OpenTelemetry
// tracing and health checks for the orgaccess service.
//
// # Structured Logging
//
// Create a logger:
//
//	log, err := observability.NewLogger("info", "json", os.Stdout)
//	log.WithField("org_id", orgID).Info("membership changed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	checker.SetRecorder(metrics)
//
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, log)
//	defer observability.ShutdownOTel(ctx, providers, log)
//
// # Health Checks
//
//	health := observability.NewHealthChecker(conn, nil)
//	router.HandleFunc("/healthz", health.Readiness)
package observability
