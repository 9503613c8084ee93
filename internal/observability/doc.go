// Package observability provides logging, metrics, and tracing for the
// transit gateway.
//
// # Logging
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("request forwarded",
//	    observability.String("service", "route"),
//	    observability.Int("status", 200),
//	)
//
// # Metrics
//
// Metrics are kept on a private Prometheus registry and exposed on a
// dedicated listener:
//
//	metrics := observability.NewMetrics("transitgw")
//	http.Handle("/metrics", metrics.Handler())
//
// # Tracing
//
// Tracing is optional and exports spans over OTLP/gRPC. When disabled
// the Tracer falls back to the global no-op provider.
package observability
