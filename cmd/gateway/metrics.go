package main

import (
	"fmt"
	"net/http"

	"github.com/vyrodovalexey/transitgw/internal/config"
	"github.com/vyrodovalexey/transitgw/internal/gateway"
	"github.com/vyrodovalexey/transitgw/internal/observability"
)

// newMetricsListener creates the listener serving Prometheus metrics
// on its own port, away from the public surface.
func newMetricsListener(
	cfg config.MetricsConfig,
	metrics *observability.Metrics,
	logger observability.Logger,
) *gateway.Listener {
	path := cfg.Path
	if path == "" {
		path = config.DefaultMetricsPath
	}
	port := cfg.Port
	if port == 0 {
		port = config.DefaultMetricsPort
	}

	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())

	return gateway.NewListener("metrics", fmt.Sprintf(":%d", port), mux,
		gateway.WithListenerLogger(logger),
	)
}
