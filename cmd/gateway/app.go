package main

import (
	"context"
	"fmt"

	"github.com/vyrodovalexey/transitgw/internal/auth"
	"github.com/vyrodovalexey/transitgw/internal/config"
	"github.com/vyrodovalexey/transitgw/internal/gateway"
	"github.com/vyrodovalexey/transitgw/internal/health"
	"github.com/vyrodovalexey/transitgw/internal/observability"
	"github.com/vyrodovalexey/transitgw/internal/proxy"
	"github.com/vyrodovalexey/transitgw/internal/ratelimit"
	"github.com/vyrodovalexey/transitgw/internal/ratelimit/store"
	"github.com/vyrodovalexey/transitgw/internal/registry"
	"github.com/vyrodovalexey/transitgw/internal/router"
)

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "transitgw"

// application holds all application components.
type application struct {
	config          *config.Config
	gateway         *gateway.Gateway
	metrics         *observability.Metrics
	metricsListener *gateway.Listener
	tracer          *observability.Tracer
	closers         []func() error
}

// pinger is implemented by window stores that can report reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// initApplication wires every component. Any error here means the
// gateway must not start.
func initApplication(ctx context.Context, cfg *config.Config, logger observability.Logger) (_ *application, err error) {
	app := &application{config: cfg}
	defer func() {
		if err != nil {
			app.release(logger)
		}
	}()

	app.metrics = observability.NewMetrics(metricsNamespace)
	app.metrics.SetBuildInfo(version)

	tracer, err := initTracer(cfg)
	if err != nil {
		return nil, err
	}
	app.tracer = tracer

	reg, err := registry.New(cfg.Services)
	if err != nil {
		return nil, fmt.Errorf("failed to build service registry: %w", err)
	}
	for _, ep := range reg.Endpoints() {
		app.metrics.SetConfiguredService(ep.Name, ep.BaseAddress)
		logger.Info("service configured",
			observability.String("service", ep.Name),
			observability.String("address", ep.BaseAddress),
		)
	}

	table, err := router.NewTable(cfg.Routes, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to build route table: %w", err)
	}

	limiter, closeLimiter, err := ratelimit.NewFromConfig(ctx, &cfg.RateLimit, observability.ZapLogger(logger).Named("ratelimit"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}
	if closeLimiter != nil {
		app.closers = append(app.closers, closeLimiter)
	}

	healthHandler := health.NewHandler(reg, logger, health.WithVersion(version))
	if fw, ok := limiter.(*ratelimit.FixedWindowLimiter); ok {
		if p, ok := fw.Store().(pinger); ok {
			healthHandler.AddCheck(health.NewHealthCheckFunc("ratelimit-store", p.Ping))
		}
		if _, ok := fw.Store().(*store.RedisStore); ok {
			for _, c := range store.Collectors() {
				app.metrics.MustRegisterCollector(c)
			}
		}
	}

	gate, err := initGate(cfg, reg, app.metrics, logger)
	if err != nil {
		return nil, err
	}

	dispatcher := proxy.NewDispatcher(reg, dispatcherOptions(cfg, app.metrics, logger)...)

	gw, err := gateway.New(cfg, table, dispatcher,
		gateway.WithLogger(logger),
		gateway.WithAuthenticator(gate),
		gateway.WithLimiter(limiter),
		gateway.WithHealth(healthHandler),
		gateway.WithMetrics(app.metrics),
		gateway.WithTracer(tracer),
		gateway.WithShutdownTimeout(cfg.ShutdownTimeoutOrDefault()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	app.gateway = gw

	if cfg.Observability.Metrics.Enabled {
		app.metricsListener = newMetricsListener(cfg.Observability.Metrics, app.metrics, logger)
	}

	logger.Info("configuration loaded",
		observability.Int("port", cfg.Port),
		observability.Int("services", reg.Len()),
		observability.Int("routes", table.Len()),
		observability.Bool("rate_limit", cfg.RateLimit.Enabled),
		observability.Bool("circuit_breaker", cfg.Upstream.CircuitBreaker.Enabled),
		observability.Bool("tracing", tracer.Enabled()),
	)

	return app, nil
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config) (*observability.Tracer, error) {
	tc := cfg.Observability.Tracing
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  tc.ServiceName,
		OTLPEndpoint: tc.Endpoint,
		SamplingRate: tc.SamplingRate,
		Enabled:      tc.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	return tracer, nil
}

// initGate builds the admin gate over the user service verifier.
func initGate(
	cfg *config.Config,
	reg *registry.Registry,
	metrics *observability.Metrics,
	logger observability.Logger,
) (*auth.Gate, error) {
	userService, err := reg.Resolve(cfg.Auth.Service)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	verifier, err := auth.NewHTTPVerifier(userService, cfg.Auth.VerifyPath, cfg.Auth.Timeout.Duration(),
		auth.WithVerifierLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create verifier: %w", err)
	}

	return auth.NewGate(verifier, auth.WithMetrics(metrics), auth.WithLogger(logger)), nil
}

func dispatcherOptions(cfg *config.Config, metrics *observability.Metrics, logger observability.Logger) []proxy.Option {
	opts := []proxy.Option{
		proxy.WithTransport(proxy.NewTransport()),
		proxy.WithTimeout(cfg.Upstream.Timeout.Duration()),
		proxy.WithPrincipalHeader(cfg.Auth.PrincipalHeader),
		proxy.WithHiddenDetails(cfg.HideErrorDetails),
		proxy.WithMetrics(metrics),
		proxy.WithLogger(logger),
	}

	if cb := cfg.Upstream.CircuitBreaker; cb.Enabled {
		opts = append(opts, proxy.WithCircuitBreaker(proxy.BreakerSettings{
			MaxFailures:      cb.MaxFailures,
			OpenTimeout:      cb.OpenTimeout.Duration(),
			HalfOpenRequests: cb.HalfOpenRequests,
		}))
	}

	return opts
}
