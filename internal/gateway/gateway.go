package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/transitgw/internal/config"
	"github.com/vyrodovalexey/transitgw/internal/health"
	"github.com/vyrodovalexey/transitgw/internal/middleware"
	"github.com/vyrodovalexey/transitgw/internal/observability"
	"github.com/vyrodovalexey/transitgw/internal/ratelimit"
	"github.com/vyrodovalexey/transitgw/internal/router"
)

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Gateway is the transport API gateway.
type Gateway struct {
	config     *config.Config
	table      *router.Table
	dispatcher Forwarder
	gate       Authenticator
	limiter    ratelimit.Limiter
	health     *health.Handler
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	logger     observability.Logger

	engine   *gin.Engine
	handler  http.Handler
	listener *Listener

	state           atomic.Int32
	startTime       time.Time
	shutdownTimeout time.Duration
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithAuthenticator sets the admin gate.
func WithAuthenticator(gate Authenticator) Option {
	return func(g *Gateway) {
		g.gate = gate
	}
}

// WithLimiter sets the admission limiter. Without one every request
// is admitted.
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(g *Gateway) {
		g.limiter = limiter
	}
}

// WithHealth sets the health handler.
func WithHealth(h *health.Handler) Option {
	return func(g *Gateway) {
		g.health = h
	}
}

// WithMetrics enables request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithTracer enables server spans.
func WithTracer(t *observability.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = t
	}
}

// WithShutdownTimeout sets the shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.shutdownTimeout = timeout
	}
}

// New creates a gateway serving table through dispatcher.
func New(cfg *config.Config, table *router.Table, dispatcher Forwarder, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if table == nil || dispatcher == nil {
		return nil, fmt.Errorf("route table and dispatcher are required")
	}

	g := &Gateway{
		config:          cfg,
		table:           table,
		dispatcher:      dispatcher,
		logger:          observability.NopLogger(),
		shutdownTimeout: cfg.ShutdownTimeoutOrDefault(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.limiter == nil {
		g.limiter = ratelimit.NewNoopLimiter()
	}
	if g.health == nil {
		g.health = health.NewHandler(nil, g.logger)
	}

	g.engine = g.newEngine()
	g.handler = g.buildChain(g.engine)
	g.state.Store(int32(StateStopped))

	return g, nil
}

// newEngine registers the gateway-owned endpoints. Every other request
// falls through to the dispatch pipeline.
func (g *Gateway) newEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	engine.Use(reportGinRoute())

	info := newInfoHandlers(g.config, g.table)
	g.health.RegisterRoutes(engine)
	engine.GET(PathRoot, info.rootHandler)
	engine.GET(PathDocs, info.docsHandler)

	pipeline := NewPipeline(g.table, g.gate, g.dispatcher, g.logger, g.config.HideErrorDetails)
	engine.NoRoute(dispatchHandler(pipeline))

	return engine
}

// dispatchHandler hands unmatched requests to the pipeline. gin presets
// 404 on the NoRoute path and replaces bodiless responses with its own
// page, so the proxied header is flushed before gin looks at it.
func dispatchHandler(pipeline http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		pipeline.ServeHTTP(c.Writer, c.Request)
		c.Writer.WriteHeaderNow()
	}
}

// reportGinRoute labels gateway-owned endpoints in metrics and logs.
func reportGinRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		if route := c.FullPath(); route != "" {
			observability.ReportRoute(c.Request.Context(), route)
		}
		c.Next()
	}
}

// buildChain wraps h with the middleware chain. The first layer listed
// is the outermost.
func (g *Gateway) buildChain(h http.Handler) http.Handler {
	extractor := middleware.NewClientIPExtractor(g.config.TrustedProxies)
	errs := &errorWriter{logger: g.logger, hideDetails: g.config.HideErrorDetails}

	h = middleware.RateLimit(g.limiter, extractor,
		middleware.WithRateLimitLogger(g.logger),
		middleware.WithRateLimitMetrics(g.metrics),
	)(h)
	if g.config.CORS.Enabled {
		h = middleware.CORSFromConfig(&g.config.CORS)(h)
	}
	if g.metrics != nil {
		h = observability.MetricsMiddleware(g.metrics)(h)
	}
	if g.tracer != nil && g.tracer.Enabled() {
		h = observability.TracingMiddleware(g.tracer)(h)
	}
	h = middleware.Recovery(g.logger, errs.recovered)(h)
	h = middleware.Logging(g.logger, extractor)(h)
	h = middleware.RequestID()(h)

	return h
}

// Handler returns the complete HTTP handler, middleware included.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Engine returns the gin engine.
func (g *Gateway) Engine() *gin.Engine {
	return g.engine
}

// Start binds the gateway port. Serve must be called to accept
// connections.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrGatewayNotStopped
	}

	addr := fmt.Sprintf(":%d", g.config.Port)
	g.listener = NewListener("gateway", addr, g.handler, WithListenerLogger(g.logger))
	if err := g.listener.Listen(ctx); err != nil {
		g.state.Store(int32(StateStopped))
		return err
	}

	g.startTime = time.Now()
	g.state.Store(int32(StateRunning))

	g.logger.Info("gateway started",
		observability.String("address", g.listener.Address()),
		observability.Int("routes", g.table.Len()),
		observability.Bool("hide_error_details", g.config.HideErrorDetails),
	)

	return nil
}

// Serve accepts connections until Stop.
func (g *Gateway) Serve() error {
	if g.listener == nil {
		return ErrGatewayNotRunning
	}
	return g.listener.Serve()
}

// Stop drains in-flight requests, bounded by the shutdown timeout
// when ctx carries no deadline.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrGatewayNotRunning
	}
	defer g.state.Store(int32(StateStopped))

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.shutdownTimeout)
		defer cancel()
	}

	if err := g.listener.Shutdown(ctx); err != nil {
		return err
	}

	g.logger.Info("gateway stopped", observability.Duration("uptime", g.Uptime()))
	return nil
}

// State returns the current gateway state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning returns true if the gateway is running.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Uptime returns the gateway uptime.
func (g *Gateway) Uptime() time.Duration {
	if g.startTime.IsZero() {
		return 0
	}
	return time.Since(g.startTime)
}

// Address returns the bound gateway address.
func (g *Gateway) Address() string {
	if g.listener == nil {
		return ""
	}
	return g.listener.Address()
}
