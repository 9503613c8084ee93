package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/transitgw/internal/observability"
)

// AddressSource reports the configured backend addresses keyed by
// upper-cased service name. *registry.Registry implements it.
type AddressSource interface {
	Addresses() map[string]string
}

// Option configures a Handler.
type Option func(*Handler)

// WithVersion sets the version reported by /health.
func WithVersion(version string) Option {
	return func(h *Handler) {
		h.version = version
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithReadinessTimeout bounds one readiness evaluation.
func WithReadinessTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.readinessTimeout = d
		}
	}
}

// Handler handles health check requests.
type Handler struct {
	services         AddressSource
	logger           observability.Logger
	version          string
	clock            func() time.Time
	startTime        time.Time
	readinessTimeout time.Duration

	mu     sync.RWMutex
	checks []HealthCheck
}

// NewHandler creates a new health handler.
func NewHandler(services AddressSource, logger observability.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	h := &Handler{
		services:         services,
		logger:           logger,
		clock:            time.Now,
		readinessTimeout: DefaultReadinessProbeTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.startTime = h.clock()
	return h
}

// AddCheck registers a readiness check.
func (h *Handler) AddCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// Health builds the /health payload. Service addresses come from
// configuration and are not probed.
func (h *Handler) Health() *Status {
	now := h.clock()
	services := map[string]string{}
	if h.services != nil {
		services = h.services.Addresses()
	}
	return &Status{
		Status:    StatusHealthy,
		Service:   ServiceName,
		Version:   h.version,
		Timestamp: now.UTC().Format(time.RFC3339),
		Uptime:    now.Sub(h.startTime).Round(time.Second).String(),
		Services:  services,
	}
}

// Readiness runs every registered check concurrently.
func (h *Handler) Readiness(ctx context.Context) *ReadinessStatus {
	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := &ReadinessStatus{
		Status:    StatusReady,
		Timestamp: h.clock().UTC().Format(time.RFC3339),
	}
	if len(checks) == 0 {
		return status
	}

	status.Checks = make(map[string]*CheckResult, len(checks))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, check := range checks {
		wg.Add(1)
		go func(c HealthCheck) {
			defer wg.Done()

			start := time.Now()
			err := c.Check(ctx)
			duration := time.Since(start)

			result := &CheckResult{Status: StatusOK, Duration: duration.String()}
			if err != nil {
				result.Status = StatusError
				result.Error = err.Error()

				h.logger.Warn("readiness check failed",
					observability.String("check", c.Name()),
					observability.Error(err),
					observability.Duration("duration", duration),
				)
			}

			mu.Lock()
			defer mu.Unlock()
			status.Checks[c.Name()] = result
			if err != nil {
				status.Status = StatusError
			}
		}(check)
	}

	wg.Wait()
	return status
}

// HealthHandler serves /health.
func (h *Handler) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, h.Health())
	}
}

// ReadinessHandler serves /readyz.
func (h *Handler) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.readinessTimeout)
		defer cancel()

		status := h.Readiness(ctx)
		code := http.StatusOK
		if status.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}

// RegisterRoutes registers the health routes on a gin engine.
func (h *Handler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/health", h.HealthHandler())
	engine.GET("/readyz", h.ReadinessHandler())
}
