package health

import (
	"context"
	"time"
)

// Status values reported by the endpoints.
const (
	StatusHealthy = "healthy"
	StatusReady   = "ready"
	StatusError   = "error"
	StatusOK      = "ok"
)

// ServiceName is the name reported in the health payload.
const ServiceName = "API Gateway"

// DefaultReadinessProbeTimeout bounds one /readyz evaluation.
const DefaultReadinessProbeTimeout = 5 * time.Second

// Status is the /health payload.
type Status struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version,omitempty"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime,omitempty"`
	Services  map[string]string `json:"services"`
}

// ReadinessStatus is the /readyz payload.
type ReadinessStatus struct {
	Status    string                  `json:"status"`
	Timestamp string                  `json:"timestamp"`
	Checks    map[string]*CheckResult `json:"checks,omitempty"`
}

// CheckResult represents the result of a single readiness check.
type CheckResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// HealthCheck is a readiness dependency.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthCheck.
type HealthCheckFunc struct {
	name      string
	checkFunc func(ctx context.Context) error
}

// NewHealthCheckFunc creates a new health check function.
func NewHealthCheckFunc(name string, check func(ctx context.Context) error) *HealthCheckFunc {
	return &HealthCheckFunc{name: name, checkFunc: check}
}

// Name returns the name of the health check.
func (f *HealthCheckFunc) Name() string {
	return f.name
}

// Check performs the health check.
func (f *HealthCheckFunc) Check(ctx context.Context) error {
	return f.checkFunc(ctx)
}
