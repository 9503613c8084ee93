package auth

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/vyrodovalexey/transitgw/internal/observability"
	"github.com/vyrodovalexey/transitgw/internal/util"
)

// Result is the outcome of a successful admin check.
type Result struct {
	// Principal is the verified user as reported by the user service.
	// It is nil when the service did not include one.
	Principal json.RawMessage
}

// Gate enforces the admin requirement of a route rule.
type Gate struct {
	verifier Verifier
	metrics  *observability.Metrics
	logger   observability.Logger
	clock    func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithMetrics records check outcomes.
func WithMetrics(m *observability.Metrics) GateOption {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate creates a gate backed by verifier.
func NewGate(verifier Verifier, opts ...GateOption) *Gate {
	g := &Gate{
		verifier: verifier,
		logger:   observability.NopLogger(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate verifies the Authorization header value of an admin
// request. Every call reaches the verifier; nothing is cached.
//
// The returned error is always a *util.AuthError whose kind is
// util.ErrMissingCredential, util.ErrInvalidCredential or
// util.ErrAuthUnavailable.
func (g *Gate) Authenticate(ctx context.Context, authorization string) (*Result, error) {
	if strings.TrimSpace(authorization) == "" {
		g.record(observability.AuthOutcomeMissing, 0)
		return nil, util.NewAuthError(util.ErrMissingCredential, "", nil)
	}

	start := g.clock()
	verification, err := g.verifier.Verify(ctx, authorization)
	elapsed := g.clock().Sub(start)

	if err != nil {
		g.record(observability.AuthOutcomeUnavailable, elapsed)
		g.logger.WithContext(ctx).Warn("admin verification failed",
			observability.Error(err),
			observability.Duration("duration", elapsed),
		)
		return nil, util.NewAuthError(util.ErrAuthUnavailable, err.Error(), err)
	}

	if !verification.Valid {
		g.record(observability.AuthOutcomeInvalid, elapsed)
		g.logger.WithContext(ctx).Info("admin credential rejected",
			observability.String("reason", verification.Error),
		)
		return nil, util.NewAuthError(util.ErrInvalidCredential, verification.Error, nil)
	}

	g.record(observability.AuthOutcomeAllowed, elapsed)
	return &Result{Principal: verification.User}, nil
}

func (g *Gate) record(outcome string, elapsed time.Duration) {
	if g.metrics != nil {
		g.metrics.RecordAuthCheck(outcome, elapsed)
	}
}
