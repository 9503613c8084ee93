// Package ratelimit provides per-client fixed-window admission control
// for the gateway.
package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether a request from a client key may proceed.
type Limiter interface {
	// Allow counts one request for key and reports the decision.
	Allow(ctx context.Context, key string) (*Result, error)
}

// Result represents the result of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is admitted.
	Allowed bool

	// Limit is the maximum number of requests admitted per window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// Count is the number of requests seen in the current window,
	// rejected ones included.
	Count int64

	// ResetAfter is the duration until the current window ends.
	ResetAfter time.Duration

	// RetryAfter is the duration to wait before retrying. It is zero for
	// admitted requests.
	RetryAfter time.Duration
}

// NoopLimiter admits every request. It is used when rate limiting is
// disabled.
type NoopLimiter struct{}

// NewNoopLimiter creates a new noop limiter.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (l *NoopLimiter) Allow(_ context.Context, _ string) (*Result, error) {
	return &Result{Allowed: true}, nil
}
