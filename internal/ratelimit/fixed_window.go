package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/transitgw/internal/ratelimit/store"
)

// FixedWindowLimiter admits at most limit requests per key in each window.
// A key's window opens on its first request and lasts for the configured
// size; rejected requests still count toward the window.
type FixedWindowLimiter struct {
	store  store.Store
	limit  int
	window time.Duration
	clock  func() time.Time
	logger *zap.Logger
}

// Option configures a FixedWindowLimiter.
type Option func(*FixedWindowLimiter)

// WithClock sets the time source.
func WithClock(clock func() time.Time) Option {
	return func(l *FixedWindowLimiter) {
		l.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *FixedWindowLimiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewFixedWindowLimiter creates a new fixed window rate limiter.
func NewFixedWindowLimiter(s store.Store, limit int, window time.Duration, opts ...Option) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		store:  s,
		limit:  limit,
		window: window,
		clock:  time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store returns the window store.
func (l *FixedWindowLimiter) Store() store.Store {
	return l.store
}

// Allow implements Limiter.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	return l.Admit(ctx, key, l.clock())
}

// Admit counts one request for key at now. A store failure is returned
// as an error and leaves the decision to the caller.
func (l *FixedWindowLimiter) Admit(ctx context.Context, key string, now time.Time) (*Result, error) {
	w, err := l.store.Hit(ctx, key, now, l.window)
	if err != nil {
		return nil, fmt.Errorf("rate limit store: %w", err)
	}

	allowed := w.Count <= int64(l.limit)

	remaining := l.limit - int(w.Count)
	if remaining < 0 {
		remaining = 0
	}

	resetAfter := w.ResetAt(l.window).Sub(now)
	if resetAfter < 0 {
		resetAfter = 0
	}

	var retryAfter time.Duration
	if !allowed {
		retryAfter = resetAfter
		l.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", w.Count),
			zap.Int("limit", l.limit),
			zap.Duration("retry_after", retryAfter),
		)
	}

	return &Result{
		Allowed:    allowed,
		Limit:      l.limit,
		Remaining:  remaining,
		Count:      w.Count,
		ResetAfter: resetAfter,
		RetryAfter: retryAfter,
	}, nil
}

// Reset drops the window of key.
func (l *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}

// Limit returns the per-window request limit.
func (l *FixedWindowLimiter) Limit() int {
	return l.limit
}

// Window returns the window size.
func (l *FixedWindowLimiter) Window() time.Duration {
	return l.window
}

// Close releases the underlying store.
func (l *FixedWindowLimiter) Close() error {
	return l.store.Close()
}
