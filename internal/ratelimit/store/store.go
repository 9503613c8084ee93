// Package store provides window counter backends for rate limiting.
package store

import (
	"context"
	"time"
)

// Window is the state of one key's fixed window after a hit.
type Window struct {
	// Start is when the current window began.
	Start time.Time

	// Count is the number of hits recorded in the window, including the
	// one that produced this value.
	Count int64
}

// ResetAt returns the instant the window ends.
func (w Window) ResetAt(size time.Duration) time.Time {
	return w.Start.Add(size)
}

// Store records hits against per-key fixed windows.
type Store interface {
	// Hit counts one request for key at now. When no window exists for
	// the key, or now is at least size past the window start, a new
	// window starting at now is opened before counting.
	Hit(ctx context.Context, key string, now time.Time, size time.Duration) (Window, error)

	// Reset drops the window of key.
	Reset(ctx context.Context, key string) error

	// Close releases the resources held by the store.
	Close() error
}

// expired reports whether a window opened at start has run its course.
func expired(start, now time.Time, size time.Duration) bool {
	return now.Sub(start) >= size
}
