package store

import (
	"context"
	"sync"
	"time"
)

// counter is the in-process state of one key.
type counter struct {
	mu      sync.Mutex
	start   time.Time
	count   int64
	expires time.Time
	removed bool
}

// MemoryStore keeps window counters in process memory. Counters are
// only visible to the instance that owns them.
type MemoryStore struct {
	data sync.Map

	ticker *time.Ticker
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewMemoryStore creates an in-memory store. A positive cleanupInterval
// starts a janitor that drops expired counters on that period until
// Close is called.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{done: make(chan struct{})}

	if cleanupInterval > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		go s.janitor()
	}

	return s
}

// Hit implements Store.
func (s *MemoryStore) Hit(ctx context.Context, key string, now time.Time, size time.Duration) (Window, error) {
	if err := ctx.Err(); err != nil {
		return Window{}, err
	}

	for {
		value, _ := s.data.LoadOrStore(key, &counter{})
		c := value.(*counter)

		c.mu.Lock()
		if c.removed {
			// The janitor dropped this counter after we loaded it.
			c.mu.Unlock()
			continue
		}

		if c.count == 0 || expired(c.start, now, size) {
			c.start = now
			c.count = 0
			c.expires = now.Add(size)
		}
		c.count++
		w := Window{Start: c.start, Count: c.count}
		c.mu.Unlock()

		return w, nil
	}
}

// Reset implements Store.
func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if value, ok := s.data.LoadAndDelete(key); ok {
		c := value.(*counter)
		c.mu.Lock()
		c.removed = true
		c.mu.Unlock()
	}
	return nil
}

// Cleanup drops every counter whose window has ended by now and returns
// how many were removed.
func (s *MemoryStore) Cleanup(now time.Time) int {
	removed := 0

	s.data.Range(func(key, value any) bool {
		if s.evict(key, value.(*counter), now) {
			removed++
		}
		return true
	})

	return removed
}

// evict drops c if its window has ended. A counter installed under the
// same key after c was loaded is left alone.
func (s *MemoryStore) evict(key any, c *counter, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.removed || now.Before(c.expires) {
		return false
	}
	c.removed = true
	s.data.CompareAndDelete(key, c)
	return true
}

// Size returns the number of live counters.
func (s *MemoryStore) Size() int {
	n := 0
	s.data.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close implements Store. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.done)

	return nil
}

func (s *MemoryStore) janitor() {
	for {
		select {
		case now := <-s.ticker.C:
			s.Cleanup(now)
		case <-s.done:
			return
		}
	}
}
