package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, "test:", zap.NewNop())
	t.Cleanup(func() { _ = s.Close() })

	return s, mr
}

func TestRedisStore_Hit_WindowLifecycle(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()
	size := 15 * time.Minute

	w, err := s.Hit(ctx, "10.0.0.1", base, size)
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.Count)
	assert.True(t, base.Equal(w.Start))
	assert.Equal(t, size, mr.TTL("test:10.0.0.1"))

	w, err = s.Hit(ctx, "10.0.0.1", base.Add(5*time.Minute), size)
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.Count)
	assert.True(t, base.Equal(w.Start))
	assert.Equal(t, 10*time.Minute, mr.TTL("test:10.0.0.1"))

	w, err = s.Hit(ctx, "10.0.0.1", base.Add(size), size)
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.Count)
	assert.True(t, base.Add(size).Equal(w.Start))
	assert.Equal(t, "1", mr.HGet("test:10.0.0.1", "count"))
}

func TestRedisStore_Hit_KeyExpiry(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, err := s.Hit(ctx, "k", base, time.Minute)
	require.NoError(t, err)

	mr.FastForward(time.Minute)
	assert.False(t, mr.Exists("test:k"))

	w, err := s.Hit(ctx, "k", base.Add(time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.Count)
}

func TestRedisStore_Hit_Concurrent(t *testing.T) {
	s, _ := newTestRedisStore(t)

	const workers = 50
	var wg sync.WaitGroup
	seen := make(chan int64, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := s.Hit(context.Background(), "shared", base, time.Minute)
			if err == nil {
				seen <- w.Count
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]bool)
	for c := range seen {
		unique[c] = true
	}
	assert.Len(t, unique, workers)
}

func TestRedisStore_Reset(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, err := s.Hit(ctx, "k", base, time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx, "k"))
	assert.False(t, mr.Exists("test:k"))

	require.NoError(t, s.Reset(ctx, "never-seen"))
}

func TestRedisStore_Hit_ServerDown(t *testing.T) {
	s, mr := newTestRedisStore(t)
	mr.Close()

	_, err := s.Hit(context.Background(), "k", base, time.Minute)
	assert.Error(t, err)
}

func TestRedisStore_Ping(t *testing.T) {
	s, mr := newTestRedisStore(t)

	require.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}

func TestRedisStore_Hit_ContextCanceled(t *testing.T) {
	s := &RedisStore{prefix: "test:"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Hit(ctx, "k", base, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, s.Reset(ctx, "k"), context.Canceled)
}

func TestNewRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := DefaultRedisConfig()
	cfg.Address = mr.Addr()

	s, err := NewRedisStore(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Close()

	w, err := s.Hit(context.Background(), "k", base, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.Count)
	assert.True(t, mr.Exists("transitgw:ratelimit:k"))
	assert.NotNil(t, s.Client())
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := DefaultRedisConfig()
	cfg.Address = addr
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.ConnectionRetries = 1
	cfg.InitialBackoff = time.Millisecond

	_, err := NewRedisStore(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestRedisStore_CloseIdempotent(t *testing.T) {
	s, _ := newTestRedisStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestCollectors_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	for _, c := range Collectors() {
		require.NoError(t, reg.Register(c))
	}
}
