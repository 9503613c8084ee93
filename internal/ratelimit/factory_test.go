package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/transitgw/internal/config"
	"github.com/vyrodovalexey/transitgw/internal/ratelimit/store"
)

func TestNewFromConfig_Disabled(t *testing.T) {
	cfg := config.DefaultConfig().RateLimit
	cfg.Enabled = false

	l, closer, err := NewFromConfig(context.Background(), &cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.IsType(t, &NoopLimiter{}, l)
}

func TestNewFromConfig_Memory(t *testing.T) {
	cfg := config.DefaultConfig().RateLimit

	l, closer, err := NewFromConfig(context.Background(), &cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer()

	fw, ok := l.(*FixedWindowLimiter)
	require.True(t, ok)
	assert.Equal(t, config.DefaultRateLimitMax, fw.Limit())
	assert.Equal(t, config.DefaultRateLimitWindow, fw.Window())
	assert.IsType(t, &store.MemoryStore{}, fw.store)
}

func TestNewFromConfig_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.DefaultConfig().RateLimit
	cfg.Store = config.StoreRedis
	cfg.Redis.Address = mr.Addr()
	cfg.Max = 2
	cfg.Window = config.Duration(time.Minute)

	l, closer, err := NewFromConfig(context.Background(), &cfg, zap.NewNop())
	require.NoError(t, err)
	defer closer()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(context.Background(), "9.9.9.9")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := l.Allow(context.Background(), "9.9.9.9")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.True(t, mr.Exists(config.DefaultRedisPrefix+"9.9.9.9"))
}

func TestNewStore_Unknown(t *testing.T) {
	cfg := config.DefaultConfig().RateLimit
	cfg.Store = "memcached"

	_, err := NewStore(context.Background(), &cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memcached")
}
