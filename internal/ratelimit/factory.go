package ratelimit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/transitgw/internal/config"
	"github.com/vyrodovalexey/transitgw/internal/ratelimit/store"
)

// NewStore creates the window store selected by cfg.Store.
func NewStore(ctx context.Context, cfg *config.RateLimitConfig, logger *zap.Logger) (store.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Store {
	case config.StoreMemory, "":
		return store.NewMemoryStore(cfg.CleanupInterval.Duration()), nil

	case config.StoreRedis:
		rc := store.DefaultRedisConfig()
		rc.Address = cfg.Redis.Address
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		if cfg.Redis.Prefix != "" {
			rc.Prefix = cfg.Redis.Prefix
		}
		rc.Logger = logger.Named("redis")

		s, err := store.NewRedisStore(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown rate limit store: %q", cfg.Store)
	}
}

// NewFromConfig builds the gateway limiter. A disabled configuration
// yields a NoopLimiter and a nil closer.
func NewFromConfig(ctx context.Context, cfg *config.RateLimitConfig, logger *zap.Logger) (Limiter, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !cfg.Enabled {
		return NewNoopLimiter(), nil, nil
	}

	s, err := NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	limiter := NewFixedWindowLimiter(s, cfg.Max, cfg.Window.Duration(), WithLogger(logger))

	logger.Info("rate limiter configured",
		zap.String("store", storeName(cfg.Store)),
		zap.Int("max", cfg.Max),
		zap.Duration("window", cfg.Window.Duration()),
	)

	return limiter, limiter.Close, nil
}

func storeName(s string) string {
	if s == "" {
		return config.StoreMemory
	}
	return s
}
