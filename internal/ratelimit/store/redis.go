package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	redisStoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "transitgw",
			Subsystem: "ratelimit_store",
			Name:      "operations_total",
			Help:      "Total number of Redis window store operations",
		},
		[]string{"operation", "status"},
	)

	redisStoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "transitgw",
			Subsystem: "ratelimit_store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis window store operations in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	redisStoreConnectionRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "transitgw",
			Subsystem: "ratelimit_store",
			Name:      "connection_retries_total",
			Help:      "Total number of Redis connection retry attempts",
		},
	)
)

// Collectors returns the store metrics so the caller can register them
// with its own registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		redisStoreOperationsTotal,
		redisStoreOperationDuration,
		redisStoreConnectionRetries,
	}
}

// hitScript opens or continues the fixed window of KEYS[1] and counts
// one hit. Times are unix milliseconds.
// ARGV[1] = now
// ARGV[2] = window size
// Returns: {window start, count}
var hitScript = redis.NewScript(`
	local now = tonumber(ARGV[1])
	local size = tonumber(ARGV[2])

	local start = tonumber(redis.call('HGET', KEYS[1], 'start'))
	if start == nil or now - start >= size then
		start = now
		redis.call('HSET', KEYS[1], 'start', start, 'count', 0)
	end

	local count = redis.call('HINCRBY', KEYS[1], 'count', 1)

	local ttl = start + size - now
	if ttl < 1 then
		ttl = 1
	end
	redis.call('PEXPIRE', KEYS[1], ttl)

	return {start, count}
`)

// RedisConfig holds configuration for the Redis store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ConnectionRetries is the number of extra ping attempts made before
	// NewRedisStore gives up.
	ConnectionRetries int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration

	Logger *zap.Logger
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Address:           "localhost:6379",
		Prefix:            "transitgw:ratelimit:",
		DialTimeout:       5 * time.Second,
		ReadTimeout:       time.Second,
		WriteTimeout:      time.Second,
		ConnectionRetries: 3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
	}
}

// RedisStore keeps window counters in Redis so that every gateway
// instance shares them. Each key is a hash holding the window start and
// count, expiring when the window ends.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewRedisStore connects to Redis, retrying the initial ping with
// exponential backoff.
func NewRedisStore(ctx context.Context, cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := pingWithRetry(ctx, client, cfg, logger); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewRedisStoreFromClient(client, cfg.Prefix, logger), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

func pingWithRetry(ctx context.Context, client *redis.Client, cfg *RedisConfig, logger *zap.Logger) error {
	backoff := cfg.InitialBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.ConnectionRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		lastErr = client.Ping(pingCtx).Err()
		cancel()

		if lastErr == nil {
			if attempt > 0 {
				logger.Info("redis connection established after retry",
					zap.String("address", cfg.Address),
					zap.Int("attempt", attempt+1),
				)
			}
			return nil
		}

		if attempt == cfg.ConnectionRetries {
			break
		}

		logger.Debug("redis connection failed, retrying",
			zap.String("address", cfg.Address),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr),
		)
		redisStoreConnectionRetries.Inc()

		select {
		case <-ctx.Done():
			return fmt.Errorf("redis connect: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return fmt.Errorf("failed to connect to redis at %s after %d attempts: %w",
		cfg.Address, cfg.ConnectionRetries+1, lastErr)
}

func (s *RedisStore) prefixKey(key string) string {
	return s.prefix + key
}

// Hit implements Store using a Lua script so concurrent gateways see one
// consistent window per key.
func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, size time.Duration) (Window, error) {
	if err := ctx.Err(); err != nil {
		return Window{}, fmt.Errorf("context error before redis hit: %w", err)
	}

	start := time.Now()
	result, err := hitScript.Run(ctx, s.client, []string{s.prefixKey(key)},
		now.UnixMilli(), size.Milliseconds()).Int64Slice()
	redisStoreOperationDuration.WithLabelValues("hit").Observe(time.Since(start).Seconds())

	if err != nil {
		redisStoreOperationsTotal.WithLabelValues("hit", "error").Inc()
		return Window{}, fmt.Errorf("redis hit script: %w", err)
	}
	if len(result) != 2 {
		redisStoreOperationsTotal.WithLabelValues("hit", "error").Inc()
		return Window{}, fmt.Errorf("redis hit script returned %d values", len(result))
	}

	redisStoreOperationsTotal.WithLabelValues("hit", "success").Inc()
	return Window{Start: time.UnixMilli(result[0]), Count: result[1]}, nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error before redis del: %w", err)
	}

	start := time.Now()
	err := s.client.Del(ctx, s.prefixKey(key)).Err()
	redisStoreOperationDuration.WithLabelValues("reset").Observe(time.Since(start).Seconds())

	if err != nil && !errors.Is(err, redis.Nil) {
		redisStoreOperationsTotal.WithLabelValues("reset", "error").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	redisStoreOperationsTotal.WithLabelValues("reset", "success").Inc()
	return nil
}

// Close implements Store. It is safe to call more than once.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// Ping checks that Redis answers.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Client returns the underlying Redis client.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}
