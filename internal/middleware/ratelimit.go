package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/vyrodovalexey/transitgw/internal/observability"
	"github.com/vyrodovalexey/transitgw/internal/ratelimit"
	"github.com/vyrodovalexey/transitgw/internal/util"
)

// RateLimitOption configures the rate limit middleware.
type RateLimitOption func(*rateLimitMiddleware)

// WithRateLimitLogger sets the logger.
func WithRateLimitLogger(logger observability.Logger) RateLimitOption {
	return func(m *rateLimitMiddleware) {
		m.logger = logger
	}
}

// WithRateLimitMetrics records admission decisions.
func WithRateLimitMetrics(metrics *observability.Metrics) RateLimitOption {
	return func(m *rateLimitMiddleware) {
		m.metrics = metrics
	}
}

type rateLimitMiddleware struct {
	limiter   ratelimit.Limiter
	extractor *ClientIPExtractor
	logger    observability.Logger
	metrics   *observability.Metrics
}

// RateLimit returns a middleware that admits requests through limiter,
// keyed by client address. Rejections get a 429 with Retry-After. When
// the limiter itself fails the request is admitted and the error logged.
func RateLimit(
	limiter ratelimit.Limiter,
	extractor *ClientIPExtractor,
	opts ...RateLimitOption,
) func(http.Handler) http.Handler {
	m := &rateLimitMiddleware{
		limiter:   limiter,
		extractor: extractor,
		logger:    observability.NopLogger(),
	}
	if m.extractor == nil {
		m.extractor = NewClientIPExtractor(nil)
	}
	for _, opt := range opts {
		opt(m)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := m.extractor.Extract(r)
			ctx := util.ContextWithClientKey(r.Context(), key)
			r = r.WithContext(ctx)

			res, err := m.limiter.Allow(ctx, key)
			if err != nil {
				m.logger.WithContext(ctx).Error("rate limiter unavailable, admitting request",
					observability.String("client_ip", key),
					observability.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			if res.Limit > 0 {
				setRateLimitHeaders(w, res)
			}
			if m.metrics != nil {
				m.metrics.RecordRateLimit(res.Allowed)
			}

			if !res.Allowed {
				m.logger.WithContext(ctx).Warn("rate limit exceeded",
					observability.String("client_ip", key),
					observability.String("path", r.URL.Path),
					observability.Int64("count", res.Count),
				)
				w.Header().Set(HeaderRetryAfter, strconv.Itoa(ceilSeconds(res.RetryAfter)))
				util.WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": MsgRateLimitExceeded})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, res *ratelimit.Result) {
	h := w.Header()
	h.Set(HeaderRateLimitLimit, strconv.Itoa(res.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
	h.Set(HeaderRateLimitReset, strconv.Itoa(ceilSeconds(res.ResetAfter)))
}

// ceilSeconds rounds d up to whole seconds, never below one.
func ceilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
