package middleware

import (
	"net/http"
	"time"

	"github.com/vyrodovalexey/transitgw/internal/observability"
	"github.com/vyrodovalexey/transitgw/internal/util"
)

// Logging returns a middleware that writes one access log line per
// request. It plants the route slot, so the matched rule name reported
// by the dispatch pipeline appears in the line.
func Logging(logger observability.Logger, extractor *ClientIPExtractor) func(http.Handler) http.Handler {
	if extractor == nil {
		extractor = NewClientIPExtractor(nil)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := util.ContextWithStartTime(r.Context(), start)
			ctx = observability.WithRouteReporting(ctx)
			r = r.WithContext(ctx)

			rw := util.NewStatusCapturingResponseWriter(w)

			next.ServeHTTP(rw, r)

			fields := []observability.Field{
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.String("query", r.URL.RawQuery),
				observability.Int("status", rw.StatusCode),
				observability.Int("size", rw.Size),
				observability.Duration("duration", time.Since(start)),
				observability.String("client_ip", extractor.Extract(r)),
				observability.String("user_agent", r.UserAgent()),
			}
			if route := observability.ReportedRoute(ctx); route != "" {
				fields = append(fields, observability.String("route", route))
			}

			log := logger.WithContext(r.Context())
			switch {
			case rw.StatusCode >= http.StatusInternalServerError:
				log.Warn("http request", fields...)
			default:
				log.Info("http request", fields...)
			}
		})
	}
}
