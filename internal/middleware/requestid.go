package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/transitgw/internal/observability"
)

// maxRequestIDLength bounds an inbound request id accepted as-is.
const maxRequestIDLength = 128

// RequestID returns a middleware that assigns each request an id. A
// well-formed inbound X-Request-ID is kept so ids survive chained
// gateways.
func RequestID() func(http.Handler) http.Handler {
	return RequestIDWithGenerator(func() string {
		return uuid.New().String()
	})
}

// RequestIDWithGenerator returns a middleware that uses a custom ID generator.
func RequestIDWithGenerator(generator func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderXRequestID)
			if !validRequestID(requestID) {
				requestID = generator()
				r.Header.Set(HeaderXRequestID, requestID)
			}

			ctx := observability.ContextWithRequestID(r.Context(), requestID)
			r = r.WithContext(ctx)

			w.Header().Set(HeaderXRequestID, requestID)

			next.ServeHTTP(w, r)
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
