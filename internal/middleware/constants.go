// Package middleware provides HTTP middleware for the gateway.
package middleware

// HTTP header constants.
const (
	// HeaderContentType is the Content-Type header name.
	HeaderContentType = "Content-Type"

	// HeaderRetryAfter is the Retry-After header name.
	HeaderRetryAfter = "Retry-After"

	// HeaderOrigin is the Origin header name.
	HeaderOrigin = "Origin"

	// HeaderXRequestID is the X-Request-ID header name.
	HeaderXRequestID = "X-Request-ID"

	// HeaderXForwardedFor is the X-Forwarded-For header name.
	HeaderXForwardedFor = "X-Forwarded-For"

	// HeaderXRealIP is the X-Real-IP header name.
	HeaderXRealIP = "X-Real-IP"

	// HeaderRateLimitLimit is the X-RateLimit-Limit header name.
	HeaderRateLimitLimit = "X-RateLimit-Limit"

	// HeaderRateLimitRemaining is the X-RateLimit-Remaining header name.
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"

	// HeaderRateLimitReset is the X-RateLimit-Reset header name.
	HeaderRateLimitReset = "X-RateLimit-Reset"
)

// Error response messages.
const (
	// MsgRateLimitExceeded is the 429 error message.
	MsgRateLimitExceeded = "Too many requests from this IP, please try again later."

	// MsgInternalServerError is the 500 error message.
	MsgInternalServerError = "Internal server error"
)
