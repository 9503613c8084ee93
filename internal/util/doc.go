// Package util provides shared error types and context helpers for the
// gateway.
//
// # Error Conventions
//
//   - Sentinel errors (errors.New) for stable conditions that callers
//     check with errors.Is(). Example: ErrRouteNotFound.
//   - Structured error types for errors that carry request or
//     configuration context (e.g. AuthError, UpstreamError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping.
//
// The gateway's fallback layer maps these errors to HTTP responses, so
// every error kind a request can fail with is declared here.
//
// # Context Helpers
//
//	ctx = util.ContextWithRoute(ctx, "routes-by-id")
//	name := util.RouteFromContext(ctx)
package util
