package util

import (
	"context"
	"time"
)

// Context keys.
type ctxKey string

const (
	ctxKeyStartTime  ctxKey = "start_time"
	ctxKeyRoute      ctxKey = "route"
	ctxKeyService    ctxKey = "service"
	ctxKeyClientKey  ctxKey = "client_key"
	ctxKeyPrincipal  ctxKey = "principal"
	ctxKeyPathParams ctxKey = "path_params"
)

// ContextWithStartTime adds a start time to the context.
func ContextWithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyStartTime, t)
}

// StartTimeFromContext extracts the start time from context.
func StartTimeFromContext(ctx context.Context) time.Time {
	if v, ok := ctx.Value(ctxKeyStartTime).(time.Time); ok {
		return v
	}
	return time.Time{}
}

// ContextWithRoute adds the matched rule name to the context.
func ContextWithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, ctxKeyRoute, route)
}

// RouteFromContext extracts the matched rule name from context.
func RouteFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRoute).(string); ok {
		return v
	}
	return ""
}

// ContextWithService adds the target service name to the context.
func ContextWithService(ctx context.Context, service string) context.Context {
	return context.WithValue(ctx, ctxKeyService, service)
}

// ServiceFromContext extracts the target service name from context.
func ServiceFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyService).(string); ok {
		return v
	}
	return ""
}

// ContextWithClientKey adds the rate limiting client key to the context.
func ContextWithClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKeyClientKey, key)
}

// ClientKeyFromContext extracts the client key from context.
func ClientKeyFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithPrincipal stores the verified admin principal as raw JSON.
func ContextWithPrincipal(ctx context.Context, principal []byte) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, principal)
}

// PrincipalFromContext returns the verified admin principal, if any.
func PrincipalFromContext(ctx context.Context) ([]byte, bool) {
	v, ok := ctx.Value(ctxKeyPrincipal).([]byte)
	return v, ok
}

// ContextWithPathParams adds path parameters to the context.
func ContextWithPathParams(ctx context.Context, params map[string]string) context.Context {
	return context.WithValue(ctx, ctxKeyPathParams, params)
}

// PathParamsFromContext extracts path parameters from context.
func PathParamsFromContext(ctx context.Context) map[string]string {
	if v, ok := ctx.Value(ctxKeyPathParams).(map[string]string); ok {
		return v
	}
	return nil
}
