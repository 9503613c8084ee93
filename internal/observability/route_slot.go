package observability

import "context"

// routeSlot lets an inner handler report the matched rule name to outer
// middleware. Context values only flow inward, so the outer layer plants
// a mutable slot and reads it after the handler returns.
type routeSlot struct {
	name string
}

type routeSlotKey struct{}

func withRouteSlot(ctx context.Context, slot *routeSlot) context.Context {
	return context.WithValue(ctx, routeSlotKey{}, slot)
}

// ReportRoute records the matched rule name for the enclosing
// metrics and access log middleware. It is a no-op outside them.
func ReportRoute(ctx context.Context, name string) {
	if slot, ok := ctx.Value(routeSlotKey{}).(*routeSlot); ok {
		slot.name = name
	}
}

// ReportedRoute returns the rule name reported with ReportRoute.
func ReportedRoute(ctx context.Context) string {
	if slot, ok := ctx.Value(routeSlotKey{}).(*routeSlot); ok {
		return slot.name
	}
	return ""
}

// WithRouteReporting plants a route slot if ctx does not carry one.
func WithRouteReporting(ctx context.Context) context.Context {
	if _, ok := ctx.Value(routeSlotKey{}).(*routeSlot); ok {
		return ctx
	}
	return withRouteSlot(ctx, &routeSlot{})
}
