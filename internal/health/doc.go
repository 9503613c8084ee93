// Package health serves the gateway's health and readiness endpoints.
//
// /health reports the gateway itself plus the configured address of
// every backend service. It never contacts the services: a backend
// being down does not make the gateway unhealthy.
//
// /readyz runs the registered checks concurrently (for example a ping
// of the shared rate limit store) and answers 503 when any fails.
//
//	h := health.NewHandler(reg, logger)
//	h.AddCheck(health.NewHealthCheckFunc("redis", ping))
//	h.RegisterRoutes(engine)
package health
