package config

import "time"

// Default values.
const (
	DefaultPort             = 8080
	DefaultRateLimitWindow  = 15 * time.Minute
	DefaultRateLimitMax     = 100
	DefaultCleanupInterval  = time.Minute
	DefaultAuthTimeout      = 5 * time.Second
	DefaultUpstreamTimeout  = 10 * time.Second
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
	DefaultVerifyPath       = "/verify-admin"
	DefaultPrincipalHeader  = "X-Authenticated-User"
	DefaultRedisAddress     = "localhost:6379"
	DefaultRedisPrefix      = "transitgw:ratelimit:"
	DefaultBreakerFailures  = 5
	DefaultBreakerOpenTime  = 30 * time.Second
	DefaultBreakerHalfOpen  = 1
	DefaultDocsTitle        = "Transport System API"
	DefaultDocsVersion      = "1.0.0"
	DefaultUserServiceName  = "user"
	DefaultEnvironment      = "development"
	DefaultTracingService   = "transitgw"
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingSampling  = 1.0
	DefaultCORSMaxAgeSecond = 0
)

// DefaultConfig returns the configuration of the transport system
// gateway: five services and the route table they are reached through.
func DefaultConfig() *Config {
	return &Config{
		Port:            DefaultPort,
		Environment:     DefaultEnvironment,
		ShutdownTimeout: Duration(DefaultShutdownTimeout),
		Services:        DefaultServices(),
		Routes:          DefaultRoutes(),
		RateLimit: RateLimitConfig{
			Enabled:         true,
			Window:          Duration(DefaultRateLimitWindow),
			Max:             DefaultRateLimitMax,
			Store:           StoreMemory,
			CleanupInterval: Duration(DefaultCleanupInterval),
			Redis: RedisConfig{
				Address: DefaultRedisAddress,
				Prefix:  DefaultRedisPrefix,
			},
		},
		Auth: AuthConfig{
			Service:         DefaultUserServiceName,
			VerifyPath:      DefaultVerifyPath,
			Timeout:         Duration(DefaultAuthTimeout),
			PrincipalHeader: DefaultPrincipalHeader,
		},
		Upstream: UpstreamConfig{
			Timeout: Duration(DefaultUpstreamTimeout),
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures:      DefaultBreakerFailures,
				OpenTimeout:      Duration(DefaultBreakerOpenTime),
				HalfOpenRequests: DefaultBreakerHalfOpen,
			},
		},
		CORS: CORSConfig{
			Enabled:      true,
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH"},
			AllowHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:       DefaultCORSMaxAgeSecond,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			Metrics: MetricsConfig{
				Port: DefaultMetricsPort,
				Path: DefaultMetricsPath,
			},
			Tracing: TracingConfig{
				Endpoint:     DefaultTracingEndpoint,
				SamplingRate: DefaultTracingSampling,
				ServiceName:  DefaultTracingService,
			},
		},
		Docs: DefaultDocs(),
	}
}

// DefaultServices returns the transport system services in display order.
func DefaultServices() []ServiceConfig {
	return []ServiceConfig{
		{Name: "user", URL: "http://service-user:5001"},
		{Name: "route", URL: "http://service-1-route:5002"},
		{Name: "stop", URL: "http://service-2-stop:5003"},
		{Name: "bus", URL: "http://service-3-bus:5004"},
		{Name: "schedule", URL: "http://service-4-schedule:5005"},
	}
}

// DefaultRoutes returns the transport route table. Admin rules precede
// the public rules whose patterns would otherwise swallow them, and
// longer paths precede their own prefixes.
func DefaultRoutes() []RouteConfig {
	auth := func(name, from, to string) RouteConfig {
		return RouteConfig{
			Name:    name,
			Pattern: from + "/*",
			Service: "user",
			Rewrite: RewriteConfig{From: from, To: to},
		}
	}
	rule := func(name, pattern, service, from, to string, admin bool) RouteConfig {
		return RouteConfig{
			Name:          name,
			Pattern:       pattern,
			Service:       service,
			Rewrite:       RewriteConfig{From: from, To: to},
			RequiresAdmin: admin,
		}
	}

	return []RouteConfig{
		auth("auth-login", "/api/auth/login", "/login"),
		auth("auth-register", "/api/auth/register", "/register"),
		auth("auth-verify-admin", "/api/auth/verify-admin", "/verify-admin"),

		rule("routes-admin", "/api/routes/admin/*", "route", "/api/routes", "/routes", true),
		rule("routes-nearby", "/api/routes/nearby/*", "route", "/api/routes", "/routes", false),
		rule("routes-stops", "/api/routes/:id/stops/*", "route", "/api/routes", "/routes", false),
		rule("routes-buses", "/api/routes/:id/buses/*", "route", "/api/routes", "/routes", false),
		rule("routes-by-id", "/api/routes/:id/*", "route", "/api/routes", "/routes", false),
		rule("routes", "/api/routes/*", "route", "/api/routes", "/routes", false),

		rule("stops-admin", "/api/stops/admin/*", "stop", "/api/stops", "/stops", true),
		rule("stops-search", "/api/stops/search/*", "stop", "/api/stops", "/stops", false),
		rule("stops-by-id", "/api/stops/:id/*", "stop", "/api/stops", "/stops", false),
		rule("stops", "/api/stops/*", "stop", "/api/stops", "/stops", false),

		rule("buses-assign-route", "/api/buses/:id/route/*", "bus", "/api/buses", "/buses", true),
		rule("buses-speed", "/api/buses/:id/speed/*", "bus", "/api/buses", "/buses", true),
		rule("buses-location", "/api/buses/:id/location/*", "bus", "/api/buses", "/buses", false),
		rule("buses-by-id", "/api/buses/:id/*", "bus", "/api/buses", "/buses", false),
		rule("buses", "/api/buses/*", "bus", "/api/buses", "/buses", false),

		rule("schedules-admin", "/api/schedules/admin/*", "schedule", "/api/schedules", "/schedules", true),
		rule("schedules-eta", "/api/schedules/eta/*", "schedule", "/api/schedules", "", false),
		rule("schedules-arrivals", "/api/schedules/stops/:id/arrivals/*", "schedule", "/api/schedules", "", false),
		rule("schedules-next-departures", "/api/schedules/:routeId/next-departures/*", "schedule",
			"/api/schedules", "/schedules", false),
		rule("schedules-by-route", "/api/schedules/:routeId/*", "schedule", "/api/schedules", "/schedules", false),
	}
}

// DefaultDocs returns the endpoint catalog of the transport system.
func DefaultDocs() DocsConfig {
	get := func(path, desc string) DocEndpoint {
		return DocEndpoint{Method: "GET", Path: path, Description: desc}
	}
	admin := func(method, path, desc string) DocEndpoint {
		return DocEndpoint{Method: method, Path: path, Description: desc, Auth: true}
	}

	return DocsConfig{
		Title:   DefaultDocsTitle,
		Version: DefaultDocsVersion,
		Groups: []DocGroup{
			{
				Name:   "Authentication",
				Prefix: "/api/auth",
				Endpoints: []DocEndpoint{
					{Method: "POST", Path: "/api/auth/login", Description: "User login"},
					{Method: "POST", Path: "/api/auth/register", Description: "User registration"},
				},
			},
			{
				Name:   "Routes",
				Prefix: "/api/routes",
				Endpoints: []DocEndpoint{
					get("/api/routes", "Get all routes"),
					get("/api/routes/:id", "Get route by ID"),
					get("/api/routes/:id/stops", "Get stops in route"),
					get("/api/routes/:id/buses", "Get buses on route"),
					admin("POST", "/api/routes/admin/add", "Add route (Admin)"),
					admin("PUT", "/api/routes/admin/:id", "Update route (Admin)"),
					admin("DELETE", "/api/routes/admin/:id", "Delete route (Admin)"),
				},
			},
			{
				Name:   "Stops",
				Prefix: "/api/stops",
				Endpoints: []DocEndpoint{
					get("/api/stops", "Get all stops"),
					get("/api/stops/:id", "Get stop by ID"),
					get("/api/stops/search", "Search stops"),
					admin("POST", "/api/stops/admin/add", "Add stop (Admin)"),
					admin("PUT", "/api/stops/admin/:id", "Update stop (Admin)"),
					admin("DELETE", "/api/stops/admin/:id", "Delete stop (Admin)"),
				},
			},
			{
				Name:   "Buses",
				Prefix: "/api/buses",
				Endpoints: []DocEndpoint{
					get("/api/buses", "Get all buses"),
					get("/api/buses/:id", "Get bus by ID"),
					{Method: "PUT", Path: "/api/buses/:id/location", Description: "Update bus location"},
					admin("POST", "/api/buses", "Register bus (Admin)"),
					admin("PUT", "/api/buses/:id/route", "Assign bus to route (Admin)"),
					admin("PUT", "/api/buses/:id/speed", "Update bus speed (Admin)"),
				},
			},
			{
				Name:   "Schedules & ETA",
				Prefix: "/api/schedules",
				Endpoints: []DocEndpoint{
					get("/api/schedules/:routeId", "Get route schedules"),
					get("/api/schedules/eta", "Calculate ETA (Real-time)"),
					get("/api/schedules/stops/:id/arrivals", "Get bus arrivals at stop"),
					admin("POST", "/api/schedules/admin/add", "Add schedule (Admin)"),
				},
			},
		},
	}
}
