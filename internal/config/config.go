package config

import (
	"strings"
	"time"
)

// Rate limit store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the complete gateway configuration.
type Config struct {
	Port             int                 `yaml:"port" json:"port"`
	Environment      string              `yaml:"environment" json:"environment"`
	HideErrorDetails bool                `yaml:"hideErrorDetails" json:"hideErrorDetails"`
	TrustedProxies   []string            `yaml:"trustedProxies" json:"trustedProxies"`
	ShutdownTimeout  Duration            `yaml:"shutdownTimeout" json:"shutdownTimeout"`
	Services         []ServiceConfig     `yaml:"services" json:"services"`
	Routes           []RouteConfig       `yaml:"routes" json:"routes"`
	RateLimit        RateLimitConfig     `yaml:"rateLimit" json:"rateLimit"`
	Auth             AuthConfig          `yaml:"auth" json:"auth"`
	Upstream         UpstreamConfig      `yaml:"upstream" json:"upstream"`
	CORS             CORSConfig          `yaml:"cors" json:"cors"`
	Observability    ObservabilityConfig `yaml:"observability" json:"observability"`
	Docs             DocsConfig          `yaml:"docs" json:"docs"`
}

// ServiceConfig declares one logical backend service. Its base address
// can be overridden with the <NAME>_SERVICE_URL environment variable.
type ServiceConfig struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// EnvKey returns the environment variable overriding the service URL.
func (s ServiceConfig) EnvKey() string {
	return strings.ToUpper(strings.ReplaceAll(s.Name, "-", "_")) + "_SERVICE_URL"
}

// RouteConfig declares one rule of the ordered route table.
type RouteConfig struct {
	Name          string        `yaml:"name" json:"name"`
	Pattern       string        `yaml:"pattern" json:"pattern"`
	Service       string        `yaml:"service" json:"service"`
	Rewrite       RewriteConfig `yaml:"rewrite" json:"rewrite"`
	RequiresAdmin bool          `yaml:"requiresAdmin" json:"requiresAdmin"`
}

// RewriteConfig is a one-time prefix substitution.
type RewriteConfig struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// RateLimitConfig configures the fixed-window admission control.
type RateLimitConfig struct {
	Enabled         bool        `yaml:"enabled" json:"enabled"`
	Window          Duration    `yaml:"window" json:"window"`
	Max             int         `yaml:"max" json:"max"`
	Store           string      `yaml:"store" json:"store"`
	CleanupInterval Duration    `yaml:"cleanupInterval" json:"cleanupInterval"`
	Redis           RedisConfig `yaml:"redis" json:"redis"`
}

// RedisConfig configures the shared window store.
type RedisConfig struct {
	Address  string `yaml:"address" json:"address"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// AuthConfig configures the admin verification call-out.
type AuthConfig struct {
	Service         string   `yaml:"service" json:"service"`
	VerifyPath      string   `yaml:"verifyPath" json:"verifyPath"`
	Timeout         Duration `yaml:"timeout" json:"timeout"`
	PrincipalHeader string   `yaml:"principalHeader" json:"principalHeader"`
}

// UpstreamConfig configures forwarding to backend services.
type UpstreamConfig struct {
	Timeout        Duration             `yaml:"timeout" json:"timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker" json:"circuitBreaker"`
}

// CircuitBreakerConfig configures the optional per-service breaker.
type CircuitBreakerConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	MaxFailures      uint32   `yaml:"maxFailures" json:"maxFailures"`
	OpenTimeout      Duration `yaml:"openTimeout" json:"openTimeout"`
	HalfOpenRequests uint32   `yaml:"halfOpenRequests" json:"halfOpenRequests"`
}

// CORSConfig configures cross-origin headers.
type CORSConfig struct {
	Enabled      bool     `yaml:"enabled" json:"enabled"`
	AllowOrigins []string `yaml:"allowOrigins" json:"allowOrigins"`
	AllowMethods []string `yaml:"allowMethods" json:"allowMethods"`
	AllowHeaders []string `yaml:"allowHeaders" json:"allowHeaders"`
	MaxAge       int      `yaml:"maxAge" json:"maxAge"`
}

// ObservabilityConfig groups logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel  string        `yaml:"logLevel" json:"logLevel"`
	LogFormat string        `yaml:"logFormat" json:"logFormat"`
	Metrics   MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing   TracingConfig `yaml:"tracing" json:"tracing"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// TracingConfig configures OTLP span export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Endpoint     string  `yaml:"endpoint" json:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
	ServiceName  string  `yaml:"serviceName" json:"serviceName"`
}

// DocsConfig is the curated endpoint catalog served at /api/docs.
type DocsConfig struct {
	Title   string     `yaml:"title" json:"title"`
	Version string     `yaml:"version" json:"version"`
	Groups  []DocGroup `yaml:"groups" json:"groups"`
}

// DocGroup lists the documented endpoints of one service.
type DocGroup struct {
	Name      string        `yaml:"name" json:"name"`
	Prefix    string        `yaml:"prefix" json:"prefix"`
	Endpoints []DocEndpoint `yaml:"endpoints" json:"endpoints"`
}

// DocEndpoint documents one endpoint. Methods are informational: the
// route table matches on path only.
type DocEndpoint struct {
	Method      string `yaml:"method" json:"method"`
	Path        string `yaml:"path" json:"path"`
	Description string `yaml:"description" json:"description"`
	Auth        bool   `yaml:"auth,omitempty" json:"auth,omitempty"`
}

// ServiceURL returns the configured base address of a service.
func (c *Config) ServiceURL(name string) (string, bool) {
	for _, s := range c.Services {
		if s.Name == name {
			return s.URL, true
		}
	}
	return "", false
}

// ShutdownTimeoutOrDefault returns the drain timeout for graceful shutdown.
func (c *Config) ShutdownTimeoutOrDefault() time.Duration {
	if c.ShutdownTimeout > 0 {
		return c.ShutdownTimeout.Duration()
	}
	return DefaultShutdownTimeout
}
