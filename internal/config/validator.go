package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/vyrodovalexey/transitgw/internal/util"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Is makes every validation failure match util.ErrConfigInvalid.
func (e ValidationErrors) Is(target error) bool {
	return target == util.ErrConfigInvalid
}

// Validator validates gateway configuration.
type Validator struct {
	errors   ValidationErrors
	services map[string]bool
}

// ValidateConfig validates a gateway configuration.
func ValidateConfig(cfg *Config) error {
	v := &Validator{}
	return v.Validate(cfg)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = nil
	v.services = make(map[string]bool)

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	if err := util.ValidatePort(cfg.Port); err != nil {
		v.addError("port", err.Error())
	}
	for i, cidr := range cfg.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil && net.ParseIP(cidr) == nil {
			v.addError(fmt.Sprintf("trustedProxies[%d]", i), fmt.Sprintf("invalid IP or CIDR %q", cidr))
		}
	}

	v.validateServices(cfg.Services)
	v.validateRoutes(cfg.Routes)
	v.validateRateLimit(&cfg.RateLimit)
	v.validateAuth(cfg)
	v.validateUpstream(&cfg.Upstream)
	v.validateObservability(cfg)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateServices(services []ServiceConfig) {
	if len(services) == 0 {
		v.addError("services", "at least one service is required")
	}

	for i, s := range services {
		path := fmt.Sprintf("services[%d]", i)
		if s.Name == "" {
			v.addError(path+".name", "name is required")
			continue
		}
		if v.services[s.Name] {
			v.addError(path+".name", fmt.Sprintf("duplicate service %q", s.Name))
		}
		v.services[s.Name] = true

		if err := util.ValidateURL(s.URL); err != nil {
			v.addError(path+".url", fmt.Sprintf("%s (set %s)", err.Error(), s.EnvKey()))
		}
	}
}

func (v *Validator) validateRoutes(routes []RouteConfig) {
	if len(routes) == 0 {
		v.addError("routes", "at least one route is required")
	}

	names := make(map[string]bool, len(routes))
	for i, r := range routes {
		path := fmt.Sprintf("routes[%d]", i)

		if r.Name == "" {
			v.addError(path+".name", "name is required")
		} else if names[r.Name] {
			v.addError(path+".name", fmt.Sprintf("duplicate route %q", r.Name))
		}
		names[r.Name] = true

		if err := ValidatePattern(r.Pattern); err != nil {
			v.addError(path+".pattern", err.Error())
		}

		if !v.services[r.Service] {
			v.addError(path+".service", util.NewServiceError(r.Service).Error())
		}

		if r.Rewrite.From != "" && !strings.HasPrefix(r.Rewrite.From, "/") {
			v.addError(path+".rewrite.from", "must start with /")
		}
		if r.Rewrite.To != "" && !strings.HasPrefix(r.Rewrite.To, "/") {
			v.addError(path+".rewrite.to", "must be empty or start with /")
		}
	}
}

// ValidatePattern checks the structure of a route pattern: it must be
// absolute, parameters must be named, and "*" may only close the pattern.
func ValidatePattern(pattern string) error {
	if !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("pattern %q must start with /", pattern)
	}

	segments := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	for i, seg := range segments {
		switch {
		case seg == "*":
			if i != len(segments)-1 {
				return fmt.Errorf("pattern %q: wildcard must be the last segment", pattern)
			}
		case strings.HasPrefix(seg, ":"):
			if len(seg) == 1 {
				return fmt.Errorf("pattern %q: parameter without a name", pattern)
			}
		case seg == "" && i != len(segments)-1:
			return fmt.Errorf("pattern %q: empty segment", pattern)
		case strings.Contains(seg, "*"):
			return fmt.Errorf("pattern %q: wildcard must be a whole segment", pattern)
		}
	}
	return nil
}

func (v *Validator) validateRateLimit(rl *RateLimitConfig) {
	if !rl.Enabled {
		return
	}
	if rl.Window <= 0 {
		v.addError("rateLimit.window", "must be positive")
	}
	if rl.Max <= 0 {
		v.addError("rateLimit.max", "must be positive")
	}
	switch rl.Store {
	case StoreMemory, "":
	case StoreRedis:
		if rl.Redis.Address == "" {
			v.addError("rateLimit.redis.address", "required when store is redis")
		}
	default:
		v.addError("rateLimit.store", fmt.Sprintf("unknown store %q (memory, redis)", rl.Store))
	}
}

func (v *Validator) validateAuth(cfg *Config) {
	needsAuth := false
	for _, r := range cfg.Routes {
		needsAuth = needsAuth || r.RequiresAdmin
	}
	if !needsAuth {
		return
	}

	if !v.services[cfg.Auth.Service] {
		v.addError("auth.service", util.NewServiceError(cfg.Auth.Service).Error())
	}
	if !strings.HasPrefix(cfg.Auth.VerifyPath, "/") {
		v.addError("auth.verifyPath", "must start with /")
	}
	if cfg.Auth.Timeout <= 0 {
		v.addError("auth.timeout", "must be positive")
	}
	if cfg.Auth.PrincipalHeader != "" {
		if err := util.ValidateHeaderName(cfg.Auth.PrincipalHeader); err != nil {
			v.addError("auth.principalHeader", err.Error())
		}
	}
}

func (v *Validator) validateUpstream(up *UpstreamConfig) {
	if up.Timeout <= 0 {
		v.addError("upstream.timeout", "must be positive")
	}
	cb := up.CircuitBreaker
	if cb.Enabled {
		if cb.MaxFailures == 0 {
			v.addError("upstream.circuitBreaker.maxFailures", "must be positive")
		}
		if cb.OpenTimeout <= 0 {
			v.addError("upstream.circuitBreaker.openTimeout", "must be positive")
		}
	}
}

func (v *Validator) validateObservability(cfg *Config) {
	obs := cfg.Observability
	switch obs.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		v.addError("observability.logLevel", fmt.Sprintf("unknown level %q", obs.LogLevel))
	}
	switch obs.LogFormat {
	case "", "json", "console":
	default:
		v.addError("observability.logFormat", fmt.Sprintf("unknown format %q", obs.LogFormat))
	}

	if obs.Metrics.Enabled {
		if err := util.ValidatePort(obs.Metrics.Port); err != nil {
			v.addError("observability.metrics.port", err.Error())
		} else if obs.Metrics.Port == cfg.Port {
			v.addError("observability.metrics.port", "must differ from the gateway port")
		}
		if !strings.HasPrefix(obs.Metrics.Path, "/") {
			v.addError("observability.metrics.path", "must start with /")
		}
	}

	if obs.Tracing.SamplingRate < 0 || obs.Tracing.SamplingRate > 1 {
		v.addError("observability.tracing.samplingRate", "must be between 0 and 1")
	}
}
