package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/transitgw/internal/util"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// Load builds the configuration from defaults, the optional YAML file at
// path, the given .env files (".env" when none are named) and the process
// environment. A missing .env file is not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if path != "" {
		if err := loadFile(cfg, path, os.LookupEnv); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDotEnv populates the process environment from .env files without
// overriding variables that are already set.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// loadFile overlays a YAML file onto cfg.
func loadFile(cfg *Config, path string, lookup LookupFunc) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	f, err := os.Open(absPath) //nolint:gosec // operator-supplied config path
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return decodeYAML(cfg, f, lookup)
}

// LoadFromReader overlays YAML read from r onto the defaults. The process
// environment is used for ${VAR} substitution but not applied as overrides.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if err := decodeYAML(cfg, r, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(cfg *Config, r io.Reader, lookup LookupFunc) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	content := substituteEnvVars(string(data), lookup)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns. "$$"
// escapes a literal dollar sign.
func substituteEnvVars(content string, lookup LookupFunc) string {
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		if value, exists := lookup(submatches[1]); exists {
			return value
		}
		if len(submatches) >= 3 {
			return submatches[2]
		}
		return ""
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}

// ApplyEnv overrides cfg with environment variables. Empty values are
// treated as unset.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	env := envReader{lookup: lookup}

	env.setInt("PORT", &cfg.Port)
	env.setString("NODE_ENV", &cfg.Environment)
	env.setBool("HIDE_ERROR_DETAILS", &cfg.HideErrorDetails)
	env.setList("TRUSTED_PROXIES", &cfg.TrustedProxies)
	env.setDuration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	for i := range cfg.Services {
		env.setString(cfg.Services[i].EnvKey(), &cfg.Services[i].URL)
	}

	env.setBool("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	env.setDuration("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	env.setInt("RATE_LIMIT_MAX", &cfg.RateLimit.Max)
	env.setString("RATE_LIMIT_STORE", &cfg.RateLimit.Store)
	env.setString("REDIS_ADDR", &cfg.RateLimit.Redis.Address)
	env.setString("REDIS_PASSWORD", &cfg.RateLimit.Redis.Password)
	env.setInt("REDIS_DB", &cfg.RateLimit.Redis.DB)

	env.setDuration("AUTH_TIMEOUT", &cfg.Auth.Timeout)
	env.setString("AUTH_PRINCIPAL_HEADER", &cfg.Auth.PrincipalHeader)
	env.setDuration("UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout)
	env.setBool("CIRCUIT_BREAKER_ENABLED", &cfg.Upstream.CircuitBreaker.Enabled)
	env.setBool("CORS_ENABLED", &cfg.CORS.Enabled)

	env.setString("LOG_LEVEL", &cfg.Observability.LogLevel)
	env.setString("LOG_FORMAT", &cfg.Observability.LogFormat)
	env.setBool("METRICS_ENABLED", &cfg.Observability.Metrics.Enabled)
	env.setInt("METRICS_PORT", &cfg.Observability.Metrics.Port)
	env.setBool("TRACING_ENABLED", &cfg.Observability.Tracing.Enabled)
	env.setString("OTLP_ENDPOINT", &cfg.Observability.Tracing.Endpoint)

	return env.err()
}

// envReader collects parse failures so every bad variable is reported.
type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) value(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.value(key); ok {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, util.NewConfigErrorWithCause(key, "must be an integer", err))
		return
	}
	*dst = n
}

func (e *envReader) setBool(key string, dst *bool) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		*dst = true
	case "false", "0", "no", "off":
		*dst = false
	default:
		e.errs = append(e.errs, util.NewConfigError(key, fmt.Sprintf("invalid boolean %q", v)))
	}
}

func (e *envReader) setDuration(key string, dst *Duration) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	d, err := parseDuration(v)
	if err != nil {
		e.errs = append(e.errs, util.NewConfigErrorWithCause(key, "must be a duration such as 15m or 5s", err))
		return
	}
	*dst = d
}

func (e *envReader) setList(key string, dst *[]string) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}
