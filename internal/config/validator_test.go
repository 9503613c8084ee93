package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/transitgw/internal/util"
)

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Port = 0 },
			wantErr: "port",
		},
		{
			name:    "relative service url",
			mutate:  func(c *Config) { c.Services[0].URL = "service-user:5001" },
			wantErr: "USER_SERVICE_URL",
		},
		{
			name:    "duplicate service",
			mutate:  func(c *Config) { c.Services[1].Name = "user" },
			wantErr: `duplicate service "user"`,
		},
		{
			name: "route references unknown service",
			mutate: func(c *Config) {
				c.Routes[0].Service = "tram"
			},
			wantErr: `unknown service "tram"`,
		},
		{
			name:    "duplicate route name",
			mutate:  func(c *Config) { c.Routes[1].Name = c.Routes[0].Name },
			wantErr: "duplicate route",
		},
		{
			name:    "wildcard in the middle",
			mutate:  func(c *Config) { c.Routes[0].Pattern = "/api/*/login" },
			wantErr: "wildcard must be the last segment",
		},
		{
			name:    "rewrite target not absolute",
			mutate:  func(c *Config) { c.Routes[0].Rewrite.To = "login" },
			wantErr: "rewrite.to",
		},
		{
			name:    "zero window",
			mutate:  func(c *Config) { c.RateLimit.Window = 0 },
			wantErr: "rateLimit.window",
		},
		{
			name:    "zero capacity",
			mutate:  func(c *Config) { c.RateLimit.Max = 0 },
			wantErr: "rateLimit.max",
		},
		{
			name: "disabled limiter skips its checks",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.Max = 0
			},
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.RateLimit.Store = "etcd" },
			wantErr: "unknown store",
		},
		{
			name:    "zero auth timeout",
			mutate:  func(c *Config) { c.Auth.Timeout = 0 },
			wantErr: "auth.timeout",
		},
		{
			name:    "invalid principal header",
			mutate:  func(c *Config) { c.Auth.PrincipalHeader = "X User" },
			wantErr: "auth.principalHeader",
		},
		{
			name:    "zero upstream timeout",
			mutate:  func(c *Config) { c.Upstream.Timeout = 0 },
			wantErr: "upstream.timeout",
		},
		{
			name: "metrics port collides",
			mutate: func(c *Config) {
				c.Observability.Metrics.Enabled = true
				c.Observability.Metrics.Port = c.Port
			},
			wantErr: "must differ",
		},
		{
			name:    "bad trusted proxy",
			mutate:  func(c *Config) { c.TrustedProxies = []string{"not-an-ip"} },
			wantErr: "trustedProxies[0]",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Observability.LogLevel = "chatty" },
			wantErr: "logLevel",
		},
		{
			name:    "sampling out of range",
			mutate:  func(c *Config) { c.Observability.Tracing.SamplingRate = 2 },
			wantErr: "samplingRate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.ErrorIs(t, err, util.ErrConfigInvalid)
		})
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	assert.Error(t, ValidateConfig(nil))
}

func TestValidateConfig_AuthServiceOnlyNeededForAdminRules(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Auth.Service = "nobody"
	require.Error(t, ValidateConfig(cfg))

	for i := range cfg.Routes {
		cfg.Routes[i].RequiresAdmin = false
	}
	assert.NoError(t, ValidateConfig(cfg))
}

func TestValidatePattern(t *testing.T) {
	t.Parallel()

	valid := []string{"/", "/health", "/api/routes/*", "/api/routes/:id/stops/*", "/api/x/"}
	for _, p := range valid {
		assert.NoError(t, ValidatePattern(p), p)
	}

	invalid := []string{"", "api/routes", "/api/:/x", "/api//x", "/api/*/x", "/api/x*"}
	for _, p := range invalid {
		assert.Error(t, ValidatePattern(p), p)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
	assert.Equal(t, "port: bad", ValidationErrors{{Path: "port", Message: "bad"}}.Error())
	multi := ValidationErrors{{Path: "a", Message: "x"}, {Message: "y"}}.Error()
	assert.Contains(t, multi, "2 validation errors")
	assert.Contains(t, multi, "1. a: x")
	assert.Contains(t, multi, "2. y")
}
