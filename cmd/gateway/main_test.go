package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/transitgw/internal/config"
	"github.com/vyrodovalexey/transitgw/internal/observability"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		setEnv       bool
		expected     string
	}{
		{
			name:         "returns default when env not set",
			key:          "TEST_GETENV_NOTSET",
			defaultValue: "default-value",
			expected:     "default-value",
		},
		{
			name:         "returns env value when set",
			key:          "TEST_GETENV_SET",
			defaultValue: "default-value",
			envValue:     "env-value",
			setEnv:       true,
			expected:     "env-value",
		},
		{
			name:         "returns default when env is empty string",
			key:          "TEST_GETENV_EMPTY",
			defaultValue: "default-value",
			setEnv:       true,
			expected:     "default-value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.expected, getEnvOrDefault(tt.key, tt.defaultValue))
		})
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		return 0, ""
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestInitApplication_Defaults(t *testing.T) {
	cfg := config.DefaultConfig()

	app, err := initApplication(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { app.close(observability.NopLogger()) })

	assert.NotNil(t, app.gateway)
	assert.NotNil(t, app.metrics)
	assert.Nil(t, app.metricsListener)
	assert.False(t, app.tracer.Enabled())
	assert.Len(t, app.closers, 1)
}

func TestInitApplication_UnknownAuthService(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Auth.Service = "payments"

	_, err := initApplication(context.Background(), cfg, observability.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth service")
}

func TestInitApplication_FailureReleasesRateLimitStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.DefaultConfig()
	cfg.RateLimit.Store = config.StoreRedis
	cfg.RateLimit.Redis.Address = mr.Addr()
	cfg.Auth.Service = "payments"

	_, err := initApplication(context.Background(), cfg, observability.NopLogger())
	require.Error(t, err)

	assert.Eventually(t, func() bool {
		return mr.CurrentConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInitApplication_UnknownRouteService(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Routes = append(cfg.Routes, config.RouteConfig{Name: "trains", Pattern: "/api/trains/*", Service: "train"})

	_, err := initApplication(context.Background(), cfg, observability.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route table")
}

func TestInitApplication_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.DefaultConfig()
	cfg.RateLimit.Store = config.StoreRedis
	cfg.RateLimit.Redis.Address = mr.Addr()
	cfg.Port = freePort(t)

	app, err := initApplication(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, app, observability.NopLogger()) }()

	base := "http://127.0.0.1:" + strconv.Itoa(cfg.Port)
	require.Eventually(t, func() bool {
		code, _ := get(t, base+"/readyz")
		return code == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	mr.Close()
	code, body := get(t, base+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "ratelimit-store")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not stop")
	}
}

func TestRun_ServesAndStops(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Port = freePort(t)
	cfg.Observability.Metrics.Enabled = true
	cfg.Observability.Metrics.Port = freePort(t)

	app, err := initApplication(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)
	require.NotNil(t, app.metricsListener)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, app, observability.NopLogger()) }()

	base := "http://127.0.0.1:" + strconv.Itoa(cfg.Port)
	require.Eventually(t, func() bool {
		code, _ := get(t, base+"/health")
		return code == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	metricsURL := "http://127.0.0.1:" + strconv.Itoa(cfg.Observability.Metrics.Port) + "/metrics"
	require.Eventually(t, func() bool {
		code, body := get(t, metricsURL)
		return code == http.StatusOK && len(body) > 0
	}, 3*time.Second, 20*time.Millisecond)

	_, body := get(t, metricsURL)
	assert.Contains(t, body, "transitgw_requests_total")
	assert.Contains(t, body, "transitgw_configured_service_info")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not stop")
	}
	assert.Empty(t, app.closers)
}

func TestRun_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	cfg := config.DefaultConfig()
	cfg.Port = ln.Addr().(*net.TCPAddr).Port

	app, err := initApplication(context.Background(), cfg, observability.NopLogger())
	require.NoError(t, err)

	err = run(context.Background(), app, observability.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start gateway")
}
