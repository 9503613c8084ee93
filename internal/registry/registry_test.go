package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/transitgw/internal/config"
	"github.com/vyrodovalexey/transitgw/internal/util"
)

func TestNew_DefaultServices(t *testing.T) {
	t.Parallel()

	r, err := New(config.DefaultServices())
	require.NoError(t, err)

	assert.Equal(t, 5, r.Len())

	ep, err := r.Resolve("bus")
	require.NoError(t, err)
	assert.Equal(t, "bus", ep.Name)
	assert.Equal(t, "http://service-3-bus:5004", ep.BaseAddress)
	assert.Equal(t, "service-3-bus:5004", ep.URL.Host)

	names := make([]string, 0, r.Len())
	for _, e := range r.Endpoints() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"user", "route", "stop", "bus", "schedule"}, names)
}

func TestResolve_UnknownService(t *testing.T) {
	t.Parallel()

	r, err := New(config.DefaultServices())
	require.NoError(t, err)

	_, err = r.Resolve("tram")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrUnknownService)

	assert.Panics(t, func() { r.MustResolve("tram") })
	assert.NotPanics(t, func() { r.MustResolve("user") })
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		services []config.ServiceConfig
	}{
		{name: "empty name", services: []config.ServiceConfig{{URL: "http://a"}}},
		{name: "duplicate", services: []config.ServiceConfig{{Name: "a", URL: "http://a"}, {Name: "a", URL: "http://b"}}},
		{name: "relative url", services: []config.ServiceConfig{{Name: "a", URL: "a:80"}}},
		{name: "empty url", services: []config.ServiceConfig{{Name: "a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.services)
			require.Error(t, err)
			assert.ErrorIs(t, err, util.ErrConfigInvalid)
		})
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	r, err := New([]config.ServiceConfig{{Name: "legacy", URL: "http://legacy:8000/v1/"}})
	require.NoError(t, err)

	ep := r.MustResolve("legacy")
	assert.Equal(t, "/v1", ep.URL.Path)
	assert.Equal(t, "http://legacy:8000/v1/", ep.BaseAddress)
}

func TestAddresses(t *testing.T) {
	t.Parallel()

	r, err := New(config.DefaultServices())
	require.NoError(t, err)

	addrs := r.Addresses()
	assert.Equal(t, "http://service-user:5001", addrs["USER"])
	assert.Equal(t, "http://service-4-schedule:5005", addrs["SCHEDULE"])
	assert.Len(t, addrs, 5)
}
