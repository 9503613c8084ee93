package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/transitgw/internal/config"
	"github.com/vyrodovalexey/transitgw/internal/observability"
	"github.com/vyrodovalexey/transitgw/internal/registry"
	"github.com/vyrodovalexey/transitgw/internal/router"
	"github.com/vyrodovalexey/transitgw/internal/util"
)

// captured is what an upstream saw of a forwarded request.
type captured struct {
	Method string
	Path    string
	RawPath string
	Query   string
	Host   string
	Header http.Header
	Body   string
}

func capturingUpstream(t *testing.T) (*httptest.Server, <-chan captured) {
	t.Helper()

	ch := make(chan captured, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ch <- captured{
			Method: r.Method,
			Path:    r.URL.Path,
			RawPath: r.URL.EscapedPath(),
			Query:  r.URL.RawQuery,
			Host:   r.Host,
			Header: r.Header.Clone(),
			Body:   string(body),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	return srv, ch
}

// newFixture builds a registry where every default service points at
// baseURL, and the default route table over it.
func newFixture(t *testing.T, baseURL string) (*registry.Registry, *router.Table) {
	t.Helper()

	services := config.DefaultServices()
	for i := range services {
		services[i].URL = baseURL
	}

	reg, err := registry.New(services)
	require.NoError(t, err)

	table, err := router.NewTable(config.DefaultRoutes(), reg)
	require.NoError(t, err)

	return reg, table
}

func dispatch(t *testing.T, d *Dispatcher, table *router.Table, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	match, err := table.Match(req.Method, req.URL.Path)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	d.Dispatch(rec, req, match)
	return rec
}

func TestDispatcher_RewritesAndForwards(t *testing.T) {
	t.Parallel()

	srv, seen := capturingUpstream(t)
	reg, table := newFixture(t, srv.URL)
	d := NewDispatcher(reg)

	req := httptest.NewRequest(http.MethodPost, "http://gateway.local/api/routes/42/stops?lang=en&page=2",
		strings.NewReader(`{"name":"Central"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("X-Custom", "kept")
	req.Header.Set("Connection", "X-Drop-Me")
	req.Header.Set("X-Drop-Me", "hop")
	req.RemoteAddr = "203.0.113.9:5555"

	rec := dispatch(t, d, table, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Upstream"))
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	got := <-seen
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/routes/42/stops", got.Path)
	assert.Equal(t, "lang=en&page=2", got.Query)
	assert.Equal(t, strings.TrimPrefix(srv.URL, "http://"), got.Host)
	assert.Equal(t, `{"name":"Central"}`, got.Body)
	assert.Equal(t, "Bearer abc", got.Header.Get("Authorization"))
	assert.Equal(t, "kept", got.Header.Get("X-Custom"))
	assert.Empty(t, got.Header.Get("X-Drop-Me"))
	assert.Equal(t, "203.0.113.9", got.Header.Get("X-Forwarded-For"))
	assert.Equal(t, "gateway.local", got.Header.Get("X-Forwarded-Host"))
	assert.Equal(t, "http", got.Header.Get("X-Forwarded-Proto"))
}

func TestDispatcher_UpstreamPaths(t *testing.T) {
	t.Parallel()

	srv, seen := capturingUpstream(t)
	reg, table := newFixture(t, srv.URL)
	d := NewDispatcher(reg)

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodPost, "/api/auth/login", "/login"},
		{http.MethodGet, "/api/schedules/eta", "/eta"},
		{http.MethodGet, "/api/schedules/stops/4/arrivals", "/stops/4/arrivals"},
		{http.MethodPut, "/api/buses/7/location", "/buses/7/location"},
		{http.MethodGet, "/api/stops/search/", "/stops/search/"},
		{http.MethodGet, "/api/stops/", "/stops/"},
		{http.MethodGet, "/api/stops/x/../search", "/stops/search"},
		{http.MethodGet, "/api/routes/a%20b", "/routes/a b"},
	}

	for _, tt := range tests {
		rec := dispatch(t, d, table, httptest.NewRequest(tt.method, tt.path, nil))
		require.Equal(t, http.StatusCreated, rec.Code, tt.path)
		assert.Equal(t, tt.want, (<-seen).Path, tt.path)
	}
}

func TestDispatcher_KeepsEscapedPath(t *testing.T) {
	t.Parallel()

	srv, seen := capturingUpstream(t)
	reg, table := newFixture(t, srv.URL)
	d := NewDispatcher(reg)

	tests := []struct {
		path    string
		want    string
		wantRaw string
	}{
		{"/api/stops/search/a%2Fb", "/stops/search/a/b", "/stops/search/a%2Fb"},
		{"/api/schedules/eta/x%2Fy/", "/eta/x/y/", "/eta/x%2Fy/"},
		{"/api/routes/a%20b", "/routes/a b", "/routes/a%20b"},
	}

	for _, tt := range tests {
		rec := dispatch(t, d, table, httptest.NewRequest(http.MethodGet, tt.path, nil))
		require.Equal(t, http.StatusCreated, rec.Code, tt.path)

		got := <-seen
		assert.Equal(t, tt.want, got.Path, tt.path)
		assert.Equal(t, tt.wantRaw, got.RawPath, tt.path)
	}
}

func TestDispatcher_JoinsServiceBasePath(t *testing.T) {
	t.Parallel()

	srv, seen := capturingUpstream(t)
	reg, table := newFixture(t, srv.URL+"/v1/")
	d := NewDispatcher(reg)

	rec := dispatch(t, d, table, httptest.NewRequest(http.MethodGet, "/api/routes/42", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/v1/routes/42", (<-seen).Path)
}

func TestDispatcher_UpstreamUnreachable(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedAddr := "http://" + ln.Addr().String()
	require.NoError(t, ln.Close())

	reg, table := newFixture(t, closedAddr)
	metrics := observability.NewMetrics("test")
	d := NewDispatcher(reg, WithMetrics(metrics))

	rec := dispatch(t, d, table, httptest.NewRequest(http.MethodGet, "/api/stops/3", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, util.ContentTypeJSON, rec.Header().Get("Content-Type"))

	var body UnavailableBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Service temporarily unavailable", body.Error)
	assert.Equal(t, closedAddr, body.Service)
	assert.Contains(t, body.Details, "connection refused")

	series, err := testutil.GatherAndCount(metrics.Registry(), "test_upstream_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestDispatcher_HiddenDetails(t *testing.T) {
	t.Parallel()

	reg, table := newFixture(t, "http://127.0.0.1:1")
	d := NewDispatcher(reg, WithHiddenDetails(true))

	rec := dispatch(t, d, table, httptest.NewRequest(http.MethodGet, "/api/stops/3", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body UnavailableBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "upstream request failed", body.Details)
	assert.Equal(t, "http://127.0.0.1:1", body.Service)
}

func TestDispatcher_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	reg, table := newFixture(t, srv.URL)
	d := NewDispatcher(reg, WithTimeout(50*time.Millisecond))

	start := time.Now()
	rec := dispatch(t, d, table, httptest.NewRequest(http.MethodGet, "/api/buses/1", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Contains(t, rec.Body.String(), srv.URL)
}

func TestDispatcher_StreamsResponse(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "data: first\n\n")
		w.(http.Flusher).Flush()
		<-release
		_, _ = io.WriteString(w, "data: second\n\n")
	}))
	defer upstream.Close()

	reg, table := newFixture(t, upstream.URL)
	d := NewDispatcher(reg)

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		match, err := table.Match(r.Method, r.URL.Path)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		d.Dispatch(w, r, match)
	}))
	defer gateway.Close()

	resp, err := http.Get(gateway.URL + "/api/buses/7/location")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: first\n", line)

	close(release)

	rest, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "\ndata: second\n\n", string(rest))
}

func TestDispatcher_PrincipalHeader(t *testing.T) {
	t.Parallel()

	srv, seen := capturingUpstream(t)
	reg, table := newFixture(t, srv.URL)
	d := NewDispatcher(reg, WithPrincipalHeader("x-authenticated-user"))

	t.Run("inbound copy is stripped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/routes", nil)
		req.Header.Set("X-Authenticated-User", `{"role":"admin"}`)

		dispatch(t, d, table, req)
		assert.Empty(t, (<-seen).Header.Get("X-Authenticated-User"))
	})

	t.Run("verified principal is forwarded compacted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/routes/admin/add", nil)
		req.Header.Set("X-Authenticated-User", `{"role":"forged"}`)
		req = req.WithContext(util.ContextWithPrincipal(req.Context(), []byte("{\n  \"id\": 1,\n  \"role\": \"admin\"\n}")))

		dispatch(t, d, table, req)
		assert.Equal(t, `{"id":1,"role":"admin"}`, (<-seen).Header.Get("X-Authenticated-User"))
	})
}

func TestDispatcher_RequestID(t *testing.T) {
	t.Parallel()

	srv, seen := capturingUpstream(t)
	reg, table := newFixture(t, srv.URL)
	d := NewDispatcher(reg)

	req := httptest.NewRequest(http.MethodGet, "/api/stops", nil)
	req = req.WithContext(observability.ContextWithRequestID(req.Context(), "req-123"))

	dispatch(t, d, table, req)
	assert.Equal(t, "req-123", (<-seen).Header.Get("X-Request-ID"))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	expired, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	canceled, cancel2 := context.WithCancel(context.Background())
	cancel2()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want string
	}{
		{"connection refused", context.Background(), errors.New("dial tcp: connection refused"), ReasonConnection},
		{"deadline", expired, context.DeadlineExceeded, ReasonTimeout},
		{"caller gone", canceled, context.Canceled, ReasonClientCanceled},
		{"breaker open", context.Background(), util.NewCircuitOpenError("bus", "open"), ReasonCircuitOpen},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.ctx, tt.err), tt.name)
	}
}

func TestJoinPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/routes", joinPath("", "/routes"))
	assert.Equal(t, "/routes", joinPath("/", "/routes"))
	assert.Equal(t, "/v1/routes", joinPath("/v1", "/routes"))
	assert.Equal(t, "/v1", joinPath("/v1", "/"))
}
