package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/transitgw/internal/registry"
)

func endpointFor(t *testing.T, rawURL string) *registry.ServiceEndpoint {
	t.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return &registry.ServiceEndpoint{Name: "user", BaseAddress: rawURL, URL: u}
}

func TestHTTPVerifier_Verify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantValid bool
		wantUser  string
		wantErr   string
	}{
		{
			name:      "valid admin",
			status:    http.StatusOK,
			body:      `{"valid":true,"user":{"id":1,"role":"admin"}}`,
			wantValid: true,
			wantUser:  `{"id":1,"role":"admin"}`,
		},
		{
			name:      "valid without user",
			status:    http.StatusOK,
			body:      `{"valid":true}`,
			wantValid: true,
		},
		{
			name:   "not admin",
			status: http.StatusOK,
			body:   `{"valid":false,"error":"Admin access required"}`,
		},
		{
			name:   "valid as string is not accepted",
			status: http.StatusOK,
			body:   `{"valid":"true"}`,
		},
		{
			name:    "non-success with error field",
			status:  http.StatusUnauthorized,
			body:    `{"valid":false,"error":"Token expired"}`,
			wantErr: "Token expired",
		},
		{
			name:    "non-success without body",
			status:  http.StatusInternalServerError,
			wantErr: "verification service responded with status 500",
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `<html>`,
			wantErr: "malformed verification response",
		},
		{
			name:    "array body",
			status:  http.StatusOK,
			body:    `[true]`,
			wantErr: "malformed verification response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			v, err := NewHTTPVerifier(endpointFor(t, srv.URL), "/verify-admin", time.Second)
			require.NoError(t, err)

			result, err := v.Verify(context.Background(), "Bearer abc")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid)
			if tt.wantUser != "" {
				assert.JSONEq(t, tt.wantUser, string(result.User))
			} else {
				assert.Nil(t, result.User)
			}
		})
	}
}

func TestHTTPVerifier_ForwardsCredentialUnchanged(t *testing.T) {
	t.Parallel()

	seen := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Clone(context.Background())
		_, _ = w.Write([]byte(`{"valid":true}`))
	}))
	defer srv.Close()

	v, err := NewHTTPVerifier(endpointFor(t, srv.URL+"/users"), "verify-admin", time.Second)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/users/verify-admin", v.Endpoint())

	_, err = v.Verify(context.Background(), "Bearer eyJhbGciOi.payload.sig")
	require.NoError(t, err)

	got := <-seen
	assert.Equal(t, "Bearer eyJhbGciOi.payload.sig", got.Header.Get("Authorization"))
	assert.Equal(t, "/users/verify-admin", got.URL.Path)
	assert.Equal(t, http.MethodGet, got.Method)
}

func TestHTTPVerifier_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	v, err := NewHTTPVerifier(endpointFor(t, addr), "/verify-admin", time.Second)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "Bearer abc")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), addr+"/verify-admin")
}

func TestHTTPVerifier_Timeout(t *testing.T) {
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

	v, err := NewHTTPVerifier(endpointFor(t, srv.URL), "/verify-admin", 50*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	_, err = v.Verify(context.Background(), "Bearer abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPVerifier_SingleAttempt(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	v, err := NewHTTPVerifier(endpointFor(t, srv.URL), "/verify-admin", time.Second)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "Bearer abc")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestNewHTTPVerifier_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPVerifier(nil, "/verify-admin", time.Second)
	assert.Error(t, err)

	_, err = NewHTTPVerifier(endpointFor(t, "http://user:5001"), "/verify-admin", 0)
	assert.Error(t, err)

	custom := &http.Client{}
	v, err := NewHTTPVerifier(endpointFor(t, "http://user:5001"), "/verify-admin", time.Second, WithHTTPClient(custom))
	require.NoError(t, err)
	assert.Same(t, custom, v.httpClient)
}
