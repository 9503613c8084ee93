package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIPExtractor_Extract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{
			name:       "no trusted proxies uses peer",
			remoteAddr: "203.0.113.7:5555",
			headers:    map[string]string{HeaderXForwardedFor: "198.51.100.1"},
			expected:   "203.0.113.7",
		},
		{
			name:       "untrusted peer ignores forwarding headers",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "203.0.113.7:5555",
			headers:    map[string]string{HeaderXForwardedFor: "198.51.100.1"},
			expected:   "203.0.113.7",
		},
		{
			name:       "trusted peer uses forwarded client",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:5555",
			headers:    map[string]string{HeaderXForwardedFor: "198.51.100.1"},
			expected:   "198.51.100.1",
		},
		{
			name:       "spoofed leftmost hop is skipped",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:5555",
			headers:    map[string]string{HeaderXForwardedFor: "1.1.1.1, 198.51.100.1, 10.9.9.9"},
			expected:   "198.51.100.1",
		},
		{
			name:       "all hops trusted falls back to peer",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:5555",
			headers:    map[string]string{HeaderXForwardedFor: "10.4.4.4, 10.5.5.5"},
			expected:   "10.1.2.3",
		},
		{
			name:       "single address trusted",
			trusted:    []string{"192.0.2.1"},
			remoteAddr: "192.0.2.1:80",
			headers:    map[string]string{HeaderXRealIP: "198.51.100.9"},
			expected:   "198.51.100.9",
		},
		{
			name:       "invalid X-Real-IP ignored",
			trusted:    []string{"192.0.2.1"},
			remoteAddr: "192.0.2.1:80",
			headers:    map[string]string{HeaderXRealIP: "not-an-ip"},
			expected:   "192.0.2.1",
		},
		{
			name:       "ipv6 peer",
			remoteAddr: "[2001:db8::1]:443",
			expected:   "2001:db8::1",
		},
		{
			name:       "peer without port",
			remoteAddr: "203.0.113.7",
			expected:   "203.0.113.7",
		},
		{
			name:       "invalid trusted entries skipped",
			trusted:    []string{"bogus", " 10.0.0.0/8 "},
			remoteAddr: "10.0.0.1:1",
			headers:    map[string]string{HeaderXForwardedFor: "198.51.100.2"},
			expected:   "198.51.100.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/stations", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.expected, NewClientIPExtractor(tt.trusted).Extract(req))
		})
	}
}
