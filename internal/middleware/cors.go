package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/transitgw/internal/config"
)

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
	MaxAge       int
}

// DefaultCORSConfig returns the permissive policy browser clients of the
// transport API expect.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}
}

// corsHeaders holds pre-computed CORS header values.
type corsHeaders struct {
	allowOrigins    map[string]bool
	allowAllOrigins bool
	allowMethods    string
	allowHeaders    string
	maxAge          string
}

func newCORSHeaders(cfg CORSConfig) *corsHeaders {
	h := &corsHeaders{
		allowOrigins: make(map[string]bool, len(cfg.AllowOrigins)),
		allowMethods: strings.Join(cfg.AllowMethods, ","),
		allowHeaders: strings.Join(cfg.AllowHeaders, ","),
	}
	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			h.allowAllOrigins = true
			continue
		}
		h.allowOrigins[origin] = true
	}
	if cfg.MaxAge > 0 {
		h.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return h
}

// setCORSHeaders sets the response headers for origin. It reports
// whether the origin is allowed.
func (h *corsHeaders) setCORSHeaders(w http.ResponseWriter, origin string) bool {
	switch {
	case h.allowAllOrigins:
		w.Header().Set("Access-Control-Allow-Origin", "*")
	case origin != "" && h.allowOrigins[origin]:
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", HeaderOrigin)
	default:
		return false
	}
	return true
}

func (h *corsHeaders) setPreflightHeaders(w http.ResponseWriter, r *http.Request) {
	if h.allowMethods != "" {
		w.Header().Set("Access-Control-Allow-Methods", h.allowMethods)
	}

	if h.allowHeaders != "" {
		w.Header().Set("Access-Control-Allow-Headers", h.allowHeaders)
	} else if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
		w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		w.Header().Add("Vary", "Access-Control-Request-Headers")
	}

	if h.maxAge != "" {
		w.Header().Set("Access-Control-Max-Age", h.maxAge)
	}
}

// CORS returns a middleware that handles CORS. Preflight OPTIONS
// requests are answered with 204 and never reach the handlers behind it.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	headers := newCORSHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := headers.setCORSHeaders(w, r.Header.Get(HeaderOrigin))

			if r.Method == http.MethodOptions {
				if allowed {
					headers.setPreflightHeaders(w, r)
				}
				w.Header().Set("Content-Length", "0")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CORSFromConfig creates CORS middleware from gateway config. Empty
// lists fall back to the defaults.
func CORSFromConfig(cfg *config.CORSConfig) func(http.Handler) http.Handler {
	def := DefaultCORSConfig()
	if cfg == nil {
		return CORS(def)
	}

	c := CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
		AllowHeaders: cfg.AllowHeaders,
		MaxAge:       cfg.MaxAge,
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = def.AllowOrigins
	}
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = def.AllowMethods
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = def.AllowHeaders
	}

	return CORS(c)
}
