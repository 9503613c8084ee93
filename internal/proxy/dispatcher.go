package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/vyrodovalexey/transitgw/internal/observability"
	"github.com/vyrodovalexey/transitgw/internal/registry"
	"github.com/vyrodovalexey/transitgw/internal/router"
	"github.com/vyrodovalexey/transitgw/internal/util"
)

const (
	// DefaultTimeout bounds one upstream exchange.
	DefaultTimeout = 10 * time.Second

	// redactedDetail replaces error text in client bodies when details
	// are hidden.
	redactedDetail = "upstream request failed"

	headerRequestID        = "X-Request-ID"
	headerForwardedHost    = "X-Forwarded-Host"
	headerForwardedProto   = "X-Forwarded-Proto"
	upstreamUnavailableMsg = "Service temporarily unavailable"
)

// Upstream error reasons used as metric labels.
const (
	ReasonConnection     = "connection"
	ReasonTimeout        = "timeout"
	ReasonCircuitOpen    = "circuit_open"
	ReasonClientCanceled = "client_canceled"
)

type ctxKeyDispatchStart struct{}

// Dispatcher forwards requests to the services of a registry.
type Dispatcher struct {
	registry        *registry.Registry
	transport       http.RoundTripper
	timeout         time.Duration
	principalHeader string
	hideDetails     bool
	breaker         *BreakerSettings
	metrics         *observability.Metrics
	logger          observability.Logger

	proxies  map[string]*httputil.ReverseProxy
	breakers map[string]*breakerTransport
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTransport sets the base transport shared by all services.
func WithTransport(transport http.RoundTripper) Option {
	return func(d *Dispatcher) {
		d.transport = transport
	}
}

// WithTimeout sets the upstream exchange timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithPrincipalHeader sets the header that carries the verified admin
// principal upstream. Inbound copies of the header are always removed;
// an empty name disables forwarding.
func WithPrincipalHeader(name string) Option {
	return func(d *Dispatcher) {
		d.principalHeader = http.CanonicalHeaderKey(name)
	}
}

// WithHiddenDetails replaces error text in 503 bodies with a generic
// message. The full error is still logged.
func WithHiddenDetails(hide bool) Option {
	return func(d *Dispatcher) {
		d.hideDetails = hide
	}
}

// WithCircuitBreaker wraps every service transport in a circuit breaker.
func WithCircuitBreaker(settings BreakerSettings) Option {
	return func(d *Dispatcher) {
		d.breaker = &settings
	}
}

// WithMetrics records upstream durations and errors.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher builds a reverse proxy for every service in reg.
func NewDispatcher(reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		timeout:  DefaultTimeout,
		logger:   observability.NopLogger(),
		proxies:  make(map[string]*httputil.ReverseProxy, reg.Len()),
		breakers: make(map[string]*breakerTransport),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.transport == nil {
		d.transport = NewTransport()
	}

	for _, ep := range reg.Endpoints() {
		transport := d.transport
		if d.breaker != nil {
			bt := newBreakerTransport(ep.Name, d.transport, *d.breaker, d.logger, d.metrics)
			d.breakers[ep.Name] = bt
			transport = bt
		}
		d.proxies[ep.Name] = d.newReverseProxy(ep, transport)
	}

	return d
}

// NewTransport returns the default upstream transport.
func NewTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 200
	t.MaxIdleConnsPerHost = 50
	t.IdleConnTimeout = 90 * time.Second
	t.DialContext = (&net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	return t
}

func (d *Dispatcher) newReverseProxy(ep *registry.ServiceEndpoint, transport http.RoundTripper) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			d.director(req, ep)
		},
		Transport:     transport,
		FlushInterval: -1,
		ModifyResponse: func(resp *http.Response) error {
			if start, ok := resp.Request.Context().Value(ctxKeyDispatchStart{}).(time.Time); ok && d.metrics != nil {
				d.metrics.RecordUpstreamDuration(ep.Name, time.Since(start))
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			d.handleError(w, r, ep, err)
		},
	}
}

// Dispatch forwards r to the service of the matched rule and streams the
// response to w.
func (d *Dispatcher) Dispatch(w http.ResponseWriter, r *http.Request, match *router.MatchResult) {
	ep := match.Rule.Service
	rp, ok := d.proxies[ep.Name]
	if !ok {
		// Tables are built from the same registry, so this is a wiring bug.
		d.handleError(w, r, ep, util.NewServiceError(ep.Name))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), d.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, ctxKeyDispatchStart{}, time.Now())

	out := r.WithContext(ctx)
	u := *r.URL
	decoded, escaped := forwardPath(r.URL, match)
	u.Path = joinPath(ep.URL.Path, decoded)
	u.RawPath = ""
	if escaped != "" {
		u.RawPath = joinPath(ep.URL.EscapedPath(), escaped)
	}
	out.URL = &u

	d.logger.WithContext(ctx).Debug("dispatching request",
		observability.String("rule", match.Rule.Name),
		observability.String("service", ep.Name),
		observability.String("upstream_path", u.Path),
	)

	rp.ServeHTTP(w, out)
}

// director points the outbound request at the service.
func (d *Dispatcher) director(req *http.Request, ep *registry.ServiceEndpoint) {
	req.URL.Scheme = ep.URL.Scheme
	req.URL.Host = ep.URL.Host

	if req.TLS != nil {
		req.Header.Set(headerForwardedProto, "https")
	} else {
		req.Header.Set(headerForwardedProto, "http")
	}
	req.Header.Set(headerForwardedHost, req.Host)

	ctx := req.Context()
	if id := observability.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(headerRequestID, id)
	}

	if d.principalHeader != "" {
		req.Header.Del(d.principalHeader)
		if principal, ok := util.PrincipalFromContext(ctx); ok && len(principal) > 0 {
			var buf bytes.Buffer
			if err := json.Compact(&buf, principal); err == nil {
				req.Header.Set(d.principalHeader, buf.String())
			}
		}
	}

	observability.InjectTraceContext(ctx, req)

	req.Host = ep.URL.Host
}

// handleError writes the 503 envelope for a failed exchange. Nothing is
// written when the caller has already gone away.
func (d *Dispatcher) handleError(w http.ResponseWriter, r *http.Request, ep *registry.ServiceEndpoint, err error) {
	reason := classify(r.Context(), err)

	if d.metrics != nil {
		d.metrics.RecordUpstreamError(ep.Name, reason)
	}

	upErr := util.NewUpstreamError(ep.Name, ep.BaseAddress, err)
	logger := d.logger.WithContext(r.Context())

	if reason == ReasonClientCanceled {
		logger.Debug("caller canceled upstream request",
			observability.String("service", ep.Name),
			observability.Error(err),
		)
		return
	}

	logger.Error("upstream unavailable",
		observability.String("service", ep.Name),
		observability.String("target", ep.BaseAddress),
		observability.String("reason", reason),
		observability.String("path", r.URL.Path),
		observability.Error(upErr),
	)

	details := err.Error()
	if d.hideDetails {
		details = redactedDetail
	}

	util.WriteJSON(w, http.StatusServiceUnavailable, UnavailableBody{
		Error:   upstreamUnavailableMsg,
		Service: ep.BaseAddress,
		Details: details,
	})
}

// UnavailableBody is the 503 response body.
type UnavailableBody struct {
	Error   string `json:"error"`
	Service string `json:"service"`
	Details string `json:"details"`
}

// classify maps an exchange failure to a metric reason. The caller's
// context is the dispatch context, so a deadline there is our timeout
// while a plain cancellation came from the caller.
func classify(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, util.ErrCircuitOpen):
		return ReasonCircuitOpen
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		return ReasonClientCanceled
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonConnection
	}
}

// joinPath appends the upstream path to the service base path.
// forwardPath returns the rewritten upstream path and, when the inbound
// path needs no normalization, its escaped form. The inbound escaping and a
// trailing slash survive the rewrite. Paths that were cleaned for matching
// are forwarded cleaned, with an empty escaped form.
func forwardPath(in *url.URL, match *router.MatchResult) (string, string) {
	if in.Path != match.Path && in.Path != match.Path+"/" {
		return match.UpstreamPath(), ""
	}

	rw := match.Rule.Rewrite
	escaped := in.EscapedPath()
	if !rw.IsZero() && !strings.HasPrefix(escaped, rw.From) {
		return match.UpstreamPath(), ""
	}

	decoded := rw.Apply(in.Path)
	if escaped == in.Path {
		return decoded, ""
	}
	return decoded, rw.Apply(escaped)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	if p == "/" {
		return base
	}
	return base + p
}

// BreakerState returns the breaker state of a service, or "" when no
// breaker is configured for it.
func (d *Dispatcher) BreakerState(service string) string {
	if bt, ok := d.breakers[service]; ok {
		return bt.State().String()
	}
	return ""
}
