package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/vyrodovalexey/transitgw/internal/auth"
	"github.com/vyrodovalexey/transitgw/internal/observability"
	"github.com/vyrodovalexey/transitgw/internal/router"
	"github.com/vyrodovalexey/transitgw/internal/util"
)

// Authenticator verifies admin credentials. *auth.Gate implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (*auth.Result, error)
}

// Forwarder sends a matched request upstream. *proxy.Dispatcher
// implements it.
type Forwarder interface {
	Dispatch(w http.ResponseWriter, r *http.Request, match *router.MatchResult)
}

// errGateNotConfigured fails admin rules closed when no gate is wired.
var errGateNotConfigured = errors.New("admin verification is not configured")

// Pipeline routes a request through match, admin gate and dispatch.
// Every failure is terminal for the request.
type Pipeline struct {
	table      *router.Table
	gate       Authenticator
	dispatcher Forwarder
	respond    *errorWriter
}

// NewPipeline creates the dispatch pipeline. A nil gate makes every
// admin rule answer 403.
func NewPipeline(
	table *router.Table,
	gate Authenticator,
	dispatcher Forwarder,
	logger observability.Logger,
	hideDetails bool,
) *Pipeline {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Pipeline{
		table:      table,
		gate:       gate,
		dispatcher: dispatcher,
		respond:    &errorWriter{logger: logger, hideDetails: hideDetails},
	}
}

// ServeHTTP implements http.Handler.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	match, err := p.table.Match(r.Method, r.URL.Path)
	if err != nil {
		if errors.Is(err, util.ErrRouteNotFound) {
			p.respond.notFound(w, r)
			return
		}
		p.respond.internal(w, r, err)
		return
	}

	ctx := r.Context()
	observability.ReportRoute(ctx, match.Rule.Name)
	ctx = util.ContextWithRoute(ctx, match.Rule.Name)
	ctx = util.ContextWithService(ctx, match.Rule.Service.Name)
	if len(match.Params) > 0 {
		ctx = util.ContextWithPathParams(ctx, match.Params)
	}

	if match.Rule.RequiresAdmin {
		res, err := p.authenticate(r.WithContext(ctx))
		if err != nil {
			p.respond.auth(w, r, err)
			return
		}
		if len(res.Principal) > 0 {
			ctx = util.ContextWithPrincipal(ctx, res.Principal)
		}
	}

	p.dispatcher.Dispatch(w, r.WithContext(ctx), match)
}

func (p *Pipeline) authenticate(r *http.Request) (*auth.Result, error) {
	if p.gate == nil {
		return nil, util.NewAuthError(util.ErrAuthUnavailable, errGateNotConfigured.Error(), errGateNotConfigured)
	}
	return p.gate.Authenticate(r.Context(), r.Header.Get("Authorization"))
}
