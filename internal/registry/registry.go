// Package registry maps logical service names to their base addresses.
//
// The registry is filled once at startup and never changes afterwards,
// so lookups need no locking. There is no discovery and no health
// polling: every service has exactly one target.
package registry

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/transitgw/internal/config"
	"github.com/vyrodovalexey/transitgw/internal/util"
)

// ServiceEndpoint is one registered backend service.
type ServiceEndpoint struct {
	Name string
	// BaseAddress is the configured address, as reported to callers.
	BaseAddress string
	// URL is BaseAddress parsed, without a trailing slash on its path.
	URL *url.URL
}

// Registry is a read-only mapping from service name to endpoint.
type Registry struct {
	endpoints map[string]*ServiceEndpoint
	order     []string
}

// New builds a registry from service declarations. It fails on an empty
// name, a duplicate name, or an address that is not an absolute http(s)
// URL.
func New(services []config.ServiceConfig) (*Registry, error) {
	r := &Registry{
		endpoints: make(map[string]*ServiceEndpoint, len(services)),
		order:     make([]string, 0, len(services)),
	}

	for _, s := range services {
		if s.Name == "" {
			return nil, util.NewConfigError("services", "service name is required")
		}
		if _, dup := r.endpoints[s.Name]; dup {
			return nil, util.NewConfigError("services."+s.Name, "duplicate service")
		}
		if err := util.ValidateURL(s.URL); err != nil {
			return nil, util.NewConfigErrorWithCause("services."+s.Name, err.Error(), err)
		}

		u, err := url.Parse(s.URL)
		if err != nil {
			return nil, util.NewConfigErrorWithCause("services."+s.Name, "invalid URL", err)
		}
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = strings.TrimSuffix(u.RawPath, "/")

		r.endpoints[s.Name] = &ServiceEndpoint{
			Name:        s.Name,
			BaseAddress: s.URL,
			URL:         u,
		}
		r.order = append(r.order, s.Name)
	}

	return r, nil
}

// Resolve returns the endpoint registered under name.
func (r *Registry) Resolve(name string) (*ServiceEndpoint, error) {
	ep, ok := r.endpoints[name]
	if !ok {
		return nil, util.NewServiceError(name)
	}
	return ep, nil
}

// MustResolve is Resolve for names already validated at startup.
func (r *Registry) MustResolve(name string) *ServiceEndpoint {
	ep, err := r.Resolve(name)
	if err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}
	return ep
}

// Endpoints returns all endpoints in declaration order.
func (r *Registry) Endpoints() []*ServiceEndpoint {
	out := make([]*ServiceEndpoint, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.endpoints[name])
	}
	return out
}

// Addresses returns the configured address of every service keyed by
// the upper-cased service name, the shape reported by /health.
func (r *Registry) Addresses() map[string]string {
	out := make(map[string]string, len(r.endpoints))
	for name, ep := range r.endpoints {
		out[strings.ToUpper(name)] = ep.BaseAddress
	}
	return out
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	return len(r.order)
}
