package router

import (
	"fmt"

	"github.com/vyrodovalexey/transitgw/internal/config"
	"github.com/vyrodovalexey/transitgw/internal/registry"
	"github.com/vyrodovalexey/transitgw/internal/util"
)

// Rule is one immutable entry of the route table.
type Rule struct {
	Name          string
	Pattern       string
	Service       *registry.ServiceEndpoint
	Rewrite       Rewrite
	RequiresAdmin bool

	matcher PathMatcher
}

// MatchResult is the outcome of a successful lookup.
type MatchResult struct {
	Rule *Rule
	// Path is the normalized request path the rule matched.
	Path   string
	Params map[string]string
}

// UpstreamPath returns the path to send to the target service.
func (m *MatchResult) UpstreamPath() string {
	return m.Rule.Rewrite.Apply(m.Path)
}

// Table is the ordered, read-only route table.
type Table struct {
	rules []*Rule
}

// NewTable compiles the route declarations in order. Every rule's target
// service must be registered, otherwise the table is not built.
func NewTable(routes []config.RouteConfig, reg *registry.Registry) (*Table, error) {
	t := &Table{rules: make([]*Rule, 0, len(routes))}

	for i, rc := range routes {
		ep, err := reg.Resolve(rc.Service)
		if err != nil {
			return nil, fmt.Errorf("route %d (%s): %w", i, rc.Name, err)
		}

		matcher, err := NewSegmentMatcher(rc.Pattern)
		if err != nil {
			return nil, util.NewConfigErrorWithCause(fmt.Sprintf("routes[%d].pattern", i), err.Error(), err)
		}

		name := rc.Name
		if name == "" {
			name = rc.Pattern
		}

		t.rules = append(t.rules, &Rule{
			Name:          name,
			Pattern:       rc.Pattern,
			Service:       ep,
			Rewrite:       Rewrite{From: rc.Rewrite.From, To: rc.Rewrite.To},
			RequiresAdmin: rc.RequiresAdmin,
			matcher:       matcher,
		})
	}

	return t, nil
}

// Match returns the first rule, in declaration order, whose pattern
// matches path. The method is accepted for logging symmetry only.
func (t *Table) Match(method, path string) (*MatchResult, error) {
	cleaned := CleanPath(path)

	for _, rule := range t.rules {
		if ok, params := rule.matcher.Match(cleaned); ok {
			return &MatchResult{Rule: rule, Path: cleaned, Params: params}, nil
		}
	}

	return nil, util.NewRouteNotFoundError(method, path)
}

// Rules returns the rules in declaration order.
func (t *Table) Rules() []*Rule {
	out := make([]*Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}
