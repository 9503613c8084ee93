package gateway

import (
	"fmt"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/transitgw/internal/config"
	"github.com/vyrodovalexey/transitgw/internal/router"
)

// Paths of the gateway-owned endpoints.
const (
	PathHealth = "/health"
	PathRoot   = "/"
	PathDocs   = "/api/docs"
)

// RootMessage is the greeting of the capability summary.
const RootMessage = "Transport System API Gateway"

// RootBody is the capability summary served at /.
type RootBody struct {
	Message       string            `json:"message"`
	Version       string            `json:"version"`
	Endpoints     map[string]string `json:"endpoints"`
	Documentation string            `json:"documentation"`
}

// DocsBody is the documentation served at /api/docs.
type DocsBody struct {
	Title    string            `json:"title"`
	Version  string            `json:"version"`
	BaseURL  string            `json:"baseUrl"`
	Services []config.DocGroup `json:"services"`
	Rules    []RuleDoc         `json:"rules"`
}

// RuleDoc describes one live route table entry.
type RuleDoc struct {
	Name          string      `json:"name"`
	Pattern       string      `json:"pattern"`
	Service       string      `json:"service"`
	Rewrite       *RewriteDoc `json:"rewrite,omitempty"`
	RequiresAdmin bool        `json:"requiresAdmin"`
}

// RewriteDoc describes a prefix substitution.
type RewriteDoc struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// infoHandlers serves / and /api/docs. Both payloads are fixed at
// startup.
type infoHandlers struct {
	root *RootBody
	docs *DocsBody
}

func newInfoHandlers(cfg *config.Config, table *router.Table) *infoHandlers {
	endpoints := make(map[string]string, len(cfg.Docs.Groups))
	for _, g := range cfg.Docs.Groups {
		if g.Prefix == "" {
			continue
		}
		endpoints[path.Base(g.Prefix)] = g.Prefix + "/*"
	}

	return &infoHandlers{
		root: &RootBody{
			Message:       RootMessage,
			Version:       cfg.Docs.Version,
			Endpoints:     endpoints,
			Documentation: PathDocs,
		},
		docs: &DocsBody{
			Title:    cfg.Docs.Title,
			Version:  cfg.Docs.Version,
			BaseURL:  fmt.Sprintf("http://localhost:%d", cfg.Port),
			Services: cfg.Docs.Groups,
			Rules:    describeRules(table),
		},
	}
}

func describeRules(table *router.Table) []RuleDoc {
	if table == nil {
		return []RuleDoc{}
	}
	rules := table.Rules()
	out := make([]RuleDoc, 0, len(rules))
	for _, r := range rules {
		doc := RuleDoc{
			Name:          r.Name,
			Pattern:       r.Pattern,
			Service:       r.Service.Name,
			RequiresAdmin: r.RequiresAdmin,
		}
		if !r.Rewrite.IsZero() {
			doc.Rewrite = &RewriteDoc{From: r.Rewrite.From, To: r.Rewrite.To}
		}
		out = append(out, doc)
	}
	return out
}

func (h *infoHandlers) rootHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.root)
}

func (h *infoHandlers) docsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.docs)
}
