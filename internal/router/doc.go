// Package router implements the ordered route table of the gateway.
//
// A table is a flat list of rules evaluated top to bottom. The first
// rule whose pattern structurally matches the request path wins, and
// rules are never re-ranked by specificity: declaration order is the
// precedence. More specific rules must therefore be declared before the
// shorter patterns that overlap them.
//
// Patterns are made of literal segments, named parameters (":id") that
// match one non-empty segment, and an optional trailing "*" that matches
// any remaining suffix, including an empty one:
//
//	/api/routes/:id/stops/*   matches /api/routes/42/stops and /api/routes/42/stops/7
//	/api/routes/*             matches /api/routes and everything below it
//
// The request method is not part of matching.
package router
