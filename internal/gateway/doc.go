// Package gateway assembles the transport API gateway: the dispatch
// pipeline behind the route table, the JSON error envelopes for
// failures the gateway answers itself, the informational endpoints and
// the HTTP listener lifecycle.
//
// A request flows through the middleware chain (request id, access log,
// recovery, tracing, metrics, CORS, rate limit) into a gin engine.
// Gateway-owned paths are served by gin; everything else falls through
// to the pipeline, which matches the ordered route table, runs the
// admin gate when the rule asks for it, and hands the request to the
// dispatcher.
package gateway
