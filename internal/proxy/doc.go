// Package proxy forwards matched requests to their target service.
//
// A Dispatcher holds one reverse proxy per registered service. Each
// request is rewritten once, carries the caller's method, headers, query
// and body unchanged apart from the Host and forwarding headers, and has
// its response streamed back as it arrives. The upstream exchange runs
// under a single deadline derived from the caller's context, so a
// disconnecting caller aborts the outbound call.
//
// Failures to reach a service are reported as a 503 envelope naming the
// service's base address. The dispatcher never retries.
package proxy
