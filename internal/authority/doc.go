// Package authority is the resilient client for the backend authority.
//
// All calls run through a shared health gate and a bounded retry policy:
// before each operation the client re-probes /health when its cached result
// is stale or the gate is closed, failing fast with ServiceUnavailable and
// consuming none of the operation's retry budget. Rate-limit responses back
// off with linearly increasing delay; timeouts and network errors retry on
// a fixed delay; caller errors (bad request, unauthorized, forbidden) never
// retry. Every failure is classified into exactly one Kind.
package authority
