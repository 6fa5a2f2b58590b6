// Package authflow models user authorization as an explicit finite-state
// machine: Unauthenticated, AwaitingRedirect, Authenticated. All transitions
// are events on a single channel processed serially by the flow's run loop,
// so any frontend (CLI prompt, deep link handler, test harness) can drive the
// flow without owning its state. Completing a flow exchanges the provider
// redirect code for an OAuth token and grants the requested scopes into the
// consent registry.
package authflow
