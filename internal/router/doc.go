// Package router builds and dispatches consent-gated messages between
// agents. Each message type maps to a fixed set of required scopes; the
// router checks the consent registry before any network activity and
// attaches the backing credentials only when every scope is held. Received
// messages are dispatched to per-type handlers, with trust link delegations
// verified when a signer is configured.
package router
