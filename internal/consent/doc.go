// Package consent tracks which scopes a user has granted a live credential
// for, and provides signed trust links that let one agent act under a scope
// granted to another.
//
// The Registry is the single piece of process-wide mutable shared state in
// the application. It answers "does this user hold every scope in this set"
// without ever inspecting token payloads: scope is recorded explicitly at
// Store time by whichever component completed the authorization flow.
package consent
