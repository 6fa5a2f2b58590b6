// Package tokenstore persists consent tokens to the local filesystem so
// grants survive a restart. One JSON file per user, named by a hash of the
// user ID, written atomically. The store plugs into the consent registry as
// a change listener and replays its contents back into the registry on
// startup.
package tokenstore
