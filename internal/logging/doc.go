// Package logging provides structured logging helpers built on log/slog.
//
// It defines canonical attribute keys used across the codebase (operation,
// agent, scope, message_type, user_hash, status) together with typed attribute
// constructors, so log output stays consistent and greppable. It also contains
// sanitization helpers that keep consent token values and raw user IDs out of
// log output.
package logging
