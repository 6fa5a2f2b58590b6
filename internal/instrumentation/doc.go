// Package instrumentation provides OpenTelemetry metrics and tracing for
// the application, plus the consent audit trail.
//
// The Provider wires a meter provider (Prometheus, OTLP, or stdout exporter)
// and a tracer provider (OTLP, stdout, or none) from environment-driven
// configuration. The Metrics recorder covers backend authority operations
// and retries, health probes, consent checks, agent message dispatches, and
// MCP tool invocations; its zero value is a safe no-op so instrumentation
// can be disabled without nil checks at call sites.
//
// Cardinality: user identities never appear as metric labels. The audit
// trail, which is allowed to carry per-user detail, goes through slog via
// AuditLogger and anonymizes user IDs unless PII inclusion is explicitly
// enabled.
package instrumentation
