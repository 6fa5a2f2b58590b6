package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys - using constants for consistency and DRY
const (
	attrOperation   = "operation"
	attrStatus      = "status"
	attrKind        = "kind"
	attrResult      = "result"
	attrMessageType = "message_type"
	attrTool        = "tool"
	attrAgent       = "agent"
)

// Metrics provides methods for recording observability metrics.
// The zero value is a safe no-op recorder.
type Metrics struct {
	// Backend authority metrics
	backendOperationsTotal   metric.Int64Counter
	backendOperationDuration metric.Float64Histogram
	backendRetriesTotal      metric.Int64Counter
	healthProbesTotal        metric.Int64Counter

	// Consent metrics
	consentChecksTotal metric.Int64Counter

	// Agent messaging metrics
	agentDispatchesTotal  metric.Int64Counter
	agentDispatchDuration metric.Float64Histogram

	// MCP tool metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The detailedLabels parameter controls whether high-cardinality labels are included.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	// Backend authority metrics
	m.backendOperationsTotal, err = meter.Int64Counter(
		"backend_operations_total",
		metric.WithDescription("Total number of backend authority operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_operations_total counter: %w", err)
	}

	m.backendOperationDuration, err = meter.Float64Histogram(
		"backend_operation_duration_seconds",
		metric.WithDescription("Backend authority operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_operation_duration_seconds histogram: %w", err)
	}

	m.backendRetriesTotal, err = meter.Int64Counter(
		"backend_retries_total",
		metric.WithDescription("Total number of backend operation retries, by error kind"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_retries_total counter: %w", err)
	}

	m.healthProbesTotal, err = meter.Int64Counter(
		"backend_health_probes_total",
		metric.WithDescription("Total number of backend health probes"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend_health_probes_total counter: %w", err)
	}

	// Consent metrics
	m.consentChecksTotal, err = meter.Int64Counter(
		"consent_checks_total",
		metric.WithDescription("Total number of consent precondition checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consent_checks_total counter: %w", err)
	}

	// Agent messaging metrics
	m.agentDispatchesTotal, err = meter.Int64Counter(
		"agent_dispatches_total",
		metric.WithDescription("Total number of agent message dispatches"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_dispatches_total counter: %w", err)
	}

	m.agentDispatchDuration, err = meter.Float64Histogram(
		"agent_dispatch_duration_seconds",
		metric.WithDescription("Agent message dispatch duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_dispatch_duration_seconds histogram: %w", err)
	}

	// MCP tool metrics
	m.toolInvocationsTotal, err = meter.Int64Counter(
		"mcp_tool_invocations_total",
		metric.WithDescription("Total number of MCP tool invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"mcp_tool_duration_seconds",
		metric.WithDescription("MCP tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mcp_tool_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordBackendOperation records a backend authority operation with its
// outcome status and duration.
func (m *Metrics) RecordBackendOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m.backendOperationsTotal == nil || m.backendOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.backendOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.backendOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordBackendRetry records one retry of a backend operation, labeled with
// the error kind that triggered it (rate_limited, timeout, network_unreachable).
func (m *Metrics) RecordBackendRetry(ctx context.Context, operation, kind string) {
	if m.backendRetriesTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrKind, kind),
	}

	m.backendRetriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordHealthProbe records the result of a backend health probe.
func (m *Metrics) RecordHealthProbe(ctx context.Context, result string) {
	if m.healthProbesTotal == nil {
		return // Instrumentation not initialized
	}

	m.healthProbesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordConsentCheck records a consent precondition check.
// Result should be "success" or "error" (missing consent).
func (m *Metrics) RecordConsentCheck(ctx context.Context, messageType, result string) {
	if m.consentChecksTotal == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMessageType, messageType),
		attribute.String(attrResult, result),
	}

	m.consentChecksTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAgentDispatch records an agent message dispatch with its message
// type, outcome status, and duration.
func (m *Metrics) RecordAgentDispatch(ctx context.Context, messageType, status string, duration time.Duration) {
	if m.agentDispatchesTotal == nil || m.agentDispatchDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMessageType, messageType),
		attribute.String(attrStatus, status),
	}

	m.agentDispatchesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.agentDispatchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocationWithAgent records an MCP tool invocation including the
// acting agent identity when detailed labels are enabled.
func (m *Metrics) RecordToolInvocationWithAgent(ctx context.Context, toolName, status, agent string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	// Only add high-cardinality labels if explicitly enabled
	if m.detailedLabels && agent != "" {
		attrs = append(attrs, attribute.String(attrAgent, agent))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
