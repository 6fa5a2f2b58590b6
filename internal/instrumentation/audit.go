package instrumentation

import (
	"log/slog"
	"time"

	"github.com/teemow/agentcourier/internal/logging"
)

// ConsentEvent captures a change to a user's consent state for the audit
// trail. Consent grants and revocations are security-relevant and are
// always auditable regardless of general log level.
type ConsentEvent struct {
	// Action is "granted" or "revoked".
	Action string

	UserID string
	Scope  string

	// Source identifies what produced the event, e.g. "authflow" or "cli".
	Source string

	Time time.Time
}

// DispatchRecord captures one agent message dispatch for the audit trail.
type DispatchRecord struct {
	FromAgent   string
	ToAgent     string
	UserID      string
	MessageType string

	// TrustLinked is true when the message carried a trust link.
	TrustLinked bool

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string
}

// Status returns "success" or "error" based on the Success field.
func (d *DispatchRecord) Status() string {
	if d.Success {
		return StatusSuccess
	}
	return StatusError
}

// AuditLogger writes the consent and dispatch audit trail through slog.
// When IncludePII is disabled (the default), user IDs are anonymized.
type AuditLogger struct {
	logger *slog.Logger
	config AuditLoggingConfig
}

// NewAuditLogger creates an audit logger with the given configuration.
// If logger is nil, slog.Default() is used.
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger: logger.With(slog.String("log_type", "audit")),
		config: config,
	}
}

// Enabled reports whether audit logging is active.
func (a *AuditLogger) Enabled() bool {
	return a != nil && a.config.Enabled
}

// userAttr returns the user attribute, anonymized unless PII is permitted.
func (a *AuditLogger) userAttr(userID string) slog.Attr {
	if a.config.IncludePII {
		return slog.String("user", userID)
	}
	return logging.UserHash(userID)
}

// LogConsentEvent writes one consent change to the audit trail.
func (a *AuditLogger) LogConsentEvent(event ConsentEvent) {
	if !a.Enabled() {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	a.logger.Info("consent "+event.Action,
		a.userAttr(event.UserID),
		logging.Scope(event.Scope),
		slog.String("source", event.Source),
		slog.Time("at", event.Time),
	)
}

// LogDispatch writes one agent message dispatch to the audit trail.
func (a *AuditLogger) LogDispatch(record DispatchRecord) {
	if !a.Enabled() {
		return
	}

	attrs := []any{
		logging.Agent(record.FromAgent),
		logging.PeerAgent(record.ToAgent),
		a.userAttr(record.UserID),
		logging.MessageType(record.MessageType),
		slog.Bool("trust_linked", record.TrustLinked),
		slog.Duration("duration", record.Duration),
		logging.Status(record.Status()),
	}
	if record.Error != "" {
		attrs = append(attrs, slog.String("error", record.Error))
	}

	a.logger.Info("agent message dispatched", attrs...)
}
