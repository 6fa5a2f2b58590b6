package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/agentcourier/internal/authority"
	"github.com/teemow/agentcourier/internal/consent"
	"github.com/teemow/agentcourier/internal/instrumentation"
	"github.com/teemow/agentcourier/internal/logging"
)

// ErrUnknownMessageType indicates a message type outside the catalog.
var ErrUnknownMessageType = errors.New("unknown message type")

// MissingConsentError indicates the user does not hold every scope the
// message type requires. The dispatch was rejected before any network
// activity; callers typically surface this as a reconnect prompt.
type MissingConsentError struct {
	Scope consent.Scope
}

func (e *MissingConsentError) Error() string {
	return "missing consent for scope " + e.Scope.String()
}

// Transport is the slice of the backend client the router dispatches through.
type Transport interface {
	SendAgentMessage(ctx context.Context, creds authority.Credentials, msg authority.AgentMessage, requiredScopes []string) error
	ReceiveAgentMessages(ctx context.Context, creds authority.Credentials, agentID, userID string) ([]authority.AgentMessage, error)
}

// Handler processes one received agent message.
type Handler func(ctx context.Context, msg authority.AgentMessage) error

// Message is a dispatch request before credentials are attached.
type Message struct {
	FromAgent string
	ToAgent   string
	UserID    string
	Type      MessageType
	Payload   json.RawMessage

	// TrustLink optionally carries a signed delegation permitting ToAgent
	// to act under FromAgent's grant.
	TrustLink string
}

// Config holds the router's collaborators.
type Config struct {
	Registry  *consent.Registry
	Transport Transport

	// Signer verifies trust links on received messages. Optional; without
	// it trust links pass through unverified.
	Signer *consent.Signer

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
}

// Router builds and dispatches scope-gated messages between agents. The
// consent check happens strictly before any network activity; a dispatch
// with missing consent never touches the transport.
type Router struct {
	registry  *consent.Registry
	transport Transport
	signer    *consent.Signer
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
	audit     *instrumentation.AuditLogger

	handlers map[MessageType]Handler

	// replaceable for tests
	now func() time.Time
}

// New creates a router over the given registry and transport.
func New(cfg Config) (*Router, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("router requires a consent registry")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("router requires a transport")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &instrumentation.Metrics{}
	}

	return &Router{
		registry:  cfg.Registry,
		transport: cfg.Transport,
		signer:    cfg.Signer,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		audit:     cfg.Audit,
		handlers:  make(map[MessageType]Handler),
		now:       time.Now,
	}, nil
}

// Handle registers the handler for a message type, replacing any previous one.
func (r *Router) Handle(t MessageType, h Handler) {
	r.handlers[t] = h
}

// Send dispatches a message after verifying the user holds every scope its
// type requires. A write-scoped dispatch carries a fresh idempotency key so
// the transport's retry policy cannot duplicate remote side effects.
func (r *Router) Send(ctx context.Context, msg Message) error {
	scopes, ok := RequiredScopes(msg.Type)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.Type)
	}

	if missing, absent := r.registry.FirstMissing(msg.UserID, scopes...); absent {
		r.metrics.RecordConsentCheck(ctx, msg.Type.String(), logging.StatusError)
		r.logger.Info("dispatch rejected, consent missing",
			logging.Agent(msg.FromAgent),
			logging.PeerAgent(msg.ToAgent),
			logging.MessageType(msg.Type.String()),
			logging.Scope(missing.String()),
			logging.UserHash(msg.UserID),
		)
		return &MissingConsentError{Scope: missing}
	}
	r.metrics.RecordConsentCheck(ctx, msg.Type.String(), logging.StatusSuccess)

	creds, err := r.credentials(msg.UserID, scopes)
	if err != nil {
		return err
	}

	wire := authority.AgentMessage{
		FromAgent:      msg.FromAgent,
		ToAgent:        msg.ToAgent,
		UserID:         msg.UserID,
		MessageType:    msg.Type.String(),
		Payload:        msg.Payload,
		TrustLink:      msg.TrustLink,
		IdempotencyKey: uuid.NewString(),
	}

	start := r.now()
	err = r.transport.SendAgentMessage(ctx, creds, wire, scopeNames(scopes))
	duration := r.now().Sub(start)

	status := logging.StatusSuccess
	errDetail := ""
	if err != nil {
		status = logging.StatusError
		errDetail = err.Error()
	}
	r.metrics.RecordAgentDispatch(ctx, msg.Type.String(), status, duration)
	if r.audit != nil {
		r.audit.LogDispatch(instrumentation.DispatchRecord{
			FromAgent:   msg.FromAgent,
			ToAgent:     msg.ToAgent,
			UserID:      msg.UserID,
			MessageType: msg.Type.String(),
			TrustLinked: msg.TrustLink != "",
			StartTime:   start,
			Duration:    duration,
			Success:     err == nil,
			Error:       errDetail,
		})
	}
	return err
}

// Receive pulls the messages queued for the given agent.
func (r *Router) Receive(ctx context.Context, agentID, userID string) ([]authority.AgentMessage, error) {
	creds, err := r.credentials(userID, r.registry.Scopes(userID))
	if err != nil {
		return nil, err
	}
	return r.transport.ReceiveAgentMessages(ctx, creds, agentID, userID)
}

// Process receives the agent's queued messages and dispatches each to its
// registered handler. Messages with an unrecognized type, a failed trust
// link, or a failing handler are logged and skipped; processing continues.
// It returns the number of successfully handled messages.
func (r *Router) Process(ctx context.Context, agentID, userID string) (int, error) {
	messages, err := r.Receive(ctx, agentID, userID)
	if err != nil {
		return 0, err
	}

	handled := 0
	for _, msg := range messages {
		log := r.logger.With(
			logging.Agent(agentID),
			logging.PeerAgent(msg.FromAgent),
			logging.MessageType(msg.MessageType),
		)

		handler, ok := r.handlers[MessageType(msg.MessageType)]
		if !ok {
			log.Warn("skipping message with unrecognized type")
			continue
		}

		if err := r.verifyTrustLink(msg, agentID); err != nil {
			log.Warn("skipping message with invalid trust link", logging.Err(err))
			continue
		}

		if err := handler(ctx, msg); err != nil {
			log.Error("message handler failed", logging.Err(err))
			continue
		}
		handled++
	}
	return handled, nil
}

// verifyTrustLink checks a message's delegation against the agent pair and
// the scopes its type requires. Absent links and an unconfigured signer
// pass through.
func (r *Router) verifyTrustLink(msg authority.AgentMessage, agentID string) error {
	if msg.TrustLink == "" || r.signer == nil {
		return nil
	}

	scopes, ok := RequiredScopes(MessageType(msg.MessageType))
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessageType, msg.MessageType)
	}

	var lastErr error
	for _, scope := range scopes {
		_, err := r.signer.Verify(msg.TrustLink, msg.FromAgent, agentID, scope)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// credentials collects the token values backing the given scopes. Gmail and
// calendar scopes map to their credential headers; other scopes carry no
// separate credential.
func (r *Router) credentials(userID string, scopes []consent.Scope) (authority.Credentials, error) {
	var creds authority.Credentials
	for _, scope := range scopes {
		token, err := r.registry.Get(userID, scope)
		if err != nil {
			// Consent was checked just before; a vanished token means it
			// was revoked or expired in between
			return authority.Credentials{}, &MissingConsentError{Scope: scope}
		}
		switch {
		case strings.HasPrefix(scope.String(), "gmail."):
			creds.GmailToken = string(token.Value)
		case strings.HasPrefix(scope.String(), "calendar."):
			creds.CalendarToken = string(token.Value)
		}
	}
	return creds, nil
}

func scopeNames(scopes []consent.Scope) []string {
	names := make([]string, len(scopes))
	for i, scope := range scopes {
		names[i] = scope.String()
	}
	return names
}
