package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/teemow/agentcourier/internal/consent"
	"github.com/teemow/agentcourier/internal/instrumentation"
	"github.com/teemow/agentcourier/internal/logging"
)

// State is the position of an authorization flow.
type State int

const (
	// StateUnauthenticated means no authorization has been started.
	StateUnauthenticated State = iota

	// StateAwaitingRedirect means an authorization URL was handed out and
	// the flow is waiting for the provider to redirect back with a code.
	StateAwaitingRedirect

	// StateAuthenticated means at least one authorization completed and its
	// scopes were granted into the registry.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAwaitingRedirect:
		return "awaiting_redirect"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

var (
	// ErrRedirectPending indicates Begin was called while a redirect is
	// already outstanding. Cancel the pending flow first.
	ErrRedirectPending = errors.New("authorization redirect already pending")

	// ErrNoPendingRedirect indicates a redirect arrived without a prior Begin.
	ErrNoPendingRedirect = errors.New("no authorization redirect pending")

	// ErrStateMismatch indicates the redirect carried a state parameter that
	// does not match the pending flow. The pending flow stays open.
	ErrStateMismatch = errors.New("authorization state parameter mismatch")

	// ErrUnknownScope indicates Begin was called with a scope outside the
	// catalog.
	ErrUnknownScope = errors.New("unknown scope requested")
)

// Config holds the collaborators of an authorization flow.
type Config struct {
	// UserID identifies the user this flow authorizes.
	UserID string

	// OAuth is the provider configuration used to build authorization URLs
	// and exchange redirect codes.
	OAuth *oauth2.Config

	// Registry receives the granted consent tokens when the flow completes.
	Registry *consent.Registry

	Logger *slog.Logger
	Audit  *instrumentation.AuditLogger
}

// Flow drives one user's authorization as a finite-state machine:
// Unauthenticated, AwaitingRedirect, Authenticated. Every transition goes
// through a single event channel processed serially by Run, so there is no
// UI coupling and no race between a redirect and a cancellation.
type Flow struct {
	userID   string
	oauth    *oauth2.Config
	registry *consent.Registry
	logger   *slog.Logger
	audit    *instrumentation.AuditLogger

	events chan event

	stateMu sync.RWMutex
	state   State

	// pending redirect, owned by the run loop
	pendingState  string
	pendingScopes []consent.Scope

	// replaceable for tests
	exchange func(ctx context.Context, code string) (*oauth2.Token, error)
}

type eventKind int

const (
	eventBegin eventKind = iota
	eventRedirect
	eventCancel
)

type event struct {
	kind   eventKind
	scopes []consent.Scope
	code   string
	state  string
	reply  chan result
}

type result struct {
	authURL string
	err     error
}

// New creates a flow in the Unauthenticated state. Call Run to start
// processing events.
func New(cfg Config) (*Flow, error) {
	if cfg.UserID == "" {
		return nil, fmt.Errorf("flow user ID must not be empty")
	}
	if cfg.OAuth == nil {
		return nil, fmt.Errorf("flow requires an OAuth configuration")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("flow requires a consent registry")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	f := &Flow{
		userID:   cfg.UserID,
		oauth:    cfg.OAuth,
		registry: cfg.Registry,
		logger:   cfg.Logger,
		audit:    cfg.Audit,
		events:   make(chan event),
		state:    StateUnauthenticated,
	}
	f.exchange = func(ctx context.Context, code string) (*oauth2.Token, error) {
		return f.oauth.Exchange(ctx, code)
	}
	return f, nil
}

// Run processes flow events until the context is cancelled.
func (f *Flow) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-f.events:
			ev.reply <- f.handle(ctx, ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// State reports the current flow state.
func (f *Flow) State() State {
	f.stateMu.RLock()
	defer f.stateMu.RUnlock()
	return f.state
}

// Begin starts an authorization for the given scopes and returns the URL the
// user must visit. The flow moves to AwaitingRedirect.
func (f *Flow) Begin(ctx context.Context, scopes ...consent.Scope) (string, error) {
	res, err := f.send(ctx, event{kind: eventBegin, scopes: scopes})
	if err != nil {
		return "", err
	}
	return res.authURL, res.err
}

// CompleteRedirect delivers the provider's redirect. On success the code is
// exchanged for a token and every requested scope is granted into the
// registry; the flow moves to Authenticated.
func (f *Flow) CompleteRedirect(ctx context.Context, code, state string) error {
	res, err := f.send(ctx, event{kind: eventRedirect, code: code, state: state})
	if err != nil {
		return err
	}
	return res.err
}

// Cancel abandons an outstanding redirect. An already authenticated flow
// stays authenticated.
func (f *Flow) Cancel(ctx context.Context) error {
	res, err := f.send(ctx, event{kind: eventCancel})
	if err != nil {
		return err
	}
	return res.err
}

func (f *Flow) send(ctx context.Context, ev event) (result, error) {
	ev.reply = make(chan result, 1)
	select {
	case f.events <- ev:
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	select {
	case res := <-ev.reply:
		return res, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

func (f *Flow) handle(ctx context.Context, ev event) result {
	switch ev.kind {
	case eventBegin:
		return f.handleBegin(ev.scopes)
	case eventRedirect:
		return result{err: f.handleRedirect(ctx, ev.code, ev.state)}
	case eventCancel:
		f.handleCancel()
		return result{}
	default:
		return result{err: fmt.Errorf("unknown flow event %d", ev.kind)}
	}
}

func (f *Flow) handleBegin(scopes []consent.Scope) result {
	if f.State() == StateAwaitingRedirect {
		return result{err: ErrRedirectPending}
	}
	if len(scopes) == 0 {
		return result{err: fmt.Errorf("at least one scope is required")}
	}
	for _, scope := range scopes {
		if !scope.Known() {
			return result{err: fmt.Errorf("%w: %s", ErrUnknownScope, scope)}
		}
	}

	f.pendingState = uuid.NewString()
	f.pendingScopes = scopes
	f.setState(StateAwaitingRedirect)

	f.logger.Info("authorization started",
		logging.UserHash(f.userID),
		slog.Int("scopes", len(scopes)),
	)
	return result{authURL: f.oauth.AuthCodeURL(f.pendingState, oauth2.AccessTypeOffline)}
}

func (f *Flow) handleRedirect(ctx context.Context, code, state string) error {
	if f.State() != StateAwaitingRedirect {
		return ErrNoPendingRedirect
	}
	if state != f.pendingState {
		return ErrStateMismatch
	}

	token, err := f.exchange(ctx, code)
	if err != nil {
		// The redirect stays pending so the user can retry
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	for _, scope := range f.pendingScopes {
		f.registry.Store(f.userID, scope, consent.Token{
			Value:     []byte(token.AccessToken),
			ExpiresAt: token.Expiry,
		})
		if f.audit != nil {
			f.audit.LogConsentEvent(instrumentation.ConsentEvent{
				Action: "granted",
				UserID: f.userID,
				Scope:  scope.String(),
				Source: "authflow",
			})
		}
	}

	granted := len(f.pendingScopes)
	f.pendingState = ""
	f.pendingScopes = nil
	f.setState(StateAuthenticated)

	f.logger.Info("authorization completed",
		logging.UserHash(f.userID),
		slog.Int("scopes", granted),
	)
	return nil
}

func (f *Flow) handleCancel() {
	f.pendingState = ""
	f.pendingScopes = nil
	if f.State() == StateAwaitingRedirect {
		f.setState(StateUnauthenticated)
		f.logger.Info("authorization cancelled", logging.UserHash(f.userID))
	}
}

func (f *Flow) setState(s State) {
	f.stateMu.Lock()
	f.state = s
	f.stateMu.Unlock()
}
