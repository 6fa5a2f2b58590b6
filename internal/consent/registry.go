package consent

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/agentcourier/internal/logging"
)

// ErrNotFound indicates no live token exists for the requested user and scope.
var ErrNotFound = errors.New("consent token not found")

// ChangeListener is notified after a token is stored or revoked.
// Listeners are invoked outside the registry lock and must not call back
// into the registry's write operations.
type ChangeListener func(userID string, scope Scope)

// Registry tracks, per user, which scopes currently hold a live consent token.
// Reads are shared; Store and Revoke are mutually exclusive with each other
// and with reads. The registry is safe for concurrent use.
//
// Tokens are opaque: the registry never decodes Value to infer anything.
type Registry struct {
	mu        sync.RWMutex
	tokens    map[string]map[Scope]Token
	listeners []ChangeListener
	logger    *slog.Logger

	// now is replaceable for tests
	now func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tokens: make(map[string]map[Scope]Token),
		logger: logger,
		now:    time.Now,
	}
}

// OnChange registers a listener invoked after every Store and Revoke.
func (r *Registry) OnChange(fn ChangeListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Store inserts or replaces the token for the given user and scope.
// The scope is taken from the arguments, never from the token payload.
func (r *Registry) Store(userID string, scope Scope, token Token) {
	token.OwnerUserID = userID
	token.Scope = scope

	r.mu.Lock()
	byScope, ok := r.tokens[userID]
	if !ok {
		byScope = make(map[Scope]Token)
		r.tokens[userID] = byScope
	}
	byScope[scope] = token
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	r.logger.Debug("consent token stored",
		logging.UserHash(userID),
		logging.Scope(scope.String()),
	)
	for _, fn := range listeners {
		fn(userID, scope)
	}
}

// Revoke removes the token for the given user and scope.
// Revoking an absent token is a no-op.
func (r *Registry) Revoke(userID string, scope Scope) {
	r.mu.Lock()
	byScope, ok := r.tokens[userID]
	if ok {
		if _, present := byScope[scope]; present {
			delete(byScope, scope)
			if len(byScope) == 0 {
				delete(r.tokens, userID)
			}
		} else {
			ok = false
		}
	}
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	if !ok {
		return
	}

	r.logger.Debug("consent token revoked",
		logging.UserHash(userID),
		logging.Scope(scope.String()),
	)
	for _, fn := range listeners {
		fn(userID, scope)
	}
}

// RevokeAll removes every token held for the user, e.g. on logout.
func (r *Registry) RevokeAll(userID string) {
	r.mu.Lock()
	byScope := r.tokens[userID]
	scopes := make([]Scope, 0, len(byScope))
	for scope := range byScope {
		scopes = append(scopes, scope)
	}
	delete(r.tokens, userID)
	listeners := r.snapshotListeners()
	r.mu.Unlock()

	for _, scope := range scopes {
		for _, fn := range listeners {
			fn(userID, scope)
		}
	}
}

// Has reports whether the user holds a live (non-expired) token for every
// scope in the set. An empty scope set is trivially satisfied.
func (r *Registry) Has(userID string, scopes ...Scope) bool {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	byScope := r.tokens[userID]
	for _, scope := range scopes {
		token, ok := byScope[scope]
		if !ok || token.Expired(now) {
			return false
		}
	}
	return true
}

// FirstMissing returns the first scope in the set for which the user holds
// no live token, in the order given. The boolean is false if nothing is
// missing.
func (r *Registry) FirstMissing(userID string, scopes ...Scope) (Scope, bool) {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	byScope := r.tokens[userID]
	for _, scope := range scopes {
		token, ok := byScope[scope]
		if !ok || token.Expired(now) {
			return scope, true
		}
	}
	return "", false
}

// Get returns the live token for the given user and scope.
// Expired tokens are reported as ErrNotFound, never returned.
func (r *Registry) Get(userID string, scope Scope) (Token, error) {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[userID][scope]
	if !ok || token.Expired(now) {
		return Token{}, ErrNotFound
	}
	return token, nil
}

// Scopes returns the scopes for which the user currently holds live tokens.
func (r *Registry) Scopes(userID string) []Scope {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	byScope := r.tokens[userID]
	scopes := make([]Scope, 0, len(byScope))
	for _, known := range AllScopes {
		if token, ok := byScope[known]; ok && !token.Expired(now) {
			scopes = append(scopes, known)
		}
	}
	return scopes
}

// snapshotListeners must be called with the lock held.
func (r *Registry) snapshotListeners() []ChangeListener {
	out := make([]ChangeListener, len(r.listeners))
	copy(out, r.listeners)
	return out
}
