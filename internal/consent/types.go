package consent

import (
	"time"
)

// Scope is a named capability over an external resource category.
// Scope names are stable wire identifiers; they appear in agent messages
// and in the persisted token store.
type Scope string

// The scope catalog.
const (
	ScopeGmailRead     Scope = "gmail.read"
	ScopeGmailWrite    Scope = "gmail.write"
	ScopeCalendarRead  Scope = "calendar.read"
	ScopeCalendarWrite Scope = "calendar.write"
	ScopeAIAnalyze     Scope = "ai.analyze"
	ScopeAIGenerate    Scope = "ai.generate"
	ScopeDocumentRead  Scope = "document.read"
	ScopeDocumentWrite Scope = "document.write"
	ScopeContactRead   Scope = "contact.read"
	ScopeContactWrite  Scope = "contact.write"
)

// AllScopes lists every known scope, in catalog order.
var AllScopes = []Scope{
	ScopeGmailRead,
	ScopeGmailWrite,
	ScopeCalendarRead,
	ScopeCalendarWrite,
	ScopeAIAnalyze,
	ScopeAIGenerate,
	ScopeDocumentRead,
	ScopeDocumentWrite,
	ScopeContactRead,
	ScopeContactWrite,
}

// String returns the wire name of the scope.
func (s Scope) String() string {
	return string(s)
}

// Known reports whether the scope is part of the catalog.
func (s Scope) Known() bool {
	for _, known := range AllScopes {
		if s == known {
			return true
		}
	}
	return false
}

// Token is an opaque credential evidencing that a user granted a scope.
// The registry never parses or inspects Value; the scope is recorded
// explicitly by the caller that completed the authorization flow.
type Token struct {
	OwnerUserID string
	Scope       Scope
	Value       []byte
	ExpiresAt   time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
// A zero ExpiresAt means the token does not expire.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}
