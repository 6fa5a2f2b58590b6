package router

import (
	"github.com/teemow/agentcourier/internal/consent"
)

// MessageType names a cross-agent action. The catalog below fixes which
// consent scopes each type requires; unknown types are never dispatched.
type MessageType string

const (
	TypeEmailToEvent     MessageType = "email_to_event"
	TypeScheduleConflict MessageType = "schedule_conflict"
	TypeEmailReminder    MessageType = "email_reminder"
	TypeContactSync      MessageType = "contact_sync"
	TypeSmartReply       MessageType = "smart_reply"
)

func (t MessageType) String() string {
	return string(t)
}

// requiredScopes is the static messageType to scope-set catalog consulted
// before any dispatch.
var requiredScopes = map[MessageType][]consent.Scope{
	TypeEmailToEvent:     {consent.ScopeGmailRead, consent.ScopeCalendarWrite},
	TypeScheduleConflict: {consent.ScopeCalendarRead, consent.ScopeGmailWrite},
	TypeEmailReminder:    {consent.ScopeCalendarRead, consent.ScopeGmailWrite},
	TypeContactSync:      {consent.ScopeGmailRead, consent.ScopeCalendarWrite},
	TypeSmartReply:       {consent.ScopeGmailRead},
}

// RequiredScopes returns the consent scopes a message type needs. The boolean
// is false for types outside the catalog.
func RequiredScopes(t MessageType) ([]consent.Scope, bool) {
	scopes, ok := requiredScopes[t]
	if !ok {
		return nil, false
	}
	out := make([]consent.Scope, len(scopes))
	copy(out, scopes)
	return out, true
}

// MessageTypes lists the catalog in stable order.
func MessageTypes() []MessageType {
	return []MessageType{
		TypeEmailToEvent,
		TypeScheduleConflict,
		TypeEmailReminder,
		TypeContactSync,
		TypeSmartReply,
	}
}
