package agent_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/teemow/agentcourier/internal/authority"
	"github.com/teemow/agentcourier/internal/consent"
	"github.com/teemow/agentcourier/internal/logging"
	"github.com/teemow/agentcourier/internal/router"
	"github.com/teemow/agentcourier/internal/server"
)

// registerDefaultHandlers wires the catalog's message types into the router.
// Types with a direct backend action get one; the rest are acknowledged with
// a log entry so processing never stalls on an unhandled type.
func registerDefaultHandlers(sc *server.ServerContext) {
	rt := sc.Router()
	rt.Handle(router.TypeEmailToEvent, emailToEventHandler(sc))
	rt.Handle(router.TypeSmartReply, smartReplyHandler(sc))

	for _, msgType := range []router.MessageType{
		router.TypeScheduleConflict,
		router.TypeEmailReminder,
		router.TypeContactSync,
	} {
		rt.Handle(msgType, acknowledgeHandler(sc, msgType))
	}
}

// emailToEventPayload is the payload of an email_to_event message.
type emailToEventPayload struct {
	EmailID         string `json:"email_id"`
	Summary         string `json:"summary"`
	Description     string `json:"description,omitempty"`
	Start           string `json:"start,omitempty"`
	End             string `json:"end,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// emailToEventHandler turns an inbox agent's message into a calendar event.
// With explicit start/end bounds it creates the event directly; without them
// it asks the backend to pick a slot.
func emailToEventHandler(sc *server.ServerContext) router.Handler {
	return func(ctx context.Context, msg authority.AgentMessage) error {
		var payload emailToEventPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("malformed email_to_event payload: %w", err)
		}
		if payload.Summary == "" {
			return fmt.Errorf("email_to_event payload needs a summary")
		}

		token, err := sc.Registry().Get(msg.UserID, consent.ScopeCalendarWrite)
		if err != nil {
			return err
		}

		if payload.Start != "" && payload.End != "" {
			_, err = sc.Client().CreateEvent(ctx, string(token.Value), msg.UserID, authority.EventData{
				Summary:     payload.Summary,
				Description: payload.Description,
				Start:       payload.Start,
				End:         payload.End,
			})
		} else {
			duration := payload.DurationMinutes
			if duration <= 0 {
				duration = 30
			}
			_, err = sc.Client().SmartCreateEvent(ctx, string(token.Value), msg.UserID, payload.Summary, duration)
		}
		if err != nil {
			return err
		}

		sc.Logger().Info("created event from email",
			logging.Agent(msg.ToAgent),
			logging.PeerAgent(msg.FromAgent),
			logging.UserHash(msg.UserID),
		)
		return nil
	}
}

// smartReplyPayload is the payload of a smart_reply message.
type smartReplyPayload struct {
	EmailID string `json:"email_id"`
	Style   string `json:"style,omitempty"`
}

// smartReplyHandler asks the backend AI for a reply draft to the referenced
// email. The draft is logged; delivery is the sending agent's concern.
func smartReplyHandler(sc *server.ServerContext) router.Handler {
	return func(ctx context.Context, msg authority.AgentMessage) error {
		var payload smartReplyPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("malformed smart_reply payload: %w", err)
		}
		if payload.EmailID == "" {
			return fmt.Errorf("smart_reply payload needs an email_id")
		}
		style := payload.Style
		if style == "" {
			style = "neutral"
		}

		token, err := sc.Registry().Get(msg.UserID, consent.ScopeGmailRead)
		if err != nil {
			return err
		}

		content, err := sc.Client().GenerateContent(ctx, string(token.Value), msg.UserID, "smart_reply", payload.EmailID, style)
		if err != nil {
			return err
		}

		sc.Logger().Info("generated smart reply",
			logging.Agent(msg.ToAgent),
			logging.PeerAgent(msg.FromAgent),
			logging.UserHash(msg.UserID),
			slog.Int("chars", len(content)),
		)
		return nil
	}
}

// acknowledgeHandler logs receipt of a message type that has no direct
// backend action yet.
func acknowledgeHandler(sc *server.ServerContext, msgType router.MessageType) router.Handler {
	return func(_ context.Context, msg authority.AgentMessage) error {
		sc.Logger().Info("processed agent message",
			logging.Agent(msg.ToAgent),
			logging.PeerAgent(msg.FromAgent),
			logging.MessageType(msgType.String()),
			logging.UserHash(msg.UserID),
		)
		return nil
	}
}
