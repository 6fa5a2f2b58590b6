package authority

import (
	"context"
	"net/http"
	"net/url"
)

// Credential header names for agent-communication calls.
const (
	headerGmailToken    = "X-Gmail-Token"
	headerCalendarToken = "X-Calendar-Token"
)

func (creds Credentials) headers() http.Header {
	h := http.Header{}
	if creds.GmailToken != "" {
		h.Set(headerGmailToken, creds.GmailToken)
	}
	if creds.CalendarToken != "" {
		h.Set(headerCalendarToken, creds.CalendarToken)
	}
	return h
}

// SendAgentMessage submits a cross-agent message for delivery. The required
// scope names accompany the message so the backend can re-check consent on
// its side; creds carry the corresponding token values as headers.
func (c *Client) SendAgentMessage(ctx context.Context, creds Credentials, msg AgentMessage, requiredScopes []string) error {
	body := agentSendRequest{
		AgentMessage:   msg,
		RequiredScopes: requiredScopes,
	}

	return c.execute(ctx, "agent_send", func(ctx context.Context) error {
		return c.post(ctx, "/agent-communication/send", nil, body, creds.headers(), nil)
	})
}

// ReceiveAgentMessages pulls the messages queued for the given agent.
func (c *Client) ReceiveAgentMessages(ctx context.Context, creds Credentials, agentID, userID string) ([]AgentMessage, error) {
	query := url.Values{
		"agent_id": {agentID},
		"user_id":  {userID},
	}

	var resp agentReceiveResponse
	err := c.execute(ctx, "agent_receive", func(ctx context.Context) error {
		return c.get(ctx, "/agent-communication/receive", query, creds.headers(), &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Health performs an immediate health probe, bypassing the TTL cache.
// It is exposed for startup checks and diagnostics.
func (c *Client) Health(ctx context.Context) error {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	err := c.probe(ctx)
	c.healthy = err == nil
	c.lastChecked = c.now()
	return err
}
