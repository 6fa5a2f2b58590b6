package authority

import (
	"context"
	"net/url"
	"strconv"
)

// ListEmails fetches one page of the user's inbox. Pass an empty pageToken
// for the first page; subsequent pages use Pagination.NextPageToken.
func (c *Client) ListEmails(ctx context.Context, token, userID string, maxResults int, pageToken string) (*EmailPage, error) {
	query := url.Values{
		"token":   {token},
		"user_id": {userID},
	}
	if maxResults > 0 {
		query.Set("max_results", strconv.Itoa(maxResults))
	}
	if pageToken != "" {
		query.Set("page_token", pageToken)
	}

	var resp EmailPage
	err := c.execute(ctx, "inbox_list_emails", func(ctx context.Context) error {
		return c.get(ctx, "/inbox-agent/emails", query, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// AnalyzeEmails runs the backend AI analysis over the given emails.
// analysisType selects the analysis flavor, e.g. "summary" or "priority".
func (c *Client) AnalyzeEmails(ctx context.Context, token, userID string, emailIDs []string, analysisType string) (*EmailInsights, error) {
	body := map[string]any{
		"token":         token,
		"user_id":       userID,
		"email_ids":     emailIDs,
		"analysis_type": analysisType,
	}

	var resp struct {
		Insights EmailInsights `json:"insights"`
	}
	err := c.execute(ctx, "inbox_analyze", func(ctx context.Context) error {
		return c.post(ctx, "/inbox-agent/analyze", nil, body, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp.Insights, nil
}

// GenerateContent asks the backend AI to generate message content, e.g. a
// smart reply for an email in a given style.
func (c *Client) GenerateContent(ctx context.Context, token, userID, messageType, emailID, style string) (string, error) {
	body := map[string]any{
		"token":        token,
		"user_id":      userID,
		"message_type": messageType,
		"payload": map[string]string{
			"email_id": emailID,
			"style":    style,
		},
	}

	var resp struct {
		Content string `json:"content"`
	}
	err := c.execute(ctx, "inbox_generate", func(ctx context.Context) error {
		return c.post(ctx, "/inbox-agent/generate", nil, body, nil, &resp)
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
