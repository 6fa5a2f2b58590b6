package authority

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// FreeBusy fetches the primary calendar's busy periods between timeMin and
// timeMax. The token is the user's calendar-read consent token value.
func (c *Client) FreeBusy(ctx context.Context, token, userID string, timeMin, timeMax time.Time) ([]TimePeriod, error) {
	query := url.Values{
		"token":    {token},
		"user_id":  {userID},
		"time_min": {timeMin.Format(time.RFC3339)},
		"time_max": {timeMax.Format(time.RFC3339)},
	}

	var resp freeBusyResponse
	err := c.execute(ctx, "calendar_freebusy", func(ctx context.Context) error {
		return c.get(ctx, "/calendar/freebusy", query, nil, &resp)
	})
	if err != nil {
		return nil, err
	}

	return resp.Calendars["primary"].Busy, nil
}

// CreateEvent creates a calendar event and returns the backend's echo of it.
func (c *Client) CreateEvent(ctx context.Context, token, userID string, event EventData) (*Event, error) {
	body := map[string]any{
		"token":      token,
		"user_id":    userID,
		"event_data": event,
	}

	var resp struct {
		Event Event `json:"event"`
	}
	err := c.execute(ctx, "calendar_create", func(ctx context.Context) error {
		return c.post(ctx, "/calendar/create", nil, body, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp.Event, nil
}

// SmartCreateEvent asks the backend AI to place an event of the given title
// and duration at the best available time.
func (c *Client) SmartCreateEvent(ctx context.Context, token, userID, title string, durationMinutes int) (*SmartCreateResult, error) {
	query := url.Values{
		"token":            {token},
		"user_id":          {userID},
		"title":            {title},
		"duration_minutes": {strconv.Itoa(durationMinutes)},
	}

	var resp SmartCreateResult
	err := c.execute(ctx, "calendar_smart_create", func(ctx context.Context) error {
		return c.post(ctx, "/calendar/smart-create", query, nil, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SuggestTime asks the backend for the next good meeting time.
func (c *Client) SuggestTime(ctx context.Context, token, userID string) (*TimeSuggestion, error) {
	query := url.Values{
		"token":   {token},
		"user_id": {userID},
	}

	var resp TimeSuggestion
	err := c.execute(ctx, "calendar_suggest_time", func(ctx context.Context) error {
		return c.get(ctx, "/calendar/suggest-time", query, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Preferences fetches the user's observed scheduling preferences.
func (c *Client) Preferences(ctx context.Context, token, userID string) (*SchedulingPreferences, error) {
	query := url.Values{
		"token":   {token},
		"user_id": {userID},
	}

	var resp SchedulingPreferences
	err := c.execute(ctx, "calendar_preferences", func(ctx context.Context) error {
		return c.get(ctx, "/calendar/preferences", query, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
