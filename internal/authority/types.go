package authority

import (
	"encoding/json"
	"time"
)

// TimePeriod is a busy range as reported by the free/busy endpoint.
// Start and End are RFC3339 timestamps.
type TimePeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Times parses the period bounds. A malformed timestamp yields a zero time.
func (p TimePeriod) Times() (start, end time.Time) {
	start, _ = time.Parse(time.RFC3339, p.Start)
	end, _ = time.Parse(time.RFC3339, p.End)
	return start, end
}

// freeBusyResponse mirrors {calendars:{primary:{busy:[{start,end}]}}}.
type freeBusyResponse struct {
	Calendars map[string]struct {
		Busy []TimePeriod `json:"busy"`
	} `json:"calendars"`
}

// EventData describes a calendar event to create.
type EventData struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Location    string `json:"location,omitempty"`
}

// Event is the created calendar event as echoed by the backend.
type Event struct {
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Location    string `json:"location,omitempty"`
	HTMLLink    string `json:"htmlLink,omitempty"`
}

// AISuggestion carries the backend AI's confidence in a smart-create result.
type AISuggestion struct {
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// SmartCreateResult is the response of the smart-create endpoint.
type SmartCreateResult struct {
	Message      string        `json:"message"`
	AISuggestion *AISuggestion `json:"ai_suggestion,omitempty"`
}

// TimeSuggestion is the response of the suggest-time endpoint. Exactly one
// of SuggestedTime or Reason is populated: either the backend found a slot
// or it explains why not.
type TimeSuggestion struct {
	SuggestedTime string `json:"suggested_time,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// SchedulingPreferences summarizes the user's observed scheduling habits.
type SchedulingPreferences struct {
	MostCommonHour     int     `json:"most_common_hour"`
	MostCommonDay      string  `json:"most_common_day"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
}

// EmailSummary is one inbox entry as returned by the email listing endpoint.
type EmailSummary struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
	Unread  bool   `json:"unread"`
}

// Pagination carries the cursor state of a paginated listing.
type Pagination struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

// EmailPage is one page of the inbox listing.
type EmailPage struct {
	Emails     []EmailSummary `json:"emails"`
	Pagination Pagination     `json:"pagination"`
}

// EmailInsights is the AI analysis result for a set of emails.
type EmailInsights struct {
	Summary     string   `json:"summary"`
	ActionItems []string `json:"actionItems"`
	KeyTopics   []string `json:"keyTopics"`
	Priority    string   `json:"priority"`
	Sentiment   string   `json:"sentiment"`
}

// AgentMessage is the wire form of a cross-agent message.
type AgentMessage struct {
	FromAgent      string          `json:"from_agent"`
	ToAgent        string          `json:"to_agent"`
	UserID         string          `json:"user_id"`
	MessageType    string          `json:"message_type"`
	Payload        json.RawMessage `json:"payload"`
	TrustLink      string          `json:"trust_link,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// agentSendRequest is the body of POST /agent-communication/send.
type agentSendRequest struct {
	AgentMessage
	RequiredScopes []string `json:"required_scopes"`
}

// agentReceiveResponse is the body of GET /agent-communication/receive.
type agentReceiveResponse struct {
	Messages []AgentMessage `json:"messages"`
}

// Credentials are the consent token values presented to the backend on
// agent-communication calls. Values are opaque; they travel as headers.
type Credentials struct {
	GmailToken    string
	CalendarToken string
}
