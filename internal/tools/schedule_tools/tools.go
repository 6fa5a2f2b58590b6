package schedule_tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agentcourier/internal/authority"
	"github.com/teemow/agentcourier/internal/availability"
	"github.com/teemow/agentcourier/internal/consent"
	"github.com/teemow/agentcourier/internal/server"
	"github.com/teemow/agentcourier/internal/tools/common"
)

// RegisterScheduleTools registers the calendar and availability tools with
// the MCP server.
func RegisterScheduleTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	freeSlotsTool := mcp.NewTool("calendar_free_slots",
		mcp.WithDescription("Compute free time slots from the calendar's busy periods within a date window, bounded by working hours"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User whose calendar to check"),
		),
		mcp.WithString("time_min",
			mcp.Required(),
			mcp.Description("Start of the window (RFC3339 format, e.g., '2026-03-02T00:00:00Z')"),
		),
		mcp.WithString("time_max",
			mcp.Required(),
			mcp.Description("End of the window (RFC3339 format)"),
		),
		mcp.WithNumber("work_start_hour",
			mcp.Description("Working hours start (0-23, default: 9)"),
		),
		mcp.WithNumber("work_end_hour",
			mcp.Description("Working hours end (0-23, default: 17)"),
		),
	)
	s.AddTool(freeSlotsTool, common.InstrumentedToolHandler("calendar_free_slots", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleFreeSlots(ctx, request, sc)
	}))

	suggestTimeTool := mcp.NewTool("calendar_suggest_time",
		mcp.WithDescription("Ask the backend for the next good meeting time based on the user's scheduling habits"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User to suggest a time for"),
		),
	)
	s.AddTool(suggestTimeTool, common.InstrumentedToolHandler("calendar_suggest_time", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSuggestTime(ctx, request, sc)
	}))

	preferencesTool := mcp.NewTool("calendar_preferences",
		mcp.WithDescription("Show the user's observed scheduling preferences (most common hour, day, average duration)"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User whose preferences to fetch"),
		),
	)
	s.AddTool(preferencesTool, common.InstrumentedToolHandler("calendar_preferences", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handlePreferences(ctx, request, sc)
	}))

	smartCreateTool := mcp.NewTool("calendar_smart_create",
		mcp.WithDescription("Create a calendar event at the best available time, placed by the backend AI"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User to create the event for"),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithNumber("duration_minutes",
			mcp.Description("Event duration in minutes (default: 30)"),
		),
	)
	s.AddTool(smartCreateTool, common.InstrumentedToolHandler("calendar_smart_create", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSmartCreate(ctx, request, sc)
	}))

	createEventTool := mcp.NewTool("calendar_create_event",
		mcp.WithDescription("Create a calendar event at an explicit time"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User to create the event for"),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Event start (RFC3339 format)"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("Event end (RFC3339 format)"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
	)
	s.AddTool(createEventTool, common.InstrumentedToolHandler("calendar_create_event", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCreateEvent(ctx, request, sc)
	}))

	return nil
}

// calendarReadToken checks consent and returns the calendar-read token value.
func calendarReadToken(sc *server.ServerContext, userID string) (string, string) {
	if hint := common.RequireScopes(sc.Registry(), userID, consent.ScopeCalendarRead); hint != "" {
		return "", hint
	}
	token, err := sc.Registry().Get(userID, consent.ScopeCalendarRead)
	if err != nil {
		return "", common.ConsentErrorText(err)
	}
	return string(token.Value), ""
}

func calendarWriteToken(sc *server.ServerContext, userID string) (string, string) {
	if hint := common.RequireScopes(sc.Registry(), userID, consent.ScopeCalendarWrite); hint != "" {
		return "", hint
	}
	token, err := sc.Registry().Get(userID, consent.ScopeCalendarWrite)
	if err != nil {
		return "", common.ConsentErrorText(err)
	}
	return string(token.Value), ""
}

func handleFreeSlots(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	userID, ok := common.StringArg(args, "user_id")
	if !ok {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	timeMin, err := common.TimeArg(args, "time_min")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	timeMax, err := common.TimeArg(args, "time_max")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	hours := availability.DefaultWorkingHours()
	hours.StartHour = common.IntArg(args, "work_start_hour", hours.StartHour)
	hours.EndHour = common.IntArg(args, "work_end_hour", hours.EndHour)

	token, hint := calendarReadToken(sc, userID)
	if hint != "" {
		return mcp.NewToolResultError(hint), nil
	}

	periods, err := sc.Client().FreeBusy(ctx, token, userID, timeMin, timeMax)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch busy periods: %v", err)), nil
	}

	busy := make([]availability.BusyInterval, 0, len(periods))
	for _, period := range periods {
		start, end := period.Times()
		busy = append(busy, availability.BusyInterval{Start: start, End: end})
	}

	schedule := availability.New(availability.Window{Start: timeMin, End: timeMax}, busy, hours)
	if schedule.Invalid() {
		return mcp.NewToolResultError("time_min must precede time_max"), nil
	}

	slots := schedule.FreeSlots()
	if len(slots) == 0 {
		return mcp.NewToolResultText("No free slots in the requested window"), nil
	}

	result := fmt.Sprintf("Found %d free slot(s) between %s and %s:\n\n",
		len(slots),
		timeMin.Format("2006-01-02"),
		timeMax.Format("2006-01-02"))
	for i, slot := range slots {
		result += fmt.Sprintf("%d. %s to %s (%s)\n",
			i+1,
			slot.Start.Format("Mon, Jan 2 at 15:04"),
			slot.End.Format("15:04"),
			slot.Duration())
	}

	return mcp.NewToolResultText(result), nil
}

func handleSuggestTime(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	userID, ok := common.StringArg(args, "user_id")
	if !ok {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	token, hint := calendarReadToken(sc, userID)
	if hint != "" {
		return mcp.NewToolResultError(hint), nil
	}

	suggestion, err := sc.Client().SuggestTime(ctx, token, userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get time suggestion: %v", err)), nil
	}

	if suggestion.SuggestedTime == "" {
		return mcp.NewToolResultText(fmt.Sprintf("No suggestion available: %s", suggestion.Reason)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Suggested time: %s", suggestion.SuggestedTime)), nil
}

func handlePreferences(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	userID, ok := common.StringArg(args, "user_id")
	if !ok {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	token, hint := calendarReadToken(sc, userID)
	if hint != "" {
		return mcp.NewToolResultError(hint), nil
	}

	prefs, err := sc.Client().Preferences(ctx, token, userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch preferences: %v", err)), nil
	}

	result := fmt.Sprintf("Scheduling preferences:\n- Most common hour: %02d:00\n- Most common day: %s\n- Average duration: %.0f minutes\n",
		prefs.MostCommonHour, prefs.MostCommonDay, prefs.AvgDurationMinutes)
	return mcp.NewToolResultText(result), nil
}

func handleSmartCreate(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	userID, ok := common.StringArg(args, "user_id")
	if !ok {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	title, ok := common.StringArg(args, "title")
	if !ok {
		return mcp.NewToolResultError("title is required"), nil
	}
	duration := common.IntArg(args, "duration_minutes", 30)

	token, hint := calendarWriteToken(sc, userID)
	if hint != "" {
		return mcp.NewToolResultError(hint), nil
	}

	created, err := sc.Client().SmartCreateEvent(ctx, token, userID, title, duration)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create event: %v", err)), nil
	}

	result := created.Message
	if created.AISuggestion != nil {
		result += fmt.Sprintf("\nConfidence: %.0f%% (%s)", created.AISuggestion.Confidence*100, created.AISuggestion.Reason)
	}
	return mcp.NewToolResultText(result), nil
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	userID, ok := common.StringArg(args, "user_id")
	if !ok {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	summary, ok := common.StringArg(args, "summary")
	if !ok {
		return mcp.NewToolResultError("summary is required"), nil
	}
	start, err := common.TimeArg(args, "start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	end, err := common.TimeArg(args, "end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !start.Before(end) {
		return mcp.NewToolResultError("start must precede end"), nil
	}

	description, _ := common.StringArg(args, "description")
	location, _ := common.StringArg(args, "location")

	token, hint := calendarWriteToken(sc, userID)
	if hint != "" {
		return mcp.NewToolResultError(hint), nil
	}

	event, err := sc.Client().CreateEvent(ctx, token, userID, authorityEventData(summary, description, location, start, end))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create event: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created event %q from %s to %s", event.Summary, event.Start, event.End)), nil
}

func authorityEventData(summary, description, location string, start, end time.Time) authority.EventData {
	return authority.EventData{
		Summary:     summary,
		Description: description,
		Location:    location,
		Start:       start.Format(time.RFC3339),
		End:         end.Format(time.RFC3339),
	}
}
