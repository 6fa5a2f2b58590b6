package schedule_tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agentcourier/internal/consent"
	"github.com/teemow/agentcourier/internal/server"
)

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func newScheduleTestContext(t *testing.T, handler http.HandlerFunc) *server.ServerContext {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	if handler != nil {
		mux.HandleFunc("/", handler)
	}
	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)

	sc, err := server.NewServerContext(context.Background(), server.Config{
		BackendURL: backend.URL,
		TokenDir:   t.TempDir(),
		Logger:     slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestFreeSlotsRequiresConsent(t *testing.T) {
	calls := 0
	sc := newScheduleTestContext(t, func(http.ResponseWriter, *http.Request) { calls++ })

	result, err := handleFreeSlots(context.Background(), toolRequest(map[string]interface{}{
		"user_id":  "alice",
		"time_min": "2026-03-02T00:00:00Z",
		"time_max": "2026-03-03T00:00:00Z",
	}), sc)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "calendar.read")
	assert.Equal(t, 0, calls, "consent failure must not reach the backend")
}

func TestFreeSlotsComputesFromBusyPeriods(t *testing.T) {
	sc := newScheduleTestContext(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/calendar/freebusy", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"calendars": map[string]any{
				"primary": map[string]any{
					"busy": []map[string]string{
						{"start": "2026-03-02T10:00:00Z", "end": "2026-03-02T12:00:00Z"},
					},
				},
			},
		})
	})
	sc.Registry().Store("alice", consent.ScopeCalendarRead, consent.Token{Value: []byte("cal-token")})

	result, err := handleFreeSlots(context.Background(), toolRequest(map[string]interface{}{
		"user_id":  "alice",
		"time_min": "2026-03-02T00:00:00Z",
		"time_max": "2026-03-02T23:59:59Z",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	text := resultText(t, result)
	// 09:00-10:00 and 12:00-17:00 remain free around the busy block
	assert.Contains(t, text, "2 free slot(s)")
	assert.Contains(t, text, "09:00")
	assert.Contains(t, text, "12:00")
}

func TestFreeSlotsInvalidWindow(t *testing.T) {
	sc := newScheduleTestContext(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"calendars": map[string]any{}})
	})
	sc.Registry().Store("alice", consent.ScopeCalendarRead, consent.Token{Value: []byte("cal-token")})

	result, err := handleFreeSlots(context.Background(), toolRequest(map[string]interface{}{
		"user_id":  "alice",
		"time_min": "2026-03-05T00:00:00Z",
		"time_max": "2026-03-02T00:00:00Z",
	}), sc)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "time_min must precede time_max")
}

func TestSmartCreateRequiresWriteScope(t *testing.T) {
	sc := newScheduleTestContext(t, nil)
	// Only the read scope is granted
	sc.Registry().Store("alice", consent.ScopeCalendarRead, consent.Token{Value: []byte("cal-token")})

	result, err := handleSmartCreate(context.Background(), toolRequest(map[string]interface{}{
		"user_id": "alice",
		"title":   "Focus block",
	}), sc)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "calendar.write")
}

func TestCreateEventValidatesOrder(t *testing.T) {
	sc := newScheduleTestContext(t, nil)
	sc.Registry().Store("alice", consent.ScopeCalendarWrite, consent.Token{Value: []byte("cal-token")})

	result, err := handleCreateEvent(context.Background(), toolRequest(map[string]interface{}{
		"user_id": "alice",
		"summary": "Standup",
		"start":   "2026-03-02T10:00:00Z",
		"end":     "2026-03-02T09:00:00Z",
	}), sc)
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "start must precede end")
}
