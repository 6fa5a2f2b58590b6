package agent_tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agentcourier/internal/authority"
	"github.com/teemow/agentcourier/internal/consent"
	"github.com/teemow/agentcourier/internal/server"
)

type handlerBackend struct {
	createHits      atomic.Int32
	smartCreateHits atomic.Int32
	generateHits    atomic.Int32
}

func newHandlerTestContext(t *testing.T) (*server.ServerContext, *handlerBackend) {
	t.Helper()

	hb := &handlerBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/calendar/create", func(w http.ResponseWriter, _ *http.Request) {
		hb.createHits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"event": map[string]string{"summary": "Lunch"}})
	})
	mux.HandleFunc("/calendar/smart-create", func(w http.ResponseWriter, _ *http.Request) {
		hb.smartCreateHits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "scheduled"})
	})
	mux.HandleFunc("/inbox-agent/generate", func(w http.ResponseWriter, _ *http.Request) {
		hb.generateHits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "Sounds good, see you then."})
	})
	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)

	sc, err := server.NewServerContext(context.Background(), server.Config{
		BackendURL: backend.URL,
		TokenDir:   t.TempDir(),
		Logger:     slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc, hb
}

func TestEmailToEventHandlerCreatesEvent(t *testing.T) {
	sc, hb := newHandlerTestContext(t)
	sc.Registry().Store("alice", consent.ScopeCalendarWrite, consent.Token{Value: []byte("cal")})

	h := emailToEventHandler(sc)
	err := h(context.Background(), authority.AgentMessage{
		FromAgent: "inbox_agent",
		ToAgent:   "schedule_agent",
		UserID:    "alice",
		Payload: json.RawMessage(`{
			"email_id": "m-1",
			"summary":  "Lunch with Bob",
			"start":    "2026-03-02T12:00:00Z",
			"end":      "2026-03-02T13:00:00Z"
		}`),
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), hb.createHits.Load())
	assert.Equal(t, int32(0), hb.smartCreateHits.Load())
}

func TestEmailToEventHandlerFallsBackToSmartCreate(t *testing.T) {
	sc, hb := newHandlerTestContext(t)
	sc.Registry().Store("alice", consent.ScopeCalendarWrite, consent.Token{Value: []byte("cal")})

	h := emailToEventHandler(sc)
	err := h(context.Background(), authority.AgentMessage{
		FromAgent: "inbox_agent",
		ToAgent:   "schedule_agent",
		UserID:    "alice",
		Payload:   json.RawMessage(`{"email_id": "m-1", "summary": "Quick sync"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, int32(0), hb.createHits.Load())
	assert.Equal(t, int32(1), hb.smartCreateHits.Load())
}

func TestEmailToEventHandlerWithoutConsent(t *testing.T) {
	sc, hb := newHandlerTestContext(t)

	h := emailToEventHandler(sc)
	err := h(context.Background(), authority.AgentMessage{
		FromAgent: "inbox_agent",
		ToAgent:   "schedule_agent",
		UserID:    "alice",
		Payload:   json.RawMessage(`{"email_id": "m-1", "summary": "Quick sync"}`),
	})

	assert.ErrorIs(t, err, consent.ErrNotFound)
	assert.Equal(t, int32(0), hb.createHits.Load())
	assert.Equal(t, int32(0), hb.smartCreateHits.Load())
}

func TestEmailToEventHandlerRejectsMalformedPayload(t *testing.T) {
	sc, hb := newHandlerTestContext(t)
	sc.Registry().Store("alice", consent.ScopeCalendarWrite, consent.Token{Value: []byte("cal")})

	h := emailToEventHandler(sc)
	err := h(context.Background(), authority.AgentMessage{
		UserID:  "alice",
		Payload: json.RawMessage(`{not json`),
	})

	assert.Error(t, err)
	assert.Equal(t, int32(0), hb.createHits.Load())
}

func TestSmartReplyHandlerGeneratesContent(t *testing.T) {
	sc, hb := newHandlerTestContext(t)
	sc.Registry().Store("alice", consent.ScopeGmailRead, consent.Token{Value: []byte("g")})

	h := smartReplyHandler(sc)
	err := h(context.Background(), authority.AgentMessage{
		FromAgent: "schedule_agent",
		ToAgent:   "inbox_agent",
		UserID:    "alice",
		Payload:   json.RawMessage(`{"email_id": "m-9", "style": "casual"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), hb.generateHits.Load())
}

func TestSmartReplyHandlerNeedsEmailID(t *testing.T) {
	sc, hb := newHandlerTestContext(t)
	sc.Registry().Store("alice", consent.ScopeGmailRead, consent.Token{Value: []byte("g")})

	h := smartReplyHandler(sc)
	err := h(context.Background(), authority.AgentMessage{
		UserID:  "alice",
		Payload: json.RawMessage(`{"style": "casual"}`),
	})

	assert.Error(t, err)
	assert.Equal(t, int32(0), hb.generateHits.Load())
}
