package authflow

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/agentcourier/internal/consent"
)

func newTestFlow(t *testing.T) (*Flow, *consent.Registry) {
	t.Helper()

	registry := consent.NewRegistry(slog.New(slog.DiscardHandler))
	flow, err := New(Config{
		UserID: "alice",
		OAuth: &oauth2.Config{
			ClientID: "client",
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://auth.example.com/authorize",
				TokenURL: "https://auth.example.com/token",
			},
		},
		Registry: registry,
		Logger:   slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)

	flow.exchange = func(_ context.Context, code string) (*oauth2.Token, error) {
		if code != "good-code" {
			return nil, errors.New("invalid code")
		}
		return &oauth2.Token{
			AccessToken: "access-token",
			Expiry:      time.Now().Add(time.Hour),
		}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = flow.Run(ctx) }()

	return flow, registry
}

// stateParam pulls the CSRF state out of the authorization URL.
func stateParam(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestFlowStartsUnauthenticated(t *testing.T) {
	flow, _ := newTestFlow(t)
	assert.Equal(t, StateUnauthenticated, flow.State())
}

func TestBeginMovesToAwaitingRedirect(t *testing.T) {
	flow, _ := newTestFlow(t)
	ctx := context.Background()

	authURL, err := flow.Begin(ctx, consent.ScopeGmailRead, consent.ScopeCalendarWrite)
	require.NoError(t, err)

	assert.Equal(t, StateAwaitingRedirect, flow.State())
	assert.Contains(t, authURL, "https://auth.example.com/authorize")
	assert.NotEmpty(t, stateParam(t, authURL))
}

func TestBeginRejectsUnknownScope(t *testing.T) {
	flow, _ := newTestFlow(t)

	_, err := flow.Begin(context.Background(), consent.Scope("filesystem.write"))
	assert.ErrorIs(t, err, ErrUnknownScope)
	assert.Equal(t, StateUnauthenticated, flow.State())
}

func TestBeginRejectsEmptyScopes(t *testing.T) {
	flow, _ := newTestFlow(t)

	_, err := flow.Begin(context.Background())
	assert.Error(t, err)
}

func TestBeginWhilePendingFails(t *testing.T) {
	flow, _ := newTestFlow(t)
	ctx := context.Background()

	_, err := flow.Begin(ctx, consent.ScopeGmailRead)
	require.NoError(t, err)

	_, err = flow.Begin(ctx, consent.ScopeCalendarRead)
	assert.ErrorIs(t, err, ErrRedirectPending)
}

func TestCompleteRedirectGrantsScopes(t *testing.T) {
	flow, registry := newTestFlow(t)
	ctx := context.Background()

	authURL, err := flow.Begin(ctx, consent.ScopeGmailRead, consent.ScopeCalendarWrite)
	require.NoError(t, err)

	require.NoError(t, flow.CompleteRedirect(ctx, "good-code", stateParam(t, authURL)))
	assert.Equal(t, StateAuthenticated, flow.State())

	assert.True(t, registry.Has("alice", consent.ScopeGmailRead, consent.ScopeCalendarWrite))

	token, err := registry.Get("alice", consent.ScopeGmailRead)
	require.NoError(t, err)
	assert.Equal(t, []byte("access-token"), token.Value)
	assert.False(t, token.ExpiresAt.IsZero())
}

func TestCompleteRedirectWithoutBegin(t *testing.T) {
	flow, _ := newTestFlow(t)

	err := flow.CompleteRedirect(context.Background(), "good-code", "whatever")
	assert.ErrorIs(t, err, ErrNoPendingRedirect)
}

func TestCompleteRedirectStateMismatch(t *testing.T) {
	flow, registry := newTestFlow(t)
	ctx := context.Background()

	_, err := flow.Begin(ctx, consent.ScopeGmailRead)
	require.NoError(t, err)

	err = flow.CompleteRedirect(ctx, "good-code", "forged-state")
	assert.ErrorIs(t, err, ErrStateMismatch)

	// The pending flow survives a forged redirect
	assert.Equal(t, StateAwaitingRedirect, flow.State())
	assert.False(t, registry.Has("alice", consent.ScopeGmailRead))
}

func TestExchangeFailureKeepsRedirectPending(t *testing.T) {
	flow, registry := newTestFlow(t)
	ctx := context.Background()

	authURL, err := flow.Begin(ctx, consent.ScopeGmailRead)
	require.NoError(t, err)
	state := stateParam(t, authURL)

	err = flow.CompleteRedirect(ctx, "bad-code", state)
	require.Error(t, err)
	assert.Equal(t, StateAwaitingRedirect, flow.State())
	assert.False(t, registry.Has("alice", consent.ScopeGmailRead))

	// A retry with a valid code still succeeds
	require.NoError(t, flow.CompleteRedirect(ctx, "good-code", state))
	assert.Equal(t, StateAuthenticated, flow.State())
	assert.True(t, registry.Has("alice", consent.ScopeGmailRead))
}

func TestCancelAbandonsPendingRedirect(t *testing.T) {
	flow, _ := newTestFlow(t)
	ctx := context.Background()

	authURL, err := flow.Begin(ctx, consent.ScopeGmailRead)
	require.NoError(t, err)
	state := stateParam(t, authURL)

	require.NoError(t, flow.Cancel(ctx))
	assert.Equal(t, StateUnauthenticated, flow.State())

	// The abandoned redirect can no longer complete
	err = flow.CompleteRedirect(ctx, "good-code", state)
	assert.ErrorIs(t, err, ErrNoPendingRedirect)
}

func TestStateParameterChangesPerFlow(t *testing.T) {
	flow, _ := newTestFlow(t)
	ctx := context.Background()

	first, err := flow.Begin(ctx, consent.ScopeGmailRead)
	require.NoError(t, err)
	require.NoError(t, flow.Cancel(ctx))

	second, err := flow.Begin(ctx, consent.ScopeGmailRead)
	require.NoError(t, err)

	assert.NotEqual(t, stateParam(t, first), stateParam(t, second))
}

func TestNewValidation(t *testing.T) {
	registry := consent.NewRegistry(nil)
	oauth := &oauth2.Config{}

	_, err := New(Config{OAuth: oauth, Registry: registry})
	assert.Error(t, err)

	_, err = New(Config{UserID: "alice", Registry: registry})
	assert.Error(t, err)

	_, err = New(Config{UserID: "alice", OAuth: oauth})
	assert.Error(t, err)
}
