package consent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trustSecret = "test-trust-secret"

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner([]byte(trustSecret))
	require.NoError(t, err)
	return s
}

func TestNewSignerRejectsEmptySecret(t *testing.T) {
	_, err := NewSigner(nil)
	assert.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	s := newTestSigner(t)

	link, err := s.Issue("inbox_agent", "schedule_agent", ScopeCalendarWrite, "user_a", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, link.Token)
	assert.Equal(t, "inbox_agent", link.FromAgent)
	assert.Equal(t, ScopeCalendarWrite, link.Scope)

	verified, err := s.Verify(link.Token, "inbox_agent", "schedule_agent", ScopeCalendarWrite)
	require.NoError(t, err)
	assert.Equal(t, "user_a", verified.SignedByUser)
	assert.Equal(t, ScopeCalendarWrite, verified.Scope)
	assert.WithinDuration(t, link.ExpiresAt, verified.ExpiresAt, time.Second)
}

func TestVerifyExpired(t *testing.T) {
	s := newTestSigner(t)

	link, err := s.Issue("inbox_agent", "schedule_agent", ScopeCalendarWrite, "user_a", -time.Minute)
	require.NoError(t, err)

	_, err = s.Verify(link.Token, "inbox_agent", "schedule_agent", ScopeCalendarWrite)
	assert.ErrorIs(t, err, ErrTrustLinkExpired)
}

func TestVerifyAgentMismatch(t *testing.T) {
	s := newTestSigner(t)

	link, err := s.Issue("inbox_agent", "schedule_agent", ScopeCalendarWrite, "user_a", time.Hour)
	require.NoError(t, err)

	_, err = s.Verify(link.Token, "schedule_agent", "inbox_agent", ScopeCalendarWrite)
	assert.ErrorIs(t, err, ErrAgentMismatch)
}

func TestVerifyScopeMismatch(t *testing.T) {
	s := newTestSigner(t)

	link, err := s.Issue("inbox_agent", "schedule_agent", ScopeCalendarRead, "user_a", time.Hour)
	require.NoError(t, err)

	_, err = s.Verify(link.Token, "inbox_agent", "schedule_agent", ScopeCalendarWrite)
	assert.ErrorIs(t, err, ErrScopeNotDelegated)
}

func TestVerifyWrongSecret(t *testing.T) {
	s := newTestSigner(t)
	other, err := NewSigner([]byte("different-secret"))
	require.NoError(t, err)

	link, err := s.Issue("inbox_agent", "schedule_agent", ScopeCalendarWrite, "user_a", time.Hour)
	require.NoError(t, err)

	_, err = other.Verify(link.Token, "inbox_agent", "schedule_agent", ScopeCalendarWrite)
	assert.ErrorIs(t, err, ErrTrustLinkInvalid)
}

func TestVerifyGarbageToken(t *testing.T) {
	s := newTestSigner(t)
	_, err := s.Verify("not-a-jwt", "a", "b", ScopeGmailRead)
	assert.ErrorIs(t, err, ErrTrustLinkInvalid)
}

func TestIssueRequiresAgents(t *testing.T) {
	s := newTestSigner(t)
	_, err := s.Issue("", "schedule_agent", ScopeGmailRead, "user_a", time.Hour)
	assert.ErrorIs(t, err, ErrTrustLinkInvalid)
}
