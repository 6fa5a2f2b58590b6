package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/teemow/agentcourier/internal/consent"
	"github.com/teemow/agentcourier/internal/router"
)

// StringArg extracts a non-empty string argument.
func StringArg(args map[string]interface{}, key string) (string, bool) {
	value, ok := args[key].(string)
	return value, ok && value != ""
}

// IntArg extracts an integer argument, falling back to def when absent or
// non-positive. MCP numbers arrive as float64.
func IntArg(args map[string]interface{}, key string, def int) int {
	if value, ok := args[key].(float64); ok && value > 0 {
		return int(value)
	}
	return def
}

// TimeArg extracts and parses an RFC3339 timestamp argument.
func TimeArg(args map[string]interface{}, key string) (time.Time, error) {
	raw, ok := StringArg(args, key)
	if !ok {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format: %v", key, err)
	}
	return t, nil
}

// ConsentErrorText renders a consent failure as user guidance. Other errors
// render as-is.
func ConsentErrorText(err error) string {
	var missing *router.MissingConsentError
	if errors.As(err, &missing) {
		return consentHint(missing.Scope)
	}
	if errors.Is(err, consent.ErrNotFound) {
		return "No consent token found. Reconnect the account to grant access."
	}
	return err.Error()
}

func consentHint(scope consent.Scope) string {
	return fmt.Sprintf("The user has not granted the %q scope. Reconnect the account to grant it; no request was sent.", scope)
}

// RequireScopes checks the registry and returns guidance text when a scope
// is missing. The empty string means all scopes are held.
func RequireScopes(registry *consent.Registry, userID string, scopes ...consent.Scope) string {
	if missing, absent := registry.FirstMissing(userID, scopes...); absent {
		return consentHint(missing)
	}
	return ""
}
