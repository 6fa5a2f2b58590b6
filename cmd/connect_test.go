package cmd

import (
	"testing"
)

func TestParseRedirect(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCode  string
		wantState string
		wantErr   bool
	}{
		{
			name:      "full redirect URL",
			input:     "https://localhost:8085/callback?code=abc123&state=xyz789",
			wantCode:  "abc123",
			wantState: "xyz789",
		},
		{
			name:      "bare query string",
			input:     "code=abc123&state=xyz789",
			wantCode:  "abc123",
			wantState: "xyz789",
		},
		{
			name:      "reversed parameter order",
			input:     "state=xyz789&code=abc123",
			wantCode:  "abc123",
			wantState: "xyz789",
		},
		{
			name:      "code and state separated by space",
			input:     "abc123 xyz789",
			wantCode:  "abc123",
			wantState: "xyz789",
		},
		{
			name:      "code without state",
			input:     "https://localhost:8085/callback?code=abc123",
			wantCode:  "abc123",
			wantState: "",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no recognizable parameters",
			input:   "not-a-redirect",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, state, err := parseRedirect(tt.input)

			if tt.wantErr {
				if err == nil {
					t.Errorf("parseRedirect(%q) expected error, got code=%q state=%q", tt.input, code, state)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRedirect(%q) unexpected error: %v", tt.input, err)
			}
			if code != tt.wantCode {
				t.Errorf("parseRedirect(%q) code = %q, want %q", tt.input, code, tt.wantCode)
			}
			if state != tt.wantState {
				t.Errorf("parseRedirect(%q) state = %q, want %q", tt.input, state, tt.wantState)
			}
		})
	}
}
