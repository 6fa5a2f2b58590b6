package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/agentcourier/internal/consent"
	"github.com/teemow/agentcourier/internal/tokenstore"
)

func newConsentCmd() *cobra.Command {
	var tokenDir string

	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Inspect and manage stored consent grants",
		Long: `Inspect and manage the consent scopes a user has granted.

Grants are persisted in the token directory and picked up by the MCP
server on its next start. Revoking a scope here takes effect the next
time the server loads the store.`,
	}

	cmd.PersistentFlags().StringVar(&tokenDir, "token-dir", "", "Directory for persisted consent tokens. Can also use AGENTCOURIER_TOKEN_DIR env var. Default: ~/.cache/agentcourier/consent")

	cmd.AddCommand(newConsentListCmd(&tokenDir))
	cmd.AddCommand(newConsentGrantCmd(&tokenDir))
	cmd.AddCommand(newConsentRevokeCmd(&tokenDir))
	cmd.AddCommand(newConsentConnectCmd(&tokenDir))

	return cmd
}

// openConsentRegistry loads the persisted grants into a fresh registry and
// mirrors further changes back to disk.
func openConsentRegistry(tokenDir string) (*consent.Registry, error) {
	if tokenDir == "" {
		tokenDir = os.Getenv("AGENTCOURIER_TOKEN_DIR")
	}
	if tokenDir == "" {
		tokenDir = tokenstore.DefaultDir()
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	registry := consent.NewRegistry(logger)
	store, err := tokenstore.New(tokenDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	if err := store.Load(registry); err != nil {
		return nil, fmt.Errorf("failed to load persisted consent tokens: %w", err)
	}
	registry.OnChange(store.Listener(registry))

	return registry, nil
}

func newConsentListCmd(tokenDir *string) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the scopes a user has granted",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := openConsentRegistry(*tokenDir)
			if err != nil {
				return err
			}

			scopes := registry.Scopes(userID)
			if len(scopes) == 0 {
				cmd.Printf("No consent grants stored for %s\n", userID)
				return nil
			}

			for _, scope := range scopes {
				token, err := registry.Get(userID, scope)
				if err != nil {
					continue
				}
				expiry := "never expires"
				if !token.ExpiresAt.IsZero() {
					expiry = "expires " + token.ExpiresAt.Format(time.RFC3339)
				}
				cmd.Printf("%-16s %s\n", scope, expiry)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User whose grants to list")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newConsentGrantCmd(tokenDir *string) *cobra.Command {
	var (
		userID    string
		scopesRaw string
		value     string
		expires   string
	)

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Record consent grants for a user",
		Long: `Record one or more consent grants for a user.

The token value is the opaque credential evidencing the grant; it is
stored as-is and never inspected. Use this to seed grants completed
out of band, e.g. through a separate authorization flow.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scopes := parseCommaSeparatedList(scopesRaw)
			if len(scopes) == 0 {
				return fmt.Errorf("at least one scope is required")
			}
			for _, raw := range scopes {
				if !consent.Scope(raw).Known() {
					return fmt.Errorf("unknown scope %q (known: %s)", raw, knownScopeNames())
				}
			}

			var expiresAt time.Time
			if expires != "" {
				var err error
				expiresAt, err = time.Parse(time.RFC3339, expires)
				if err != nil {
					return fmt.Errorf("invalid expiry %q: %w", expires, err)
				}
			}

			registry, err := openConsentRegistry(*tokenDir)
			if err != nil {
				return err
			}

			for _, raw := range scopes {
				registry.Store(userID, consent.Scope(raw), consent.Token{
					Value:     []byte(value),
					ExpiresAt: expiresAt,
				})
				cmd.Printf("Granted %s for %s\n", raw, userID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User granting consent")
	cmd.Flags().StringVar(&scopesRaw, "scopes", "", "Comma-separated scopes to grant, e.g. gmail.read,calendar.write")
	cmd.Flags().StringVar(&value, "value", "", "Opaque token value evidencing the grant")
	cmd.Flags().StringVar(&expires, "expires", "", "Grant expiry as RFC3339 timestamp. Empty means the grant does not expire.")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("scopes")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func newConsentRevokeCmd(tokenDir *string) *cobra.Command {
	var (
		userID   string
		scopeRaw string
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a user's consent grants",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && scopeRaw == "" {
				return fmt.Errorf("either --scope or --all is required")
			}

			registry, err := openConsentRegistry(*tokenDir)
			if err != nil {
				return err
			}

			if all {
				registry.RevokeAll(userID)
				cmd.Printf("Revoked all grants for %s\n", userID)
				return nil
			}

			scope := consent.Scope(scopeRaw)
			if !scope.Known() {
				return fmt.Errorf("unknown scope %q (known: %s)", scopeRaw, knownScopeNames())
			}
			registry.Revoke(userID, scope)
			cmd.Printf("Revoked %s for %s\n", scopeRaw, userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User whose grant to revoke")
	cmd.Flags().StringVar(&scopeRaw, "scope", "", "Scope to revoke, e.g. gmail.read")
	cmd.Flags().BoolVar(&all, "all", false, "Revoke every grant the user holds")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func knownScopeNames() string {
	names := make([]string, 0, len(consent.AllScopes))
	for _, scope := range consent.AllScopes {
		names = append(names, scope.String())
	}
	return strings.Join(names, ", ")
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
