package cmd

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/teemow/agentcourier/internal/authflow"
	"github.com/teemow/agentcourier/internal/consent"
)

func newConsentConnectCmd(tokenDir *string) *cobra.Command {
	var (
		userID       string
		scopesRaw    string
		clientID     string
		clientSecret string
		authURL      string
		tokenURL     string
		redirectURL  string
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Grant scopes through the provider's authorization flow",
		Long: `Run the authorization flow for one or more scopes.

Prints the provider's authorization URL, waits for you to complete the
consent screen in a browser, then exchanges the redirect for tokens and
persists a grant per scope. Paste the full redirect URL (or just its
query string) when prompted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scopes := parseCommaSeparatedList(scopesRaw)
			if len(scopes) == 0 {
				return fmt.Errorf("at least one scope is required")
			}
			requested := make([]consent.Scope, 0, len(scopes))
			for _, raw := range scopes {
				scope := consent.Scope(raw)
				if !scope.Known() {
					return fmt.Errorf("unknown scope %q (known: %s)", raw, knownScopeNames())
				}
				requested = append(requested, scope)
			}

			if clientID == "" {
				clientID = os.Getenv("OAUTH_CLIENT_ID")
			}
			if clientSecret == "" {
				clientSecret = os.Getenv("OAUTH_CLIENT_SECRET")
			}
			if clientID == "" {
				return fmt.Errorf("an OAuth client ID is required; set --oauth-client-id or OAUTH_CLIENT_ID")
			}

			registry, err := openConsentRegistry(*tokenDir)
			if err != nil {
				return err
			}

			flow, err := authflow.New(authflow.Config{
				UserID: userID,
				OAuth: &oauth2.Config{
					ClientID:     clientID,
					ClientSecret: clientSecret,
					RedirectURL:  redirectURL,
					Endpoint: oauth2.Endpoint{
						AuthURL:  authURL,
						TokenURL: tokenURL,
					},
				},
				Registry: registry,
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			go func() { _ = flow.Run(ctx) }()

			visitURL, err := flow.Begin(ctx, requested...)
			if err != nil {
				return err
			}

			cmd.Printf("Visit this URL to authorize %s:\n\n  %s\n\n", userID, visitURL)
			cmd.Print("Paste the redirect URL here: ")

			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read redirect: %w", err)
			}

			code, state, err := parseRedirect(strings.TrimSpace(line))
			if err != nil {
				return err
			}

			if err := flow.CompleteRedirect(ctx, code, state); err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			cmd.Printf("Granted %d scope(s) for %s\n", len(requested), userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User granting consent")
	cmd.Flags().StringVar(&scopesRaw, "scopes", "", "Comma-separated scopes to authorize, e.g. gmail.read,calendar.write")
	cmd.Flags().StringVar(&clientID, "oauth-client-id", "", "OAuth client ID. Can also use OAUTH_CLIENT_ID env var.")
	cmd.Flags().StringVar(&clientSecret, "oauth-client-secret", "", "OAuth client secret. Can also use OAUTH_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&authURL, "auth-url", "", "Provider authorization endpoint")
	cmd.Flags().StringVar(&tokenURL, "token-url", "", "Provider token endpoint")
	cmd.Flags().StringVar(&redirectURL, "redirect-url", "urn:ietf:wg:oauth:2.0:oob", "Redirect URL registered with the provider")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("scopes")
	_ = cmd.MarkFlagRequired("auth-url")
	_ = cmd.MarkFlagRequired("token-url")

	return cmd
}

// parseRedirect extracts the code and state parameters from a pasted
// redirect. Accepts a full URL, a bare query string, or "code state".
func parseRedirect(input string) (code, state string, err error) {
	if input == "" {
		return "", "", fmt.Errorf("empty redirect input")
	}

	queryPart := input
	if idx := strings.Index(input, "?"); idx >= 0 {
		queryPart = input[idx+1:]
	}
	if values, parseErr := url.ParseQuery(queryPart); parseErr == nil {
		if c := values.Get("code"); c != "" {
			return c, values.Get("state"), nil
		}
	}

	// Fallback: two whitespace-separated fields
	fields := strings.Fields(input)
	if len(fields) == 2 {
		return fields[0], fields[1], nil
	}
	return "", "", fmt.Errorf("could not find code and state in %q", input)
}
