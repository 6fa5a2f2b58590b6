package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the agentcourier application
var rootCmd = &cobra.Command{
	Use:   "agentcourier",
	Short: "Consent-gated message courier between personal data agents",
	Long: `agentcourier routes messages between personal data agents (inbox,
schedule, contacts) on a user's behalf. Every dispatch is checked against
the user's granted consent scopes before any network traffic happens, and
calls to the backend authority are health-gated and retried.

It can run as:
  - An MCP (Model Context Protocol) server for AI assistants (default)
  - A CLI for inspecting and managing stored consent grants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "agentcourier version %s\n" .Version}}`)

	// If no subcommand is provided, start the MCP server by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConsentCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("agentcourier version %s\n", version)
		},
	}
}
