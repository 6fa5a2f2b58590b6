// Package cmd implements the command-line interface for agentcourier.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing the schedule, inbox and agent
//     messaging tools over stdio
//   - consent: Inspect and manage the consent grants persisted on disk
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
