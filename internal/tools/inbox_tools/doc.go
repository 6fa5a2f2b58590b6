// Package inbox_tools exposes the email listing and AI analysis operations
// as MCP tools. Analysis and generation additionally require the AI consent
// scopes on top of gmail.read.
package inbox_tools
