// Package agent_tools exposes cross-agent messaging as MCP tools: sending
// consent-gated messages, processing an agent's queue, and issuing trust
// link delegations. Consent failures are reported as tool errors before any
// network activity.
package agent_tools
