// Package schedule_tools exposes calendar and availability operations as MCP
// tools. The free-slots tool combines the backend's busy periods with the
// local availability engine; the remaining tools proxy the backend's
// scheduling endpoints. Every tool checks the user's consent scopes before
// touching the backend.
package schedule_tools
