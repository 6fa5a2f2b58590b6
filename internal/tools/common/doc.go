// Package common provides shared helpers for MCP tool handlers: argument
// extraction, consent failure rendering, and instrumentation wrappers that
// record tool invocation metrics.
package common
