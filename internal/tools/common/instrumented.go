package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/agentcourier/internal/instrumentation"
	"github.com/teemow/agentcourier/internal/server"
)

// InstrumentedToolHandler wraps a tool handler with invocation metrics.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(
	toolName string,
	sc *server.ServerContext,
	handler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error),
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		if metrics == nil {
			return handler(ctx, request)
		}

		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		metrics.RecordToolInvocation(ctx, toolName, invocationStatus(result, err), duration)
		return result, err
	}
}

// InstrumentedToolHandlerForAgent is like InstrumentedToolHandler but also
// records which agent identity invoked the tool, for the agent-communication
// tools where per-agent traffic matters.
func InstrumentedToolHandlerForAgent(
	toolName string,
	sc *server.ServerContext,
	handler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error),
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		if metrics == nil {
			return handler(ctx, request)
		}

		agent := ""
		args := request.GetArguments()
		for _, key := range []string{"from_agent", "agent_id"} {
			if value, ok := StringArg(args, key); ok {
				agent = value
				break
			}
		}

		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		metrics.RecordToolInvocationWithAgent(ctx, toolName, invocationStatus(result, err), agent, duration)
		return result, err
	}
}

func invocationStatus(result *mcp.CallToolResult, err error) string {
	if err != nil || (result != nil && result.IsError) {
		return instrumentation.StatusError
	}
	return instrumentation.StatusSuccess
}
