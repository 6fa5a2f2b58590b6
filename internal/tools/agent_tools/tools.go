package agent_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agentcourier/internal/consent"
	"github.com/teemow/agentcourier/internal/router"
	"github.com/teemow/agentcourier/internal/server"
	"github.com/teemow/agentcourier/internal/tools/common"
)

// RegisterAgentTools registers the cross-agent messaging tools with the MCP
// server and wires the default message handlers into the router.
func RegisterAgentTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	registerDefaultHandlers(sc)

	sendTool := mcp.NewTool("agent_send_message",
		mcp.WithDescription("Send a consent-gated message from one agent to another. Fails without network activity if the user has not granted every required scope."),
		mcp.WithString("from_agent",
			mcp.Required(),
			mcp.Description("Sending agent identity, e.g. 'inbox_agent'"),
		),
		mcp.WithString("to_agent",
			mcp.Required(),
			mcp.Description("Receiving agent identity, e.g. 'schedule_agent'"),
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User on whose behalf the message is sent"),
		),
		mcp.WithString("message_type",
			mcp.Required(),
			mcp.Description("One of: email_to_event, schedule_conflict, email_reminder, contact_sync, smart_reply"),
		),
		mcp.WithString("payload",
			mcp.Description("JSON payload for the message"),
		),
	)
	s.AddTool(sendTool, common.InstrumentedToolHandlerForAgent("agent_send_message", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSendMessage(ctx, request, sc)
	}))

	processTool := mcp.NewTool("agent_process_messages",
		mcp.WithDescription("Receive and process the messages queued for an agent. Unrecognized message types are skipped."),
		mcp.WithString("agent_id",
			mcp.Required(),
			mcp.Description("Agent whose queue to process"),
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User whose messages to process"),
		),
	)
	s.AddTool(processTool, common.InstrumentedToolHandlerForAgent("agent_process_messages", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleProcessMessages(ctx, request, sc)
	}))

	trustLinkTool := mcp.NewTool("agent_issue_trust_link",
		mcp.WithDescription("Issue a signed trust link letting one agent act under another's granted scope"),
		mcp.WithString("from_agent",
			mcp.Required(),
			mcp.Description("Agent whose grant is delegated"),
		),
		mcp.WithString("to_agent",
			mcp.Required(),
			mcp.Description("Agent receiving the delegation"),
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User signing the delegation"),
		),
		mcp.WithString("scope",
			mcp.Required(),
			mcp.Description("Consent scope to delegate, e.g. 'calendar.write'"),
		),
		mcp.WithNumber("ttl_minutes",
			mcp.Description("Trust link lifetime in minutes (default: 60)"),
		),
	)
	s.AddTool(trustLinkTool, common.InstrumentedToolHandlerForAgent("agent_issue_trust_link", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleIssueTrustLink(ctx, request, sc)
	}))

	return nil
}

func handleSendMessage(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	fromAgent, ok := common.StringArg(args, "from_agent")
	if !ok {
		return mcp.NewToolResultError("from_agent is required"), nil
	}
	toAgent, ok := common.StringArg(args, "to_agent")
	if !ok {
		return mcp.NewToolResultError("to_agent is required"), nil
	}
	userID, ok := common.StringArg(args, "user_id")
	if !ok {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	messageType, ok := common.StringArg(args, "message_type")
	if !ok {
		return mcp.NewToolResultError("message_type is required"), nil
	}

	var payload json.RawMessage
	if raw, ok := common.StringArg(args, "payload"); ok {
		if !json.Valid([]byte(raw)) {
			return mcp.NewToolResultError("payload must be valid JSON"), nil
		}
		payload = json.RawMessage(raw)
	}

	msg := router.Message{
		FromAgent: fromAgent,
		ToAgent:   toAgent,
		UserID:    userID,
		Type:      router.MessageType(messageType),
		Payload:   payload,
	}

	// Attach a trust link when a signer is configured, so the receiving
	// agent can verify the delegation
	if signer := sc.Signer(); signer != nil {
		if scopes, ok := router.RequiredScopes(msg.Type); ok && len(scopes) > 0 {
			link, err := signer.Issue(fromAgent, toAgent, scopes[0], userID, time.Hour)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Failed to issue trust link: %v", err)), nil
			}
			msg.TrustLink = link.Token
		}
	}

	if err := sc.Router().Send(ctx, msg); err != nil {
		return mcp.NewToolResultError(common.ConsentErrorText(err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Message %s sent from %s to %s", messageType, fromAgent, toAgent)), nil
}

func handleProcessMessages(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	agentID, ok := common.StringArg(args, "agent_id")
	if !ok {
		return mcp.NewToolResultError("agent_id is required"), nil
	}
	userID, ok := common.StringArg(args, "user_id")
	if !ok {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	handled, err := sc.Router().Process(ctx, agentID, userID)
	if err != nil {
		return mcp.NewToolResultError(common.ConsentErrorText(err)), nil
	}

	if handled == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages processed for %s", agentID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Processed %d message(s) for %s", handled, agentID)), nil
}

func handleIssueTrustLink(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	signer := sc.Signer()
	if signer == nil {
		return mcp.NewToolResultError("Trust links are not configured; set a trust link secret"), nil
	}

	fromAgent, ok := common.StringArg(args, "from_agent")
	if !ok {
		return mcp.NewToolResultError("from_agent is required"), nil
	}
	toAgent, ok := common.StringArg(args, "to_agent")
	if !ok {
		return mcp.NewToolResultError("to_agent is required"), nil
	}
	userID, ok := common.StringArg(args, "user_id")
	if !ok {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	scopeRaw, ok := common.StringArg(args, "scope")
	if !ok {
		return mcp.NewToolResultError("scope is required"), nil
	}

	scope := consent.Scope(scopeRaw)
	if !scope.Known() {
		return mcp.NewToolResultError(fmt.Sprintf("Unknown scope %q", scopeRaw)), nil
	}

	// Delegation requires the user to actually hold the scope
	if hint := common.RequireScopes(sc.Registry(), userID, scope); hint != "" {
		return mcp.NewToolResultError(hint), nil
	}

	ttl := time.Duration(common.IntArg(args, "ttl_minutes", 60)) * time.Minute
	link, err := signer.Issue(fromAgent, toAgent, scope, userID, ttl)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to issue trust link: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Trust link issued (expires %s):\n%s",
		link.ExpiresAt.Format(time.RFC3339), link.Token)), nil
}
