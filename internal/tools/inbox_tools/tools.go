package inbox_tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agentcourier/internal/consent"
	"github.com/teemow/agentcourier/internal/server"
	"github.com/teemow/agentcourier/internal/tools/common"
)

// RegisterInboxTools registers the email listing and AI analysis tools with
// the MCP server.
func RegisterInboxTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listTool := mcp.NewTool("inbox_list_emails",
		mcp.WithDescription("List the user's inbox emails, paginated"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User whose inbox to list"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum emails per page (default: 20)"),
		),
		mcp.WithString("page_token",
			mcp.Description("Page token from a previous listing, for the next page"),
		),
	)
	s.AddTool(listTool, common.InstrumentedToolHandler("inbox_list_emails", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListEmails(ctx, request, sc)
	}))

	analyzeTool := mcp.NewTool("inbox_analyze",
		mcp.WithDescription("Run AI analysis over a set of emails: summary, action items, topics, priority, sentiment"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User whose emails to analyze"),
		),
		mcp.WithString("email_ids",
			mcp.Required(),
			mcp.Description("Comma-separated email IDs to analyze"),
		),
		mcp.WithString("analysis_type",
			mcp.Description("Analysis flavor, e.g. 'summary' or 'priority' (default: 'summary')"),
		),
	)
	s.AddTool(analyzeTool, common.InstrumentedToolHandler("inbox_analyze", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleAnalyze(ctx, request, sc)
	}))

	generateTool := mcp.NewTool("inbox_generate",
		mcp.WithDescription("Generate message content with the backend AI, e.g. a smart reply for an email"),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User to generate content for"),
		),
		mcp.WithString("email_id",
			mcp.Required(),
			mcp.Description("Email to generate a reply for"),
		),
		mcp.WithString("style",
			mcp.Description("Writing style, e.g. 'formal' or 'casual' (default: 'neutral')"),
		),
	)
	s.AddTool(generateTool, common.InstrumentedToolHandler("inbox_generate", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGenerate(ctx, request, sc)
	}))

	return nil
}

// gmailReadToken checks consent for gmail.read plus any extra scopes and
// returns the gmail token value used on inbox endpoints.
func gmailReadToken(sc *server.ServerContext, userID string, extra ...consent.Scope) (string, string) {
	scopes := append([]consent.Scope{consent.ScopeGmailRead}, extra...)
	if hint := common.RequireScopes(sc.Registry(), userID, scopes...); hint != "" {
		return "", hint
	}
	token, err := sc.Registry().Get(userID, consent.ScopeGmailRead)
	if err != nil {
		return "", common.ConsentErrorText(err)
	}
	return string(token.Value), ""
}

func handleListEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	userID, ok := common.StringArg(args, "user_id")
	if !ok {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	maxResults := common.IntArg(args, "max_results", 20)
	pageToken, _ := common.StringArg(args, "page_token")

	token, hint := gmailReadToken(sc, userID)
	if hint != "" {
		return mcp.NewToolResultError(hint), nil
	}

	page, err := sc.Client().ListEmails(ctx, token, userID, maxResults, pageToken)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list emails: %v", err)), nil
	}

	if len(page.Emails) == 0 {
		return mcp.NewToolResultText("No emails found"), nil
	}

	result := fmt.Sprintf("Found %d email(s):\n\n", len(page.Emails))
	for i, email := range page.Emails {
		marker := ""
		if email.Unread {
			marker = " [unread]"
		}
		result += fmt.Sprintf("%d. %s%s\n   From: %s (%s)\n   ID: %s\n   %s\n\n",
			i+1, email.Subject, marker, email.From, email.Date, email.ID, email.Snippet)
	}
	if page.Pagination.HasMore {
		result += fmt.Sprintf("More emails available; pass page_token=%q for the next page.\n", page.Pagination.NextPageToken)
	}

	return mcp.NewToolResultText(result), nil
}

func handleAnalyze(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	userID, ok := common.StringArg(args, "user_id")
	if !ok {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	idsRaw, ok := common.StringArg(args, "email_ids")
	if !ok {
		return mcp.NewToolResultError("email_ids is required"), nil
	}
	analysisType, ok := common.StringArg(args, "analysis_type")
	if !ok {
		analysisType = "summary"
	}

	emailIDs := strings.Split(idsRaw, ",")
	for i := range emailIDs {
		emailIDs[i] = strings.TrimSpace(emailIDs[i])
	}

	// Analysis reads mail and invokes the AI capability
	token, hint := gmailReadToken(sc, userID, consent.ScopeAIAnalyze)
	if hint != "" {
		return mcp.NewToolResultError(hint), nil
	}

	insights, err := sc.Client().AnalyzeEmails(ctx, token, userID, emailIDs, analysisType)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to analyze emails: %v", err)), nil
	}

	result := fmt.Sprintf("Analysis of %d email(s):\n\nSummary: %s\nPriority: %s\nSentiment: %s\n",
		len(emailIDs), insights.Summary, insights.Priority, insights.Sentiment)
	if len(insights.ActionItems) > 0 {
		result += "\nAction items:\n"
		for _, item := range insights.ActionItems {
			result += fmt.Sprintf("- %s\n", item)
		}
	}
	if len(insights.KeyTopics) > 0 {
		result += fmt.Sprintf("\nKey topics: %s\n", strings.Join(insights.KeyTopics, ", "))
	}

	return mcp.NewToolResultText(result), nil
}

func handleGenerate(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	userID, ok := common.StringArg(args, "user_id")
	if !ok {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	emailID, ok := common.StringArg(args, "email_id")
	if !ok {
		return mcp.NewToolResultError("email_id is required"), nil
	}
	style, ok := common.StringArg(args, "style")
	if !ok {
		style = "neutral"
	}

	token, hint := gmailReadToken(sc, userID, consent.ScopeAIGenerate)
	if hint != "" {
		return mcp.NewToolResultError(hint), nil
	}

	content, err := sc.Client().GenerateContent(ctx, token, userID, "smart_reply", emailID, style)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate content: %v", err)), nil
	}

	return mcp.NewToolResultText(content), nil
}
