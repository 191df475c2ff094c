package tools

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
	"github.com/spenceriam/kat-planner-mcp-sub000/internal/workflow"
)

// ApproveTool handles the plan_approve MCP tool: it accepts the planning
// document and advances the session to final_approval.
type ApproveTool struct {
	orch *workflow.Orchestrator
}

// NewApproveTool creates an ApproveTool with the given orchestrator.
func NewApproveTool(orch *workflow.Orchestrator) *ApproveTool {
	return &ApproveTool{orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *ApproveTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_approve",
		mcp.WithDescription(
			"Accept the planning document and advance the session from "+
				"document_review to final_approval. The approval token is matched "+
				"by exact equality after trimming and lowercasing — accepted tokens: "+
				strings.Join(workflow.AcceptedTokens(), ", ")+". "+
				"Any other token is rejected and the stage does not change.",
		),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session id returned by plan_start."),
		),
		mcp.WithString("approvalToken",
			mcp.Required(),
			mcp.Description("One of the accepted approval tokens, e.g. \"yes\"."),
		),
	)
}

// Handle processes the plan_approve tool call.
func (t *ApproveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env := t.orch.Invoke(string(session.StageFinalApproval), req.GetArguments())
	return envelopeResult(env), nil
}
