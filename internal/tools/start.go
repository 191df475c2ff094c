package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
	"github.com/spenceriam/kat-planner-mcp-sub000/internal/workflow"
)

// StartTool handles the plan_start MCP tool: the entry point of the
// planning workflow. It is the only tool that takes no session id.
type StartTool struct {
	orch *workflow.Orchestrator
}

// NewStartTool creates a StartTool with the given orchestrator.
func NewStartTool(orch *workflow.Orchestrator) *StartTool {
	return &StartTool{orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *StartTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_start",
		mcp.WithDescription(
			"Start a new planning session for an idea. "+
				"Creates the session in the questioning stage and returns "+
				"the planning questions plus the session id to use in every "+
				"subsequent plan_* call. "+
				"This is the ONLY tool that works without a sessionId.",
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Free-text description of the idea to plan, e.g. \"build a CLI tool\"."),
		),
	)
}

// Handle processes the plan_start tool call.
func (t *StartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env := t.orch.Invoke(string(session.StageQuestioning), req.GetArguments())
	return envelopeResult(env), nil
}
