package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
	"github.com/spenceriam/kat-planner-mcp-sub000/internal/workflow"
)

// ImplementTool handles the plan_implement MCP tool: the terminal handoff
// from final_approval to development.
type ImplementTool struct {
	orch *workflow.Orchestrator
}

// NewImplementTool creates an ImplementTool with the given orchestrator.
func NewImplementTool(orch *workflow.Orchestrator) *ImplementTool {
	return &ImplementTool{orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *ImplementTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_implement",
		mcp.WithDescription(
			"Close the planning workflow: advance the session from "+
				"final_approval to development and return the implementation "+
				"go-ahead. development is terminal — any further stage call on "+
				"the session is rejected.",
		),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session id returned by plan_start."),
		),
	)
}

// Handle processes the plan_implement tool call.
func (t *ImplementTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env := t.orch.Invoke(string(session.StageDevelopment), req.GetArguments())
	return envelopeResult(env), nil
}
