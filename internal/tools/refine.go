package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
	"github.com/spenceriam/kat-planner-mcp-sub000/internal/workflow"
)

// RefineTool handles the plan_refine MCP tool: it submits answers to the
// planning questions and advances the session to the refining stage.
type RefineTool struct {
	orch *workflow.Orchestrator
}

// NewRefineTool creates a RefineTool with the given orchestrator.
func NewRefineTool(orch *workflow.Orchestrator) *RefineTool {
	return &RefineTool{orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *RefineTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_refine",
		mcp.WithDescription(
			"Submit answers to the planning questions and advance the session "+
				"from questioning to refining. Generates the refined specification "+
				"from the subject and the answers. "+
				"Only valid on a session in the questioning stage — after a "+
				"revision request from plan_review, the session returns to refining "+
				"and the next step is plan_review again, not plan_refine.",
		),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session id returned by plan_start."),
		),
		mcp.WithObject("answers",
			mcp.Required(),
			mcp.Description("Object mapping question keys (goal, users, constraints, stack, scope) "+
				"to answer text. Values may be strings or arrays of strings."),
		),
	)
}

// Handle processes the plan_refine tool call.
func (t *RefineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env := t.orch.Invoke(string(session.StageRefining), req.GetArguments())
	return envelopeResult(env), nil
}
