package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
	"github.com/spenceriam/kat-planner-mcp-sub000/internal/workflow"
)

// ReviewTool handles the plan_review MCP tool: it generates the planning
// document for review, re-reads it idempotently, or — with a revision
// request — sends the session back to refining.
type ReviewTool struct {
	orch *workflow.Orchestrator
}

// NewReviewTool creates a ReviewTool with the given orchestrator.
func NewReviewTool(orch *workflow.Orchestrator) *ReviewTool {
	return &ReviewTool{orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *ReviewTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_review",
		mcp.WithDescription(
			"Generate the planning document and advance the session from "+
				"refining to document_review. Calling it again on a session "+
				"already in document_review returns the cached document unchanged. "+
				"Pass 'revisionRequest' to send the document back: the session "+
				"returns to refining and the document is regenerated on the next pass. "+
				"A plain re-call never moves the session backward.",
		),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("The session id returned by plan_start."),
		),
		mcp.WithString("revisionRequest",
			mcp.Description("Optional. What to change in the document. "+
				"Only valid on a session in document_review; takes the one legal backward edge to refining."),
		),
	)
}

// Handle processes the plan_review tool call.
func (t *ReviewTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env := t.orch.Invoke(string(session.StageDocumentReview), req.GetArguments())
	return envelopeResult(env), nil
}
