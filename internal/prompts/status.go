package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the planner-status MCP prompt.
// It instructs the AI to read and present the current planning state.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("planner-status",
		mcp.WithPromptDescription(
			"Check the current status of your planning sessions. "+
				"Shows each session's stage and what to do next.",
		),
	)
}

// Handle processes the planner-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Planning Session Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `plan_status` to check my planning sessions.\n\n" +
						"Then:\n" +
						"1. Show me each live session's stage in a clear, visual format\n" +
						"2. For the session I'm working on, tell me exactly which tool call comes next\n" +
						"3. If a session is in document_review, summarize the document so I can approve or request changes",
				),
			},
		},
	}, nil
}
