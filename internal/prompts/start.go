// Package prompts implements MCP prompt handlers for the planning workflow.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the planner-start MCP prompt.
// It guides the AI through the full five-stage planning workflow.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("planner-start",
		mcp.WithPromptDescription(
			"Start a planning session for an idea. "+
				"Walks the workflow from open questions to a reviewed, "+
				"approved plan ready for implementation.",
		),
		mcp.WithArgument("subject",
			mcp.ArgumentDescription("The idea to plan, e.g. 'build a CLI tool'"),
		),
	)
}

// Handle processes the planner-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	subject := "my idea"
	if args := req.Params.Arguments; args != nil {
		if s, ok := args["subject"]; ok && s != "" {
			subject = s
		}
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Plan: %s", subject),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to plan '%s' before any code is written.\n\n"+
						"Please:\n"+
						"1. Call `plan_start` with subject='%s' and show me the planning questions\n"+
						"2. Collect my answers, then call `plan_refine` with the sessionId and my answers\n"+
						"3. Call `plan_review` and present the planning document for my review\n"+
						"4. If I ask for changes, call `plan_review` again with my revisionRequest, "+
						"update the answers via `plan_refine`, and regenerate the document\n"+
						"5. When I say yes, call `plan_approve` with my approval token\n"+
						"6. Call `plan_implement` to close planning, then start implementing against the plan\n\n"+
						"Follow the stage order — the server rejects skipped or repeated stages.",
					subject, subject,
				)),
			},
		},
	}, nil
}
