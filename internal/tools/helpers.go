// Package tools implements the MCP tool handlers for the planning workflow.
//
// Each tool is a thin wrapper: it declares its schema, pulls the raw
// arguments, and hands them to the workflow orchestrator's Invoke boundary.
// All business logic and validation lives behind that boundary.
//
// Design principles:
// - SRP: each file = one tool
// - DIP: tools depend on the orchestrator and store they are constructed
//   with, never on ambient state
package tools

import (
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/workflow"
)

// envelopeResult converts a workflow envelope into an MCP tool result.
// The envelope's markdown content leads; the machine-readable snapshot is
// appended as a fenced JSON block so the calling agent can parse stage,
// session id, and cached artifacts without scraping prose.
func envelopeResult(env workflow.Envelope) *mcp.CallToolResult {
	text := renderEnvelope(env)
	if env.Error {
		return mcp.NewToolResultError(text)
	}
	return mcp.NewToolResultText(text)
}

func renderEnvelope(env workflow.Envelope) string {
	var sb strings.Builder
	sb.WriteString(env.Content)

	if env.StructuredContent != nil {
		if data, err := json.MarshalIndent(env.StructuredContent, "", "  "); err == nil {
			sb.WriteString("\n\n```json\n")
			sb.Write(data)
			sb.WriteString("\n```\n")
		}
	}
	if env.IsComplete {
		sb.WriteString("\n✅ **Workflow complete.**\n")
	}
	return sb.String()
}
