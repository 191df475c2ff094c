package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/history"
	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
)

// StatusTool handles the plan_status MCP tool: a read-only view of live
// sessions and, when history is available, a session's transition trail.
// It reads the store directly — no stage advance, no mutation beyond the
// store's own activity touch.
type StatusTool struct {
	store   *session.Store
	history *history.Store
}

// NewStatusTool creates a StatusTool with the given session store.
func NewStatusTool(store *session.Store) *StatusTool {
	return &StatusTool{store: store}
}

// SetHistory injects the optional transition history store.
func (t *StatusTool) SetHistory(h *history.Store) { t.history = h }

// Definition returns the MCP tool definition for registration.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("plan_status",
		mcp.WithDescription(
			"Show all live planning sessions with their current stage, or — "+
				"with a sessionId — one session's details and its recorded "+
				"stage transitions. Read-only; never advances a session.",
		),
		mcp.WithString("sessionId",
			mcp.Description("Optional. Show details for this session only."),
		),
	)
}

// Handle processes the plan_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("sessionId", ""))
	if id != "" {
		return t.sessionStatus(id)
	}
	return t.overview()
}

func (t *StatusTool) overview() (*mcp.CallToolResult, error) {
	sessions := t.store.Sessions()

	var sb strings.Builder
	sb.WriteString("# Planning Sessions\n\n")
	if len(sessions) == 0 {
		sb.WriteString("No live sessions. Start one with `plan_start`.\n")
		return mcp.NewToolResultText(sb.String()), nil
	}

	fmt.Fprintf(&sb, "%d live session(s):\n\n", len(sessions))
	for _, s := range sessions {
		marker := "🔄"
		if session.IsTerminal(s.Stage) {
			marker = "✅"
		}
		fmt.Fprintf(&sb, "  %s `%s` — %s (%s)\n", marker, s.ID, s.Subject, s.Stage)
	}
	sb.WriteString("\nUse `plan_status` with a sessionId for details.\n")
	return mcp.NewToolResultText(sb.String()), nil
}

func (t *StatusTool) sessionStatus(id string) (*mcp.CallToolResult, error) {
	sess, err := t.store.Get(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(
			"session %q not found — it may have expired. List live sessions with `plan_status` or start a new one with `plan_start`.", id)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Session: %s\n\n", sess.ID)
	fmt.Fprintf(&sb, "**Subject:** %s\n", sess.Subject)
	fmt.Fprintf(&sb, "**Stage:** %s\n", sess.Stage)
	fmt.Fprintf(&sb, "**Created:** %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "**Last activity:** %s\n", sess.LastActivityAt.Format("2006-01-02 15:04:05 MST"))

	if len(sess.Answers) > 0 {
		fmt.Fprintf(&sb, "\n**Answers:** %d recorded\n", len(sess.Answers))
	}
	if len(sess.Artifacts) > 0 {
		sb.WriteString("\n**Cached artifacts:**\n")
		for _, key := range sortedArtifactKeys(sess.Artifacts) {
			fmt.Fprintf(&sb, "  - %s (%d bytes)\n", key, len(sess.Artifacts[key]))
		}
	}

	if t.history != nil {
		if trail, err := t.history.BySession(sess.ID); err == nil && len(trail) > 0 {
			sb.WriteString("\n## Transition History\n\n")
			for _, tr := range trail {
				from := tr.FromStage
				if from == "" {
					from = "(created)"
				}
				fmt.Fprintf(&sb, "  - %s → %s at %s\n", from, tr.ToStage, tr.CreatedAt)
			}
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func sortedArtifactKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
