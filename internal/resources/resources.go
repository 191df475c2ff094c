// Package resources implements MCP resource handlers for the planning
// workflow.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (sessions://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
)

// Handler manages planning resource endpoints.
type Handler struct {
	store *session.Store
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store *session.Store) *Handler {
	return &Handler{store: store}
}

// StatusResource returns the MCP resource definition for the session table.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		"sessions://status",
		"Planning Session Status",
		mcp.WithResourceDescription("Live planning sessions with their current stage and activity timestamps"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns a snapshot of all live sessions as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sessions := h.store.Sessions()

	// Artifacts can be large; the resource view keeps sizes, not bodies.
	type view struct {
		ID             string         `json:"id"`
		Stage          string         `json:"stage"`
		Subject        string         `json:"subject"`
		CreatedAt      string         `json:"created_at"`
		LastActivityAt string         `json:"last_activity_at"`
		AnswerCount    int            `json:"answer_count"`
		ArtifactSizes  map[string]int `json:"artifact_sizes,omitempty"`
		IsTerminal     bool           `json:"is_terminal"`
	}

	views := make([]view, 0, len(sessions))
	for _, s := range sessions {
		v := view{
			ID:             s.ID,
			Stage:          string(s.Stage),
			Subject:        s.Subject,
			CreatedAt:      s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			LastActivityAt: s.LastActivityAt.Format("2006-01-02T15:04:05Z07:00"),
			AnswerCount:    len(s.Answers),
			IsTerminal:     session.IsTerminal(s.Stage),
		}
		if len(s.Artifacts) > 0 {
			v.ArtifactSizes = make(map[string]int, len(s.Artifacts))
			for key, content := range s.Artifacts {
				v.ArtifactSizes[key] = len(content)
			}
		}
		views = append(views, v)
	}

	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling session status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
