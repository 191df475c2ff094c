package workflow

import (
	"fmt"
	"strings"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
)

// --- Response envelope ---
//
// Every orchestrator outcome, success or error, is wrapped in an Envelope
// carrying the payload plus explicit next-step guidance. The guidance is
// advisory metadata for the caller; enforcement stays in the store's
// transition rules.

// Snapshot is the machine-readable session view in an envelope.
type Snapshot struct {
	SessionID  string            `json:"sessionId"`
	Stage      string            `json:"stage"`
	Subject    string            `json:"subject"`
	Answers    map[string]string `json:"answers,omitempty"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
	IsTerminal bool              `json:"isTerminal"`
}

// Envelope is the outer response structure returned by Invoke.
type Envelope struct {
	Content           string    `json:"content"`
	StructuredContent *Snapshot `json:"structuredContent,omitempty"`
	NextAction        string    `json:"nextAction"`
	IsComplete        bool      `json:"isComplete"`
	Error             bool      `json:"error,omitempty"`
	Recovery          *Recovery `json:"recovery,omitempty"`
}

// Result is a successful stage handler outcome.
type Result struct {
	Session *session.Session
	// Artifact is the derived artifact produced or re-read by the handler.
	Artifact string
	// Revised marks a revision loop back to refining.
	Revised bool
}

// canonicalStages is the display order for progress rendering.
var canonicalStages = []session.Stage{
	session.StageQuestioning,
	session.StageRefining,
	session.StageDocumentReview,
	session.StageFinalApproval,
	session.StageDevelopment,
}

// nextActionFor names the next legal call and the fields it requires.
func nextActionFor(sess *session.Session) string {
	switch sess.Stage {
	case session.StageQuestioning:
		return fmt.Sprintf("Call plan_refine with sessionId=%q and an 'answers' object responding to the planning questions.", sess.ID)
	case session.StageRefining:
		return fmt.Sprintf("Call plan_review with sessionId=%q to generate the planning document for review.", sess.ID)
	case session.StageDocumentReview:
		return fmt.Sprintf("Call plan_approve with sessionId=%q and approvalToken=\"yes\" to accept the document, or plan_review with a 'revisionRequest' to send it back.", sess.ID)
	case session.StageFinalApproval:
		return fmt.Sprintf("Call plan_implement with sessionId=%q to close planning and begin implementation.", sess.ID)
	case session.StageDevelopment:
		return "Planning is complete. Implement against the approved plan; start a new session with plan_start for the next idea."
	}
	return "Start a new planning session with plan_start."
}

// snapshot converts a session into its envelope view.
func snapshot(sess *session.Session) *Snapshot {
	return &Snapshot{
		SessionID:  sess.ID,
		Stage:      string(sess.Stage),
		Subject:    sess.Subject,
		Answers:    sess.Answers,
		Artifacts:  sess.Artifacts,
		IsTerminal: session.IsTerminal(sess.Stage),
	}
}

// renderProgress renders the ✅/🔄/⬜ stage list for a session.
func renderProgress(current session.Stage) string {
	var sb strings.Builder
	reached := false
	for _, stage := range canonicalStages {
		marker := "✅"
		if stage == current {
			marker = "🔄"
			if session.IsTerminal(stage) {
				marker = "✅"
			}
			reached = true
		} else if reached {
			marker = "⬜"
		}
		fmt.Fprintf(&sb, "  %s %s\n", marker, stage)
	}
	return sb.String()
}

// successEnvelope wraps a handler result.
func successEnvelope(res *Result) Envelope {
	sess := res.Session
	complete := sess.Stage == session.StageDevelopment

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Stage: %s\n\n", sess.Stage)
	fmt.Fprintf(&sb, "**Session:** `%s`\n**Subject:** %s\n\n", sess.ID, sess.Subject)
	if res.Revised {
		sb.WriteString("Revision accepted — the session moved back to refining.\n\n")
	}
	if res.Artifact != "" {
		sb.WriteString(res.Artifact)
		sb.WriteString("\n")
	}
	sb.WriteString("## Progress\n\n")
	sb.WriteString(renderProgress(sess.Stage))
	sb.WriteString("\n## Next Step\n\n")
	sb.WriteString(nextActionFor(sess))

	return Envelope{
		Content:           sb.String(),
		StructuredContent: snapshot(sess),
		NextAction:        nextActionFor(sess),
		IsComplete:        complete,
	}
}

// errorEnvelope wraps a handler failure. When the failing call resolved a
// session first, its unchanged snapshot rides along so cached artifacts
// stay visible to the caller.
func errorEnvelope(werr *Error) Envelope {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Error: %s\n\n", werr.Category)
	fmt.Fprintf(&sb, "%s\n\n", werr.Message)
	sb.WriteString("## Recovery\n\n")
	fmt.Fprintf(&sb, "%s\n\n", werr.Recovery.SuggestedAction)
	fmt.Fprintf(&sb, "Valid next steps: %s\n\n", strings.Join(werr.Recovery.ValidNextSteps, ", "))
	fmt.Fprintf(&sb, "Example: `%s`\n", werr.Recovery.ExampleCall)

	env := Envelope{
		Content:    sb.String(),
		NextAction: werr.Recovery.SuggestedAction,
		Error:      true,
		Recovery:   &werr.Recovery,
	}
	if werr.Session != nil {
		env.StructuredContent = snapshot(werr.Session)
	}
	return env
}
