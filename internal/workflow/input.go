package workflow

import (
	"fmt"
	"strings"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
)

// --- Typed per-stage inputs ---
//
// Inbound payloads are decoded into one of these before any business logic
// runs. The decoders only check shape (presence, types); semantic checks
// such as token matching stay in the handlers.

// StartInput is the payload for the entry stage. It is the only input
// without a session id.
type StartInput struct {
	Subject string
}

// RefineInput carries the caller's answers to the planning questions.
type RefineInput struct {
	SessionID string
	Answers   map[string]string
}

// ReviewInput requests the review document, or a revision of it.
type ReviewInput struct {
	SessionID       string
	RevisionRequest string
}

// ApproveInput carries the approval token for the generated document.
type ApproveInput struct {
	SessionID     string
	ApprovalToken string
}

// ImplementInput requests the terminal development handoff.
type ImplementInput struct {
	SessionID string
}

// stringField extracts a trimmed string value from a raw payload.
func stringField(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// answersField extracts the answers map. Values may be strings or string
// arrays (arrays are joined with ", ").
func answersField(payload map[string]any) (map[string]string, error) {
	v, ok := payload["answers"]
	if !ok || v == nil {
		return nil, nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("'answers' must be an object mapping question keys to answers")
	}

	answers := make(map[string]string, len(raw))
	for key, val := range raw {
		switch t := val.(type) {
		case string:
			answers[key] = strings.TrimSpace(t)
		case []any:
			parts := make([]string, 0, len(t))
			for _, item := range t {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("'answers' entry %q: array values must be strings", key)
				}
				parts = append(parts, strings.TrimSpace(s))
			}
			answers[key] = strings.Join(parts, ", ")
		default:
			return nil, fmt.Errorf("'answers' entry %q: value must be a string or array of strings", key)
		}
	}
	return answers, nil
}

func decodeStart(payload map[string]any) (StartInput, *Error) {
	in := StartInput{Subject: stringField(payload, "subject")}
	if in.Subject == "" {
		return in, missingInputError(
			"'subject' is required — describe the idea to plan",
			session.StageQuestioning, "")
	}
	return in, nil
}

func decodeRefine(payload map[string]any) (RefineInput, *Error) {
	in := RefineInput{SessionID: stringField(payload, "sessionId")}
	if in.SessionID == "" {
		return in, missingInputError(
			"'sessionId' is required — use the id returned by plan_start",
			session.StageRefining, "")
	}

	answers, err := answersField(payload)
	if err != nil {
		return in, missingInputError(err.Error(), session.StageRefining, in.SessionID)
	}
	if len(answers) == 0 {
		return in, missingInputError(
			"'answers' is required — provide at least one answer to the planning questions",
			session.StageRefining, in.SessionID)
	}
	in.Answers = answers
	return in, nil
}

func decodeReview(payload map[string]any) (ReviewInput, *Error) {
	in := ReviewInput{
		SessionID:       stringField(payload, "sessionId"),
		RevisionRequest: stringField(payload, "revisionRequest"),
	}
	if in.SessionID == "" {
		return in, missingInputError(
			"'sessionId' is required — use the id returned by plan_start",
			session.StageDocumentReview, "")
	}
	return in, nil
}

func decodeApprove(payload map[string]any) (ApproveInput, *Error) {
	in := ApproveInput{
		SessionID:     stringField(payload, "sessionId"),
		ApprovalToken: stringField(payload, "approvalToken"),
	}
	if in.SessionID == "" {
		return in, missingInputError(
			"'sessionId' is required — use the id returned by plan_start",
			session.StageFinalApproval, "")
	}
	if in.ApprovalToken == "" {
		return in, missingInputError(
			"'approvalToken' is required — send one of the accepted tokens, e.g. \"yes\"",
			session.StageFinalApproval, in.SessionID)
	}
	return in, nil
}

func decodeImplement(payload map[string]any) (ImplementInput, *Error) {
	in := ImplementInput{SessionID: stringField(payload, "sessionId")}
	if in.SessionID == "" {
		return in, missingInputError(
			"'sessionId' is required — use the id returned by plan_start",
			session.StageDevelopment, "")
	}
	return in, nil
}
