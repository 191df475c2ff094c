package workflow

import (
	"fmt"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
)

// --- Error taxonomy ---
//
// Every failure crossing the Invoke boundary is one of these categories,
// carried as a structured *Error — never a panic or a raw error. Each error
// names at least one concrete legal next call, because the caller is an
// autonomous agent with no other channel for discovering correct usage.

// Category classifies a workflow error.
type Category string

const (
	CategoryNotFound          Category = "not_found"
	CategoryInvalidTransition Category = "invalid_transition"
	CategoryMissingInput      Category = "missing_input"
	CategoryCapacityExceeded  Category = "capacity_exceeded"
	CategoryInternal          Category = "internal"
)

// Recovery tells the caller how to get back on track.
type Recovery struct {
	SuggestedAction string   `json:"suggestedAction"`
	ValidNextSteps  []string `json:"validNextSteps"`
	ExampleCall     string   `json:"exampleCall"`
}

// Error is the structured failure result of a stage handler.
type Error struct {
	Category Category
	Message  string
	Recovery Recovery
	// Session is the unchanged session snapshot when one was resolved
	// before the failure, so cached artifacts are still visible.
	Session *session.Session
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// toolForStage maps each stage to the tool call that enters it.
var toolForStage = map[session.Stage]string{
	session.StageQuestioning:    "plan_start",
	session.StageRefining:       "plan_refine",
	session.StageDocumentReview: "plan_review",
	session.StageFinalApproval:  "plan_approve",
	session.StageDevelopment:    "plan_implement",
}

// exampleCallForStage maps each stage to a complete example invocation.
var exampleCallForStage = map[session.Stage]string{
	session.StageQuestioning:    `plan_start {"subject": "build a CLI tool"}`,
	session.StageRefining:       `plan_refine {"sessionId": "<id>", "answers": {"lang": "go"}}`,
	session.StageDocumentReview: `plan_review {"sessionId": "<id>"}`,
	session.StageFinalApproval:  `plan_approve {"sessionId": "<id>", "approvalToken": "yes"}`,
	session.StageDevelopment:    `plan_implement {"sessionId": "<id>"}`,
}

// exampleCall substitutes a real session id into a stage's example call.
func exampleCall(stage session.Stage, sessionID string) string {
	call := exampleCallForStage[stage]
	if sessionID == "" {
		return call
	}
	return fmt.Sprintf(`%s {"sessionId": %q%s`, toolForStage[stage], sessionID, exampleArgsTail(stage))
}

func exampleArgsTail(stage session.Stage) string {
	switch stage {
	case session.StageRefining:
		return `, "answers": {"lang": "go"}}`
	case session.StageFinalApproval:
		return `, "approvalToken": "yes"}`
	default:
		return `}`
	}
}

// notFoundError builds the error for a missing or expired session id.
func notFoundError(id string) *Error {
	return &Error{
		Category: CategoryNotFound,
		Message:  fmt.Sprintf("session %q does not exist — it may have expired or been evicted", id),
		Recovery: Recovery{
			SuggestedAction: "Start a new planning session with plan_start.",
			ValidNextSteps:  []string{"plan_start"},
			ExampleCall:     exampleCallForStage[session.StageQuestioning],
		},
	}
}

// invalidTransitionError builds the error for an illegal stage move,
// pointing at the one or two calls that are legal from the current stage.
func invalidTransitionError(sess *session.Session, attempted session.Stage) *Error {
	next := session.NextStages(sess.Stage)

	var steps []string
	for _, stage := range next {
		steps = append(steps, toolForStage[stage])
	}

	suggested := "This session is in its terminal stage; start a new session with plan_start."
	example := exampleCallForStage[session.StageQuestioning]
	if len(next) > 0 {
		suggested = fmt.Sprintf("Call %s to advance the session from %q.", toolForStage[next[0]], sess.Stage)
		example = exampleCall(next[0], sess.ID)
	} else {
		steps = []string{"plan_start"}
	}

	return &Error{
		Category: CategoryInvalidTransition,
		Message:  (&session.InvalidTransitionError{From: sess.Stage, To: attempted}).Error(),
		Recovery: Recovery{
			SuggestedAction: suggested,
			ValidNextSteps:  steps,
			ExampleCall:     example,
		},
		Session: sess,
	}
}

// missingInputError builds the error for an absent or malformed field.
func missingInputError(message string, stage session.Stage, sessionID string) *Error {
	return &Error{
		Category: CategoryMissingInput,
		Message:  message,
		Recovery: Recovery{
			SuggestedAction: fmt.Sprintf("Call %s again with the required fields.", toolForStage[stage]),
			ValidNextSteps:  []string{toolForStage[stage]},
			ExampleCall:     exampleCall(stage, sessionID),
		},
	}
}

// capacityError builds the error for a rejected creation at capacity.
func capacityError(err *session.CapacityError) *Error {
	return &Error{
		Category: CategoryCapacityExceeded,
		Message:  err.Error(),
		Recovery: Recovery{
			SuggestedAction: "Complete or abandon an existing session, then retry plan_start once idle sessions have expired.",
			ValidNextSteps:  []string{"plan_status", "plan_start"},
			ExampleCall:     `plan_status {}`,
		},
	}
}

// internalError wraps an unexpected failure (storage trouble, mostly).
func internalError(err error) *Error {
	return &Error{
		Category: CategoryInternal,
		Message:  err.Error(),
		Recovery: Recovery{
			SuggestedAction: "Retry the same call; if the error persists, check the server's storage path.",
			ValidNextSteps:  []string{"plan_status"},
			ExampleCall:     `plan_status {}`,
		},
	}
}
