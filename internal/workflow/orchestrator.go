// Package workflow implements the orchestrator that drives a planning
// session through its stages: one handler per stage, each validating the
// same precondition chain before delegating the stage advance to the
// session store's transition rules.
//
// Precondition order (short-circuit on first failure):
// session id present → session exists → current stage matches the handler →
// stage-specific fields valid → transition legal.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
)

// Recorder receives successful stage transitions for auditing. It is
// optional and best-effort: a nil recorder is skipped, and implementations
// must not fail the workflow.
type Recorder interface {
	RecordTransition(sessionID, fromStage, toStage, subject string)
}

// Orchestrator owns the stage handlers. It holds the session store it was
// constructed with — no ambient state, so tests can run independent
// instances side by side.
type Orchestrator struct {
	store    *session.Store
	recorder Recorder
}

// New creates an Orchestrator over the given store.
func New(store *session.Store) *Orchestrator {
	return &Orchestrator{store: store}
}

// SetRecorder injects an optional transition Recorder.
func (o *Orchestrator) SetRecorder(r Recorder) { o.recorder = r }

// acceptedTokens is the closed set of approval tokens, matched by exact
// equality after trimming and lowercasing.
var acceptedTokens = map[string]bool{
	"yes":      true,
	"y":        true,
	"approve":  true,
	"approved": true,
	"lgtm":     true,
	"ship it":  true,
}

// AcceptedTokens returns the accepted approval tokens, for documentation
// and error messages.
func AcceptedTokens() []string {
	return []string{"yes", "y", "approve", "approved", "lgtm", "ship it"}
}

// Invoke decodes a raw payload into the typed input for the named stage
// and dispatches to its handler. It is the single public boundary: every
// outcome, success or failure, comes back as an Envelope and nothing
// panics across it.
func (o *Orchestrator) Invoke(stageName string, payload map[string]any) Envelope {
	var (
		res  *Result
		werr *Error
	)

	switch session.Stage(stageName) {
	case session.StageQuestioning:
		var in StartInput
		if in, werr = decodeStart(payload); werr == nil {
			res, werr = o.Start(in)
		}
	case session.StageRefining:
		var in RefineInput
		if in, werr = decodeRefine(payload); werr == nil {
			res, werr = o.Refine(in)
		}
	case session.StageDocumentReview:
		var in ReviewInput
		if in, werr = decodeReview(payload); werr == nil {
			res, werr = o.Review(in)
		}
	case session.StageFinalApproval:
		var in ApproveInput
		if in, werr = decodeApprove(payload); werr == nil {
			res, werr = o.Approve(in)
		}
	case session.StageDevelopment:
		var in ImplementInput
		if in, werr = decodeImplement(payload); werr == nil {
			res, werr = o.Implement(in)
		}
	default:
		werr = &Error{
			Category: CategoryMissingInput,
			Message:  fmt.Sprintf("unknown stage %q", stageName),
			Recovery: Recovery{
				SuggestedAction: "Start a planning session with plan_start.",
				ValidNextSteps:  []string{"plan_start"},
				ExampleCall:     exampleCallForStage[session.StageQuestioning],
			},
		}
	}

	if werr != nil {
		return errorEnvelope(werr)
	}
	return successEnvelope(res)
}

// Start is the entry handler: it creates a session in the questioning
// stage and derives the planning questions artifact.
func (o *Orchestrator) Start(in StartInput) (*Result, *Error) {
	sess, err := o.store.Create(in.Subject)
	if err != nil {
		var capErr *session.CapacityError
		if errors.As(err, &capErr) {
			return nil, capacityError(capErr)
		}
		return nil, internalError(err)
	}

	questions := QuestionsArtifact(sess.Subject)
	updated, err := o.store.Update(sess.ID, session.Patch{
		Artifacts: map[string]string{ArtifactQuestions: questions},
	})
	if err != nil {
		return nil, internalError(err)
	}

	o.record(updated.ID, "", string(session.StageQuestioning), updated.Subject)
	return &Result{Session: updated, Artifact: questions}, nil
}

// Refine records the caller's answers and advances questioning → refining,
// deriving the refined specification artifact. On a session sent back to
// refining by a revision request it merges the updated answers and
// regenerates the specification in place — the one case where cached
// content is recomputed.
func (o *Orchestrator) Refine(in RefineInput) (*Result, *Error) {
	sess, werr := o.getSession(in.SessionID)
	if werr != nil {
		return nil, werr
	}
	if sess.Stage == session.StageRefining && sess.Artifacts[ArtifactRevisionRequest] != "" {
		return o.refineRevision(sess, in)
	}
	if sess.Stage != session.StageQuestioning {
		return nil, invalidTransitionError(sess, session.StageRefining)
	}

	merged := make(map[string]string, len(sess.Answers)+len(in.Answers))
	for k, v := range sess.Answers {
		merged[k] = v
	}
	for k, v := range in.Answers {
		merged[k] = v
	}
	spec := SpecificationArtifact(sess.Subject, merged)

	next := session.StageRefining
	updated, err := o.store.Update(sess.ID, session.Patch{
		Stage:     &next,
		Answers:   in.Answers,
		Artifacts: map[string]string{ArtifactSpecification: spec},
	})
	if err != nil {
		return nil, o.updateError(sess, next, err)
	}

	o.record(updated.ID, string(sess.Stage), string(next), updated.Subject)
	return &Result{Session: updated, Artifact: spec}, nil
}

// refineRevision applies updated answers to a session a revision request
// sent back to refining. The stage does not move; the specification is
// regenerated and the pending revision marker is cleared.
func (o *Orchestrator) refineRevision(sess *session.Session, in RefineInput) (*Result, *Error) {
	merged := make(map[string]string, len(sess.Answers)+len(in.Answers))
	for k, v := range sess.Answers {
		merged[k] = v
	}
	for k, v := range in.Answers {
		merged[k] = v
	}
	spec := SpecificationArtifact(sess.Subject, merged)

	updated, err := o.store.Update(sess.ID, session.Patch{
		Answers:         in.Answers,
		Artifacts:       map[string]string{ArtifactSpecification: spec},
		RemoveArtifacts: []string{ArtifactRevisionRequest},
	})
	if err != nil {
		return nil, internalError(err)
	}
	return &Result{Session: updated, Artifact: spec}, nil
}

// Review advances refining → document_review and derives the planning
// document. On a session already in document_review it is an idempotent
// re-read of the cached document — unless a revision request is present,
// which takes the one legal backward edge to refining and drops the cached
// document so it is regenerated on the next pass.
func (o *Orchestrator) Review(in ReviewInput) (*Result, *Error) {
	sess, werr := o.getSession(in.SessionID)
	if werr != nil {
		return nil, werr
	}

	if in.RevisionRequest != "" {
		return o.revise(sess, in.RevisionRequest)
	}

	switch sess.Stage {
	case session.StageDocumentReview:
		// Cached re-read: same stage, no revision flag, nothing mutates.
		return &Result{Session: sess, Artifact: sess.Artifacts[ArtifactDocument]}, nil
	case session.StageRefining:
		// fall through to the advance below
	default:
		return nil, invalidTransitionError(sess, session.StageDocumentReview)
	}

	doc := DocumentArtifact(sess)
	next := session.StageDocumentReview
	updated, err := o.store.Update(sess.ID, session.Patch{
		Stage:     &next,
		Artifacts: map[string]string{ArtifactDocument: doc},
	})
	if err != nil {
		return nil, o.updateError(sess, next, err)
	}

	o.record(updated.ID, string(sess.Stage), string(next), updated.Subject)
	return &Result{Session: updated, Artifact: doc}, nil
}

// revise takes the explicitly flagged document_review → refining edge.
func (o *Orchestrator) revise(sess *session.Session, request string) (*Result, *Error) {
	if sess.Stage != session.StageDocumentReview {
		return nil, invalidTransitionError(sess, session.StageRefining)
	}

	next := session.StageRefining
	updated, err := o.store.Update(sess.ID, session.Patch{
		Stage:           &next,
		Revision:        true,
		Artifacts:       map[string]string{ArtifactRevisionRequest: request},
		RemoveArtifacts: []string{ArtifactDocument},
	})
	if err != nil {
		return nil, o.updateError(sess, next, err)
	}

	o.record(updated.ID, string(sess.Stage), string(next), updated.Subject)
	artifact := fmt.Sprintf(
		"## Revision Request\n\n%s\n\nUpdate the answers with `plan_refine`, then regenerate the document with `plan_review`.\n",
		request)
	return &Result{Session: updated, Artifact: artifact, Revised: true}, nil
}

// Approve validates the approval token and advances
// document_review → final_approval, recording the approval.
func (o *Orchestrator) Approve(in ApproveInput) (*Result, *Error) {
	sess, werr := o.getSession(in.SessionID)
	if werr != nil {
		return nil, werr
	}
	if sess.Stage != session.StageDocumentReview {
		return nil, invalidTransitionError(sess, session.StageFinalApproval)
	}

	token := normalizeToken(in.ApprovalToken)
	if !acceptedTokens[token] {
		return nil, missingInputError(
			fmt.Sprintf("approval token %q is not accepted — accepted tokens: %v", in.ApprovalToken, AcceptedTokens()),
			session.StageFinalApproval, sess.ID)
	}

	next := session.StageFinalApproval
	updated, err := o.store.Update(sess.ID, session.Patch{
		Stage: &next,
		Approval: &session.Approval{
			Token:                 token,
			SpecificationAccepted: true,
			DocumentAccepted:      true,
			ApprovedAt:            timeNow().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, o.updateError(sess, next, err)
	}

	o.record(updated.ID, string(sess.Stage), string(next), updated.Subject)
	artifact := fmt.Sprintf("Document approved with token %q. The plan is locked — only the implementation handoff remains.", token)
	return &Result{Session: updated, Artifact: artifact}, nil
}

// Implement advances final_approval → development, the terminal stage,
// and derives the implementation go-ahead artifact.
func (o *Orchestrator) Implement(in ImplementInput) (*Result, *Error) {
	sess, werr := o.getSession(in.SessionID)
	if werr != nil {
		return nil, werr
	}
	if sess.Stage != session.StageFinalApproval {
		return nil, invalidTransitionError(sess, session.StageDevelopment)
	}

	plan := PlanArtifact(sess)
	next := session.StageDevelopment
	updated, err := o.store.Update(sess.ID, session.Patch{
		Stage:     &next,
		Artifacts: map[string]string{ArtifactPlan: plan},
	})
	if err != nil {
		return nil, o.updateError(sess, next, err)
	}

	o.record(updated.ID, string(sess.Stage), string(next), updated.Subject)
	return &Result{Session: updated, Artifact: plan}, nil
}

// getSession maps store lookup failures into the workflow error taxonomy.
func (o *Orchestrator) getSession(id string) (*session.Session, *Error) {
	sess, err := o.store.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, notFoundError(id)
		}
		return nil, internalError(err)
	}
	return sess, nil
}

// updateError maps store update failures into the workflow error taxonomy.
func (o *Orchestrator) updateError(sess *session.Session, attempted session.Stage, err error) *Error {
	var invalid *session.InvalidTransitionError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return notFoundError(sess.ID)
	case errors.As(err, &invalid):
		return invalidTransitionError(sess, attempted)
	default:
		return internalError(err)
	}
}

// record forwards a successful transition to the recorder, if any.
func (o *Orchestrator) record(sessionID, from, to, subject string) {
	if o.recorder != nil {
		o.recorder.RecordTransition(sessionID, from, to, subject)
	}
}

// normalizeToken trims and lowercases an approval token.
func normalizeToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}
