package workflow

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
)

// --- Test helpers ---

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	return newTestOrchestratorWithCapacity(t, 10)
}

func newTestOrchestratorWithCapacity(t *testing.T, capacity int) *Orchestrator {
	t.Helper()
	store, err := session.NewStore(session.Config{
		Path:         filepath.Join(t.TempDir(), "sessions.json"),
		Capacity:     capacity,
		TTL:          time.Hour,
		ReapInterval: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return New(store)
}

// start runs the entry stage and returns the created session id.
func start(t *testing.T, o *Orchestrator, subject string) (string, Envelope) {
	t.Helper()
	env := o.Invoke("questioning", map[string]any{"subject": subject})
	if env.Error {
		t.Fatalf("start failed: %s", env.Content)
	}
	if env.StructuredContent == nil || env.StructuredContent.SessionID == "" {
		t.Fatal("start returned no session id")
	}
	return env.StructuredContent.SessionID, env
}

// walkTo drives a fresh session to the named stage along the forward path.
func walkTo(t *testing.T, o *Orchestrator, target session.Stage) string {
	t.Helper()
	id, _ := start(t, o, "walk target")
	steps := []struct {
		stop    session.Stage
		stage   string
		payload map[string]any
	}{
		{session.StageRefining, "refining", map[string]any{"sessionId": id, "answers": map[string]any{"goal": "ship it", "stack": "go"}}},
		{session.StageDocumentReview, "document_review", map[string]any{"sessionId": id}},
		{session.StageFinalApproval, "final_approval", map[string]any{"sessionId": id, "approvalToken": "yes"}},
		{session.StageDevelopment, "development", map[string]any{"sessionId": id}},
	}
	if target == session.StageQuestioning {
		return id
	}
	for _, step := range steps {
		env := o.Invoke(step.stage, step.payload)
		if env.Error {
			t.Fatalf("walking to %s: %s failed: %s", target, step.stage, env.Content)
		}
		if step.stop == target {
			return id
		}
	}
	t.Fatalf("walkTo: unknown target %s", target)
	return ""
}

// recorderSpy captures transitions forwarded by the orchestrator.
type recorderSpy struct {
	transitions []string
}

func (r *recorderSpy) RecordTransition(sessionID, from, to, subject string) {
	r.transitions = append(r.transitions, from+"->"+to)
}

// --- Happy path ---

func TestFullWorkflow_StartToDevelopment(t *testing.T) {
	o := newTestOrchestrator(t)

	id, env := start(t, o, "inventory tracker")
	if env.StructuredContent.Stage != "questioning" {
		t.Errorf("stage after start = %s, want questioning", env.StructuredContent.Stage)
	}
	if !strings.Contains(env.Content, "Planning Questions") {
		t.Error("start should return the planning questions artifact")
	}
	if env.IsComplete {
		t.Error("start must not report completion")
	}

	env = o.Invoke("refining", map[string]any{
		"sessionId": id,
		"answers":   map[string]any{"goal": "track stock", "users": "warehouse staff"},
	})
	if env.Error {
		t.Fatalf("refine failed: %s", env.Content)
	}
	if env.StructuredContent.Stage != "refining" {
		t.Errorf("stage after refine = %s", env.StructuredContent.Stage)
	}
	if !strings.Contains(env.Content, "Refined Specification") {
		t.Error("refine should return the specification artifact")
	}

	env = o.Invoke("document_review", map[string]any{"sessionId": id})
	if env.Error {
		t.Fatalf("review failed: %s", env.Content)
	}
	if env.StructuredContent.Stage != "document_review" {
		t.Errorf("stage after review = %s", env.StructuredContent.Stage)
	}
	if !strings.Contains(env.Content, "Planning Document") {
		t.Error("review should return the planning document")
	}

	env = o.Invoke("final_approval", map[string]any{"sessionId": id, "approvalToken": "yes"})
	if env.Error {
		t.Fatalf("approve failed: %s", env.Content)
	}
	if env.StructuredContent.Stage != "final_approval" {
		t.Errorf("stage after approve = %s", env.StructuredContent.Stage)
	}

	env = o.Invoke("development", map[string]any{"sessionId": id})
	if env.Error {
		t.Fatalf("implement failed: %s", env.Content)
	}
	if env.StructuredContent.Stage != "development" {
		t.Errorf("stage after implement = %s", env.StructuredContent.Stage)
	}
	if !env.IsComplete {
		t.Error("terminal stage should mark the envelope complete")
	}
	if !env.StructuredContent.IsTerminal {
		t.Error("terminal stage should be flagged in the snapshot")
	}
	if !strings.Contains(env.Content, "Implementation Go-Ahead") {
		t.Error("implement should return the plan artifact")
	}
}

func TestTerminalSession_RejectsFurtherCalls(t *testing.T) {
	o := newTestOrchestrator(t)
	id := walkTo(t, o, session.StageDevelopment)

	env := o.Invoke("development", map[string]any{"sessionId": id})
	if !env.Error {
		t.Fatal("re-invoking a terminal session should fail")
	}
	if env.Recovery == nil {
		t.Fatal("error envelope missing recovery")
	}
	if !strings.Contains(env.Recovery.SuggestedAction, "plan_start") {
		t.Errorf("terminal recovery should point at plan_start, got %q", env.Recovery.SuggestedAction)
	}
}

// --- Stage re-invocation ---

func TestRefine_SecondCallFailsWithoutMutating(t *testing.T) {
	o := newTestOrchestrator(t)
	id, _ := start(t, o, "double refine")

	first := o.Invoke("refining", map[string]any{
		"sessionId": id,
		"answers":   map[string]any{"goal": "v1"},
	})
	if first.Error {
		t.Fatalf("first refine failed: %s", first.Content)
	}

	second := o.Invoke("refining", map[string]any{
		"sessionId": id,
		"answers":   map[string]any{"goal": "v2 sneaking in"},
	})
	if !second.Error {
		t.Fatal("second refine should be rejected")
	}
	if second.StructuredContent == nil {
		t.Fatal("rejected call should still carry the session snapshot")
	}
	if second.StructuredContent.Stage != "refining" {
		t.Errorf("stage after rejected refine = %s, want refining", second.StructuredContent.Stage)
	}
	// The cached artifact is untouched — byte-identical to the first call's.
	if second.StructuredContent.Artifacts[ArtifactSpecification] != first.StructuredContent.Artifacts[ArtifactSpecification] {
		t.Error("rejected refine mutated the cached specification")
	}
	if second.StructuredContent.Answers["goal"] != "v1" {
		t.Errorf("rejected refine changed answers: %v", second.StructuredContent.Answers)
	}
}

func TestReview_RepeatReturnsCachedDocument(t *testing.T) {
	o := newTestOrchestrator(t)
	id := walkTo(t, o, session.StageDocumentReview)

	first := o.Invoke("document_review", map[string]any{"sessionId": id})
	if first.Error {
		t.Fatalf("repeat review failed: %s", first.Content)
	}
	second := o.Invoke("document_review", map[string]any{"sessionId": id})
	if second.Error {
		t.Fatalf("repeat review failed: %s", second.Content)
	}
	if first.StructuredContent.Artifacts[ArtifactDocument] != second.StructuredContent.Artifacts[ArtifactDocument] {
		t.Error("repeated review regenerated the document instead of re-reading the cache")
	}
	if second.StructuredContent.Stage != "document_review" {
		t.Errorf("stage = %s, want document_review", second.StructuredContent.Stage)
	}
}

// --- Revision loop ---

func TestRevisionLoop_BackToRefiningAndForwardAgain(t *testing.T) {
	o := newTestOrchestrator(t)
	id := walkTo(t, o, session.StageDocumentReview)

	env := o.Invoke("document_review", map[string]any{
		"sessionId":       id,
		"revisionRequest": "the goal is wrong, it should mention latency",
	})
	if env.Error {
		t.Fatalf("revision request failed: %s", env.Content)
	}
	if env.StructuredContent.Stage != "refining" {
		t.Errorf("stage after revision = %s, want refining", env.StructuredContent.Stage)
	}
	if _, ok := env.StructuredContent.Artifacts[ArtifactDocument]; ok {
		t.Error("revision should drop the cached document")
	}
	if env.StructuredContent.Artifacts[ArtifactRevisionRequest] == "" {
		t.Error("revision request should be recorded on the session")
	}

	// Updated answers are accepted while the revision is pending.
	env = o.Invoke("refining", map[string]any{
		"sessionId": id,
		"answers":   map[string]any{"goal": "p99 under 50ms"},
	})
	if env.Error {
		t.Fatalf("refine during revision failed: %s", env.Content)
	}
	if env.StructuredContent.Stage != "refining" {
		t.Errorf("stage = %s, refine during revision must not move the stage", env.StructuredContent.Stage)
	}
	if _, ok := env.StructuredContent.Artifacts[ArtifactRevisionRequest]; ok {
		t.Error("applying the revision should clear the pending marker")
	}
	if !strings.Contains(env.StructuredContent.Artifacts[ArtifactSpecification], "p99 under 50ms") {
		t.Error("regenerated specification should include the updated answer")
	}

	// The workflow proceeds forward again with the fresh document.
	env = o.Invoke("document_review", map[string]any{"sessionId": id})
	if env.Error {
		t.Fatalf("review after revision failed: %s", env.Content)
	}
	if !strings.Contains(env.StructuredContent.Artifacts[ArtifactDocument], "p99 under 50ms") {
		t.Error("regenerated document should reflect the revised answers")
	}
}

func TestRevisionRequest_OutsideDocumentReviewFails(t *testing.T) {
	o := newTestOrchestrator(t)
	id, _ := start(t, o, "premature revision")

	env := o.Invoke("document_review", map[string]any{
		"sessionId":       id,
		"revisionRequest": "change everything",
	})
	if !env.Error {
		t.Fatal("revision request outside document_review should fail")
	}
}

// --- Approval ---

func TestApprove_TokenMatching(t *testing.T) {
	cases := []struct {
		token string
		ok    bool
	}{
		{"yes", true},
		{"Y", true},
		{"  LGTM  ", true}, // trimmed and lowercased
		{"Ship It", true},
		{"approved", true},
		{"yes please", false}, // exact match only, no substrings
		{"ok", false},
		{"👍", false},
		{"", false},
	}
	for _, tc := range cases {
		t.Run(tc.token, func(t *testing.T) {
			o := newTestOrchestrator(t)
			id := walkTo(t, o, session.StageDocumentReview)

			env := o.Invoke("final_approval", map[string]any{
				"sessionId":     id,
				"approvalToken": tc.token,
			})
			if tc.ok && env.Error {
				t.Fatalf("token %q rejected: %s", tc.token, env.Content)
			}
			if !tc.ok {
				if !env.Error {
					t.Fatalf("token %q accepted, want rejection", tc.token)
				}
				// Rejection must not move the stage.
				st := o.Invoke("document_review", map[string]any{"sessionId": id})
				if st.StructuredContent.Stage != "document_review" {
					t.Errorf("stage after rejected token = %s", st.StructuredContent.Stage)
				}
			}
		})
	}
}

func TestApprove_BeforeReviewFails(t *testing.T) {
	o := newTestOrchestrator(t)
	id, _ := start(t, o, "eager approval")

	env := o.Invoke("final_approval", map[string]any{"sessionId": id, "approvalToken": "yes"})
	if !env.Error {
		t.Fatal("approving from questioning should fail")
	}
	if env.Recovery == nil || len(env.Recovery.ValidNextSteps) == 0 {
		t.Fatal("error envelope should name the legal next steps")
	}
	if env.Recovery.ValidNextSteps[0] != "plan_refine" {
		t.Errorf("next step from questioning = %q, want plan_refine", env.Recovery.ValidNextSteps[0])
	}
}

// --- Capacity ---

func TestStart_AtCapacityReturnsRecovery(t *testing.T) {
	o := newTestOrchestratorWithCapacity(t, 1)

	if _, env := start(t, o, "first"); env.Error {
		t.Fatal("first start should succeed")
	}
	env := o.Invoke("questioning", map[string]any{"subject": "second"})
	if !env.Error {
		t.Fatal("start past capacity should fail")
	}
	if env.Recovery == nil {
		t.Fatal("capacity error missing recovery")
	}
	found := false
	for _, step := range env.Recovery.ValidNextSteps {
		if step == "plan_status" {
			found = true
		}
	}
	if !found {
		t.Errorf("capacity recovery should suggest plan_status, got %v", env.Recovery.ValidNextSteps)
	}
}

// --- Input validation ---

func TestInvoke_MissingInputs(t *testing.T) {
	o := newTestOrchestrator(t)
	id, _ := start(t, o, "validation target")

	cases := []struct {
		name    string
		stage   string
		payload map[string]any
	}{
		{"start without subject", "questioning", map[string]any{}},
		{"start with blank subject", "questioning", map[string]any{"subject": "   "}},
		{"refine without session", "refining", map[string]any{"answers": map[string]any{"goal": "x"}}},
		{"refine without answers", "refining", map[string]any{"sessionId": id}},
		{"refine with non-object answers", "refining", map[string]any{"sessionId": id, "answers": "just a string"}},
		{"refine with non-string answer value", "refining", map[string]any{"sessionId": id, "answers": map[string]any{"goal": 42}}},
		{"review without session", "document_review", map[string]any{}},
		{"approve without token", "final_approval", map[string]any{"sessionId": id}},
		{"implement without session", "development", map[string]any{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := o.Invoke(tc.stage, tc.payload)
			if !env.Error {
				t.Fatal("expected a validation failure")
			}
			if env.Recovery == nil || env.Recovery.ExampleCall == "" {
				t.Error("validation error should include an example call")
			}
		})
	}
}

func TestInvoke_AnswersArrayValuesJoined(t *testing.T) {
	o := newTestOrchestrator(t)
	id, _ := start(t, o, "list answers")

	env := o.Invoke("refining", map[string]any{
		"sessionId": id,
		"answers":   map[string]any{"constraints": []any{"offline first", "arm64 only"}},
	})
	if env.Error {
		t.Fatalf("refine with array answer failed: %s", env.Content)
	}
	if env.StructuredContent.Answers["constraints"] != "offline first, arm64 only" {
		t.Errorf("array answer = %q", env.StructuredContent.Answers["constraints"])
	}
}

func TestInvoke_UnknownStage(t *testing.T) {
	o := newTestOrchestrator(t)
	env := o.Invoke("deploying", map[string]any{})
	if !env.Error {
		t.Fatal("unknown stage should fail")
	}
	if env.Recovery == nil || env.Recovery.ValidNextSteps[0] != "plan_start" {
		t.Error("unknown stage recovery should point at plan_start")
	}
}

func TestInvoke_UnknownSession(t *testing.T) {
	o := newTestOrchestrator(t)
	env := o.Invoke("refining", map[string]any{
		"sessionId": "no-such-session",
		"answers":   map[string]any{"goal": "x"},
	})
	if !env.Error {
		t.Fatal("unknown session should fail")
	}
	if !strings.Contains(env.Content, "no-such-session") {
		t.Error("error should name the missing session id")
	}
	if env.Recovery == nil || env.Recovery.ValidNextSteps[0] != "plan_start" {
		t.Error("not-found recovery should point at plan_start")
	}
}

// --- Transition recording ---

func TestRecorder_ReceivesTransitions(t *testing.T) {
	o := newTestOrchestrator(t)
	spy := &recorderSpy{}
	o.SetRecorder(spy)

	walkTo(t, o, session.StageDevelopment)

	want := []string{
		"->questioning",
		"questioning->refining",
		"refining->document_review",
		"document_review->final_approval",
		"final_approval->development",
	}
	if len(spy.transitions) != len(want) {
		t.Fatalf("recorded %d transitions, want %d: %v", len(spy.transitions), len(want), spy.transitions)
	}
	for i, w := range want {
		if spy.transitions[i] != w {
			t.Errorf("transition %d = %q, want %q", i, spy.transitions[i], w)
		}
	}
}

func TestRecorder_NilIsSafe(t *testing.T) {
	o := newTestOrchestrator(t)
	// No recorder set; the full walk must still work.
	walkTo(t, o, session.StageDevelopment)
}
