package workflow

import (
	"strings"
	"testing"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
)

func TestQuestionsArtifact_NamesEveryQuestion(t *testing.T) {
	got := QuestionsArtifact("note-taking app")
	if !strings.Contains(got, "note-taking app") {
		t.Error("questions should name the subject")
	}
	for _, q := range planningQuestions {
		if !strings.Contains(got, "**"+q.Key+"**") {
			t.Errorf("questions missing key %q", q.Key)
		}
	}
}

func TestSpecificationArtifact_Deterministic(t *testing.T) {
	answers := map[string]string{
		"stack": "go",
		"goal":  "fast sync",
		"users": "field techs",
	}
	first := SpecificationArtifact("sync service", answers)
	for i := 0; i < 10; i++ {
		if SpecificationArtifact("sync service", answers) != first {
			t.Fatal("specification generation is not deterministic")
		}
	}
	// Sorted keys: goal before stack before users.
	goal := strings.Index(first, "**goal**")
	stack := strings.Index(first, "**stack**")
	users := strings.Index(first, "**users**")
	if goal == -1 || stack == -1 || users == -1 || goal > stack || stack > users {
		t.Errorf("answer keys not rendered in sorted order:\n%s", first)
	}
}

func TestSpecificationArtifact_OpenItems(t *testing.T) {
	partial := SpecificationArtifact("partial", map[string]string{"goal": "just the goal"})
	if !strings.Contains(partial, "constraints — not yet answered") {
		t.Error("unanswered questions should appear as open items")
	}

	full := map[string]string{}
	for _, q := range planningQuestions {
		full[q.Key] = "answered"
	}
	complete := SpecificationArtifact("complete", full)
	if !strings.Contains(complete, "None — all planning questions answered.") {
		t.Error("fully answered specification should report no open items")
	}
}

func TestDocumentArtifact_EmbedsCachedSpecification(t *testing.T) {
	sess := &session.Session{
		Subject: "search index",
		Answers: map[string]string{"goal": "sub-second lookups"},
		Artifacts: map[string]string{
			ArtifactSpecification: "# Refined Specification: search index\nMARKER\n",
		},
	}
	got := DocumentArtifact(sess)
	if !strings.Contains(got, "MARKER") {
		t.Error("document should embed the cached specification verbatim")
	}
	if !strings.Contains(got, "plan_approve") || !strings.Contains(got, "revisionRequest") {
		t.Error("document should explain both review outcomes")
	}
}

func TestPlanArtifact_ListsAnswers(t *testing.T) {
	sess := &session.Session{
		Subject: "billing service",
		Answers: map[string]string{"goal": "invoice on time", "stack": "go"},
	}
	got := PlanArtifact(sess)
	if !strings.Contains(got, "invoice on time") || !strings.Contains(got, "billing service") {
		t.Errorf("plan missing approved inputs:\n%s", got)
	}
}
