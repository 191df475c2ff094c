package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spenceriam/kat-planner-mcp-sub000/internal/session"
)

// --- Derived artifacts ---
//
// Generated content is cached on the session under these keys, so repeated
// reads of the same stage return the cached text byte-for-byte instead of
// recomputing it. Generation is deterministic: answer keys are sorted.

const (
	ArtifactQuestions       = "questions"
	ArtifactSpecification   = "specification"
	ArtifactDocument        = "document"
	ArtifactPlan            = "plan"
	ArtifactRevisionRequest = "revision_request"
)

// planningQuestions is the fixed question set presented at the entry stage.
var planningQuestions = []struct {
	Key    string
	Prompt string
}{
	{"goal", "What outcome should this deliver, and how will you know it worked?"},
	{"users", "Who uses it day to day, and in what situation?"},
	{"constraints", "What constraints apply (deadlines, platforms, budget, compliance)?"},
	{"stack", "Any preferences or hard requirements on languages, frameworks, or infrastructure?"},
	{"scope", "What is explicitly out of scope for the first version?"},
}

// QuestionsArtifact renders the planning questions for a subject.
func QuestionsArtifact(subject string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Planning Questions: %s\n\n", subject)
	sb.WriteString("Answer what you can — partial answers are fine, unknowns are worth noting too.\n\n")
	for _, q := range planningQuestions {
		fmt.Fprintf(&sb, "- **%s**: %s\n", q.Key, q.Prompt)
	}
	sb.WriteString("\nReply via `plan_refine` with an `answers` object keyed by the names above.\n")
	return sb.String()
}

// SpecificationArtifact renders the refined specification from the
// subject and the collected answers.
func SpecificationArtifact(subject string, answers map[string]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Refined Specification: %s\n\n", subject)
	sb.WriteString("## Decisions\n\n")
	for _, key := range sortedKeys(answers) {
		fmt.Fprintf(&sb, "- **%s**: %s\n", key, answers[key])
	}
	sb.WriteString("\n## Open Items\n\n")
	missing := false
	for _, q := range planningQuestions {
		if _, ok := answers[q.Key]; !ok {
			fmt.Fprintf(&sb, "- %s — not yet answered\n", q.Key)
			missing = true
		}
	}
	if !missing {
		sb.WriteString("None — all planning questions answered.\n")
	}
	return sb.String()
}

// DocumentArtifact renders the review document: the specification plus the
// framing the caller is asked to accept or send back for revision.
func DocumentArtifact(sess *session.Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Planning Document: %s\n\n", sess.Subject)
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "This document consolidates the planning session for %q. ", sess.Subject)
	fmt.Fprintf(&sb, "It covers %d answered question(s) and is the artifact under review.\n\n", len(sess.Answers))

	if spec, ok := sess.Artifacts[ArtifactSpecification]; ok {
		sb.WriteString("## Specification\n\n")
		sb.WriteString(spec)
		sb.WriteString("\n")
	}

	sb.WriteString("## Review\n\n")
	sb.WriteString("- Approve with `plan_approve` and an approval token (e.g. \"yes\")\n")
	sb.WriteString("- Request changes with `plan_review` and a `revisionRequest` describing what to change\n")
	return sb.String()
}

// PlanArtifact renders the terminal implementation go-ahead.
func PlanArtifact(sess *session.Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Implementation Go-Ahead: %s\n\n", sess.Subject)
	sb.WriteString("The planning workflow is complete. The approved specification and document ")
	sb.WriteString("are cached on this session and should drive the implementation.\n\n")
	sb.WriteString("## Approved Inputs\n\n")
	for _, key := range sortedKeys(sess.Answers) {
		fmt.Fprintf(&sb, "- **%s**: %s\n", key, sess.Answers[key])
	}
	sb.WriteString("\nThis session is closed — no further stage calls are accepted.\n")
	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
