// Package session implements the planning session lifecycle: the session
// entity, the stage transition rules, and the durable file-backed store.
//
// A session tracks one planning workflow from the first open-ended question
// to the final go-ahead for implementation. The stage field is the only code
// path that mutates workflow position, and it only moves along edges allowed
// by the transition table in transitions.go — there is no generic setter.
//
// Design principles:
// - SRP: types, transitions, errors, and the store live in separate files
// - the store owns the in-memory table and the backing file exclusively;
//   callers only ever see deep copies of session records
package session

import (
	"fmt"
	"time"
)

// --- Stage enum ---

// Stage is the named step of the workflow a session currently occupies.
type Stage string

const (
	StageQuestioning    Stage = "questioning"     // entry: gather the idea, ask questions
	StageRefining       Stage = "refining"        // answers collected, spec drafted
	StageDocumentReview Stage = "document_review" // generated document under review
	StageFinalApproval  Stage = "final_approval"  // document accepted, awaiting go-ahead
	StageDevelopment    Stage = "development"     // terminal: implementation may begin
)

// validStages is the set of recognized stage values.
var validStages = map[Stage]bool{
	StageQuestioning:    true,
	StageRefining:       true,
	StageDocumentReview: true,
	StageFinalApproval:  true,
	StageDevelopment:    true,
}

// ValidateStage returns an error if the stage is not recognized.
func ValidateStage(s Stage) error {
	if !validStages[s] {
		return fmt.Errorf("invalid stage %q: must be one of: questioning, refining, document_review, final_approval, development", s)
	}
	return nil
}

// --- Core data structures ---

// Approval records which generated artifacts the caller has accepted.
type Approval struct {
	Token                 string `json:"token"`
	SpecificationAccepted bool   `json:"specification_accepted"`
	DocumentAccepted      bool   `json:"document_accepted"`
	ApprovedAt            string `json:"approved_at,omitempty"` // RFC3339
}

// Session is the sole persistent entity: one workflow instance moving
// through the stages. ID and Subject are immutable after creation.
// LastActivityAt is touched on every successful read or write.
type Session struct {
	ID             string            `json:"id"`
	Stage          Stage             `json:"stage"`
	Subject        string            `json:"subject"`
	CreatedAt      time.Time         `json:"created_at"`
	LastActivityAt time.Time         `json:"last_activity_at"`
	Answers        map[string]string `json:"answers,omitempty"`
	Artifacts      map[string]string `json:"artifacts,omitempty"`
	Approval       *Approval         `json:"approval,omitempty"`
}

// Clone returns a deep copy. The store hands out clones so callers can
// never mutate the table behind the lock.
func (s *Session) Clone() *Session {
	c := *s
	if s.Answers != nil {
		c.Answers = make(map[string]string, len(s.Answers))
		for k, v := range s.Answers {
			c.Answers[k] = v
		}
	}
	if s.Artifacts != nil {
		c.Artifacts = make(map[string]string, len(s.Artifacts))
		for k, v := range s.Artifacts {
			c.Artifacts[k] = v
		}
	}
	if s.Approval != nil {
		a := *s.Approval
		c.Approval = &a
	}
	return &c
}

// Validate checks that a record loaded from disk is usable. Records that
// fail this check are skipped at load time, not treated as a fatal error.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session record missing id")
	}
	if s.Subject == "" {
		return fmt.Errorf("session %q missing subject", s.ID)
	}
	if err := ValidateStage(s.Stage); err != nil {
		return fmt.Errorf("session %q: %w", s.ID, err)
	}
	if s.CreatedAt.IsZero() || s.LastActivityAt.IsZero() {
		return fmt.Errorf("session %q missing timestamps", s.ID)
	}
	return nil
}
