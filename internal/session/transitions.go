package session

// --- State machine for the planning workflow ---
//
// The stage graph is fixed:
//
//	questioning     -> refining
//	refining        -> document_review
//	document_review -> final_approval
//	document_review -> refining          (revision requests only)
//	final_approval  -> development
//
// development is terminal. Any edge not listed is rejected with an
// InvalidTransitionError naming both stages so the caller can recover.

// transitions maps each stage to the set of stages immediately reachable
// from it. A nil entry means the stage is terminal.
var transitions = map[Stage][]Stage{
	StageQuestioning:    {StageRefining},
	StageRefining:       {StageDocumentReview},
	StageDocumentReview: {StageFinalApproval, StageRefining},
	StageFinalApproval:  {StageDevelopment},
	StageDevelopment:    nil,
}

// NextStages returns a copy of the stages reachable from the given stage.
func NextStages(from Stage) []Stage {
	next := transitions[from]
	result := make([]Stage, len(next))
	copy(result, next)
	return result
}

// CanTransition reports whether the requested stage is reachable from the
// current one. Returns an *InvalidTransitionError if it is not.
func CanTransition(from, to Stage) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// RequiresRevision reports whether the edge is the backward revision loop.
// The store only allows it when the patch carries an explicit revision flag,
// so a plain re-call can never silently move a session backward.
func RequiresRevision(from, to Stage) bool {
	return from == StageDocumentReview && to == StageRefining
}

// IsTerminal reports whether the stage has no outgoing transitions.
func IsTerminal(s Stage) bool {
	return len(transitions[s]) == 0 && validStages[s]
}
