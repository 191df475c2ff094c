package session

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a session id does not exist or the session
// has expired and been reaped.
var ErrNotFound = errors.New("session not found")

// InvalidTransitionError reports a stage change that is not a legal edge.
// It names both stages so the caller can recover.
type InvalidTransitionError struct {
	From Stage
	To   Stage
}

func (e *InvalidTransitionError) Error() string {
	if IsTerminal(e.From) {
		return fmt.Sprintf("invalid transition: %q is terminal, cannot move to %q", e.From, e.To)
	}
	return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
}

// CapacityError reports that session creation was rejected because the
// store is at its configured ceiling even after reaping expired sessions.
type CapacityError struct {
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("session capacity exceeded: %d live sessions, no expired sessions to reap", e.Capacity)
}
