package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrRouting reports a next action that the current stage does not
	// declare. It indicates a defect in the graph, never bad input.
	ErrRouting = errors.New("workflow: routing error")

	// ErrGeneration reports that the code generation call failed. No partial
	// result is produced.
	ErrGeneration = errors.New("workflow: code generation failed")
)

// RoutingError describes an undeclared transition.
type RoutingError struct {
	// Stage is the stage that requested the transition.
	Stage Stage
	// Action is the requested next action.
	Action Stage
}

// Error implements error.
func (e *RoutingError) Error() string {
	return fmt.Sprintf("workflow: stage %q has no edge for next action %q", e.Stage, e.Action)
}

// Unwrap returns ErrRouting so callers can match with errors.Is.
func (e *RoutingError) Unwrap() error { return ErrRouting }
