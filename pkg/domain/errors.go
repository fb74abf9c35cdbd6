package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrVariableNotFound is returned when a name does not resolve to a variable
	// and cannot be parsed as a literal of the expected type either.
	ErrVariableNotFound = errors.New("variable not found")

	// ErrTypeMismatch is returned when a variable is read or written with a kind
	// other than the one it was registered with.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrNameCollision is returned when a name is already taken by another
	// variable or node.
	ErrNameCollision = errors.New("name already in use")

	// ErrVariableInUse is returned when removing a variable that an operator or
	// fork still references.
	ErrVariableInUse = errors.New("variable is referenced")

	// ErrNodeNotFound is returned when a name resolves to no job, operator or
	// reserved node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrAmbiguousBranch is returned when a node would get a second outgoing
	// edge or fork.
	ErrAmbiguousBranch = errors.New("node already has an outgoing edge")

	// ErrNoOutgoingEdge is returned when a node has no successor.
	ErrNoOutgoingEdge = errors.New("node has no outgoing edge")

	// ErrInvalidOperator is returned for unknown operator kinds or operators
	// whose parameters do not fit their kind.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrDivisionByZero is returned by the division operators when the divisor is zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrOverflow is returned when a float operator produces a non-finite result.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrFileOperation marks a failed file side effect. These failures are soft:
	// the controller logs them and keeps going.
	ErrFileOperation = errors.New("file operation failed")

	// ErrScheduleNotFound is returned when a schedule name cannot be found in a store.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrInvalidSchedule is returned when a schedule fails validation and cannot be run.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// OperatorError wraps a failure raised while performing an operator node.
type OperatorError struct {
	Node string
	Kind OperatorKind
	Err  error
}

func (e *OperatorError) Error() string {
	return fmt.Sprintf("operator '%s' (%s): %v", e.Node, e.Kind, e.Err)
}

func (e *OperatorError) Unwrap() error {
	return e.Err
}

// IsSoft reports whether the failure should only be logged.
func (e *OperatorError) IsSoft() bool {
	return errors.Is(e.Err, ErrFileOperation)
}
