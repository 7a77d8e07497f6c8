package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is an error raised while evaluating a rule set.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Rule is the canonical text of the failing rule, if any.
	Rule string

	// Iteration is the fixpoint iteration in which the error occurred.
	Iteration int

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeExecution indicates a relational agent or update failure.
	ErrCodeExecution RuntimeErrorCode = "EXECUTION_ERROR"

	// ErrCodeIterationsExceeded indicates the run hit its iteration budget.
	ErrCodeIterationsExceeded RuntimeErrorCode = "ITERATIONS_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s (iteration=%d", e.Code, e.Message, e.Iteration)
	if e.Rule != "" {
		msg += fmt.Sprintf(", rule=%s", e.Rule)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsExecutionError returns true if the error is an execution failure.
// Uses errors.As to handle wrapped errors.
func IsExecutionError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeExecution
	}
	return false
}

// IsIterationsExceeded returns true if the run ran out of iterations.
func IsIterationsExceeded(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeIterationsExceeded
	}
	return false
}

// NewExecutionError wraps a failure of one rule's zone or update.
func NewExecutionError(rule string, iteration int, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeExecution,
		Message:   "rule evaluation failed",
		Rule:      rule,
		Iteration: iteration,
		Err:       err,
	}
}

// NewIterationsError reports an exhausted iteration budget.
func NewIterationsError(iteration, limit int) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeIterationsExceeded,
		Message:   fmt.Sprintf("no fixpoint within %d iterations", limit),
		Iteration: iteration,
	}
}
