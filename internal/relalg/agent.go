// Package relalg executes the relational operations a rule body needs:
// natural join on shared variable slots, self-join filtering, threshold
// selection and deduplication.
package relalg

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/gaplus/internal/ir"
)

// WeightFunc returns the stored weight of a predicate's fact at key.
type WeightFunc func(key ir.Key) (float64, bool)

// Agent executes relational operations over ir.Relation values. Inputs are
// never modified. Every method may fail with an *ExecutionError.
type Agent interface {
	// Join is the natural join of a and b on the slots both pictures bind.
	// The result carries a's columns followed by the slots only b binds.
	Join(ctx context.Context, a, b ir.Relation) (ir.Relation, error)

	// FilterMatches keeps rows whose columns are equal for every match.
	FilterMatches(ctx context.Context, r ir.Relation, matches []ir.Match) (ir.Relation, error)

	// SelectAbove keeps rows whose weight, looked up by the values at
	// slots, is strictly greater than threshold.
	SelectAbove(ctx context.Context, r ir.Relation, slots []int, weight WeightFunc, threshold float64) (ir.Relation, error)

	// Distinct removes duplicate rows.
	Distinct(ctx context.Context, r ir.Relation) (ir.Relation, error)
}

// ExecutionError is a failure inside the relational agent.
type ExecutionError struct {
	Op  string // fetch, join, filter, select, distinct
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("relalg %s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionError reports whether err is or wraps an *ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// ErrRowLimit is the cause of an ExecutionError when a result would exceed
// the agent's row budget.
var ErrRowLimit = errors.New("row limit exceeded")

// ErrRowWidth is the cause of an ExecutionError when a row is narrower than
// the columns its picture maps, or narrower than its relation's other rows.
var ErrRowWidth = errors.New("row width mismatch")
