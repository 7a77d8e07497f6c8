package relalg

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/gaplus/internal/ir"
)

// CPU is an in-process Agent using hash joins.
type CPU struct {
	maxRows int
}

// CPUOption configures a CPU agent.
type CPUOption func(*CPU)

// WithMaxRows bounds the rows any single operation may produce. Zero means
// no bound.
func WithMaxRows(n int) CPUOption {
	return func(c *CPU) {
		c.maxRows = n
	}
}

// NewCPU returns a CPU agent.
func NewCPU(opts ...CPUOption) *CPU {
	c := &CPU{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Agent = (*CPU)(nil)

// Join implements Agent. It builds a hash table over b keyed by the shared
// slots and probes it with a's rows in order, so the output follows a's row
// order. Without shared slots the result is the cross product.
func (c *CPU) Join(ctx context.Context, a, b ir.Relation) (ir.Relation, error) {
	if err := ctx.Err(); err != nil {
		return ir.Relation{}, &ExecutionError{Op: "join", Err: err}
	}
	if len(a.Picture) != len(b.Picture) {
		return ir.Relation{}, &ExecutionError{Op: "join", Err: fmt.Errorf("picture sizes differ: %d and %d", len(a.Picture), len(b.Picture))}
	}

	var leftKey, rightKey, extra []int
	picture := make([]int, len(a.Picture))
	copy(picture, a.Picture)
	width := 0
	if len(a.Rows) > 0 {
		width = len(a.Rows[0])
	} else {
		width = maxColumn(a.Picture) + 1
	}
	for slot, bc := range b.Picture {
		if bc < 0 {
			continue
		}
		if ac := a.Picture[slot]; ac >= 0 {
			leftKey = append(leftKey, ac)
			rightKey = append(rightKey, bc)
			continue
		}
		picture[slot] = width + len(extra)
		extra = append(extra, bc)
	}

	out := ir.Relation{Picture: picture}
	if a.Empty() || b.Empty() {
		return out, nil
	}
	if need := maxColumn(a.Picture) + 1; width < need {
		return ir.Relation{}, widthError("join", width, need)
	}

	needB := maxColumn(b.Picture) + 1
	index := make(map[ir.Key][]int, len(b.Rows))
	for i, row := range b.Rows {
		if len(row) < needB {
			return ir.Relation{}, widthError("join", len(row), needB)
		}
		k := keyOf(row, rightKey)
		index[k] = append(index[k], i)
	}

	for _, left := range a.Rows {
		// Extra columns are appended after a's width, so a must be rectangular.
		if len(left) != width {
			return ir.Relation{}, widthError("join", len(left), width)
		}
		for _, ri := range index[keyOf(left, leftKey)] {
			right := b.Rows[ri]
			row := make([]string, 0, len(left)+len(extra))
			row = append(row, left...)
			for _, col := range extra {
				row = append(row, right[col])
			}
			out.Rows = append(out.Rows, row)
			if err := c.checkRows("join", len(out.Rows)); err != nil {
				return ir.Relation{}, err
			}
		}
	}
	return out, nil
}

// FilterMatches implements Agent.
func (c *CPU) FilterMatches(ctx context.Context, r ir.Relation, matches []ir.Match) (ir.Relation, error) {
	if err := ctx.Err(); err != nil {
		return ir.Relation{}, &ExecutionError{Op: "filter", Err: err}
	}
	out := ir.Relation{Picture: r.Picture}
	for _, row := range r.Rows {
		ok := true
		for _, m := range matches {
			if m.Left >= len(row) || m.Right >= len(row) {
				return ir.Relation{}, &ExecutionError{Op: "filter", Err: fmt.Errorf("%w: match %d=%d outside row of width %d", ErrRowWidth, m.Left, m.Right, len(row))}
			}
			if row[m.Left] != row[m.Right] {
				ok = false
				break
			}
		}
		if ok {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// SelectAbove implements Agent.
func (c *CPU) SelectAbove(ctx context.Context, r ir.Relation, slots []int, weight WeightFunc, threshold float64) (ir.Relation, error) {
	if err := ctx.Err(); err != nil {
		return ir.Relation{}, &ExecutionError{Op: "select", Err: err}
	}
	cols := r.Columns(slots)
	for i, col := range cols {
		if col < 0 {
			return ir.Relation{}, &ExecutionError{Op: "select", Err: fmt.Errorf("slot %d is not bound by the relation", slots[i])}
		}
	}

	need := slices.Max(append([]int{-1}, cols...)) + 1
	out := ir.Relation{Picture: r.Picture}
	for _, row := range r.Rows {
		if len(row) < need {
			return ir.Relation{}, widthError("select", len(row), need)
		}
		if w, ok := weight(ir.RowKey(row, cols)); ok && w > threshold {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// Distinct implements Agent. The first occurrence of each row is kept.
func (c *CPU) Distinct(ctx context.Context, r ir.Relation) (ir.Relation, error) {
	if err := ctx.Err(); err != nil {
		return ir.Relation{}, &ExecutionError{Op: "distinct", Err: err}
	}
	out := ir.Relation{Picture: r.Picture}
	seen := make(map[ir.Key]bool, len(r.Rows))
	for _, row := range r.Rows {
		k := ir.KeyOf(row...)
		if seen[k] {
			continue
		}
		seen[k] = true
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func (c *CPU) checkRows(op string, n int) error {
	if c.maxRows > 0 && n > c.maxRows {
		return &ExecutionError{Op: op, Err: fmt.Errorf("%w: more than %d rows", ErrRowLimit, c.maxRows)}
	}
	return nil
}

func widthError(op string, width, need int) error {
	return &ExecutionError{Op: op, Err: fmt.Errorf("%w: row has %d columns, need %d", ErrRowWidth, width, need)}
}

// keyOf is RowKey that also accepts an empty column list.
func keyOf(row []string, cols []int) ir.Key {
	if len(cols) == 0 {
		return ""
	}
	return ir.RowKey(row, cols)
}

func maxColumn(picture []int) int {
	m := -1
	for _, c := range picture {
		m = max(m, c)
	}
	return m
}
