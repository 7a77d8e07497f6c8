package engine

// IterationBudget bounds the number of fixpoint iterations of one run.
//
// Recursive rules whose weights keep improving by more than epsilon (for
// example a weight expression that grows without bound) would otherwise
// never converge.
type IterationBudget struct {
	max     int
	current int
}

// NewIterationBudget creates a budget of max iterations.
func NewIterationBudget(max int) *IterationBudget {
	return &IterationBudget{max: max}
}

// Check counts one iteration and fails once the budget is spent.
func (b *IterationBudget) Check() error {
	b.current++
	if b.current > b.max {
		return NewIterationsError(b.current, b.max)
	}
	return nil
}

// Current returns the number of iterations counted.
func (b *IterationBudget) Current() int {
	return b.current
}

// Max returns the limit.
func (b *IterationBudget) Max() int {
	return b.max
}
