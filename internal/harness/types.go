package harness

import (
	"github.com/roach88/gaplus/internal/engine"
	"github.com/roach88/gaplus/internal/ir"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation holds.
	Pass bool `json:"pass"`

	// RunID is the ID the fixpoint was exported under.
	RunID string `json:"run_id"`

	// Report is the runner's summary.
	Report engine.Report `json:"report"`

	// Facts is the exported fixpoint, ordered by predicate then arguments.
	Facts []ir.Fact `json:"facts"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Facts:  []ir.Fact{},
		Errors: []string{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// FactsOf returns the result's facts for one predicate.
func (r *Result) FactsOf(predicate string) []ir.Fact {
	var out []ir.Fact
	for _, f := range r.Facts {
		if f.Predicate == predicate {
			out = append(out, f)
		}
	}
	return out
}
