package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/gaplus/internal/ir"
)

// Validation codes (E100-E199)
const (
	ErrArityMismatch     = "E101" // predicate used with different arities
	ErrNegativeThreshold = "E102" // threshold below zero always passes
	ErrInputPredicate    = "E103" // predicate is never derived, must come from facts
	ErrNonPositiveFact   = "E104" // fact weight <= 0 is never stored
	ErrDuplicateRule     = "E105" // same rule appears twice
	ErrFactArity         = "E106" // seeded fact disagrees with the rules' arity
)

// Validation levels.
const (
	LevelError   = "error"
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// ValidationError is one finding of static validation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Level   string `json:"level"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a parsed rule set as a whole. Every finding is returned
// (no fail-fast), in rule order.
func Validate(rules []*ir.Rule) []ValidationError {
	var errs []ValidationError

	type arity struct {
		n    int
		line int
	}
	arities := make(map[string]arity)
	derived := make(map[string]bool)
	seen := make(map[string]int)
	var inputs []string

	checkArity := func(r *ir.Rule, field string, b ir.Block) {
		prev, ok := arities[b.Predicate]
		if !ok {
			arities[b.Predicate] = arity{n: len(b.Arguments), line: r.Line}
			return
		}
		if prev.n != len(b.Arguments) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("predicate %q has %d arguments here but %d at line %d", b.Predicate, len(b.Arguments), prev.n, prev.line),
				Code:    ErrArityMismatch,
				Level:   LevelError,
				Line:    r.Line,
			})
		}
	}

	for i, r := range rules {
		field := fmt.Sprintf("rules[%d]", i)
		derived[r.Header.Predicate] = true
		checkArity(r, field+".header", r.Header)

		// E105: duplicate rule
		if first, dup := seen[r.Text]; dup {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate of rules[%d]", first),
				Code:    ErrDuplicateRule,
				Level:   LevelWarning,
				Line:    r.Line,
			})
		} else {
			seen[r.Text] = i
		}

		// E104: facts that can never be stored
		if r.Type == ir.RuleHeader && r.Header.Threshold <= 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".header",
				Message: fmt.Sprintf("fact %s has weight %g and will never be stored", r.Header.Predicate, r.Header.Threshold),
				Code:    ErrNonPositiveFact,
				Level:   LevelWarning,
				Line:    r.Line,
			})
		}

		for j, b := range r.Body {
			bfield := fmt.Sprintf("%s.body[%d]", field, j)
			checkArity(r, bfield, b)
			if !slices.Contains(inputs, b.Predicate) {
				inputs = append(inputs, b.Predicate)
			}

			// E102: threshold below zero
			if b.Kind == ir.KindAbove && b.Threshold < 0 {
				errs = append(errs, ValidationError{
					Field:   bfield,
					Message: fmt.Sprintf("threshold %g on %s is negative", b.Threshold, b.Predicate),
					Code:    ErrNegativeThreshold,
					Level:   LevelWarning,
					Line:    r.Line,
				})
			}
		}
	}

	// E103: body predicates no rule derives
	for _, p := range inputs {
		if derived[p] {
			continue
		}
		errs = append(errs, ValidationError{
			Field:   "predicates." + p,
			Message: fmt.Sprintf("predicate %q is never derived and must be supplied as facts", p),
			Code:    ErrInputPredicate,
			Level:   LevelInfo,
		})
	}

	return errs
}

// Arities returns the argument count of every predicate the rules use, as
// first seen in rule order.
func Arities(rules []*ir.Rule) map[string]int {
	out := make(map[string]int)
	add := func(b ir.Block) {
		if _, ok := out[b.Predicate]; !ok {
			out[b.Predicate] = len(b.Arguments)
		}
	}
	for _, r := range rules {
		add(r.Header)
		for _, b := range r.Body {
			add(b)
		}
	}
	return out
}

// ValidateFacts checks seeded facts against the arities the rules use.
// Facts of predicates no rule mentions are not checked.
func ValidateFacts(rules []*ir.Rule, fs []ir.Fact) []ValidationError {
	arities := Arities(rules)
	var errs []ValidationError
	for i, f := range fs {
		n, ok := arities[f.Predicate]
		if !ok || n == len(f.Args) {
			continue
		}
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("facts[%d]", i),
			Message: fmt.Sprintf("fact %s has %d arguments but the rules use %s with %d", f, len(f.Args), f.Predicate, n),
			Code:    ErrFactArity,
			Level:   LevelError,
		})
	}
	return errs
}

// HasErrors reports whether any finding is at error level.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Level == LevelError {
			return true
		}
	}
	return false
}
