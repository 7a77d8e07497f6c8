package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/gaplus/internal/ir"
)

// ExpectationError is returned when an expectation fails.
// It includes the predicate's actual facts to help debug the failure.
type ExpectationError struct {
	Predicate string
	Expected  string
	Actual    string
	Facts     []ir.Fact
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Predicate)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFacts of %s:\n", e.Predicate)
	if len(e.Facts) == 0 {
		fmt.Fprintf(&buf, "  (none)\n")
	}
	for _, f := range e.Facts {
		fmt.Fprintf(&buf, "  %s\n", f)
	}

	return buf.String()
}

// checkExpectation compares one predicate's actual facts with its
// expectation. Every failure is returned, not just the first.
func checkExpectation(predicate string, exp Expectation, actual []ir.Fact) []error {
	tolerance := exp.Tolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}

	byKey := make(map[ir.Key]ir.Fact, len(actual))
	for _, f := range actual {
		byKey[f.Key()] = f
	}

	var errs []error
	expected := make(map[ir.Key]bool, len(exp.Facts))
	for _, e := range exp.Facts {
		key := ir.KeyOf(e.Args...)
		expected[key] = true
		want := ir.Fact{Predicate: predicate, Args: e.Args, Weight: e.Weight}

		got, ok := byKey[key]
		if !ok {
			errs = append(errs, &ExpectationError{
				Predicate: predicate,
				Expected:  want.String(),
				Actual:    "not derived",
				Facts:     actual,
			})
			continue
		}
		if math.Abs(got.Weight-e.Weight) > tolerance {
			errs = append(errs, &ExpectationError{
				Predicate: predicate,
				Expected:  fmt.Sprintf("%s (±%g)", want, tolerance),
				Actual:    got.String(),
				Facts:     actual,
			})
		}
	}

	if exp.Exact {
		for _, f := range actual {
			if !expected[f.Key()] {
				errs = append(errs, &ExpectationError{
					Predicate: predicate,
					Expected:  fmt.Sprintf("exactly %d fact(s)", len(exp.Facts)),
					Actual:    "unexpected " + f.String(),
					Facts:     actual,
				})
			}
		}
	}

	return errs
}

// EvaluateExpectations checks every expectation against the result's facts.
// Returns error messages in predicate order (empty if all pass).
func EvaluateExpectations(result *Result, expect map[string]Expectation) []string {
	preds := make([]string, 0, len(expect))
	for p := range expect {
		preds = append(preds, p)
	}
	slices.Sort(preds)

	var errs []string
	for _, pred := range preds {
		for _, err := range checkExpectation(pred, expect[pred], result.FactsOf(pred)) {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
