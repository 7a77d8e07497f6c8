package compiler

import (
	"fmt"

	"github.com/roach88/gaplus/internal/facts"
	"github.com/roach88/gaplus/internal/ir"
)

// UpdateFunc applies one rule's head to a Definition Zone, writing derived
// facts into st and the rule's (added, changed) counts into its own slot of
// results. Different rules write different slots, so update functions of
// rules with distinct head predicates may run concurrently.
type UpdateFunc func(st facts.Store, zone ir.Relation, results []ir.Result) error

// lookup binds one weight variable per row from an annotation block.
type lookup struct {
	predicate string
	slots     []int // argument slots forming the key
	weight    int   // slot of the bound weight variable
}

// CompileUpdate specialises the update procedure of a rule. Everything that
// depends only on the rule (key slots, weight lookups, the weight
// expression, eps) is resolved here; the returned function only maps the
// zone's picture to columns once per call.
func CompileUpdate(rule *ir.Rule, index int, eps float64) (UpdateFunc, error) {
	if index < 0 {
		return nil, fmt.Errorf("rule %q: negative index %d", rule.Text, index)
	}
	eval, err := compileExpr(rule.Weight)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", rule.Text, err)
	}

	var lookups []lookup
	for _, b := range rule.Body {
		if b.Kind != ir.KindAnnotation {
			continue
		}
		slot, ok := rule.Variables[b.Notation]
		if !ok {
			return nil, unknownVariable(rule.Text, b.Notation)
		}
		lookups = append(lookups, lookup{predicate: b.Predicate, slots: b.Virtual, weight: slot})
	}

	var (
		head     = rule.Header.Predicate
		keySlots = rule.Header.Virtual
		envSize  = rule.VariableCount()
		isHeader = rule.Type == ir.RuleHeader
		text     = rule.Text
	)

	return func(st facts.Store, zone ir.Relation, results []ir.Result) error {
		if index >= len(results) {
			return fmt.Errorf("rule %q: result slot %d out of range (%d slots)", text, index, len(results))
		}
		if zone.Empty() {
			results[index] = ir.Result{}
			return nil
		}

		keyCols := zone.Columns(keySlots)
		if err := checkColumns(text, keyCols); err != nil {
			return err
		}
		lookupCols := make([][]int, len(lookups))
		for i, l := range lookups {
			lookupCols[i] = zone.Columns(l.slots)
			if err := checkColumns(text, lookupCols[i]); err != nil {
				return err
			}
		}

		need := maxCol(keyCols) + 1
		for _, cols := range lookupCols {
			need = max(need, maxCol(cols)+1)
		}

		var res ir.Result
		env := make([]float64, envSize)
	rows:
		for _, row := range zone.Rows {
			if len(row) < need {
				return fmt.Errorf("rule %q: zone row %v has %d columns, need %d", text, row, len(row), need)
			}
			for i, l := range lookups {
				w, ok := st.Weight(l.predicate, ir.RowKey(row, lookupCols[i]))
				if !ok {
					continue rows
				}
				env[l.weight] = w
			}
			candidate := eval(env)
			key := ir.RowKey(row, keyCols)

			stored, present := st.Weight(head, key)
			switch {
			case !present:
				if candidate > 0 {
					st.Put(head, key, candidate)
					if isHeader {
						res.Changed++
					} else {
						res.Added++
					}
				}
			case candidate-stored > eps:
				st.Put(head, key, candidate)
				res.Changed++
			}
		}

		results[index] = res
		return nil
	}, nil
}

func checkColumns(text string, cols []int) error {
	for _, c := range cols {
		if c < 0 {
			return fmt.Errorf("rule %q: definition zone does not bind every variable", text)
		}
	}
	return nil
}

func maxCol(cols []int) int {
	m := -1
	for _, c := range cols {
		m = max(m, c)
	}
	return m
}
