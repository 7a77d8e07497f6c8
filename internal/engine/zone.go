package engine

import (
	"context"
	"fmt"

	"github.com/roach88/gaplus/internal/facts"
	"github.com/roach88/gaplus/internal/ir"
	"github.com/roach88/gaplus/internal/relalg"
)

// DefinitionZone computes a rule's assignment set: every consistent binding
// of the rule's argument variables given the facts in src.
//
// Annotation blocks are joined pairwise in rounds. A threshold block joins
// too when it binds a variable no annotation block binds; otherwise it only
// filters. Threshold filters run after the join, their selections are joined
// back together and deduplicated. An empty block relation or an empty
// intermediate join ends the computation with an empty zone.
//
// A rule without body yields a single row holding the head's arguments.
func DefinitionZone(ctx context.Context, rule *ir.Rule, src facts.Source, agent relalg.Agent) (ir.Relation, error) {
	size := rule.VariableCount()
	if len(rule.Body) == 0 {
		return ir.Relation{
			Rows:    [][]string{rule.Header.Arguments},
			Picture: rule.Header.Physical,
		}, nil
	}
	empty := ir.Relation{Picture: ir.NewPicture(size)}

	joined, above := splitBody(rule.Body)

	rels := make([]ir.Relation, 0, len(joined))
	for _, b := range joined {
		rel, err := fetch(src, b)
		if err != nil {
			return ir.Relation{}, err
		}
		if b.NeedsFilter() {
			rel, err = agent.FilterMatches(ctx, rel, b.Matches)
			if err != nil {
				return ir.Relation{}, err
			}
		}
		if rel.Empty() {
			return empty, nil
		}
		rels = append(rels, rel)
	}

	base, err := foldJoin(ctx, agent, rels)
	if err != nil || base.Empty() || len(above) == 0 {
		return base, err
	}

	sels := make([]ir.Relation, 0, len(above))
	for _, b := range above {
		pred := b.Predicate
		weight := func(k ir.Key) (float64, bool) { return src.Weight(pred, k) }
		sel, err := agent.SelectAbove(ctx, base, b.Virtual, weight, b.Threshold)
		if err != nil {
			return ir.Relation{}, err
		}
		if sel.Empty() {
			return empty, nil
		}
		sels = append(sels, sel)
	}

	zone, err := foldJoin(ctx, agent, sels)
	if err != nil || zone.Empty() {
		return zone, err
	}
	return agent.Distinct(ctx, zone)
}

// fetch reads a block's relation from src. Every tuple must have the block's
// arity.
func fetch(src facts.Source, b ir.Block) (ir.Relation, error) {
	rows := src.Tuples(b.Predicate)
	for _, row := range rows {
		if len(row) != len(b.Arguments) {
			return ir.Relation{}, &relalg.ExecutionError{
				Op:  "fetch",
				Err: fmt.Errorf("%w: %s fact %v has %d arguments, block %s has %d", relalg.ErrRowWidth, b.Predicate, row, len(row), b, len(b.Arguments)),
			}
		}
	}
	return ir.Relation{Rows: rows, Picture: b.Physical}, nil
}

// splitBody returns the blocks whose relations are joined and the
// threshold blocks applied after the join.
func splitBody(body []ir.Block) (joined, above []ir.Block) {
	bound := make(map[int]bool)
	for _, b := range body {
		if b.Kind == ir.KindAnnotation {
			joined = append(joined, b)
			for _, s := range b.Virtual {
				bound[s] = true
			}
		}
	}
	for _, b := range body {
		if b.Kind != ir.KindAbove {
			continue
		}
		above = append(above, b)
		for _, s := range b.Virtual {
			if !bound[s] {
				joined = append(joined, b)
				break
			}
		}
	}
	return joined, above
}

// foldJoin reduces rels to one relation by joining pairs in rounds; an odd
// relation carries to the next round. An empty join returns at once.
func foldJoin(ctx context.Context, agent relalg.Agent, rels []ir.Relation) (ir.Relation, error) {
	for len(rels) > 1 {
		next := make([]ir.Relation, 0, (len(rels)+1)/2)
		for len(rels) >= 2 {
			j, err := agent.Join(ctx, rels[0], rels[1])
			if err != nil {
				return ir.Relation{}, err
			}
			if j.Empty() {
				return j, nil
			}
			next = append(next, j)
			rels = rels[2:]
		}
		rels = append(next, rels...)
	}
	return rels[0], nil
}
