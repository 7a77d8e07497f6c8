package compiler

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/roach88/gaplus/internal/ir"
)

// ParsedBlock is a block before the rule's variable index is known.
type ParsedBlock struct {
	Predicate string
	Arguments []string
	Notation  string
	Kind      ir.BlockKind
	Threshold float64
}

// ParseBlock parses one block in block syntax: "atom,arg1,arg2,...:notation".
//
// The text is split on the first ':' into predicate part and notation; the
// predicate part is split on ','. A notation that parses as a number makes
// the block an ABOVE (threshold) block, anything else an ANNOTATION block.
func ParseBlock(text string) (*ParsedBlock, error) {
	pred, notation, ok := strings.Cut(text, ":")
	if !ok {
		return nil, malformedBlock(text, "missing ':' before notation")
	}
	notation = strings.TrimRight(notation, "\r\n")
	if notation == "" {
		return nil, malformedBlock(text, "empty notation")
	}

	atoms := strings.Split(pred, ",")
	if atoms[0] == "" {
		return nil, malformedBlock(text, "missing predicate name")
	}
	if len(atoms) < 2 {
		return nil, malformedBlock(text, "predicate %q has no arguments", atoms[0])
	}
	for i, arg := range atoms[1:] {
		if arg == "" {
			return nil, malformedBlock(text, "argument %d of %q is empty", i, atoms[0])
		}
	}

	b := &ParsedBlock{
		Predicate: atoms[0],
		Arguments: atoms[1:],
		Notation:  notation,
		Kind:      ir.KindAnnotation,
	}
	if v, err := strconv.ParseFloat(notation, 64); err == nil {
		if math.IsNaN(v) {
			return nil, malformedBlock(text, "threshold is not a number")
		}
		b.Kind = ir.KindAbove
		b.Threshold = v
	}
	return b, nil
}

// analyzeBlock resolves a parsed block against the rule's variable index,
// building its virtual picture, physical picture and self-join matches.
func analyzeBlock(pb *ParsedBlock, index map[string]int, size int) (ir.Block, error) {
	virtual := make([]int, len(pb.Arguments))
	for i, arg := range pb.Arguments {
		slot, ok := index[arg]
		if !ok {
			return ir.Block{}, unknownVariable(pb.Predicate, arg)
		}
		virtual[i] = slot
	}

	physical, matches := physicalPicture(virtual, size)
	return ir.Block{
		Predicate: pb.Predicate,
		Arguments: pb.Arguments,
		Notation:  pb.Notation,
		Kind:      pb.Kind,
		Threshold: pb.Threshold,
		Virtual:   virtual,
		Physical:  physical,
		Matches:   matches,
	}, nil
}

// physicalPicture maps each slot to the local column of its first
// occurrence. A repeated slot becomes a match between that column and the
// repeat's own column, so p(X,X) keeps its arity and gains one constraint.
func physicalPicture(virtual []int, size int) ([]int, []ir.Match) {
	physical := ir.NewPicture(size)
	var matches []ir.Match
	for col, slot := range virtual {
		if physical[slot] == -1 {
			physical[slot] = col
			continue
		}
		matches = append(matches, ir.Match{Left: physical[slot], Right: col})
	}
	return physical, matches
}

// isIdentifier reports whether s can name a weight variable.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
