package compiler

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/gaplus/internal/ir"
)

// ParseRule parses one rule in surface syntax and analyses it:
//
//	p(X):W <- q(X,Y):W & r[Y]:0.5
//
// A line with a single block and no "<-" is a fact; its notation must be a
// number, the fact's weight. Rules with a body must have an annotation head.
//
// The returned rule is fully analysed: variable index, block pictures,
// rule type and body evaluation order are all set.
func ParseRule(text string) (*ir.Rule, error) {
	src := normalizeRule(text)
	if src == "" {
		return nil, malformedRule(text, "empty rule")
	}

	parts := strings.Split(src, "<-")
	switch len(parts) {
	case 1:
		if strings.Contains(src, "&") {
			return nil, malformedRule(text, "missing '<-' between head and body")
		}
		header, err := parseSegment(parts[0])
		if err != nil {
			return nil, err
		}
		if header.Kind != ir.KindAbove {
			return nil, malformedRule(text, "fact %s needs a numeric weight, or '<-' and a body", header.Predicate)
		}
		return newRule(text, header, nil)

	case 2:
		header, err := parseSegment(parts[0])
		if err != nil {
			return nil, err
		}
		if header.Kind != ir.KindAnnotation {
			return nil, malformedRule(text, "rule head %s must be an annotation, not a threshold", header.Predicate)
		}
		if parts[1] == "" {
			return nil, malformedRule(text, "empty body")
		}
		var body []*ParsedBlock
		for _, seg := range strings.Split(parts[1], "&") {
			b, err := parseSegment(seg)
			if err != nil {
				return nil, err
			}
			body = append(body, b)
		}
		return newRule(text, header, body)

	default:
		return nil, malformedRule(text, "'<-' must appear exactly once, found %d", len(parts)-1)
	}
}

// normalizeRule NFC-normalises the text and removes all whitespace.
func normalizeRule(text string) string {
	text = norm.NFC.String(text)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}

// parseSegment rewrites one surface block into block syntax and parses it.
func parseSegment(seg string) (*ParsedBlock, error) {
	if seg == "" {
		return nil, malformedBlock(seg, "empty block")
	}
	text, err := toBlockSyntax(seg)
	if err != nil {
		return nil, err
	}
	return ParseBlock(text)
}

// toBlockSyntax turns "p(X,Y):N" or "p[X,Y]:N" into "p,X,Y:N". Only the
// argument list brackets are rewritten, so a notation such as min(A,B)
// survives. Text already in comma form passes through unchanged.
func toBlockSyntax(seg string) (string, error) {
	head := seg
	if colon := strings.IndexByte(seg, ':'); colon >= 0 {
		head = seg[:colon]
	}
	open := strings.IndexAny(head, "([")
	if open < 0 {
		return seg, nil
	}

	closing := byte(')')
	if seg[open] == '[' {
		closing = ']'
	}
	end := strings.IndexByte(seg[open:], closing)
	if end < 0 {
		return "", malformedBlock(seg, "unbalanced argument list")
	}
	end += open
	rest := seg[end+1:]
	if !strings.HasPrefix(rest, ":") {
		return "", malformedBlock(seg, "expected ':' after argument list")
	}
	return seg[:open] + "," + seg[open+1:end] + rest, nil
}

// newRule runs variable indexing, block analysis, classification and
// ordering over a parsed header and body.
func newRule(text string, header *ParsedBlock, body []*ParsedBlock) (*ir.Rule, error) {
	index, names := buildVariableIndex(header, body)

	weights, err := checkBindings(text, header, body)
	if err != nil {
		return nil, err
	}

	rule := &ir.Rule{
		Variables:     index,
		VariableNames: names,
	}

	rule.Header, err = analyzeBlock(header, index, len(names))
	if err != nil {
		return nil, err
	}

	sourceOrder := make([]string, 0, len(body))
	for _, pb := range body {
		b, err := analyzeBlock(pb, index, len(names))
		if err != nil {
			return nil, err
		}
		rule.Body = append(rule.Body, b)
		sourceOrder = append(sourceOrder, b.String())
	}

	rule.Text = rule.Header.String()
	if len(sourceOrder) > 0 {
		rule.Text += "<-" + strings.Join(sourceOrder, "&")
	}

	if len(body) == 0 {
		rule.Weight = ir.Num(header.Threshold)
	} else {
		rule.Weight, err = parseExpr(header.Notation, func(name string) (int, bool) {
			if !weights[name] {
				return 0, false
			}
			return index[name], true
		})
		if err != nil {
			return nil, err
		}
	}

	rule.Type = classify(rule.Body)
	rule.Predicates, rule.Dependent = predicateSets(rule)
	orderBody(rule.Body)
	return rule, nil
}

// buildVariableIndex assigns slots in first-sight order: header first, then
// body blocks in textual order; within a block the arguments, then the
// notation when it names a weight variable.
func buildVariableIndex(header *ParsedBlock, body []*ParsedBlock) (map[string]int, []string) {
	index := make(map[string]int)
	var names []string
	see := func(name string) {
		if _, ok := index[name]; !ok {
			index[name] = len(names)
			names = append(names, name)
		}
	}

	for _, pb := range append([]*ParsedBlock{header}, body...) {
		for _, arg := range pb.Arguments {
			see(arg)
		}
		if pb.Kind == ir.KindAnnotation && isIdentifier(pb.Notation) {
			see(pb.Notation)
		}
	}
	return index, names
}

// checkBindings enforces the structural rules a body must satisfy for the
// rule to be evaluable, returning the set of weight variables the body binds.
func checkBindings(text string, header *ParsedBlock, body []*ParsedBlock) (map[string]bool, error) {
	args := make(map[string]bool)
	for _, pb := range body {
		for _, a := range pb.Arguments {
			args[a] = true
		}
	}

	weights := make(map[string]bool)
	for _, pb := range body {
		if pb.Kind != ir.KindAnnotation {
			continue
		}
		if !isIdentifier(pb.Notation) {
			return nil, malformedRule(text, "annotation of %s must be a variable name, got %q", pb.Predicate, pb.Notation)
		}
		if weights[pb.Notation] {
			return nil, malformedRule(text, "weight variable %q is bound more than once", pb.Notation)
		}
		if args[pb.Notation] {
			return nil, malformedRule(text, "%q is used both as an argument and as a weight", pb.Notation)
		}
		weights[pb.Notation] = true
	}

	if len(body) > 0 {
		for _, a := range header.Arguments {
			if !args[a] {
				return nil, malformedRule(text, "head variable %q does not occur in the body", a)
			}
		}
	}
	return weights, nil
}

// classify derives the rule type from the body's block kinds. A threshold
// block makes the rule COMPLEX regardless of position.
func classify(body []ir.Block) ir.RuleType {
	t := ir.RuleHeader
	for _, b := range body {
		switch {
		case b.Kind == ir.KindAbove:
			t = ir.RuleComplex
		case b.Kind == ir.KindAnnotation && t == ir.RuleHeader:
			t = ir.RuleGround
		}
	}
	return t
}

// orderBody sorts body blocks so the most constrained relations are joined
// first: annotation blocks before threshold blocks, then more self-join
// matches first, then more arguments first. Ties keep source order.
func orderBody(body []ir.Block) {
	slices.SortStableFunc(body, compareBlocks)
}

func compareBlocks(a, b ir.Block) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(len(b.Matches), len(a.Matches)); c != 0 {
		return c
	}
	return cmp.Compare(len(b.Virtual), len(a.Virtual))
}

// predicateSets returns the predicates a rule uses and those it depends on,
// each in first-sight order. Must run before the body is reordered.
func predicateSets(rule *ir.Rule) (used, dependent []string) {
	used = []string{rule.Header.Predicate}
	for _, b := range rule.Body {
		if !slices.Contains(used, b.Predicate) {
			used = append(used, b.Predicate)
		}
		if !slices.Contains(dependent, b.Predicate) {
			dependent = append(dependent, b.Predicate)
		}
	}
	if len(rule.Body) == 0 {
		dependent = []string{rule.Header.Predicate}
	}
	return used, dependent
}
