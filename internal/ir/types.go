package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// BlockKind classifies a block by its notation.
type BlockKind int

const (
	KindUnknown BlockKind = iota
	// KindAnnotation binds the matched fact's weight to a variable.
	KindAnnotation
	// KindAbove filters by a literal weight threshold.
	KindAbove
)

func (k BlockKind) String() string {
	switch k {
	case KindAnnotation:
		return "ANNOTATION"
	case KindAbove:
		return "ABOVE"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the kind by name in JSON output.
func (k BlockKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name written by MarshalText.
func (k *BlockKind) UnmarshalText(text []byte) error {
	for _, c := range []BlockKind{KindUnknown, KindAnnotation, KindAbove} {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown block kind %q", text)
}

// RuleType is the evaluation strategy of a rule.
type RuleType int

const (
	RuleUnknown RuleType = iota
	// RuleHeader has no body (a fact).
	RuleHeader
	// RuleGround has annotation blocks and no threshold block.
	RuleGround
	// RuleComplex has at least one threshold block.
	RuleComplex
)

func (t RuleType) String() string {
	switch t {
	case RuleHeader:
		return "HEADER"
	case RuleGround:
		return "GROUND"
	case RuleComplex:
		return "COMPLEX"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the rule type by name in JSON output.
func (t RuleType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a rule type name written by MarshalText.
func (t *RuleType) UnmarshalText(text []byte) error {
	for _, c := range []RuleType{RuleUnknown, RuleHeader, RuleGround, RuleComplex} {
		if c.String() == string(text) {
			*t = c
			return nil
		}
	}
	return fmt.Errorf("unknown rule type %q", text)
}

// Match ties two local columns of a block's relation that must hold equal
// values (a self-join such as p(X,X)).
type Match struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Block is one atom occurrence inside a rule.
type Block struct {
	Predicate string    `json:"predicate"`
	Arguments []string  `json:"arguments"`
	Notation  string    `json:"notation"`
	Kind      BlockKind `json:"kind"`

	// Threshold is the parsed notation of an ABOVE block.
	Threshold float64 `json:"threshold,omitempty"`

	// Virtual holds the rule-global slot of each argument, in argument order.
	Virtual []int `json:"virtual"`

	// Physical has one entry per rule variable slot: the local column of the
	// slot's first occurrence in this block, or -1.
	Physical []int `json:"physical"`

	// Matches lists equality constraints between local columns.
	Matches []Match `json:"matches,omitempty"`
}

// NeedsFilter reports whether the block's relation must be filtered by its
// self-join constraints before joining.
func (b *Block) NeedsFilter() bool {
	return len(b.Matches) > 0
}

// String renders the block in surface syntax, e.g. "q(X,Y):W".
func (b Block) String() string {
	var sb strings.Builder
	sb.WriteString(b.Predicate)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(b.Arguments, ","))
	sb.WriteString("):")
	sb.WriteString(b.Notation)
	return sb.String()
}

// Rule is one parsed and analysed rule statement.
type Rule struct {
	// Text is the canonical surface form: whitespace removed, parentheses
	// for argument lists, body in source order. Line is the 1-based source
	// line (0 if the rule was not loaded from a file).
	Text string `json:"text"`
	Line int    `json:"line,omitempty"`

	Header Block   `json:"header"`
	Body   []Block `json:"body"`

	// Predicates is the ordered set of predicates used (header first).
	Predicates []string `json:"predicates"`

	// Dependent lists predicates whose change requires re-evaluating the
	// rule. For a rule without body it is the header predicate.
	Dependent []string `json:"dependent"`

	// Variables maps a variable name to its slot; VariableNames is the
	// inverse in slot order.
	Variables     map[string]int `json:"variables"`
	VariableNames []string       `json:"variable_names"`

	Type RuleType `json:"type"`

	// Weight is the parsed header notation.
	Weight Expr `json:"-"`
}

// VariableCount returns the number of distinct variable slots in the rule.
func (r *Rule) VariableCount() int {
	return len(r.VariableNames)
}

// String renders the rule in surface syntax with the body in evaluation order.
func (r *Rule) String() string {
	if len(r.Body) == 0 {
		return r.Header.String()
	}
	parts := make([]string, len(r.Body))
	for i, b := range r.Body {
		parts[i] = b.String()
	}
	return r.Header.String() + " <- " + strings.Join(parts, " & ")
}

// Expr is a weight expression from a rule header.
// Only Num, Var, Binary and Call implement it.
type Expr interface {
	expr() // Sealed
	String() string
}

// Num is a numeric literal.
type Num float64

// Var is a weight variable, resolved to its rule slot.
type Var struct {
	Name string
	Slot int
}

// Binary is an arithmetic operation; Op is one of + - * /.
type Binary struct {
	Op          byte
	Left, Right Expr
}

// Call applies a builtin function (min, max) to its arguments.
type Call struct {
	Func string
	Args []Expr
}

func (Num) expr()    {}
func (Var) expr()    {}
func (Binary) expr() {}
func (Call) expr()   {}

func (n Num) String() string { return strconv.FormatFloat(float64(n), 'g', -1, 64) }
func (v Var) String() string { return v.Name }
func (b Binary) String() string {
	return "(" + b.Left.String() + string(b.Op) + b.Right.String() + ")"
}
func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Func + "(" + strings.Join(args, ",") + ")"
}
