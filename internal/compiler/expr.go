package compiler

import (
	"fmt"
	"math"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/gaplus/internal/ir"
)

// Weight expressions appear in rule heads:
//
//	expr   := term (('+'|'-') term)*
//	term   := factor (('*'|'/') factor)*
//	factor := number | name | name '(' expr (',' expr)* ')' | '(' expr ')' | '-' factor
//
// Names resolve to weight variables bound by the body. The builtins are
// min and max.

var builtins = map[string]func([]float64) float64{
	"min": func(xs []float64) float64 {
		m := xs[0]
		for _, x := range xs[1:] {
			m = math.Min(m, x)
		}
		return m
	},
	"max": func(xs []float64) float64 {
		m := xs[0]
		for _, x := range xs[1:] {
			m = math.Max(m, x)
		}
		return m
	},
}

type exprParser struct {
	src     string
	pos     int
	resolve func(string) (int, bool)
}

// parseExpr parses a header notation into an expression tree.
func parseExpr(src string, resolve func(string) (int, bool)) (ir.Expr, error) {
	p := &exprParser{src: src, resolve: resolve}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.src) {
		return nil, malformedBlock(src, "unexpected %q in weight expression", p.src[p.pos:])
	}
	return e, nil
}

func (p *exprParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *exprParser) expr() (ir.Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for op := p.peek(); op == '+' || op == '-'; op = p.peek() {
		p.pos++
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = ir.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *exprParser) term() (ir.Expr, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for op := p.peek(); op == '*' || op == '/'; op = p.peek() {
		p.pos++
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = ir.Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *exprParser) factor() (ir.Expr, error) {
	c := p.peek()
	switch {
	case c == 0:
		return nil, malformedBlock(p.src, "weight expression ends early")
	case c == '-':
		p.pos++
		f, err := p.factor()
		if err != nil {
			return nil, err
		}
		return ir.Binary{Op: '-', Left: ir.Num(0), Right: f}, nil
	case c == '(':
		p.pos++
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, malformedBlock(p.src, "missing ')' in weight expression")
		}
		p.pos++
		return e, nil
	case c == '.' || (c >= '0' && c <= '9'):
		return p.number()
	}

	name := p.name()
	if name == "" {
		return nil, malformedBlock(p.src, "unexpected %q in weight expression", string(c))
	}
	if p.peek() == '(' {
		return p.call(name)
	}
	slot, ok := p.resolve(name)
	if !ok {
		return nil, unknownVariable(p.src, name)
	}
	return ir.Var{Name: name, Slot: slot}, nil
}

func (p *exprParser) number() (ir.Expr, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		isExp := (c == 'e' || c == 'E') && p.pos > start
		isSign := (c == '+' || c == '-') && p.pos > start && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E')
		if (c >= '0' && c <= '9') || c == '.' || isExp || isSign {
			p.pos++
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return nil, malformedBlock(p.src, "bad number %q", p.src[start:p.pos])
	}
	return ir.Num(v), nil
}

func (p *exprParser) name() string {
	start := p.pos
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if r == '_' || unicode.IsLetter(r) || (p.pos > start && unicode.IsDigit(r)) {
			p.pos += size
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *exprParser) call(name string) (ir.Expr, error) {
	if _, ok := builtins[name]; !ok {
		return nil, malformedBlock(p.src, "unknown function %q", name)
	}
	p.pos++ // '('
	var args []ir.Expr
	for {
		a, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return ir.Call{Func: name, Args: args}, nil
		default:
			return nil, malformedBlock(p.src, "missing ')' after arguments of %s", name)
		}
	}
}

// evalFunc computes a weight from the per-row weight environment, indexed
// by variable slot.
type evalFunc func(env []float64) float64

// compileExpr turns an expression tree into a closure tree. It is called
// once per rule at compile time.
func compileExpr(e ir.Expr) (evalFunc, error) {
	switch e := e.(type) {
	case ir.Num:
		v := float64(e)
		return func([]float64) float64 { return v }, nil
	case ir.Var:
		slot := e.Slot
		return func(env []float64) float64 { return env[slot] }, nil
	case ir.Binary:
		l, err := compileExpr(e.Left)
		if err != nil {
			return nil, err
		}
		r, err := compileExpr(e.Right)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case '+':
			return func(env []float64) float64 { return l(env) + r(env) }, nil
		case '-':
			return func(env []float64) float64 { return l(env) - r(env) }, nil
		case '*':
			return func(env []float64) float64 { return l(env) * r(env) }, nil
		case '/':
			return func(env []float64) float64 { return l(env) / r(env) }, nil
		}
		return nil, fmt.Errorf("unknown operator %q", e.Op)
	case ir.Call:
		fn, ok := builtins[e.Func]
		if !ok {
			return nil, fmt.Errorf("unknown function %q", e.Func)
		}
		args := make([]evalFunc, len(e.Args))
		for i, a := range e.Args {
			f, err := compileExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = f
		}
		return func(env []float64) float64 {
			xs := make([]float64, len(args))
			for i, a := range args {
				xs[i] = a(env)
			}
			return fn(xs)
		}, nil
	case nil:
		return nil, fmt.Errorf("rule has no weight expression")
	default:
		return nil, fmt.Errorf("unsupported expression %T", e)
	}
}
