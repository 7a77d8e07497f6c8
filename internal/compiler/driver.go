package compiler

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/roach88/gaplus/internal/ir"
)

// DefaultEpsilon is the improvement a weight must exceed to count as changed.
const DefaultEpsilon = 0.00001

// maxLineSize bounds a single rule line.
const maxLineSize = 1 << 20

// Compiled is a rule together with its result slot and update procedure.
type Compiled struct {
	Rule   *ir.Rule
	Index  int
	Update UpdateFunc
}

// Driver owns a rule set: it loads rule text, and compiles every rule into
// an update procedure before evaluation.
type Driver struct {
	eps      float64
	rules    []*ir.Rule
	compiled []Compiled
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithEpsilon sets the improvement tolerance used by compiled updates.
func WithEpsilon(eps float64) DriverOption {
	return func(d *Driver) {
		d.eps = eps
	}
}

// NewDriver returns an empty driver.
func NewDriver(opts ...DriverOption) *Driver {
	d := &Driver{eps: DefaultEpsilon}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load reads a rule file. See LoadReader.
func (d *Driver) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()

	if err := d.LoadReader(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadString loads rules from a string. See LoadReader.
func (d *Driver) LoadString(src string) error {
	return d.LoadReader(strings.NewReader(src))
}

// LoadReader parses one rule per line and appends them to the rule set.
// Blank lines and lines starting with '#' or '%' are skipped. The first
// malformed line fails the whole load and leaves the rule set unchanged.
func (d *Driver) LoadReader(r io.Reader) error {
	var loaded []*ir.Rule

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "%") {
			continue
		}
		rule, err := ParseRule(text)
		if err != nil {
			return withLine(err, line)
		}
		rule.Line = line
		loaded = append(loaded, rule)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read rules: %w", err)
	}

	d.rules = append(d.rules, loaded...)
	d.compiled = nil
	return nil
}

// Add appends already parsed rules.
func (d *Driver) Add(rules ...*ir.Rule) {
	d.rules = append(d.rules, rules...)
	d.compiled = nil
}

// PreRun compiles every rule; a rule's index is its position in the rule
// set. It replaces any previous compilation.
func (d *Driver) PreRun() error {
	compiled := make([]Compiled, len(d.rules))
	for i, rule := range d.rules {
		update, err := CompileUpdate(rule, i, d.eps)
		if err != nil {
			return withLine(err, rule.Line)
		}
		compiled[i] = Compiled{Rule: rule, Index: i, Update: update}
	}
	d.compiled = compiled
	return nil
}

// Compiled returns the procedures built by PreRun, nil before it.
func (d *Driver) Compiled() []Compiled {
	return d.compiled
}

// Rules returns the loaded rules in load order.
func (d *Driver) Rules() []*ir.Rule {
	return d.rules
}

// Predicates returns every predicate the rule set uses, in first-sight order.
func (d *Driver) Predicates() []string {
	var preds []string
	for _, r := range d.rules {
		for _, p := range r.Predicates {
			if !slices.Contains(preds, p) {
				preds = append(preds, p)
			}
		}
	}
	return preds
}

// Epsilon returns the configured tolerance.
func (d *Driver) Epsilon() float64 {
	return d.eps
}

// Reset drops every rule and compiled procedure.
func (d *Driver) Reset() {
	d.rules = nil
	d.compiled = nil
}
