package ir

import (
	"strconv"
	"strings"
)

// keySep separates tuple values inside a Key. Fact constants never contain
// a NUL byte, so the encoding is unambiguous.
const keySep = "\x00"

// Key is the canonical, map-keyable encoding of an argument tuple.
type Key string

// KeyOf encodes a tuple of values as a Key.
func KeyOf(values ...string) Key {
	return Key(strings.Join(values, keySep))
}

// Values decodes the tuple held by the key.
func (k Key) Values() []string {
	return strings.Split(string(k), keySep)
}

// String renders the key as a comma-separated tuple.
func (k Key) String() string {
	return strings.ReplaceAll(string(k), keySep, ",")
}

// Relation is a set of rows together with a picture mapping each rule
// variable slot to the row column that holds it (-1 when absent).
//
// Rows of a block relation follow the block's argument order; rows of a
// joined relation carry the left input's columns followed by the columns the
// right input added.
type Relation struct {
	Rows    [][]string `json:"rows"`
	Picture []int      `json:"picture"`
}

// Empty reports whether the relation has no rows.
func (r Relation) Empty() bool {
	return len(r.Rows) == 0
}

// Len returns the number of rows.
func (r Relation) Len() int {
	return len(r.Rows)
}

// Column returns the column bound to slot, or -1.
func (r Relation) Column(slot int) int {
	if slot < 0 || slot >= len(r.Picture) {
		return -1
	}
	return r.Picture[slot]
}

// Columns maps each slot to its column.
func (r Relation) Columns(slots []int) []int {
	cols := make([]int, len(slots))
	for i, s := range slots {
		cols[i] = r.Column(s)
	}
	return cols
}

// KeyAt builds the key of row i from the given columns.
func (r Relation) KeyAt(i int, cols []int) Key {
	return RowKey(r.Rows[i], cols)
}

// RowKey builds a key from the values of row at cols.
func RowKey(row []string, cols []int) Key {
	if len(cols) == 1 {
		return Key(row[cols[0]])
	}
	var sb strings.Builder
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(keySep)
		}
		sb.WriteString(row[c])
	}
	return Key(sb.String())
}

// NewPicture returns a picture of size n with every slot absent.
func NewPicture(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = -1
	}
	return p
}

// Fact is one weighted fact.
type Fact struct {
	Predicate string   `json:"predicate" yaml:"predicate"`
	Args      []string `json:"args" yaml:"args"`
	Weight    float64  `json:"weight" yaml:"weight"`
}

// Key returns the fact's argument key.
func (f Fact) Key() Key {
	return KeyOf(f.Args...)
}

// String renders the fact as "p(a,b):0.5".
func (f Fact) String() string {
	return f.Predicate + "(" + strings.Join(f.Args, ",") + "):" +
		strconv.FormatFloat(f.Weight, 'g', -1, 64)
}

// Result is what one update procedure reports for one iteration.
type Result struct {
	Added   int `json:"added"`
	Changed int `json:"changed"`
}

// IsZero reports whether the update neither added nor changed a fact.
func (r Result) IsZero() bool {
	return r.Added == 0 && r.Changed == 0
}
