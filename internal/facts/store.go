package facts

import (
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/gaplus/internal/ir"
)

// Source is the read side of a fact store.
type Source interface {
	// Tuples returns every argument tuple stored for pred, in insertion
	// order. The caller must not modify the returned rows.
	Tuples(pred string) [][]string

	// Weight returns the stored weight of pred at key.
	Weight(pred string, key ir.Key) (float64, bool)
}

// Store is a Source that also accepts writes.
type Store interface {
	Source

	// Put inserts or overwrites the weight of pred at key.
	Put(pred string, key ir.Key, weight float64)
}

type table struct {
	rows    [][]string
	weights map[ir.Key]float64
}

// Memory is an in-memory Store safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*table
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*table)}
}

// Tuples implements Source.
func (m *Memory) Tuples(pred string) [][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[pred]
	if !ok {
		return nil
	}
	return t.rows[:len(t.rows):len(t.rows)]
}

// Weight implements Source.
func (m *Memory) Weight(pred string, key ir.Key) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[pred]
	if !ok {
		return 0, false
	}
	w, ok := t.weights[key]
	return w, ok
}

// Put implements Store.
func (m *Memory) Put(pred string, key ir.Key, weight float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[pred]
	if !ok {
		t = &table{weights: make(map[ir.Key]float64)}
		m.tables[pred] = t
	}
	if _, exists := t.weights[key]; !exists {
		t.rows = append(t.rows, key.Values())
	}
	t.weights[key] = weight
}

// Add stores a fact, NFC-normalising its predicate and arguments so they
// compare equal to constants written in rule text.
func (m *Memory) Add(f ir.Fact) {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = norm.NFC.String(a)
	}
	m.Put(norm.NFC.String(f.Predicate), ir.KeyOf(args...), f.Weight)
}

// Len returns the number of stored facts across all predicates.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, t := range m.tables {
		n += len(t.weights)
	}
	return n
}

// Predicates returns the stored predicate names, sorted.
func (m *Memory) Predicates() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	preds := make([]string, 0, len(m.tables))
	for p := range m.tables {
		preds = append(preds, p)
	}
	slices.Sort(preds)
	return preds
}

// Facts returns a snapshot of every fact, sorted by predicate and then by
// argument tuple.
func (m *Memory) Facts() []ir.Fact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ir.Fact
	for pred, t := range m.tables {
		for _, row := range t.rows {
			out = append(out, ir.Fact{
				Predicate: pred,
				Args:      row,
				Weight:    t.weights[ir.KeyOf(row...)],
			})
		}
	}
	slices.SortFunc(out, compareFacts)
	return out
}

func compareFacts(a, b ir.Fact) int {
	if c := strings.Compare(a.Predicate, b.Predicate); c != 0 {
		return c
	}
	return slices.Compare(a.Args, b.Args)
}
