package facts

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gaplus/internal/ir"
)

// Entry is one fact of a predicate in a facts file.
type Entry struct {
	Args   []string `yaml:"args"`
	Weight float64  `yaml:"weight"`
}

// File is the document shape of a facts file:
//
//	facts:
//	  q:
//	    - args: ["1"]
//	      weight: 0.3
type File struct {
	Facts map[string][]Entry `yaml:"facts"`
}

// LoadFile reads a YAML facts file.
func LoadFile(path string) ([]ir.Fact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read facts file: %w", err)
	}
	facts, err := LoadYAML(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return facts, nil
}

// LoadYAML decodes a facts document. Unknown fields are rejected. Facts are
// returned sorted by predicate, each predicate's facts in file order.
func LoadYAML(r io.Reader) ([]ir.Fact, error) {
	var doc File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return doc.List()
}

// List flattens and validates the document's facts.
func (f File) List() ([]ir.Fact, error) {
	preds := make([]string, 0, len(f.Facts))
	for p := range f.Facts {
		preds = append(preds, p)
	}
	slices.Sort(preds)

	var out []ir.Fact
	for _, pred := range preds {
		if pred == "" {
			return nil, fmt.Errorf("facts: empty predicate name")
		}
		for i, e := range f.Facts[pred] {
			if len(e.Args) == 0 {
				return nil, fmt.Errorf("facts.%s[%d]: args is required", pred, i)
			}
			if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
				return nil, fmt.Errorf("facts.%s[%d]: weight must be finite", pred, i)
			}
			out = append(out, ir.Fact{Predicate: pred, Args: e.Args, Weight: e.Weight})
		}
	}
	return out, nil
}

// Seed adds every fact to the store.
func Seed(m *Memory, facts []ir.Fact) {
	for _, f := range facts {
		m.Add(f)
	}
}
