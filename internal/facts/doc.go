// Package facts holds weighted facts: the store contract the compiler and
// engine consume, an in-memory implementation, and the YAML facts loader.
//
// A fact is a predicate, a tuple of constant arguments and a weight. The
// store keeps at most one weight per (predicate, key); writers only ever
// raise a weight, the engine decides when.
package facts
