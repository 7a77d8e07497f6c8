// Package testutil holds deterministic stand-ins used by the scenario
// harness and tests.
package testutil

import (
	"io"
	"log/slog"
)

// DefaultRunID is the run ID used when a scenario does not name one.
const DefaultRunID = "test-run-default"

// FixedRunIDGenerator returns the same run ID every time.
//
// Unlike engine.FixedGenerator, which hands out ids in sequence, this
// generator never runs out, so a scenario can be exported any number of
// times under one id and still produce byte-identical snapshots.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator for id.
// If id is empty, Generate returns DefaultRunID.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID.
//
// Implements engine.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
