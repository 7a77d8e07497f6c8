package store

import (
	"context"
	"fmt"

	"github.com/roach88/gaplus/internal/ir"
)

// Run is one exported evaluation run.
type Run struct {
	ID            string  `json:"id"`
	RulesHash     string  `json:"rules_hash"`
	Iterations    int     `json:"iterations"`
	Converged     bool    `json:"converged"`
	Epsilon       float64 `json:"epsilon"`
	Added         int     `json:"added"`
	Changed       int     `json:"changed"`
	EngineVersion string  `json:"engine_version"`
	IRVersion     string  `json:"ir_version"`
}

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	if run.EngineVersion == "" {
		run.EngineVersion = ir.EngineVersion
	}
	if run.IRVersion == "" {
		run.IRVersion = ir.IRVersion
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, rules_hash, iterations, converged, epsilon, added, changed, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.RulesHash,
		run.Iterations,
		boolToInt(run.Converged),
		run.Epsilon,
		run.Added,
		run.Changed,
		run.EngineVersion,
		run.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteFacts stores the facts of a run in a single transaction. Writing
// the same fact again overwrites its weight. The run must exist.
func (s *Store) WriteFacts(ctx context.Context, runID string, facts []ir.Fact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write facts: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO facts (run_id, predicate, args_key, arity, weight)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, predicate, args_key) DO UPDATE SET weight = excluded.weight
	`)
	if err != nil {
		return fmt.Errorf("write facts: prepare: %w", err)
	}
	defer stmt.Close()

	for _, f := range facts {
		key, err := marshalArgs(f.Args)
		if err != nil {
			return fmt.Errorf("write facts: %s: %w", f, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, f.Predicate, key, len(f.Args), f.Weight); err != nil {
			return fmt.Errorf("write facts: %s: %w", f, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write facts: commit: %w", err)
	}
	return nil
}
