package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/gaplus/internal/ir"
)

// ErrRunNotFound is returned by ReadRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns a run record.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, rules_hash, iterations, converged, epsilon, added, changed, engine_version, ir_version
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns every run, ordered by ID. UUIDv7 IDs sort by creation time.
//
// Returns an empty slice (not nil) if no run exists.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rules_hash, iterations, converged, epsilon, added, changed, engine_version, ir_version
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadFacts returns the facts of a run ordered by predicate, then argument
// key.
//
// Returns an empty slice (not nil) if the run has no facts.
func (s *Store) ReadFacts(ctx context.Context, runID string) ([]ir.Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT predicate, args_key, weight
		FROM facts
		WHERE run_id = ?
		ORDER BY predicate COLLATE BINARY ASC, args_key COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	facts := []ir.Fact{}
	for rows.Next() {
		var (
			f   ir.Fact
			key string
		)
		if err := rows.Scan(&f.Predicate, &key, &f.Weight); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		if f.Args, err = unmarshalArgs(key); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		converged int
	)
	err := row.Scan(
		&run.ID,
		&run.RulesHash,
		&run.Iterations,
		&converged,
		&run.Epsilon,
		&run.Added,
		&run.Changed,
		&run.EngineVersion,
		&run.IRVersion,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Converged = converged == 1
	return run, nil
}
