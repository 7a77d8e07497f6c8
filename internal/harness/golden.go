package harness

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FixpointSnapshot captures the deterministic part of a scenario result.
// Facts are rendered as "p(a,b):0.5" in export order; iteration counts and
// durations are left out.
type FixpointSnapshot struct {
	Scenario  string   `json:"scenario"`
	Converged bool     `json:"converged"`
	Facts     []string `json:"facts"`
}

// Snapshot builds the snapshot of a result.
func Snapshot(name string, result *Result) FixpointSnapshot {
	lines := make([]string, len(result.Facts))
	for i, f := range result.Facts {
		lines[i] = f.String()
	}
	return FixpointSnapshot{
		Scenario:  name,
		Converged: result.Report.Converged,
		Facts:     lines,
	}
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s FixpointSnapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its fixpoint against
// testdata/golden/{scenario.Name}.golden.
//
// Returns an error if the scenario cannot be executed. A snapshot mismatch
// fails the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// ErrGoldenMismatch is returned by CompareGolden when a snapshot differs
// from its golden file.
var ErrGoldenMismatch = errors.New("fixpoint differs from golden file")

// GoldenPath returns the golden file of a scenario kept next to its
// scenario file: {dir}/golden/{name}.golden.
func GoldenPath(scenarioFile, name string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// WriteGolden writes the result's snapshot to path, creating directories
// as needed.
func WriteGolden(path, name string, result *Result) error {
	data, err := Snapshot(name, result).Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// CompareGolden compares the result's snapshot with the golden file at
// path. A missing file yields an error satisfying errors.Is(err,
// fs.ErrNotExist).
func CompareGolden(path, name string, result *Result) error {
	want, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	got, err := Snapshot(name, result).Marshal()
	if err != nil {
		return err
	}
	if !bytes.Equal(want, got) {
		return fmt.Errorf("%w: %s", ErrGoldenMismatch, path)
	}
	return nil
}
