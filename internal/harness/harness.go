package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/gaplus/internal/compiler"
	"github.com/roach88/gaplus/internal/engine"
	"github.com/roach88/gaplus/internal/facts"
	"github.com/roach88/gaplus/internal/ir"
	"github.com/roach88/gaplus/internal/store"
	"github.com/roach88/gaplus/internal/testutil"
)

// Harness is the scenario execution environment.
// It runs scenarios with a fixed run ID and a discarding logger.
type Harness struct {
	store  *store.Store
	runIDs engine.RunIDGenerator
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh fact store and a fresh in-memory
// database for isolation.
//
// Execution flow:
//  1. Compile the rules
//  2. Seed the fact store
//  3. Evaluate to the fixpoint
//  4. Export the fixpoint and read it back
//  5. Evaluate expectations against the exported facts
//
// An error is returned when the scenario cannot be executed (bad rules,
// runtime failure); failed expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		runIDs: testutil.NewFixedRunIDGenerator(scenario.RunID),
		logger: testutil.DiscardLogger(),
	}
	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	driver, err := h.compile(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	mem := facts.NewMemory()
	if err := h.seed(mem, driver, scenario); err != nil {
		return nil, fmt.Errorf("failed to seed facts: %w", err)
	}

	workers := scenario.Workers
	if workers == 0 {
		workers = 1
	}
	opts := []engine.RunnerOption{
		engine.WithLogger(h.logger),
		engine.WithWorkers(workers),
	}
	if scenario.MaxIterations > 0 {
		opts = append(opts, engine.WithMaxIterations(scenario.MaxIterations))
	}

	report, err := engine.NewRunner(driver.Compiled(), mem, opts...).Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reach fixpoint: %w", err)
	}

	result := NewResult()
	result.Report = report
	result.RunID = h.runIDs.Generate()

	exported, err := h.export(ctx, result.RunID, driver, report, mem)
	if err != nil {
		return nil, err
	}
	result.Facts = exported

	for _, msg := range EvaluateExpectations(result, scenario.Expect) {
		result.AddError(msg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"iterations", report.Iterations,
		"facts", len(exported),
		"pass", result.Pass,
	)
	return result, nil
}

func (h *Harness) compile(scenario *Scenario) (*compiler.Driver, error) {
	var opts []compiler.DriverOption
	if scenario.Epsilon > 0 {
		opts = append(opts, compiler.WithEpsilon(scenario.Epsilon))
	}
	driver := compiler.NewDriver(opts...)

	if scenario.RulesFile != "" {
		if err := driver.Load(scenario.RulesFile); err != nil {
			return nil, err
		}
	}
	if len(scenario.Rules) > 0 {
		if err := driver.LoadString(strings.Join(scenario.Rules, "\n")); err != nil {
			return nil, err
		}
	}
	if err := checkFindings(compiler.Validate(driver.Rules())); err != nil {
		return nil, err
	}
	if err := driver.PreRun(); err != nil {
		return nil, err
	}
	return driver, nil
}

// checkFindings returns the first error-level finding.
func checkFindings(findings []compiler.ValidationError) error {
	for _, f := range findings {
		if f.Level == compiler.LevelError {
			return f
		}
	}
	return nil
}

func (h *Harness) seed(mem *facts.Memory, driver *compiler.Driver, scenario *Scenario) error {
	var all []ir.Fact
	if scenario.FactsFile != "" {
		fromFile, err := facts.LoadFile(scenario.FactsFile)
		if err != nil {
			return err
		}
		all = append(all, fromFile...)
	}
	inline, err := facts.File{Facts: scenario.Facts}.List()
	if err != nil {
		return err
	}
	all = append(all, inline...)

	if err := checkFindings(compiler.ValidateFacts(driver.Rules(), all)); err != nil {
		return err
	}
	facts.Seed(mem, all)
	return nil
}

// export writes the fixpoint to the store and reads it back, so
// expectations see what a persisted run holds.
func (h *Harness) export(ctx context.Context, runID string, driver *compiler.Driver, report engine.Report, mem *facts.Memory) ([]ir.Fact, error) {
	run := store.Run{
		ID:         runID,
		RulesHash:  ir.RuleSetHash(driver.Rules()),
		Iterations: report.Iterations,
		Converged:  report.Converged,
		Epsilon:    driver.Epsilon(),
		Added:      report.Added,
		Changed:    report.Changed,
	}
	if err := h.store.WriteRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to export run: %w", err)
	}
	if err := h.store.WriteFacts(ctx, runID, mem.Facts()); err != nil {
		return nil, fmt.Errorf("failed to export facts: %w", err)
	}
	exported, err := h.store.ReadFacts(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read exported facts: %w", err)
	}
	return exported, nil
}
