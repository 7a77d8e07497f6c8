package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/gaplus/internal/compiler"
	"github.com/roach88/gaplus/internal/config"
	"github.com/roach88/gaplus/internal/engine"
	"github.com/roach88/gaplus/internal/facts"
	"github.com/roach88/gaplus/internal/ir"
	"github.com/roach88/gaplus/internal/relalg"
	"github.com/roach88/gaplus/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Facts         string
	Config        string
	Epsilon       float64
	MaxIterations int
	Workers       int
	MaxJoinRows   int
	Out           string
	All           bool

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunSummary is the result of a run.
type RunSummary struct {
	RunID     string        `json:"run_id,omitempty"`
	RulesHash string        `json:"rules_hash"`
	Epsilon   float64       `json:"epsilon"`
	Report    engine.Report `json:"report"`
	Facts     []ir.Fact     `json:"facts"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <rules>",
		Short: "Evaluate a rule set to its fixpoint",
		Long: `Compile a rule set, seed the fact store and evaluate every rule until no
weight improves by more than epsilon.

Settings come from an optional CUE config file; flags override it. With
--out the fixpoint is exported to a SQLite database (created if missing).

Example:
  gap run rules.gap --facts edges.yaml
  gap run ./rules --config gap.cue --workers 8 --out results.db --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Facts, "facts", "", "path to a YAML facts file")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to a CUE config file")
	cmd.Flags().Float64Var(&opts.Epsilon, "eps", compiler.DefaultEpsilon, "convergence tolerance")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", engine.DefaultMaxIterations, "iteration budget")
	cmd.Flags().IntVar(&opts.Workers, "workers", engine.DefaultWorkers, "rules evaluated concurrently")
	cmd.Flags().IntVar(&opts.MaxJoinRows, "max-join-rows", 0, "row cap for a single join (0 = unlimited)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "export the fixpoint to this SQLite database")
	cmd.Flags().BoolVar(&opts.All, "all", false, "print input facts as well as derived ones")

	return cmd
}

func runEngine(opts *RunOptions, rulesPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return outputRunError(formatter, err, ExitCommandError)
	}
	applyRunFlags(cfg, opts, cmd)

	// Logs go to stderr so they never corrupt JSON output
	logLevel := cfg.Level()
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(formatter.GetErrWriter(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	logger.Info("loading rules", "path", rulesPath)
	loadResult, loadErrors := LoadRules(rulesPath, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return outputRunError(formatter, loadErrors[0], ExitCommandError)
	}
	if err := CheckRules(loadResult.Rules); err != nil {
		return outputRunError(formatter, err, ExitCommandError)
	}
	driver, err := BuildDriver(loadResult, cfg.Epsilon)
	if err != nil {
		return outputRunError(formatter, err, ExitCommandError)
	}
	logger.Info("rules compiled", "rules", len(driver.Rules()), "predicates", len(driver.Predicates()))

	mem := facts.NewMemory()
	if opts.Facts != "" {
		seed, err := LoadFacts(opts.Facts)
		if err != nil {
			return outputRunError(formatter, err, ExitCommandError)
		}
		if err := CheckFacts(driver.Rules(), seed, opts.Facts); err != nil {
			return outputRunError(formatter, err, ExitCommandError)
		}
		facts.Seed(mem, seed)
		logger.Info("facts loaded", "path", opts.Facts, "facts", len(seed))
	}

	agentOpts := []relalg.CPUOption{}
	if cfg.MaxJoinRows > 0 {
		agentOpts = append(agentOpts, relalg.WithMaxRows(cfg.MaxJoinRows))
	}
	runner := engine.NewRunner(driver.Compiled(), mem,
		engine.WithLogger(logger),
		engine.WithWorkers(cfg.Workers),
		engine.WithMaxIterations(cfg.MaxIterations),
		engine.WithAgent(relalg.NewCPU(agentOpts...)),
	)

	ctx, stop := signalContext(cmd.Context(), logger)
	defer stop()

	report, err := runner.Run(ctx)
	if err != nil {
		return outputRunError(formatter, err, ExitFailure)
	}

	summary := RunSummary{
		RulesHash: ir.RuleSetHash(driver.Rules()),
		Epsilon:   driver.Epsilon(),
		Report:    report,
		Facts:     selectFacts(mem.Facts(), driver.Rules(), opts.All),
	}

	if opts.Out != "" {
		runIDs := opts.RunIDs
		if runIDs == nil {
			runIDs = engine.UUIDv7Generator{}
		}
		summary.RunID = runIDs.Generate()
		if err := exportRun(ctx, opts.Out, summary, mem.Facts()); err != nil {
			return outputRunError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Path: opts.Out}, ExitCommandError)
		}
		logger.Info("fixpoint exported", "db", opts.Out, "run_id", summary.RunID)
	}

	return outputRunSuccess(formatter, summary)
}

// applyRunFlags lets explicitly set flags override config values.
func applyRunFlags(cfg *config.Config, opts *RunOptions, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("eps") {
		cfg.Epsilon = opts.Epsilon
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations = opts.MaxIterations
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("max-join-rows") {
		cfg.MaxJoinRows = opts.MaxJoinRows
	}
}

// signalContext derives a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}

// selectFacts keeps the facts of derived predicates unless all is set.
func selectFacts(all []ir.Fact, rules []*ir.Rule, includeInputs bool) []ir.Fact {
	if includeInputs {
		return all
	}
	var heads []string
	for _, r := range rules {
		if len(r.Body) > 0 && !slices.Contains(heads, r.Header.Predicate) {
			heads = append(heads, r.Header.Predicate)
		}
	}
	out := []ir.Fact{}
	for _, f := range all {
		if slices.Contains(heads, f.Predicate) {
			out = append(out, f)
		}
	}
	return out
}

// exportRun writes the run and every fact of the fixpoint.
func exportRun(ctx context.Context, path string, summary RunSummary, fixpoint []ir.Fact) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	run := store.Run{
		ID:         summary.RunID,
		RulesHash:  summary.RulesHash,
		Iterations: summary.Report.Iterations,
		Converged:  summary.Report.Converged,
		Epsilon:    summary.Epsilon,
		Added:      summary.Report.Added,
		Changed:    summary.Report.Changed,
	}
	if err := st.WriteRun(ctx, run); err != nil {
		return err
	}
	return st.WriteFacts(ctx, run.ID, fixpoint)
}

// outputRunSuccess outputs the fixpoint.
func outputRunSuccess(formatter *OutputFormatter, summary RunSummary) error {
	if formatter.Format == "json" {
		return formatter.Success(summary)
	}

	fmt.Fprintf(formatter.Writer, "✓ Fixpoint reached after %d iteration(s): %d added, %d changed\n\n",
		summary.Report.Iterations, summary.Report.Added, summary.Report.Changed)

	for _, f := range summary.Facts {
		fmt.Fprintf(formatter.Writer, "  %s\n", f)
	}
	if len(summary.Facts) > 0 {
		fmt.Fprintln(formatter.Writer)
	}

	if summary.RunID != "" {
		fmt.Fprintf(formatter.Writer, "Exported run %s\n", summary.RunID)
	}
	return nil
}

// outputRunError reports err and returns it with the given exit code.
// Runtime errors keep their own code.
func outputRunError(formatter *OutputFormatter, err error, exitCode int) error {
	code, message := ErrCodeGeneric, err.Error()

	var loadErr *LoadError
	var runtimeErr *engine.RuntimeError
	switch {
	case errors.As(err, &loadErr):
		code, message = loadErr.Code, loadErr.Error()
	case errors.As(err, &runtimeErr):
		code = string(runtimeErr.Code)
	case errors.Is(err, context.Canceled):
		code, message = "CANCELLED", "run cancelled before reaching a fixpoint"
	}

	_ = formatter.Error(code, message, nil)
	return WrapExitError(exitCode, code, err)
}
