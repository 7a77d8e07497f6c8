package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/gaplus/internal/compiler"
	"github.com/roach88/gaplus/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the analysed rules of a rule set.
type CompilationResult struct {
	Hash       string     `json:"hash"`
	Predicates []string   `json:"predicates"`
	Rules      []*ir.Rule `json:"rules"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	RuleCount      int
	PredicateCount int
	ByType         map[ir.RuleType]int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <rules>",
		Short: "Parse, analyse and compile a rule set",
		Long: `Parse and analyse a rule file (or every .gap file in a directory) and
compile each rule's update procedure.

Reports every malformed rule, not just the first. With --output the
analysed rule set (variable index, pictures, evaluation order) is written
as JSON.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, rulesPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadRules(rulesPath, LoadModeCollectAll)

	// Nothing readable (path not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d rule file(s) in %s", loadResult.FileCount, rulesPath)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	for _, rule := range loadResult.Rules {
		formatter.VerboseLog("Compiling rule (line %d): %s", rule.Line, rule.Text)
	}

	driver, err := BuildDriver(loadResult, compiler.DefaultEpsilon)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}

	result := &CompilationResult{
		Hash:       ir.RuleSetHash(driver.Rules()),
		Predicates: driver.Predicates(),
		Rules:      driver.Rules(),
	}
	stats := calculateStats(result)

	if opts.Output != "" {
		if err := writeRulesToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// calculateStats computes summary statistics from a compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{
		RuleCount:      len(result.Rules),
		PredicateCount: len(result.Predicates),
		ByType:         make(map[ir.RuleType]int),
	}
	for _, rule := range result.Rules {
		stats.ByType[rule.Type]++
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d rule(s) over %d predicate(s)\n\n",
		stats.RuleCount, stats.PredicateCount)

	fmt.Fprintf(formatter.Writer, "Types: %d header, %d ground, %d complex\n\n",
		stats.ByType[ir.RuleHeader], stats.ByType[ir.RuleGround], stats.ByType[ir.RuleComplex])

	fmt.Fprintln(formatter.Writer, "Rules:")
	for _, rule := range result.Rules {
		fmt.Fprintf(formatter.Writer, "  %-7s %s\n", rule.Type, rule)
	}
	fmt.Fprintln(formatter.Writer)

	fmt.Fprintf(formatter.Writer, "Hash: %s\n", result.Hash)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote compiled rules to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
			var loadErr *LoadError
			if errors.As(err, &loadErr) && loadErr.Line > 0 {
				cliErrors[i].Details = map[string]any{"path": loadErr.Path, "line": loadErr.Line}
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Line > 0 {
			if loadErr.Path != "" {
				fmt.Fprintf(formatter.Writer, "%s:%d\n", loadErr.Path, loadErr.Line)
			} else {
				fmt.Fprintf(formatter.Writer, "line %d\n", loadErr.Line)
			}
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapCompileErrorToCode(compileErr), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeRulesToFile writes the compilation result as indented JSON.
func writeRulesToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
