package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/gaplus/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Rules     int                        `json:"rules"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
	Recursion []compiler.Recursion       `json:"recursion,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules>",
		Short: "Validate a rule set without evaluating it",
		Long: `Validate a rule file (or every .gap file in a directory).

Reports malformed rules, unbound variables, predicates used with different
arities, thresholds that always pass, duplicate rules and predicates that
must be supplied as facts. Recursive predicate groups are listed for
information. Only error-level findings fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, rulesPath string, cmd *cobra.Command) error {
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
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d rule file(s) in %s", loadResult.FileCount, rulesPath)

	result := ValidationResult{Rules: len(loadResult.Rules)}
	result.Errors = append(result.Errors, loadErrorsToFindings(loadErrors)...)

	if len(loadErrors) == 0 {
		if _, err := BuildDriver(loadResult, compiler.DefaultEpsilon); err != nil {
			result.Errors = append(result.Errors, loadErrorsToFindings([]error{err})...)
		}
	}

	result.Errors = append(result.Errors, compiler.Validate(loadResult.Rules)...)
	result.Recursion = compiler.AnalyzeRecursion(loadResult.Rules)
	result.Valid = !compiler.HasErrors(result.Errors)

	for _, rec := range result.Recursion {
		formatter.VerboseLog("Recursion: %s", rec.Message)
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// loadErrorsToFindings converts load errors to error-level findings.
func loadErrorsToFindings(errs []error) []compiler.ValidationError {
	var out []compiler.ValidationError
	for _, err := range errs {
		finding := compiler.ValidationError{
			Field:   "rules",
			Message: err.Error(),
			Code:    ErrCodeGeneric,
			Level:   compiler.LevelError,
		}
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			finding.Message = loadErr.Message
			finding.Code = loadErr.Code
			finding.Line = loadErr.Line
			if loadErr.Path != "" {
				finding.Field = loadErr.Path
			}
		}
		out = append(out, finding)
	}
	return out
}

// outputValidateSuccess outputs successful validation results, including
// warnings and informational findings.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d rule(s) valid\n", result.Rules)
	if len(result.Errors) > 0 {
		fmt.Fprintln(formatter.Writer)
		printFindings(formatter, result.Errors)
	}
	if formatter.Verbose {
		for _, rec := range result.Recursion {
			fmt.Fprintf(formatter.Writer, "  info: %s\n", rec.Message)
		}
	}
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Unreadable input is a command-level error (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs a failed validation.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	first := result.Errors[0]
	for _, e := range result.Errors {
		if e.Level == compiler.LevelError {
			first = e
			break
		}
	}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    first.Code,
				Message: first.Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d finding(s)", len(result.Errors)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	printFindings(formatter, result.Errors)

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d finding(s)", len(result.Errors)))
}

func printFindings(formatter *OutputFormatter, findings []compiler.ValidationError) {
	for _, f := range findings {
		if f.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", f.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s [%s] %s: %s\n\n", f.Code, f.Level, f.Field, f.Message)
	}
}
