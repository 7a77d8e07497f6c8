package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/gaplus/internal/compiler"
	"github.com/roach88/gaplus/internal/config"
	"github.com/roach88/gaplus/internal/facts"
	"github.com/roach88/gaplus/internal/ir"
)

// RuleFileExt is the extension of rule files found when a directory is
// given instead of a file.
const RuleFileExt = ".gap"

// maxRuleLine bounds a single rule line.
const maxRuleLine = 1 << 20

// LoadMode controls how errors are handled during rule loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the rules loaded from a file or directory.
type LoadResult struct {
	Rules     []*ir.Rule
	Files     []string // rule files read, in load order
	FileCount int
}

// LoadError represents an error that occurred while loading rules, facts
// or configuration.
type LoadError struct {
	Code    string
	Message string
	Path    string // file, if known
	Line    int    // 1-based line, if known
}

func (e *LoadError) Error() string {
	if e.Path != "" && e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %s", e.Path, e.Line, e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeParse         = "E002" // Malformed block or rule
	ErrCodeNoRules       = "E003" // No rules found
	ErrCodeLoadFailed    = "E004" // File read failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // Unknown variable or update compilation failed
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeFactsInvalid  = "E008" // Facts file rejected
	ErrCodeConfigInvalid = "E009" // Config file rejected
	ErrCodeInvalid       = "E010" // Rule set fails static validation
)

// LoadRules parses every rule of a rule file, or of every *.gap file under
// a directory (in lexical path order).
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
// A nil result means nothing could be read.
func LoadRules(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing rules path: %v", err)}}
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindRuleFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoRules, Message: fmt.Sprintf("no %s files found in %s", RuleFileExt, path)}}
		}
	}

	result := &LoadResult{Files: files, FileCount: len(files)}
	var errs []error
	for _, file := range files {
		rules, fileErrs := parseRuleFile(file, mode)
		result.Rules = append(result.Rules, rules...)
		errs = append(errs, fileErrs...)
		if len(errs) > 0 && mode == LoadModeFailFast {
			return result, errs
		}
	}

	if len(result.Rules) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoRules, Message: fmt.Sprintf("no rules found in %s", path)})
	}
	return result, errs
}

// parseRuleFile parses one rule per line, skipping blank lines and lines
// starting with '#' or '%'.
func parseRuleFile(path string, mode LoadMode) ([]*ir.Rule, []error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading rules file: %v", err), Path: path}}
	}
	defer f.Close()

	var (
		rules []*ir.Rule
		errs  []error
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRuleLine)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "%") {
			continue
		}
		rule, err := compiler.ParseRule(text)
		if err != nil {
			errs = append(errs, convertCompileError(err, path, line))
			if mode == LoadModeFailFast {
				return rules, errs
			}
			continue
		}
		rule.Line = line
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading rules file: %v", err), Path: path})
	}
	return rules, errs
}

// FindRuleFiles walks the directory and returns all rule file paths, sorted.
func FindRuleFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == RuleFileExt {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// BuildDriver compiles loaded rules into a driver ready to run.
func BuildDriver(result *LoadResult, eps float64) (*compiler.Driver, error) {
	driver := compiler.NewDriver(compiler.WithEpsilon(eps))
	driver.Add(result.Rules...)
	if err := driver.PreRun(); err != nil {
		return nil, convertCompileError(err, "", 0)
	}
	return driver, nil
}

// CheckRules runs static validation over a rule set and returns the first
// error-level finding as a LoadError.
func CheckRules(rules []*ir.Rule) error {
	return firstFinding(compiler.Validate(rules), ErrCodeInvalid, "")
}

// CheckFacts rejects facts whose arity disagrees with the rules. path names
// the facts file in the error.
func CheckFacts(rules []*ir.Rule, fs []ir.Fact, path string) error {
	return firstFinding(compiler.ValidateFacts(rules, fs), ErrCodeFactsInvalid, path)
}

func firstFinding(findings []compiler.ValidationError, code, path string) error {
	for _, f := range findings {
		if f.Level != compiler.LevelError {
			continue
		}
		return &LoadError{
			Code:    code,
			Message: fmt.Sprintf("%s: %s", f.Code, f.Message),
			Path:    path,
			Line:    f.Line,
		}
	}
	return nil
}

// LoadFacts reads a YAML facts file.
func LoadFacts(path string) ([]ir.Fact, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("facts file not found: %s", path)}
	}
	list, err := facts.LoadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeFactsInvalid, Message: err.Error(), Path: path}
	}
	return list, nil
}

// LoadConfig reads a CUE config file, or returns the defaults when path is
// empty.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg, err := config.Default()
		if err != nil {
			return nil, &LoadError{Code: ErrCodeConfigInvalid, Message: err.Error()}
		}
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
	}
	cfg, err := config.Load(path)
	if err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			return nil, &LoadError{Code: ErrCodeConfigInvalid, Message: cfgErr.Message, Path: path}
		}
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Path: path}
	}
	return cfg, nil
}

// convertCompileError converts a compiler error to a LoadError with
// position info. A line stamped on the error wins over line.
func convertCompileError(err error, path string, line int) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		if compileErr.Line > 0 {
			line = compileErr.Line
		}
		return &LoadError{
			Code:    MapCompileErrorToCode(compileErr),
			Message: fmt.Sprintf("%v: %s: %q", compileErr.Kind, compileErr.Message, compileErr.Text),
			Path:    path,
			Line:    line,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: err.Error(),
		Path:    path,
		Line:    line,
	}
}

// MapCompileErrorToCode maps a compiler error kind to an error code.
func MapCompileErrorToCode(err *compiler.CompileError) string {
	switch {
	case errors.Is(err, compiler.ErrMalformedBlock), errors.Is(err, compiler.ErrMalformedRule):
		return ErrCodeParse
	case errors.Is(err, compiler.ErrUnknownVariable):
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}
