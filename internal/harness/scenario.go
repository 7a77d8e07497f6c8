package harness

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gaplus/internal/facts"
)

// Scenario defines one rule-evaluation test case.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules are rule-file lines; RulesFile is a rule file path. At least one
	// is required. Inline rules follow the file's rules.
	Rules     []string `yaml:"rules,omitempty"`
	RulesFile string   `yaml:"rules_file,omitempty"`

	// Facts seed the fact store, keyed by predicate. FactsFile is a YAML
	// facts file loaded before the inline facts.
	Facts     map[string][]facts.Entry `yaml:"facts,omitempty"`
	FactsFile string                   `yaml:"facts_file,omitempty"`

	// Expect maps a predicate to its expected facts.
	Expect map[string]Expectation `yaml:"expect"`

	// Epsilon overrides the compiler's convergence tolerance.
	Epsilon float64 `yaml:"epsilon,omitempty"`

	// MaxIterations overrides the runner's iteration budget.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// Workers sets runner concurrency. Default: 1, so golden runs are
	// sequential.
	Workers int `yaml:"workers,omitempty"`

	// RunID is the fixed run ID used for the export.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Expectation lists the facts one predicate must hold at the fixpoint.
type Expectation struct {
	Facts []facts.Entry `yaml:"facts"`

	// Exact requires that the predicate holds no other facts.
	Exact bool `yaml:"exact,omitempty"`

	// Tolerance is the allowed absolute weight difference.
	// Default: DefaultTolerance.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// DefaultTolerance is the weight tolerance of an expectation that sets none.
const DefaultTolerance = 1e-9

// LoadScenario reads and parses a scenario YAML file.
// Relative rules_file and facts_file paths resolve against the scenario's
// directory. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving relative file references against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.RulesFile = resolve(basePath, scenario.RulesFile)
	scenario.FactsFile = resolve(basePath, scenario.FactsFile)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Rules) == 0 && s.RulesFile == "" {
		return fmt.Errorf("rules or rules_file is required")
	}

	if len(s.Expect) == 0 {
		return fmt.Errorf("expect is required and must be non-empty")
	}

	if s.Epsilon < 0 || math.IsNaN(s.Epsilon) {
		return fmt.Errorf("epsilon must be non-negative")
	}

	if s.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be non-negative")
	}

	if s.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}

	for _, path := range []string{s.RulesFile, s.FactsFile} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", path)
		}
	}

	for pred, exp := range s.Expect {
		if exp.Tolerance < 0 {
			return fmt.Errorf("expect.%s: tolerance must be non-negative", pred)
		}
		if len(exp.Facts) == 0 && !exp.Exact {
			return fmt.Errorf("expect.%s: facts is required unless exact is set", pred)
		}
		for i, e := range exp.Facts {
			if len(e.Args) == 0 {
				return fmt.Errorf("expect.%s[%d]: args is required", pred, i)
			}
		}
	}

	return nil
}
