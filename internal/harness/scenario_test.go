package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content to dir/name and returns the path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "closure.yaml", `
name: closure
description: "Closure over two edges"
rules:
  - path(X,Y):W <- edge(X,Y):W
facts:
  edge:
    - args: [a, b]
      weight: 0.5
expect:
  path:
    facts:
      - args: [a, b]
        weight: 0.5
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "closure", scenario.Name)
	assert.Equal(t, []string{"path(X,Y):W <- edge(X,Y):W"}, scenario.Rules)
	require.Len(t, scenario.Facts["edge"], 1)
	assert.Equal(t, []string{"a", "b"}, scenario.Facts["edge"][0].Args)
	require.Contains(t, scenario.Expect, "path")
	assert.False(t, scenario.Expect["path"].Exact)
}

func TestLoadScenario_ResolvesFilesRelativeToScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "rules"), 0o755))
	writeScenario(t, dir, filepath.Join("rules", "r.gap"), "p(X):W <- q(X):W\n")
	writeScenario(t, dir, "facts.yaml", "facts: {}\n")

	path := writeScenario(t, dir, "s.yaml", `
name: files
description: "Rules and facts from files"
rules_file: rules/r.gap
facts_file: facts.yaml
expect:
  p:
    exact: true
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rules", "r.gap"), scenario.RulesFile)
	assert.Equal(t, filepath.Join(dir, "facts.yaml"), scenario.FactsFile)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	base := t.TempDir()
	writeScenario(t, base, "r.gap", "p(X):W <- q(X):W\n")

	path := writeScenario(t, t.TempDir(), "s.yaml", `
name: based
description: "Rules file under another directory"
rules_file: r.gap
expect:
  p:
    exact: true
`)

	scenario, err := LoadScenarioWithBasePath(path, base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "r.gap"), scenario.RulesFile)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "bad.yaml", "name: [unterminated\n")

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "typo.yaml", `
name: typo
description: "Misspelled key"
rules: ["p(X):W <- q(X):W"]
expects:
  p:
    exact: true
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: "d"
rules: ["p(X):W <- q(X):W"]
expect: {p: {exact: true}}
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
rules: ["p(X):W <- q(X):W"]
expect: {p: {exact: true}}
`,
			wantErr: "description is required",
		},
		{
			name: "missing rules",
			content: `
name: n
description: "d"
expect: {p: {exact: true}}
`,
			wantErr: "rules or rules_file is required",
		},
		{
			name: "missing expect",
			content: `
name: n
description: "d"
rules: ["p(X):W <- q(X):W"]
`,
			wantErr: "expect is required",
		},
		{
			name: "negative epsilon",
			content: `
name: n
description: "d"
rules: ["p(X):W <- q(X):W"]
epsilon: -1
expect: {p: {exact: true}}
`,
			wantErr: "epsilon must be non-negative",
		},
		{
			name: "rules file not found",
			content: `
name: n
description: "d"
rules_file: nowhere.gap
expect: {p: {exact: true}}
`,
			wantErr: "file not found",
		},
		{
			name: "expectation without facts",
			content: `
name: n
description: "d"
rules: ["p(X):W <- q(X):W"]
expect: {p: {}}
`,
			wantErr: "expect.p: facts is required unless exact is set",
		},
		{
			name: "expected fact without args",
			content: `
name: n
description: "d"
rules: ["p(X):W <- q(X):W"]
expect:
  p:
    facts:
      - weight: 0.5
`,
			wantErr: "expect.p[0]: args is required",
		},
		{
			name: "negative tolerance",
			content: `
name: n
description: "d"
rules: ["p(X):W <- q(X):W"]
expect: {p: {exact: true, tolerance: -0.1}}
`,
			wantErr: "tolerance must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "s.yaml", tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
