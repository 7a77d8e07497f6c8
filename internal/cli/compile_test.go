package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Text(t *testing.T) {
	rules := writeFile(t, t.TempDir(), "closure.gap", closureRules+"edge(a,b):0.9\n")

	out, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), rules)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 3 rule(s) over 2 predicate(s)")
	assert.Contains(t, out, "Types: 1 header, 2 ground, 0 complex")
	assert.Contains(t, out, "path(X,Y):W <- edge(X,Y):W")
	assert.Contains(t, out, "Hash: ")
}

func TestCompile_JSON(t *testing.T) {
	rules := writeFile(t, t.TempDir(), "closure.gap", closureRules)

	out, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), rules)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data.Hash, 64)
	assert.Equal(t, []string{"path", "edge"}, resp.Data.Predicates)
	require.Len(t, resp.Data.Rules, 2)
	assert.Equal(t, map[string]int{"X": 0, "Y": 1, "W": 2}, resp.Data.Rules[0].Variables)
}

func TestCompile_OutputFile(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "closure.gap", closureRules)
	outFile := filepath.Join(dir, "compiled.json")

	out, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), rules, "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote compiled rules to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var written CompilationResult
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Len(t, written.Rules, 2)
}

func TestCompile_CollectsAllErrors(t *testing.T) {
	rules := writeFile(t, t.TempDir(), "bad.gap", "p(X):W <- q(X)\np(X):W <- q(X):W\nr(X):V <- s(X):W\n")

	out, err := execute(NewCompileCommand(&RootOptions{Format: "text"}), rules)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "compilation failed with 2 error(s)")

	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, rules+":1")
	assert.Contains(t, out, rules+":3")
	assert.Contains(t, out, ErrCodeParse)
	assert.Contains(t, out, ErrCodeBuildFailed)
}

func TestCompile_ErrorsJSON(t *testing.T) {
	rules := writeFile(t, t.TempDir(), "bad.gap", "p(X):W <- q(X)\n")

	out, err := execute(NewCompileCommand(&RootOptions{Format: "json"}), rules)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeParse, resp.Error.Code)
}

func TestCompile_NotFound(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/rules.gap"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, buf.String(), "not found")
}
