package facts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	src := `
facts:
  r:
    - args: ["1"]
      weight: 0.7
  q:
    - args: ["2"]
      weight: 0.9
    - args: ["1"]
      weight: 0.3
`
	got, err := LoadYAML(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, got, 3)

	// predicates sorted, file order within a predicate
	assert.Equal(t, "q(2):0.9", got[0].String())
	assert.Equal(t, "q(1):0.3", got[1].String())
	assert.Equal(t, "r(1):0.7", got[2].String())
}

func TestLoadYAML_Empty(t *testing.T) {
	got, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown field", "facts: {}\nrules: []\n", "failed to parse YAML"},
		{"unknown entry field", "facts:\n  q:\n    - args: [\"1\"]\n      wieght: 1\n", "failed to parse YAML"},
		{"missing args", "facts:\n  q:\n    - weight: 1\n", "args is required"},
		{"nan weight", "facts:\n  q:\n    - args: [\"1\"]\n      weight: .nan\n", "weight must be finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile_AndSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("facts:\n  edge:\n    - args: [a, b]\n      weight: 1\n"), 0o644))

	got, err := LoadFile(path)
	require.NoError(t, err)

	m := NewMemory()
	Seed(m, got)
	assert.Equal(t, [][]string{{"a", "b"}}, m.Tuples("edge"))
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read facts file")
}
