package cli

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRules_File(t *testing.T) {
	path := writeFile(t, t.TempDir(), "closure.gap", closureRules)

	result, errs := LoadRules(path, LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.FileCount)
	require.Len(t, result.Rules, 2)
	assert.Equal(t, 2, result.Rules[0].Line, "comment line still counts")
	assert.Equal(t, 3, result.Rules[1].Line)
}

func TestLoadRules_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.gap", "q(X):W <- r(X):W\n")
	writeFile(t, dir, "a.gap", "p(X):W <- q(X):W\n")
	writeFile(t, dir, filepath.Join("nested", "c.gap"), "s(X):W <- p(X):W\n")
	writeFile(t, dir, "notes.txt", "not a rule\n")

	result, errs := LoadRules(dir, LoadModeFailFast)
	require.Empty(t, errs)
	assert.Equal(t, 3, result.FileCount)
	require.Len(t, result.Rules, 3)
	assert.Equal(t, "p", result.Rules[0].Header.Predicate, "files load in path order")
	assert.Equal(t, "q", result.Rules[1].Header.Predicate)
	assert.Equal(t, "s", result.Rules[2].Header.Predicate)
}

func TestLoadRules_NotFound(t *testing.T) {
	result, errs := LoadRules(filepath.Join(t.TempDir(), "absent.gap"), LoadModeFailFast)
	assert.Nil(t, result)
	require.Len(t, errs, 1)

	var loadErr *LoadError
	require.True(t, errors.As(errs[0], &loadErr))
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestLoadRules_EmptyDirectory(t *testing.T) {
	result, errs := LoadRules(t.TempDir(), LoadModeFailFast)
	assert.Nil(t, result)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeNoRules)
}

func TestLoadRules_OnlyComments(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.gap", "# nothing\n% here\n\n")

	result, errs := LoadRules(path, LoadModeFailFast)
	require.NotNil(t, result)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), ErrCodeNoRules)
}

func TestLoadRules_Modes(t *testing.T) {
	src := "p(X):W <- q(X)\nr(X):W <- s(X):W\nt(X):V <- u(X):W\n"
	path := writeFile(t, t.TempDir(), "bad.gap", src)

	result, errs := LoadRules(path, LoadModeFailFast)
	require.Len(t, errs, 1, "fail-fast stops at the first error")
	assert.Empty(t, result.Rules)

	result, errs = LoadRules(path, LoadModeCollectAll)
	require.Len(t, errs, 2)
	assert.Len(t, result.Rules, 1, "valid rules are kept")

	var first, second *LoadError
	require.True(t, errors.As(errs[0], &first))
	require.True(t, errors.As(errs[1], &second))
	assert.Equal(t, 1, first.Line)
	assert.Equal(t, ErrCodeParse, first.Code)
	assert.Equal(t, path, first.Path)
	assert.Equal(t, 3, second.Line)
	assert.Equal(t, ErrCodeBuildFailed, second.Code, "unbound header weight")
	assert.Contains(t, second.Error(), path+":3:")
}

func TestBuildDriver(t *testing.T) {
	path := writeFile(t, t.TempDir(), "closure.gap", closureRules)
	result, errs := LoadRules(path, LoadModeFailFast)
	require.Empty(t, errs)

	driver, err := BuildDriver(result, 0.01)
	require.NoError(t, err)
	assert.Len(t, driver.Compiled(), 2)
	assert.Equal(t, 0.01, driver.Epsilon())
	assert.Equal(t, []string{"path", "edge"}, driver.Predicates())
}

func TestLoadFacts(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "facts.yaml", edgeFacts)

	list, err := LoadFacts(path)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = LoadFacts(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)

	bad := writeFile(t, dir, "bad.yaml", "facts:\n  edge:\n    - weight: 1\n")
	_, err = LoadFacts(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeFactsInvalid)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.MaxIterations)

	dir := t.TempDir()
	good := writeFile(t, dir, "gap.cue", "workers: 2\n")
	cfg, err = LoadConfig(good)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)

	bad := writeFile(t, dir, "bad.cue", "workers: 0\n")
	_, err = LoadConfig(bad)
	require.Error(t, err)
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, ErrCodeConfigInvalid, loadErr.Code)

	_, err = LoadConfig(filepath.Join(dir, "absent.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestLoadError_Format(t *testing.T) {
	assert.Equal(t, "E005: gone", (&LoadError{Code: "E005", Message: "gone"}).Error())
	assert.Equal(t, "r.gap: E004: unreadable", (&LoadError{Code: "E004", Message: "unreadable", Path: "r.gap"}).Error())
	assert.Equal(t, "r.gap:7: E002: bad", (&LoadError{Code: "E002", Message: "bad", Path: "r.gap", Line: 7}).Error())
}
