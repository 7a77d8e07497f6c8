package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gaplus/internal/ir"
)

func testRun(id string) Run {
	return Run{
		ID:         id,
		RulesHash:  "abc123",
		Iterations: 4,
		Converged:  true,
		Epsilon:    0.00001,
		Added:      6,
	}
}

func TestWriteRun_ReadRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, testRun("run-1")))

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.RulesHash)
	assert.Equal(t, 4, got.Iterations)
	assert.True(t, got.Converged)
	assert.Equal(t, 0.00001, got.Epsilon)
	assert.Equal(t, 6, got.Added)
	assert.Equal(t, ir.EngineVersion, got.EngineVersion)
	assert.Equal(t, ir.IRVersion, got.IRVersion)
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteRun(ctx, testRun("run-1")))
	second := testRun("run-1")
	second.Iterations = 99
	require.NoError(t, s.WriteRun(ctx, second))

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Iterations, "first write wins")
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	require.NoError(t, s.WriteRun(ctx, testRun("run-b")))
	require.NoError(t, s.WriteRun(ctx, testRun("run-a")))

	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestWriteFacts_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, testRun("run-1")))

	in := []ir.Fact{
		{Predicate: "path", Args: []string{"b", "c"}, Weight: 0.8},
		{Predicate: "edge", Args: []string{"a", "b"}, Weight: 0.9},
		{Predicate: "path", Args: []string{"a", "b"}, Weight: 0.9},
		{Predicate: "name", Args: []string{"<café & co>"}, Weight: 1},
	}
	require.NoError(t, s.WriteFacts(ctx, "run-1", in))

	got, err := s.ReadFacts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "edge(a,b):0.9", got[0].String())
	assert.Equal(t, "name(<café & co>):1", got[1].String())
	assert.Equal(t, "path(a,b):0.9", got[2].String())
	assert.Equal(t, "path(b,c):0.8", got[3].String())
}

func TestWriteFacts_Overwrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, testRun("run-1")))

	f := ir.Fact{Predicate: "p", Args: []string{"a"}, Weight: 0.2}
	require.NoError(t, s.WriteFacts(ctx, "run-1", []ir.Fact{f}))
	f.Weight = 0.7
	require.NoError(t, s.WriteFacts(ctx, "run-1", []ir.Fact{f}))

	got, err := s.ReadFacts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.7, got[0].Weight)
}

func TestWriteFacts_UnknownRunRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WriteFacts(ctx, "missing", []ir.Fact{{Predicate: "p", Args: []string{"a"}, Weight: 1}})
	require.Error(t, err)

	got, err := s.ReadFacts(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFacts_SeparatesRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, testRun("run-1")))
	require.NoError(t, s.WriteRun(ctx, testRun("run-2")))

	require.NoError(t, s.WriteFacts(ctx, "run-1", []ir.Fact{{Predicate: "p", Args: []string{"a"}, Weight: 1}}))
	require.NoError(t, s.WriteFacts(ctx, "run-2", []ir.Fact{{Predicate: "q", Args: []string{"b"}, Weight: 2}}))

	got, err := s.ReadFacts(ctx, "run-2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "q", got[0].Predicate)
}

func TestMarshalArgs(t *testing.T) {
	got, err := marshalArgs([]string{"a<b", "x"})
	require.NoError(t, err)
	assert.Equal(t, `["a<b","x"]`, got)

	got, err = marshalArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, `[]`, got)

	args, err := unmarshalArgs(`["a<b","x"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a<b", "x"}, args)

	_, err = unmarshalArgs(`{`)
	assert.Error(t, err)
}
