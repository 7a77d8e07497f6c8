package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gaplus/internal/compiler"
	"github.com/roach88/gaplus/internal/facts"
	"github.com/roach88/gaplus/internal/ir"
	"github.com/roach88/gaplus/internal/relalg"
)

// countingAgent records how often each operation is called.
type countingAgent struct {
	relalg.Agent
	joins, filters, selects, distincts int
}

func newCountingAgent() *countingAgent {
	return &countingAgent{Agent: relalg.NewCPU()}
}

func (a *countingAgent) Join(ctx context.Context, x, y ir.Relation) (ir.Relation, error) {
	a.joins++
	return a.Agent.Join(ctx, x, y)
}

func (a *countingAgent) FilterMatches(ctx context.Context, r ir.Relation, m []ir.Match) (ir.Relation, error) {
	a.filters++
	return a.Agent.FilterMatches(ctx, r, m)
}

func (a *countingAgent) SelectAbove(ctx context.Context, r ir.Relation, slots []int, w relalg.WeightFunc, th float64) (ir.Relation, error) {
	a.selects++
	return a.Agent.SelectAbove(ctx, r, slots, w, th)
}

func (a *countingAgent) Distinct(ctx context.Context, r ir.Relation) (ir.Relation, error) {
	a.distincts++
	return a.Agent.Distinct(ctx, r)
}

// failingAgent fails every join.
type failingAgent struct {
	relalg.Agent
}

func (failingAgent) Join(context.Context, ir.Relation, ir.Relation) (ir.Relation, error) {
	return ir.Relation{}, &relalg.ExecutionError{Op: "join", Err: errors.New("device lost")}
}

func mustRule(t *testing.T, text string) *ir.Rule {
	t.Helper()
	r, err := compiler.ParseRule(text)
	require.NoError(t, err)
	return r
}

func storeWith(fs ...ir.Fact) *facts.Memory {
	m := facts.NewMemory()
	facts.Seed(m, fs)
	return m
}

func fact(pred string, w float64, args ...string) ir.Fact {
	return ir.Fact{Predicate: pred, Args: args, Weight: w}
}

// column returns the values bound to a variable across the zone's rows.
func column(rule *ir.Rule, zone ir.Relation, name string) []string {
	col := zone.Column(rule.Variables[name])
	var out []string
	for _, row := range zone.Rows {
		out = append(out, row[col])
	}
	return out
}

func TestDefinitionZone_ThresholdNeverMet(t *testing.T) {
	rule := mustRule(t, "p(X):W <- q(X):W & r(X):5")
	st := storeWith(
		fact("q", 0.3, "1"), fact("q", 0.9, "2"),
		fact("r", 0.7, "1"), fact("r", 0.9, "2"),
	)

	zone, err := DefinitionZone(context.Background(), rule, st, relalg.NewCPU())
	require.NoError(t, err)
	assert.True(t, zone.Empty())

	update, err := compiler.CompileUpdate(rule, 0, compiler.DefaultEpsilon)
	require.NoError(t, err)
	results := make([]ir.Result, 1)
	require.NoError(t, update(st, zone, results))
	assert.Equal(t, ir.Result{}, results[0])
}

func TestDefinitionZone_ThresholdFilters(t *testing.T) {
	rule := mustRule(t, "p(X):W <- q(X):W & r(X):0.8")
	st := storeWith(
		fact("q", 0.3, "1"), fact("q", 0.9, "2"),
		fact("r", 0.7, "1"), fact("r", 0.9, "2"),
	)
	agent := newCountingAgent()

	zone, err := DefinitionZone(context.Background(), rule, st, agent)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, column(rule, zone, "X"))
	assert.Equal(t, 1, agent.selects)
	assert.Equal(t, 1, agent.distincts)
	assert.Equal(t, 0, agent.joins, "a single annotation block needs no join")
}

func TestDefinitionZone_EmptyBlockShortCircuits(t *testing.T) {
	rule := mustRule(t, "p(X):W <- a(X):W & b(X):V & c(X):U")
	st := storeWith(fact("a", 1, "1"), fact("c", 1, "1"))
	agent := newCountingAgent()

	zone, err := DefinitionZone(context.Background(), rule, st, agent)
	require.NoError(t, err)
	assert.True(t, zone.Empty())
	assert.Equal(t, 0, agent.joins)
	assert.Len(t, zone.Picture, rule.VariableCount())
}

func TestDefinitionZone_EmptyJoinShortCircuits(t *testing.T) {
	rule := mustRule(t, "p(X):W <- a(X):W & b(X):V & c(X):U & d(X):T")
	st := storeWith(
		fact("a", 1, "1"), fact("b", 1, "2"),
		fact("c", 1, "1"), fact("d", 1, "1"),
	)
	agent := newCountingAgent()

	zone, err := DefinitionZone(context.Background(), rule, st, agent)
	require.NoError(t, err)
	assert.True(t, zone.Empty())
	assert.Equal(t, 1, agent.joins, "fold stops at the first empty join")
}

func TestDefinitionZone_FoldInRounds(t *testing.T) {
	rule := mustRule(t, "p(X):W <- a(X):W & b(X):V & c(X):U")
	st := storeWith(
		fact("a", 1, "1"), fact("a", 1, "2"),
		fact("b", 1, "1"), fact("b", 1, "2"),
		fact("c", 1, "2"),
	)
	agent := newCountingAgent()

	zone, err := DefinitionZone(context.Background(), rule, st, agent)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, column(rule, zone, "X"))
	assert.Equal(t, 2, agent.joins, "(a⋈b) then with c carried over")
}

func TestDefinitionZone_SelfJoin(t *testing.T) {
	rule := mustRule(t, "loop(X):W <- edge(X,X):W")
	st := storeWith(fact("edge", 1, "a", "a"), fact("edge", 1, "a", "b"))
	agent := newCountingAgent()

	zone, err := DefinitionZone(context.Background(), rule, st, agent)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, column(rule, zone, "X"))
	assert.Equal(t, 1, agent.filters)
}

func TestDefinitionZone_JoinBindsAllVariables(t *testing.T) {
	rule := mustRule(t, "path(X,Z):min(W1,W2) <- edge(X,Y):W1 & path(Y,Z):W2")
	st := storeWith(
		fact("edge", 0.9, "a", "b"), fact("edge", 0.8, "b", "c"),
		fact("path", 0.8, "b", "c"), fact("path", 0.5, "c", "d"),
	)

	zone, err := DefinitionZone(context.Background(), rule, st, relalg.NewCPU())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, column(rule, zone, "X"))
	assert.Equal(t, []string{"b", "c"}, column(rule, zone, "Y"))
	assert.Equal(t, []string{"c", "d"}, column(rule, zone, "Z"))
}

func TestDefinitionZone_ThresholdBlockBindingNewVariable(t *testing.T) {
	rule := mustRule(t, "p(X,Y):W <- q(X):W & r(X,Y):0.5")
	st := storeWith(
		fact("q", 1, "1"),
		fact("r", 0.9, "1", "a"), fact("r", 0.1, "1", "b"),
	)

	zone, err := DefinitionZone(context.Background(), rule, st, relalg.NewCPU())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, column(rule, zone, "Y"))
}

func TestDefinitionZone_HeaderRule(t *testing.T) {
	rule := mustRule(t, "edge(a,b):0.9")

	zone, err := DefinitionZone(context.Background(), rule, facts.NewMemory(), relalg.NewCPU())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, zone.Rows)
}

func TestDefinitionZone_AgentError(t *testing.T) {
	rule := mustRule(t, "p(X):W <- a(X):W & b(X):V")
	st := storeWith(fact("a", 1, "1"), fact("b", 1, "1"))

	_, err := DefinitionZone(context.Background(), rule, st, failingAgent{Agent: relalg.NewCPU()})
	require.Error(t, err)
	assert.True(t, relalg.IsExecutionError(err))
}

func TestDefinitionZone_FactArityMismatch(t *testing.T) {
	rule := mustRule(t, "p(X,Y):W <- q(X,Y):W")
	st := storeWith(fact("q", 0.5, "a"))

	_, err := DefinitionZone(context.Background(), rule, st, relalg.NewCPU())
	require.Error(t, err)
	assert.True(t, relalg.IsExecutionError(err))
	assert.ErrorIs(t, err, relalg.ErrRowWidth)
}
