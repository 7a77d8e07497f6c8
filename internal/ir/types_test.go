package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockString(t *testing.T) {
	b := Block{Predicate: "edge", Arguments: []string{"X", "Y"}, Notation: "W"}
	assert.Equal(t, "edge(X,Y):W", b.String())
}

func TestBlockNeedsFilter(t *testing.T) {
	assert.False(t, (&Block{}).NeedsFilter())
	assert.True(t, (&Block{Matches: []Match{{Left: 0, Right: 1}}}).NeedsFilter())
}

func TestRuleString(t *testing.T) {
	r := &Rule{
		Header: Block{Predicate: "p", Arguments: []string{"X"}, Notation: "W"},
		Body: []Block{
			{Predicate: "q", Arguments: []string{"X"}, Notation: "W"},
			{Predicate: "r", Arguments: []string{"X"}, Notation: "5"},
		},
	}
	assert.Equal(t, "p(X):W <- q(X):W & r(X):5", r.String())

	fact := &Rule{Header: Block{Predicate: "q", Arguments: []string{"a"}, Notation: "0.5"}}
	assert.Equal(t, "q(a):0.5", fact.String())
}

func TestKindAndTypeNames(t *testing.T) {
	assert.Equal(t, "ANNOTATION", KindAnnotation.String())
	assert.Equal(t, "ABOVE", KindAbove.String())
	assert.Equal(t, "UNKNOWN", KindUnknown.String())
	assert.Equal(t, "HEADER", RuleHeader.String())
	assert.Equal(t, "GROUND", RuleGround.String())
	assert.Equal(t, "COMPLEX", RuleComplex.String())
}

func TestRuleJSONUsesNames(t *testing.T) {
	r := Rule{
		Text:   "q(a):0.5",
		Header: Block{Predicate: "q", Arguments: []string{"a"}, Notation: "0.5", Kind: KindAbove},
		Type:   RuleHeader,
	}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"type":"HEADER"`)
	assert.Contains(t, string(data), `"kind":"ABOVE"`)
	assert.Contains(t, string(data), `"variable_names"`)
}

func TestExprString(t *testing.T) {
	e := Call{Func: "min", Args: []Expr{
		Var{Name: "W1", Slot: 2},
		Binary{Op: '*', Left: Var{Name: "W2", Slot: 3}, Right: Num(0.5)},
	}}
	assert.Equal(t, "min(W1,(W2*0.5))", e.String())
}

func TestKindAndTypeParseNames(t *testing.T) {
	var decoded struct {
		Kind BlockKind `json:"kind"`
		Type RuleType  `json:"type"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"ABOVE","type":"COMPLEX"}`), &decoded))
	assert.Equal(t, KindAbove, decoded.Kind)
	assert.Equal(t, RuleComplex, decoded.Type)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"SIDEWAYS"}`), &decoded))
	assert.Error(t, json.Unmarshal([]byte(`{"type":"FANCY"}`), &decoded))
}
