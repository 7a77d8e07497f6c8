package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleSetHashDeterminism(t *testing.T) {
	rules := []*Rule{
		{Text: "p(X):W<-q(X):W"},
		{Text: "q(a):0.5"},
	}

	h1 := RuleSetHash(rules)
	h2 := RuleSetHash(rules)

	assert.Equal(t, h1, h2, "RuleSetHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestRuleSetHashChangesWithOrder(t *testing.T) {
	a := &Rule{Text: "p(X):W<-q(X):W"}
	b := &Rule{Text: "q(a):0.5"}

	assert.NotEqual(t, RuleSetHash([]*Rule{a, b}), RuleSetHash([]*Rule{b, a}),
		"rule order is part of the fingerprint")
}

func TestRuleSetHashDomainSeparation(t *testing.T) {
	// Hashing the same bytes under a different domain must differ.
	data := []byte("p(X):W<-q(X):W\n")
	assert.NotEqual(t, hashWithDomain(DomainRuleSet, data), hashWithDomain("other/v1", data))
	assert.Equal(t, hashWithDomain(DomainRuleSet, data), RuleSetHash([]*Rule{{Text: "p(X):W<-q(X):W"}}))
}
