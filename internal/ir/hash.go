package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRuleSet = "gap/ruleset/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RuleSetHash fingerprints a rule set by the canonical rendering of its
// rules, in load order. Whitespace and bracket style do not change the hash;
// reordering rules does.
func RuleSetHash(rules []*Rule) string {
	var data []byte
	for _, r := range rules {
		data = append(data, r.Text...)
		data = append(data, '\n')
	}
	return hashWithDomain(DomainRuleSet, data)
}
