// Package harness runs rule scenarios end to end and checks their fixpoints.
//
// A scenario bundles a rule set, seed facts and expected derived weights.
// Run compiles the rules, seeds a fresh in-memory fact store, evaluates to the
// fixpoint, exports the result through an in-memory SQLite store and checks
// the expectations against what was read back.
//
// # Scenario Format
//
//	name: transitive_closure
//	description: "path is the min-weight closure of edge"
//	rules:
//	  - path(X,Y):W <- edge(X,Y):W
//	  - path(X,Z):min(W1,W2) <- edge(X,Y):W1 & path(Y,Z):W2
//	facts:
//	  edge:
//	    - args: [a, b]
//	      weight: 0.9
//	expect:
//	  path:
//	    exact: true
//	    facts:
//	      - args: [a, b]
//	        weight: 0.9
//
// rules_file and facts_file may replace the inline lists; they are resolved
// relative to the scenario file (or the base path given to
// LoadScenarioWithBasePath).
//
// # Golden Files
//
// RunWithGolden snapshots the sorted fixpoint to testdata/golden/{name}.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
