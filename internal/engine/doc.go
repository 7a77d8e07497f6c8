// Package engine evaluates a compiled GAP rule set to its fixpoint.
//
// Each iteration has two phases:
//
//  1. Definition Zones: for every scheduled rule, join its body relations
//     (DefinitionZone) into the rule's assignment set.
//  2. Updates: apply each rule's compiled update procedure to its zone.
//
// Zones are computed concurrently. Updates are grouped by head predicate:
// rules writing the same predicate run one after another, groups run
// concurrently. Every rule writes only its own slot of the results buffer.
//
// A rule runs in the first iteration and afterwards only when one of its
// dependent predicates changed in the previous iteration. The run converges
// when an iteration adds and changes nothing.
package engine
