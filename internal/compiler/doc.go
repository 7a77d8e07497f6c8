// Package compiler turns GAP rule text into analysed rules and compiled
// update procedures.
//
// A rule is parsed block by block, every variable gets a slot in the rule's
// variable index, and each block records which columns hold which slots and
// which columns must be equal (self-joins). The Driver owns a rule set and
// compiles each rule once into an UpdateFunc the engine calls every
// fixpoint iteration.
package compiler
