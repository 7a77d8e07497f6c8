// Package ir provides the intermediate representation shared by the GAP rule
// compiler, the relational agent and the fixpoint engine.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps IR the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - Rules are analysed once at load time; the IR is never re-derived per
//     fixpoint iteration
//   - Variable slots are dense ints in first-sight order (header, then body)
//   - Pictures map a variable slot to a column; -1 means "not present"
//   - Fact argument tuples are addressed by Key, a canonical string encoding
package ir
