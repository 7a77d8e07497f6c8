// Package store exports evaluation results to SQLite.
//
// A run row records what was evaluated (rule-set hash, epsilon, versions)
// and how it ended (iterations, convergence, totals); the facts table holds
// the run's fixpoint. The export is write-once output: the engine never
// reads a previous run back as input.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All reads are ordered (ORDER BY ... COLLATE BINARY) so exports compare
// byte-for-byte across machines.
package store
