// Package planner orders kinds by their declared dependencies using
// Kahn's algorithm, with registry insertion order as the deterministic
// tie-break. Cycles are rejected with a CyclicDependency error naming the
// kinds involved.
package planner
