// Package diff computes restore plans: a kind-aware comparison of
// snapshot entities against live entities, keyed by each kind's identity
// function and judged by its equality rule. The output is a list of
// actions (skip, add, update, remove) per kind, serialisable to JSON, and
// is produced without side effects.
package diff
