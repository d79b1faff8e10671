// Package executor runs a resolved dependency graph with a bounded worker
// pool. A single coordinating goroutine owns all scheduling state and hands
// ready nodes to workers over a channel; results come back the same way.
// Keeping scheduling single-threaded is what allows checkpoints to grow the
// graph mid-run without locking.
//
// Failures do not abort the run: everything downstream of a failed node is
// skipped, while independent branches continue. Nodes whose outputs are
// already newer than their inputs are skipped unless something upstream ran
// or the run is forced.
package executor
