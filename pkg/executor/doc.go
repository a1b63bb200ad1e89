// Package executor provides the two goroutine pool abstractions that the
// dispatch core is built on top of.
//
// A ScheduledExecutor runs a single task after a delay and hands back a
// cancelable handle that can also report whether the task is ready to run or
// already running — the batcher's scheduling guard depends on being able to
// ask this question without racing the task itself.
//
// A RequestExecutor runs submitted tasks concurrently across a fixed pool of
// goroutines. It must have more than one worker: a retrying request blocks
// the awaiting goroutine on each attempt, so a single-worker pool would
// deadlock a caller that submits from inside the pool.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package executor

// Version is the current version of the executor module.
const Version = "1.0.0"

// MinCompatibleVersion is the minimum version that is compatible with this version.
const MinCompatibleVersion = "1.0.0"
