// Package api
// Author: momentics
//
// Executor contract for parallel task dispatch and custom eventloop integration.

package api

// Executor abstracts parallel task dispatch across a pool of worker goroutines.
// Unlike an ExecutionContext, an Executor makes no FIFO-per-caller guarantee: tasks
// submitted concurrently may run out of order across workers. It backs the optional
// pool-based default context for free-standing async handlers that have no owning
// Worker (see core/context.Pool).
type Executor interface {
    // Submit schedules task for execution.
    Submit(task func()) error

    // NumWorkers returns current number of active worker routines.
    NumWorkers() int

    // Resize adjusts the concurrency at runtime.
    Resize(newCount int)
}
