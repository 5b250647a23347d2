// File: adapters/executor_adapter.go
// Package adapters provides glue between core/concurrency and api.Executor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ExecutorAdapter implements the api.Executor interface by delegating to
// core/concurrency.Executor. It provides asynchronous task submission,
// dynamic resizing, and telemetry hooks, while preserving the lock-free
// execution semantics of the underlying worker pool.

package adapters

import (
	"github.com/momentics/tsignal-go/api"
	"github.com/momentics/tsignal-go/core/concurrency"
)

// ExecutorAdapter wraps a core/concurrency.Executor to satisfy api.Executor.
type ExecutorAdapter struct {
	exec *concurrency.Executor
}

// NewExecutorAdapter constructs an api.Executor with the given number of
// worker goroutines. When pinCPU is true, each worker attempts best-effort
// CPU affinity via the affinity package.
func NewExecutorAdapter(workers int, pinCPU bool) api.Executor {
	e := concurrency.NewExecutor(workers, pinCPU)
	return &ExecutorAdapter{exec: e}
}

// Submit dispatches a task function to be executed asynchronously.
func (ea *ExecutorAdapter) Submit(task func()) error {
	return ea.exec.Submit(task)
}

// NumWorkers returns the current number of active worker goroutines.
func (ea *ExecutorAdapter) NumWorkers() int {
	return ea.exec.NumWorkers()
}

// Resize dynamically adjusts the size of the worker pool.
func (ea *ExecutorAdapter) Resize(newCount int) {
	ea.exec.Resize(newCount)
}

// Close shuts down the executor, signaling all workers to exit and waiting
// for completion.
func (ea *ExecutorAdapter) Close() {
	ea.exec.Close()
}

// Shutdown implements api.GracefulShutdown for callers that hold an
// api.Executor and want a uniform teardown call across components.
func (ea *ExecutorAdapter) Shutdown() error {
	ea.exec.Close()
	return nil
}

var _ api.GracefulShutdown = (*ExecutorAdapter)(nil)
