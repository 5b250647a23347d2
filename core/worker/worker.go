// File: core/worker/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker owns a goroutine locked to one OS thread (optionally pinned to a
// CPU core via the affinity package), a loop-backed ExecutionContext
// confined to that goroutine, a stop-signal channel, and a FIFO job queue.
// It drives the lifecycle state machine:
//
//	Created --Start--> Starting --(loop ready)--> Running --Stop--> Stopping --(drained)--> Stopped

package worker

import (
	stdcontext "context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/momentics/tsignal-go/affinity"
	"github.com/momentics/tsignal-go/api"
	execctx "github.com/momentics/tsignal-go/core/context"
	"github.com/momentics/tsignal-go/internal/normalize"
	"github.com/momentics/tsignal-go/internal/obslog"
)

// Worker implements dispatch.Contextual so connections made on a Worker's
// owned objects can resolve a receiverContext for ModeAuto/ModeQueued
// delivery.
type Worker struct {
	mu      sync.Mutex
	state   api.WorkerState
	ctx     *execctx.ExecutionContext
	stopCh  chan struct{}
	runDone chan error
	wg      sync.WaitGroup
	cpuID   int // -1 means no CPU pinning
}

// New creates a Worker in the Created state. cpuID, if >= 0, is the CPU core
// the worker's loop goroutine attempts to pin to once started.
func New(cpuID int) *Worker {
	return &Worker{state: api.WorkerCreated, cpuID: cpuID}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() api.WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// ExecutionContext returns the worker's bound execution context, satisfying
// dispatch.Contextual. Nil until Start has completed.
func (w *Worker) ExecutionContext() *execctx.ExecutionContext {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctx
}

// StopSignal returns the channel run should select on to notice shutdown.
func (w *Worker) StopSignal() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopCh
}

// QueueDepth returns the number of jobs queued but not yet run on the
// worker's loop. Zero before Start or after Stop.
func (w *Worker) QueueDepth() int {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if ctx == nil {
		return 0
	}
	return ctx.Pending()
}

// Start spawns the worker's goroutine, brings up its loop, and launches run
// in a nested goroutine once the loop's execution context is valid. It
// blocks until both have happened, so that calls immediately following
// Start (QueueTask, Connect on worker-owned objects) observe a live context.
//
// parent is accepted for symmetry with the surrounding ambient stack (e.g. a
// caller may derive cancellation/deadlines from it before calling Start) but
// Worker's own shutdown is driven exclusively by Stop/StopSignal.
func (w *Worker) Start(parent stdcontext.Context, run func(stop <-chan struct{}) error) error {
	w.mu.Lock()
	if w.state != api.WorkerCreated {
		st := w.state
		w.mu.Unlock()
		return fmt.Errorf("%w: cannot start from state %s", api.ErrLifecycle, st)
	}
	w.state = api.WorkerStarting
	w.stopCh = make(chan struct{})
	w.runDone = make(chan error, 1)
	w.ctx = execctx.NewLoopContext(64)
	w.mu.Unlock()

	ready := make(chan struct{})
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if w.cpuID >= 0 {
			cpu := normalize.CPUIndexAuto(w.cpuID)
			if err := affinity.SetAffinity(cpu); err != nil {
				obslog.Log.WithError(err).Warn("worker: CPU pinning failed, continuing unpinned")
			}
		}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runDone <- run(w.stopCh)
		}()
		close(ready)
		w.ctx.Run()
	}()

	<-ready
	w.mu.Lock()
	w.state = api.WorkerRunning
	w.mu.Unlock()
	obslog.Log.WithField("cpu", w.cpuID).Info("worker started")
	return nil
}

// QueueTask enqueues job for serial execution on the worker loop, returning
// ErrPostFault if the worker is not Running. The loop blocks on job's
// returned channel before starting the next queued job. A panic in job or an
// error received from its channel is logged; the worker keeps running.
func (w *Worker) QueueTask(job func() <-chan error) error {
	w.mu.Lock()
	st, ctx := w.state, w.ctx
	w.mu.Unlock()
	if st != api.WorkerRunning || ctx == nil {
		return api.ErrPostFault
	}
	return ctx.Post(func() {
		defer func() {
			if r := recover(); r != nil {
				obslog.Log.WithField("panic", r).Error("worker: task panicked")
			}
		}()
		if ch := job(); ch != nil {
			if err := <-ch; err != nil {
				obslog.Log.WithError(err).Error("worker: task failed")
			}
		}
	})
}

// Stop closes the stop-signal channel, waits for run to return and the loop
// to drain outstanding jobs (bounded by drainTimeout; zero waits
// indefinitely), then waits for the goroutine to exit. Idempotent and safe
// to call concurrently.
func (w *Worker) Stop(drainTimeout time.Duration) error {
	w.mu.Lock()
	switch w.state {
	case api.WorkerCreated:
		w.mu.Unlock()
		return nil
	case api.WorkerStopped:
		w.mu.Unlock()
		return nil
	case api.WorkerStopping:
		w.mu.Unlock()
		w.wg.Wait()
		return nil
	}
	w.state = api.WorkerStopping
	stopCh := w.stopCh
	w.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	var taskErrs *multierror.Error
	done := make(chan struct{})
	go func() {
		if runErr := <-w.runDone; runErr != nil {
			taskErrs = multierror.Append(taskErrs, runErr)
		}
		w.ctx.Stop()
		w.wg.Wait()
		close(done)
	}()

	if drainTimeout <= 0 {
		<-done
	} else {
		select {
		case <-done:
		case <-time.After(drainTimeout):
			return api.ErrDrainTimeout
		}
	}

	w.mu.Lock()
	w.state = api.WorkerStopped
	w.mu.Unlock()

	if taskErrs.ErrorOrNil() != nil {
		obslog.Log.WithError(taskErrs).Warn("worker stopped with background task errors")
	}
	return nil
}
