// File: facade/tsignal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package facade aggregates the dispatcher's ambient stack — control
// (config/metrics/debug), a scheduler, an executor pool, and the process's
// default execution context — into one handle, the way the teacher
// codebase's top-level facade wires its subsystems together for a caller
// that just wants "the library", not its individual packages.

package facade

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/momentics/tsignal-go/adapters"
	"github.com/momentics/tsignal-go/api"
	"github.com/momentics/tsignal-go/core/concurrency"
	execctx "github.com/momentics/tsignal-go/core/context"
	"github.com/momentics/tsignal-go/core/worker"
	"github.com/momentics/tsignal-go/internal/obslog"
)

// Version is overridden at build time via -ldflags "-X ...Version=...".
var Version = "dev"

// Config tunes the facade's ambient subsystems.
type Config struct {
	// ExecutorWorkers sizes the shared executor pool backing free-standing
	// async handlers (see core/context.Pool). Zero uses runtime.NumCPU().
	ExecutorWorkers int
	// PinExecutorWorkers requests best-effort CPU pinning for the shared
	// executor pool's goroutines.
	PinExecutorWorkers bool
}

// Tsignal is the top-level facade: one process-wide control/metrics/debug
// surface, a scheduler for timed callbacks (e.g. weak-reference reaping by
// callers that want a periodic sweep in addition to the eager GC cleanup),
// a shared executor, and convenience Worker construction/teardown tracking.
type Tsignal struct {
	control        api.Control
	scheduler      api.Scheduler
	executor       api.Executor
	affinity       api.Affinity
	contextFactory api.ContextFactory
	defaultCtx     *execctx.ExecutionContext
	poolCtx        *execctx.ExecutionContext
	info           api.ServiceInfo

	mu      sync.Mutex
	workers []*worker.Worker
}

// New constructs the facade's ambient stack and binds the calling goroutine
// to the process's default execution context.
func New(cfg Config) *Tsignal {
	exec := adapters.NewExecutorAdapter(cfg.ExecutorWorkers, cfg.PinExecutorWorkers)
	return &Tsignal{
		control:        adapters.NewControlAdapter(),
		scheduler:      concurrency.NewScheduler(),
		executor:       exec,
		affinity:       adapters.NewAffinityAdapter(),
		contextFactory: adapters.NewContextAdapter(),
		defaultCtx:     execctx.Bind(),
		poolCtx:        execctx.NewPoolContext(exec),
		info: api.ServiceInfo{
			Name:       "tsignal-go",
			Version:    Version,
			InstanceID: uuid.NewString(),
			StartedAt:  time.Now(),
		},
	}
}

// Info returns descriptive build- and runtime info for this process.
func (t *Tsignal) Info() api.ServiceInfo { return t.info }

// Control exposes the process's config/metrics/debug surface.
func (t *Tsignal) Control() api.Control { return t.control }

// Scheduler exposes the process's timer-based scheduler.
func (t *Tsignal) Scheduler() api.Scheduler { return t.scheduler }

// Executor exposes the shared worker pool backing core/context.Pool.
func (t *Tsignal) Executor() api.Executor { return t.executor }

// Affinity exposes best-effort CPU pinning for the calling goroutine.
func (t *Tsignal) Affinity() api.Affinity { return t.affinity }

// ContextFactory mints api.Context values for callers that want to carry
// request-scoped, selectively-propagated data alongside a Worker task (e.g.
// a correlation ID that should survive QueueTask but not leak into every
// downstream Connect).
func (t *Tsignal) ContextFactory() api.ContextFactory { return t.contextFactory }

// DefaultContext returns the process's default execution context (bound to
// the goroutine that called New, typically main).
func (t *Tsignal) DefaultContext() *execctx.ExecutionContext { return t.defaultCtx }

// PoolContext returns a context backed by the shared executor, for
// connecting free-standing handlers (no owning Worker) that still want
// ModeQueued/ModeAuto delivery instead of running inline on the emitter's
// goroutine. Ordering across concurrent deliveries is not guaranteed.
func (t *Tsignal) PoolContext() *execctx.ExecutionContext { return t.poolCtx }

// NewWorker creates and tracks a Worker pinned to cpuID (-1 for no pinning),
// so Shutdown can stop every outstanding worker without the caller having to
// keep its own registry. A debug probe is registered exposing the worker's
// recent queue-depth history, sampled every queueSampleInterval while the
// worker reports itself Running.
func (t *Tsignal) NewWorker(cpuID int) *worker.Worker {
	w := worker.New(cpuID)
	t.mu.Lock()
	t.workers = append(t.workers, w)
	id := len(t.workers)
	t.mu.Unlock()

	history := concurrency.NewRingBuffer[int](8)
	t.control.RegisterDebugProbe(fmt.Sprintf("worker.%d.queue_depth_history", id), func() any {
		return ringSnapshot(history)
	})
	t.scheduleQueueDepthSampling(w, history)
	return w
}

const queueSampleInterval = 500 * time.Millisecond

// scheduleQueueDepthSampling self-reschedules on t.scheduler until w reaches
// the Stopped state, recording a sample into history whenever w is Running (evicting the oldest sample
// once the ring is full, so it always reflects the most recent window).
func (t *Tsignal) scheduleQueueDepthSampling(w *worker.Worker, history *concurrency.RingBuffer[int]) {
	var sample func()
	sample = func() {
		if w.State() == api.WorkerStopped {
			return
		}
		if w.State() == api.WorkerRunning {
			depth := w.QueueDepth()
			if !history.Enqueue(depth) {
				history.Dequeue()
				history.Enqueue(depth)
			}
		}
		if _, err := t.scheduler.Schedule(int64(queueSampleInterval), sample); err != nil {
			obslog.Log.WithError(err).Warn("facade: failed to reschedule queue-depth sampling")
		}
	}
	if _, err := t.scheduler.Schedule(int64(queueSampleInterval), sample); err != nil {
		obslog.Log.WithError(err).Warn("facade: failed to schedule queue-depth sampling")
	}
}

func ringSnapshot(r *concurrency.RingBuffer[int]) []int {
	n := r.Len()
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		v, ok := r.Dequeue()
		if !ok {
			break
		}
		out = append(out, v)
		r.Enqueue(v)
	}
	return out
}

// Shutdown stops every tracked worker (each bounded by drainTimeout) and
// closes the shared executor. Unlike api.GracefulShutdown, this accepts an
// explicit timeout since it may be draining several Workers at once.
func (t *Tsignal) Shutdown(drainTimeout time.Duration) error {
	t.mu.Lock()
	workers := append([]*worker.Worker(nil), t.workers...)
	t.mu.Unlock()

	var firstErr error
	for _, w := range workers {
		if err := w.Stop(drainTimeout); err != nil {
			obslog.Log.WithError(err).Warn("facade: worker failed to stop cleanly during shutdown")
			if firstErr == nil {
				firstErr = fmt.Errorf("worker shutdown: %w", err)
			}
		}
	}
	if shutter, ok := t.executor.(api.GracefulShutdown); ok {
		if err := shutter.Shutdown(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("executor shutdown: %w", err)
		}
	}
	return firstErr
}
