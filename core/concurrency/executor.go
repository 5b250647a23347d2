// File: core/concurrency/executor.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across worker goroutines, using lock-free local queues
// and a global queue fallback. On a shrinking resize, a worker is removed from the
// pool's slices only after its goroutine has exited.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/tsignal-go/affinity"
	"github.com/momentics/tsignal-go/api"
)

type TaskFunc func()

var _ api.Executor = (*Executor)(nil)

// Executor manages a pool of worker goroutines. It backs core/context's
// default pool-based ExecutionContext for free-standing async handlers that
// have no owning Worker.
type Executor struct {
	globalQueue chan TaskFunc
	localQueues []*LockFreeQueue[TaskFunc]
	workers     []*worker
	closeCh     chan struct{}
	closed      atomic.Bool
	resizeRequest chan int
	mu          sync.Mutex
	wg          sync.WaitGroup

	pinCPU bool // when true, each worker attempts to pin to CPU (worker id mod NumCPU)
}

// NewExecutor creates a new Executor with the given number of workers. If
// pinCPU is true, workers attempt best-effort CPU affinity via the affinity
// package (silently ignored on unsupported platforms).
func NewExecutor(numWorkers int, pinCPU bool) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{
		globalQueue:   make(chan TaskFunc, numWorkers*4),
		closeCh:       make(chan struct{}),
		resizeRequest: make(chan int),
		pinCPU:        pinCPU,
	}
	e.localQueues = make([]*LockFreeQueue[TaskFunc], numWorkers)
	e.workers = make([]*worker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		e.localQueues[i] = NewLockFreeQueue[TaskFunc](1024)
	}
	for i := 0; i < numWorkers; i++ {
		w := &worker{id: i, executor: e, localQueue: e.localQueues[i], stopCh: make(chan struct{}), stoppedCh: make(chan struct{})}
		e.workers[i] = w
		e.wg.Add(1)
		go w.run(&e.wg)
	}
	go e.manageResizes()
	return e
}

// Submit enqueues a task. Returns ErrExecutorClosed if closed, and also when
// the chosen local queue and the global queue are both full (the task is not
// queued). Satisfies api.Executor.
func (e *Executor) Submit(task func()) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	idx := int(time.Now().UnixNano()) % len(e.localQueues)
	if e.localQueues[idx].Enqueue(TaskFunc(task)) {
		return nil
	}
	select {
	case e.globalQueue <- TaskFunc(task):
		return nil
	case <-e.closeCh:
		return ErrExecutorClosed
	default:
		return ErrExecutorClosed
	}
}

// Resize dynamically scales the worker pool. Satisfies api.Executor.
func (e *Executor) Resize(newCount int) {
	e.resizeRequest <- newCount
}

// manageResizes handles dynamic scaling for workers. When shrinking, it closes each
// surplus worker's stopCh and waits for its stoppedCh before truncating the
// workers/localQueues slices.
func (e *Executor) manageResizes() {
	for newCount := range e.resizeRequest {
		e.mu.Lock()
		if newCount <= 0 {
			newCount = 1
		}
		current := len(e.workers)
		if newCount > current {
			for i := current; i < newCount; i++ {
				q := NewLockFreeQueue[TaskFunc](1024)
				e.localQueues = append(e.localQueues, q)
				w := &worker{id: i, executor: e, localQueue: q, stopCh: make(chan struct{}), stoppedCh: make(chan struct{})}
				e.workers = append(e.workers, w)
				e.wg.Add(1)
				go w.run(&e.wg)
			}
		} else if newCount < current {
			for i := newCount; i < current; i++ {
				close(e.workers[i].stopCh)
			}
			for i := newCount; i < current; i++ {
				<-e.workers[i].stoppedCh
			}
			e.workers = e.workers[:newCount]
			e.localQueues = e.localQueues[:newCount]
		}
		e.mu.Unlock()
	}
}

// Close shuts down the executor, waiting for workers to finish.
func (e *Executor) Close() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.closeCh)
		close(e.resizeRequest)
		e.mu.Lock()
		for _, w := range e.workers {
			close(w.stopCh)
		}
		e.mu.Unlock()
		e.wg.Wait()
	}
}

// NumWorkers returns active worker count. Satisfies api.Executor.
func (e *Executor) NumWorkers() int {
	return len(e.workers)
}

// worker runs tasks. Signals stoppedCh only after full cleanup, so the pool
// can safely delete it from the slice after that signal.
type worker struct {
	id         int
	executor   *Executor
	localQueue *LockFreeQueue[TaskFunc]
	stopCh     chan struct{}
	stoppedCh  chan struct{}
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer func() {
		wg.Done()
		close(w.stoppedCh)
	}()
	if w.executor.pinCPU {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		_ = affinity.SetAffinity(w.id % runtime.NumCPU())
	}
	for {
		select {
		case <-w.stopCh:
			return
		default:
			if task, ok := w.localQueue.Dequeue(); ok {
				w.safeExecute(task)
				continue
			}
			select {
			case task := <-w.executor.globalQueue:
				w.safeExecute(task)
			case <-w.stopCh:
				return
			default:
				time.Sleep(time.Millisecond)
			}
		}
	}
}

func (w *worker) safeExecute(task TaskFunc) {
	defer func() { recover() }()
	task()
}
