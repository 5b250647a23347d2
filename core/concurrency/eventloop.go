// File: core/concurrency/eventloop.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Loop is a single-consumer job runner used to back an execution context's
// FIFO posting queue. Unlike a fixed-capacity buffered channel, its backing
// store is an eapache/queue.Queue (an unbounded, amortized O(1) ring buffer),
// guarded by a mutex, so Push never blocks or drops a job under burst load.
// Idle cycles back off adaptively instead of busy-spinning.

package concurrency

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
)

// Job is a unit of work posted to a Loop. Async jobs (HandlerKind == KindAsync
// at the dispatch layer) are expected to block internally until their
// underlying completion channel fires, preserving per-caller FIFO order.
type Job func()

// Loop implements a single-consumer batched job runner with adaptive backoff.
type Loop struct {
	mu        sync.Mutex
	q         *queue.Queue
	wake      chan struct{}
	batchSize int
	quitCh    chan struct{}
	doneCh    chan struct{}
	running   atomic.Bool
}

// NewLoop creates a new Loop with the given per-cycle batch size.
func NewLoop(batchSize int) *Loop {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Loop{
		q:         queue.New(),
		wake:      make(chan struct{}, 1),
		batchSize: batchSize,
		quitCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Run drains the queue and executes jobs in submission order until Stop is
// called. It must run on the goroutine that owns this execution context.
func (l *Loop) Run() {
	if !l.running.CompareAndSwap(false, true) {
		return
	}
	defer func() {
		close(l.doneCh)
		l.running.Store(false)
	}()

	backoffNs := int64(1)
	const maxBackoffNs = int64(1_000_000)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		batch := l.drain()
		if len(batch) == 0 {
			timer.Reset(time.Duration(backoffNs) * time.Nanosecond)
			select {
			case <-l.quitCh:
				stopTimer(timer)
				return
			case <-l.wake:
				stopTimer(timer)
				backoffNs = 1
			case <-timer.C:
				backoffNs *= 2
				if backoffNs > maxBackoffNs {
					backoffNs = maxBackoffNs
				}
			}
			continue
		}
		for _, job := range batch {
			job()
		}
		backoffNs = 1
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// drain pops up to batchSize pending jobs off the queue.
func (l *Loop) drain() []Job {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.q.Length()
	if n == 0 {
		return nil
	}
	if n > l.batchSize {
		n = l.batchSize
	}
	batch := make([]Job, n)
	for i := 0; i < n; i++ {
		batch[i] = l.q.Remove().(Job)
	}
	return batch
}

// Pending returns the number of jobs currently queued.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Length()
}

// Push enqueues a job for execution. Always succeeds (the queue grows as
// needed) unless the loop has already been stopped.
func (l *Loop) Push(j Job) bool {
	select {
	case <-l.quitCh:
		return false
	default:
	}
	l.mu.Lock()
	l.q.Add(j)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Stop makes further Pushes fail and signals Run to exit once the jobs
// already queued have run, then waits for Run to return (it does not wait
// if Run has not started).
func (l *Loop) Stop() {
	select {
	case <-l.quitCh:
	default:
		close(l.quitCh)
	}
	if l.running.Load() {
		<-l.doneCh
	}
}
