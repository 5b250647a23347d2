// File: core/concurrency/scheduler.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scheduler implements api.Scheduler on top of time.AfterFunc, used by the
// facade's periodic per-Worker queue-depth sampling.

package concurrency

import (
	"sync"
	"time"

	"github.com/momentics/tsignal-go/api"
)

var _ api.Scheduler = (*Scheduler)(nil)

// Scheduler is a minimal wall-clock scheduler backed by Go timers.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[*timerHandle]*time.Timer
}

// NewScheduler constructs a ready-to-use Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[*timerHandle]*time.Timer)}
}

type timerHandle struct {
	done chan struct{}
	once sync.Once
	err  error
}

func (h *timerHandle) Cancel() error {
	h.once.Do(func() { close(h.done) })
	return nil
}

func (h *timerHandle) Done() <-chan struct{} { return h.done }

func (h *timerHandle) Err() error { return h.err }

// Schedule runs fn after delayNanos elapses, unless canceled first.
func (s *Scheduler) Schedule(delayNanos int64, fn func()) (api.Cancelable, error) {
	h := &timerHandle{done: make(chan struct{})}
	t := time.AfterFunc(time.Duration(delayNanos), func() {
		select {
		case <-h.done:
			return
		default:
		}
		fn()
		h.once.Do(func() { close(h.done) })
	})
	s.mu.Lock()
	s.timers[h] = t
	s.mu.Unlock()
	return h, nil
}

// Cancel stops a previously scheduled callback if it has not already fired.
func (s *Scheduler) Cancel(c api.Cancelable) error {
	h, ok := c.(*timerHandle)
	if !ok {
		return api.ErrNotCallable
	}
	s.mu.Lock()
	if t, found := s.timers[h]; found {
		t.Stop()
		delete(s.timers, h)
	}
	s.mu.Unlock()
	return h.Cancel()
}

// monoBase anchors Now's monotonic readings.
var monoBase = time.Now()

// Now returns monotonic time in nanoseconds, measured from process start.
func (s *Scheduler) Now() int64 {
	return int64(time.Since(monoBase))
}
