// File: core/context/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ExecutionContext models the (threadID, loop) pair the spec assigns to an
// object the moment it becomes signal-capable. Go has no stable OS thread id
// for a goroutine that may migrate between threads, so identity here is
// "which loop", assigned once at bind time; a Worker additionally locks its
// loop's goroutine to one OS thread so the two notions coincide for
// Worker-owned contexts.

package context

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/tsignal-go/api"
	"github.com/momentics/tsignal-go/core/concurrency"
)

var idSeq atomic.Uint64

// ExecutionContext is a cooperative run-queue bound to at most one driving
// goroutine at a time. A context with a nil loop and nil pool is unbound:
// direct delivery from its own goroutine still works, but Post/PostAsync
// fail with ErrNoLoop.
type ExecutionContext struct {
	id   uint64
	loop *concurrency.Loop
	pool *Pool // set by NewPoolContext; an alternative, non-FIFO Post destination
}

// New creates an unbound context carrying only a stable identity, useful for
// ModeAuto same-context comparisons on goroutines that never run a loop
// (e.g. the process main goroutine via Bind()).
func New() *ExecutionContext {
	return &ExecutionContext{id: idSeq.Add(1)}
}

// NewLoopContext creates a context backed by a real Loop, not yet running.
// batchSize is the max number of jobs drained per loop cycle.
func NewLoopContext(batchSize int) *ExecutionContext {
	return &ExecutionContext{id: idSeq.Add(1), loop: concurrency.NewLoop(batchSize)}
}

// NewPoolContext creates a context backed by exe instead of a dedicated
// Loop: Post/PostAsync submit to exe's worker pool with no per-caller FIFO
// guarantee (see Pool's doc comment). For free-standing async handlers that
// have no owning Worker but still need a ModeQueued destination.
func NewPoolContext(exe api.Executor) *ExecutionContext {
	return &ExecutionContext{id: idSeq.Add(1), pool: NewPool(exe)}
}

// ID returns this context's stable identity, used for ModeAuto's "same
// context" comparison.
func (c *ExecutionContext) ID() uint64 { return c.id }

// Bound reports whether this context has a backing loop or pool.
func (c *ExecutionContext) Bound() bool { return c.loop != nil || c.pool != nil }

// Post requests fn run at its next opportunity: on the Loop's goroutine if
// loop-backed (FIFO), or on whichever goroutine an Executor assigns it if
// pool-backed (no ordering guarantee). Returns ErrNoLoop if unbound,
// ErrPostFault if the loop has already stopped or the pool rejected it.
func (c *ExecutionContext) Post(fn func()) error {
	switch {
	case c.loop != nil:
		if !c.loop.Push(concurrency.Job(fn)) {
			return api.ErrPostFault
		}
		return nil
	case c.pool != nil:
		return c.pool.Post(fn)
	default:
		return api.ErrNoLoop
	}
}

// PostAsync enqueues a job whose completion is awaited before the next
// queued job runs (loop-backed) or inline on the assigned pool goroutine
// (pool-backed).
func (c *ExecutionContext) PostAsync(fn func() <-chan error) error {
	return c.Post(func() {
		ch := fn()
		if ch != nil {
			<-ch
		}
	})
}

// Run drives this context's loop on the calling goroutine until Stop is
// called, registering the calling goroutine's identity for the duration of
// the run so Current() resolves correctly from nested calls on this
// goroutine (e.g. from inside a connected handler).
func (c *ExecutionContext) Run() {
	if c.loop == nil {
		return
	}
	gid := goroutineID()
	registry.store(gid, c)
	defer registry.delete(gid)
	c.loop.Run()
}

// Stop signals the loop to drain and exit. No-op on an unbound context.
func (c *ExecutionContext) Stop() {
	if c.loop != nil {
		c.loop.Stop()
	}
}

// Pending returns the number of jobs queued but not yet run. Zero for an
// unbound context.
func (c *ExecutionContext) Pending() int {
	if c.loop == nil {
		return 0
	}
	return c.loop.Pending()
}

// contextRegistry maps a goroutine's runtime identity to the
// *ExecutionContext currently driving that goroutine's loop.
type contextRegistry struct {
	mu sync.RWMutex
	m  map[uint64]*ExecutionContext
}

func (r *contextRegistry) store(gid uint64, c *ExecutionContext) {
	r.mu.Lock()
	r.m[gid] = c
	r.mu.Unlock()
}

func (r *contextRegistry) delete(gid uint64) {
	r.mu.Lock()
	delete(r.m, gid)
	r.mu.Unlock()
}

func (r *contextRegistry) load(gid uint64) (*ExecutionContext, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.m[gid]
	return c, ok
}

var registry = &contextRegistry{m: make(map[uint64]*ExecutionContext)}

// Bind associates a stable ExecutionContext with the calling goroutine for
// its lifetime, for goroutines that want a comparable identity (ModeAuto)
// without driving a loop of their own — e.g. the process's main goroutine.
// Idempotent: calling it again from the same goroutine returns the same
// context.
func Bind() *ExecutionContext {
	gid := goroutineID()
	if c, ok := registry.load(gid); ok {
		return c
	}
	c := New()
	registry.store(gid, c)
	return c
}

// Current resolves the calling goroutine's bound context, if any. Only
// meaningful from inside a loop's own goroutine (via Run) or after Bind.
func Current() (*ExecutionContext, bool) {
	return registry.load(goroutineID())
}
