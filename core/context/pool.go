// File: core/context/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool is a relaxed stand-in for ExecutionContext backing free-standing
// async handlers that have no owning Worker: instead of one loop goroutine
// it posts onto an api.Executor's worker pool. It deliberately does not
// implement per-caller FIFO (see api.Executor's doc comment) and exists only
// so such handlers still get a "queued" destination instead of forcing them
// onto ModeDirect.

package context

import "github.com/momentics/tsignal-go/api"

// Pool adapts an api.Executor to the subset of ExecutionContext's surface
// the dispatcher needs (Post/PostAsync), without the FIFO guarantee.
type Pool struct {
	id  uint64
	exe api.Executor
}

// NewPool wraps exe as a best-effort queued destination.
func NewPool(exe api.Executor) *Pool {
	return &Pool{id: idSeq.Add(1), exe: exe}
}

// ID returns this pool's stable identity.
func (p *Pool) ID() uint64 { return p.id }

// Post submits fn to the executor pool. Ordering across concurrent Post
// calls is NOT guaranteed.
func (p *Pool) Post(fn func()) error {
	if err := p.exe.Submit(fn); err != nil {
		return api.ErrPostFault
	}
	return nil
}

// PostAsync submits a job that blocks on its own completion channel before
// returning, on whichever pool worker happens to run it.
func (p *Pool) PostAsync(fn func() <-chan error) error {
	return p.Post(func() {
		ch := fn()
		if ch != nil {
			<-ch
		}
	})
}
