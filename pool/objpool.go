// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
//
// Package pool holds the generic sync.Pool-backed object pool used by the
// dispatcher to reuse connection-snapshot slices across emits instead of
// allocating a fresh []*dispatch.Connection on every Emit call.

package pool

import "sync"

// SyncPool wraps sync.Pool for generic usage, satisfying api.ObjectPool.
type SyncPool[T any] struct {
	pool *sync.Pool
}

// NewSyncPool creates a new SyncPool with a creator function.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
	return &SyncPool[T]{
		pool: &sync.Pool{New: func() any { return creator() }},
	}
}

func (sp *SyncPool[T]) Get() T {
	return sp.pool.Get().(T)
}

func (sp *SyncPool[T]) Put(obj T) {
	sp.pool.Put(obj)
}
