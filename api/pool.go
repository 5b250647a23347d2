// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines an abstract pooling API for transient object reuse, used by the
// dispatcher to keep per-emit allocations low.

package api

// ObjectPool provides generic pooling of Go objects allocated transiently.
type ObjectPool[T any] interface {
	// Get returns an available instance from pool
	Get() T

	// Put returns an instance for reuse
	Put(obj T)
}
