// File: core/dispatch/weak.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Weak receiver support. weak.Pointer[T] requires a statically known T, so
// the generic ConnectWeak is the one place in the engine where T is known;
// it immediately erases to a non-generic receiverResolver closure and the
// rest of the engine never sees a type parameter again.
//
// A runtime.AddCleanup callback registered alongside the weak pointer
// invalidates the connection eagerly, on the same GC cycle that reclaims the
// receiver, rather than waiting for the next Emit to lazily discover it is
// gone (a deliberate strengthening of invariant I1).

package dispatch

import (
	"weak"

	"github.com/momentics/tsignal-go/internal/obslog"
)

// ConnectWeak connects handler to sig with a weak reference to receiver:
// once receiver becomes unreachable, the connection is dropped — at latest
// on the next Emit that observes it, and eagerly on the GC cycle that
// collects it via runtime.AddCleanup.
func ConnectWeak[T any](sig *Signal, receiver *T, handler any, opts ...ConnectOption) (*Connection, error) {
	if receiver == nil {
		return nil, errInvalidReceiver()
	}
	iv, err := buildInvoker(handler)
	if err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	wp := weak.Make(receiver)
	resolve := func() (any, bool) {
		p := wp.Value()
		if p == nil {
			return nil, false
		}
		return p, true
	}

	conn := newConnection(iv, o, resolve, true, receiver)

	sig.addConnection(conn)

	cleanup(receiver, func() {
		obslog.Log.WithField("connection", conn.id).Debug("weak receiver collected, dropping connection")
		sig.removeByIdentity(conn)
	})

	return conn, nil
}

// cleanup is a thin indirection over runtime.AddCleanup so tests can stub it
// if ever needed; kept as a direct call in production builds.
func cleanup[T any](ptr *T, fn func()) {
	runtimeAddCleanup(ptr, fn)
}
