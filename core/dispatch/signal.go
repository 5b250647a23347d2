// File: core/dispatch/signal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Signal holds an ordered list of Connection Records and implements the
// per-emit dispatch algorithm: snapshot under the list mutex, release it,
// then iterate and deliver without holding the lock.

package dispatch

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/momentics/tsignal-go/api"
	"github.com/momentics/tsignal-go/core/context"
	"github.com/momentics/tsignal-go/internal/obslog"
)

// Signal is owned by its defining object instance, or free-standing as a
// package-level value. Its lifetime equals its owner's: there is no separate
// teardown, and weak connections are dropped lazily (or eagerly, via GC
// cleanup) once their receiver is gone.
type Signal struct {
	mu       sync.Mutex
	conns    []*Connection
	emitting atomic.Bool
}

// New returns a ready-to-use Signal.
func New() *Signal {
	return &Signal{}
}

func errInvalidReceiver() error {
	return fmt.Errorf("%w", api.ErrInvalidReceiver)
}

func newConnection(iv *invoker, o connectOptions, resolve receiverResolver, hasReceiver bool, receiverForCtx any) *Connection {
	c := &Connection{
		id:          ulid.Make().String(),
		hasReceiver: hasReceiver,
		resolve:     resolve,
		origHandler: iv.fnVal,
		iv:          iv,
		kind:        iv.kind,
		mode:        o.mode,
		oneShot:     o.oneShot,
		ctxResolver: contextResolverFor,
	}
	if hasReceiver {
		c.receiverContext = contextResolverFor(receiverForCtx)
	}
	return c
}

// Connect appends a new Connection Record for handler. receiver may be nil
// (free callable, not an error). handler must be a func value.
func (s *Signal) Connect(receiver any, handler any, opts ...ConnectOption) (*Connection, error) {
	iv, err := buildInvoker(handler)
	if err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	hasReceiver := receiver != nil
	var resolve receiverResolver
	if hasReceiver {
		if o.weak {
			// Go's weak.Pointer[T] needs a statically known T, unavailable
			// through a bare reflect.Value; fall back to a strong
			// reference and say so loudly, rather than silently breaking
			// the weak-cleanup guarantee. Callers that need real weak
			// semantics must use ConnectWeak[T].
			obslog.Log.WithField("receiver_type", fmt.Sprintf("%T", receiver)).
				Warn("WithWeak on Connect cannot build a typed weak pointer via reflect; use ConnectWeak[T] for a true weak reference, falling back to strong")
		}
		v := receiver
		resolve = func() (any, bool) { return v, true }
	}

	conn := newConnection(iv, o, resolve, hasReceiver, receiver)
	s.addConnection(conn)
	return conn, nil
}

func (s *Signal) addConnection(c *Connection) {
	s.mu.Lock()
	for _, existing := range s.conns {
		if existing.origHandler.Pointer() == c.origHandler.Pointer() {
			obslog.Log.WithField("connection", c.id).Warn("duplicate connect: handler already connected to this signal")
			break
		}
	}
	s.conns = append(s.conns, c)
	s.mu.Unlock()
	obslog.Log.WithField("connection", c.id).Info("connected")
}

// removeByIdentity removes c from the live list if still present (used by
// the weak-reference GC cleanup callback). Idempotent.
func (s *Signal) removeByIdentity(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.conns {
		if existing == c {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			return
		}
	}
}

// Disconnect removes matching connections and returns the count removed.
// Both nil removes everything; only receiver matches by value equality (or
// pointer identity for non-comparable types); only handler matches by
// code-pointer identity ("same function value", not "same closure
// instance"); both is the intersection.
func (s *Signal) Disconnect(receiver any, handler any) int {
	var handlerPtr uintptr
	matchHandler := handler != nil
	if matchHandler {
		hv := reflect.ValueOf(handler)
		if hv.Kind() == reflect.Func {
			handlerPtr = hv.Pointer()
		}
	}
	matchReceiver := receiver != nil

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	kept := s.conns[:0:0]
	for _, c := range s.conns {
		remove := true
		if matchReceiver {
			live, ok := resolveLive(c)
			remove = remove && ok && receiverEqual(live, receiver)
		}
		if matchHandler {
			remove = remove && c.origHandler.Pointer() == handlerPtr
		}
		if remove {
			removed++
		} else {
			kept = append(kept, c)
		}
	}
	s.conns = kept
	if removed > 0 {
		obslog.Log.WithField("count", removed).Info("disconnected")
	}
	return removed
}

func resolveLive(c *Connection) (any, bool) {
	if !c.hasReceiver || c.resolve == nil {
		return nil, false
	}
	return c.resolve()
}

func receiverEqual(live, want any) bool {
	lv := reflect.ValueOf(live)
	wv := reflect.ValueOf(want)
	if lv.Comparable() && wv.Comparable() && lv.Type() == wv.Type() {
		return live == want
	}
	if lv.Kind() == wv.Kind() {
		switch lv.Kind() {
		case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
			return lv.Pointer() == wv.Pointer()
		}
	}
	return false
}

// Emit dispatches args to every live connection, in connect order, per the
// algorithm in the component design: snapshot under mu, iterate without
// holding it, reap stale weak/one-shot records afterward.
func (s *Signal) Emit(args ...any) {
	s.emitting.Store(true)
	defer s.emitting.Store(false)

	s.mu.Lock()
	snap := getSnapshot()
	snap = append(snap, s.conns...)
	s.mu.Unlock()
	defer putSnapshot(snap)

	emitterCtx, _ := context.Current()

	var toRemove []*Connection
	for _, c := range snap {
		if c.hasReceiver {
			if _, live := c.resolve(); !live {
				obslog.Log.WithField("connection", c.id).Debug("receiver gone, skipping and reaping")
				toRemove = append(toRemove, c)
				continue
			}
		}

		mode := effectiveMode(c, emitterCtx)
		accepted := dispatchOne(c, mode, args)
		if c.oneShot && accepted {
			toRemove = append(toRemove, c)
		}
	}

	if len(toRemove) > 0 {
		s.mu.Lock()
		for _, dead := range toRemove {
			for i, c := range s.conns {
				if c == dead {
					s.conns = append(s.conns[:i], s.conns[i+1:]...)
					break
				}
			}
		}
		s.mu.Unlock()
	}
}

func effectiveMode(c *Connection, emitterCtx *context.ExecutionContext) api.Mode {
	switch c.mode {
	case api.ModeDirect, api.ModeQueued:
		return c.mode
	default: // ModeAuto
		if c.kind == api.KindAsync {
			return api.ModeQueued
		}
		recvCtx := c.resolveContext()
		if recvCtx == nil {
			return api.ModeDirect
		}
		if emitterCtx != nil && emitterCtx.ID() == recvCtx.ID() {
			return api.ModeDirect
		}
		return api.ModeQueued
	}
}

// dispatchOne performs the direct/queued delivery for one connection and
// reports whether the dispatch was accepted (for one-shot bookkeeping:
// queued acceptance means "Post/PostAsync accepted the job", not "the job
// ran").
func dispatchOne(c *Connection, mode api.Mode, args []any) bool {
	switch mode {
	case api.ModeDirect:
		if c.kind == api.KindAsync {
			ch := c.iv.callAsync(args)
			if err := <-ch; err != nil {
				obslog.Log.WithField("connection", c.id).WithError(err).Error("handler fault")
			}
			return true
		}
		if err := c.iv.callSync(args); err != nil {
			obslog.Log.WithField("connection", c.id).WithError(err).Error("handler fault")
		}
		return true

	case api.ModeQueued:
		recvCtx := c.resolveContext()
		if recvCtx == nil {
			obslog.Log.WithField("connection", c.id).Error("queued delivery requires a bound execution context")
			return false
		}
		var err error
		if c.kind == api.KindAsync {
			err = recvCtx.Post(func() {
				if handlerErr := <-c.iv.callAsync(args); handlerErr != nil {
					obslog.Log.WithField("connection", c.id).WithError(handlerErr).Error("handler fault")
				}
			})
		} else {
			err = recvCtx.Post(func() {
				if handlerErr := c.iv.callSync(args); handlerErr != nil {
					obslog.Log.WithField("connection", c.id).WithError(handlerErr).Error("handler fault")
				}
			})
		}
		if errors.Is(err, api.ErrNoLoop) {
			obslog.Log.WithField("connection", c.id).WithError(err).Error("queued delivery requires a bound execution context")
			return false
		}
		if err != nil {
			obslog.Log.WithField("connection", c.id).WithError(err).Warn("post refused by execution context")
			return false
		}
		return true
	}
	return false
}
