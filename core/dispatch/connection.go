// File: core/dispatch/connection.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package dispatch

import (
	"reflect"

	"github.com/momentics/tsignal-go/api"
	"github.com/momentics/tsignal-go/core/context"
)

// Contextual is implemented by receivers that carry their own bound
// ExecutionContext (typically a Worker's owned objects). Under ModeAuto, sync
// handlers on receivers that do not implement it are dispatched ModeDirect;
// async handlers on them resolve to ModeQueued, find no context, and are
// dropped with an error log.
type Contextual interface {
	ExecutionContext() *context.ExecutionContext
}

// receiverResolver recovers the live receiver value (or its absence) at
// connect time (strong) or at every use (weak).
type receiverResolver func() (any, bool)

// Connection is one entry in a Signal's ordered connection list.
type Connection struct {
	id string

	hasReceiver bool
	resolve     receiverResolver // nil when hasReceiver is false
	origHandler reflect.Value    // for Disconnect's "same function value" rule

	iv *invoker

	kind api.HandlerKind
	mode api.Mode

	oneShot bool

	receiverContext *context.ExecutionContext
	ctxResolver     func(any) *context.ExecutionContext
}

// ID returns the connection's ULID, used for debug logging and duplicate
// diagnostics.
func (c *Connection) ID() string { return c.id }

// Kind reports whether the connected handler is sync or async.
func (c *Connection) Kind() api.HandlerKind { return c.kind }

// resolveContext returns the receiver's cached execution context, lazily
// resolving it via ctxResolver if the receiver implements Contextual and no
// context has been cached yet (the receiver may not have been bound to a
// loop at connect time).
func (c *Connection) resolveContext() *context.ExecutionContext {
	if c.receiverContext != nil {
		return c.receiverContext
	}
	if c.ctxResolver == nil || c.resolve == nil {
		return nil
	}
	recv, live := c.resolve()
	if !live {
		return nil
	}
	ctx := c.ctxResolver(recv)
	if ctx != nil {
		c.receiverContext = ctx
	}
	return ctx
}

func contextResolverFor(receiver any) *context.ExecutionContext {
	if receiver == nil {
		return nil
	}
	if cx, ok := receiver.(Contextual); ok {
		return cx.ExecutionContext()
	}
	return nil
}
