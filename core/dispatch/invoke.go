// File: core/dispatch/invoke.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reflection-based handler invocation, grounded on rainycape-gondola/signal's
// use of reflect.Value.Call for dynamic dispatch. A handler's kind (sync vs.
// async) and its argument types are inspected once at connect time, so Emit
// never pays more reflection cost per call than one Call.

package dispatch

import (
	"fmt"
	"reflect"

	"github.com/momentics/tsignal-go/api"
)

var chanErrType = reflect.TypeOf((<-chan error)(nil))
var errType = reflect.TypeOf((*error)(nil)).Elem()

// invoker holds the erased, reflect-built call path for one connected
// handler. Exactly one of callSync/callAsync is used, per kind.
type invoker struct {
	kind      api.HandlerKind
	fnVal     reflect.Value
	fnType    reflect.Type
	numIn     int
	isVariadic bool
}

// buildInvoker validates handler is a func value and classifies it as sync
// or async (KindAsync iff its sole return value is assignable to
// <-chan error).
func buildInvoker(handler any) (*invoker, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: handler is nil", api.ErrNotCallable)
	}
	v := reflect.ValueOf(handler)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: got %T", api.ErrNotCallable, handler)
	}
	t := v.Type()
	kind := api.KindSync
	if t.NumOut() == 1 && t.Out(0).AssignableTo(chanErrType) {
		kind = api.KindAsync
	}
	return &invoker{
		kind:       kind,
		fnVal:      v,
		fnType:     t,
		numIn:      t.NumIn(),
		isVariadic: t.IsVariadic(),
	}, nil
}

// buildArgs maps the emitted args onto the handler's declared parameters:
// extra args are dropped, missing trailing args are zero-filled. Returns an
// error if a supplied arg cannot be used as the corresponding parameter.
func (iv *invoker) buildArgs(args []any) ([]reflect.Value, error) {
	n := iv.numIn
	if iv.isVariadic && n > 0 {
		n--
	}
	in := make([]reflect.Value, 0, n)
	for i := 0; i < n; i++ {
		paramType := iv.fnType.In(i)
		if i < len(args) {
			av := reflect.ValueOf(args[i])
			if !av.IsValid() {
				in = append(in, reflect.Zero(paramType))
				continue
			}
			if av.Type().AssignableTo(paramType) {
				in = append(in, av)
			} else if av.Type().ConvertibleTo(paramType) {
				in = append(in, av.Convert(paramType))
			} else {
				return nil, fmt.Errorf("%w: arg %d is %s, want %s", api.ErrHandlerFault, i, av.Type(), paramType)
			}
		} else {
			in = append(in, reflect.Zero(paramType))
		}
	}
	return in, nil
}

// callSync invokes a KindSync handler, recovering panics and converting both
// a recovered panic and a returned error into a single error value.
func (iv *invoker) callSync(args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", api.ErrHandlerFault, r)
		}
	}()
	in, buildErr := iv.buildArgs(args)
	if buildErr != nil {
		return buildErr
	}
	out := iv.fnVal.Call(in)
	if len(out) == 1 && out[0].Type().AssignableTo(errType) {
		if e, ok := out[0].Interface().(error); ok && e != nil {
			return e
		}
	}
	return nil
}

// callAsync invokes a KindAsync handler and returns its completion channel.
// A panic or build failure yields an already-failed channel, and a nil
// channel from the handler yields a closed one, so callers can always safely
// receive from the result.
func (iv *invoker) callAsync(args []any) (ch <-chan error) {
	defer func() {
		if r := recover(); r != nil {
			ch = failedChan(fmt.Errorf("%w: panic: %v", api.ErrHandlerFault, r))
		}
	}()
	in, buildErr := iv.buildArgs(args)
	if buildErr != nil {
		return failedChan(buildErr)
	}
	out := iv.fnVal.Call(in)
	if len(out) != 1 {
		return failedChan(fmt.Errorf("%w: async handler returned %d values", api.ErrHandlerFault, len(out)))
	}
	ch = out[0].Convert(chanErrType).Interface().(<-chan error)
	if ch == nil {
		done := make(chan error)
		close(done)
		return done
	}
	return ch
}

func failedChan(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}
