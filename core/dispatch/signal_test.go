package dispatch

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/tsignal-go/api"
	"github.com/momentics/tsignal-go/core/context"
)

func TestConnectAndEmitDirect(t *testing.T) {
	sig := New()
	var got int
	_, err := sig.Connect(nil, func(n int) { got = n }, WithMode(api.ModeDirect))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	sig.Emit(42)
	if got != 42 {
		t.Fatalf("want 42, got %d", got)
	}
}

func TestConnectRejectsNonFunc(t *testing.T) {
	sig := New()
	if _, err := sig.Connect(nil, 7); !errors.Is(err, api.ErrNotCallable) {
		t.Fatalf("expected ErrNotCallable, got %v", err)
	}
}

func TestConnectOrderIsDeliveryOrder(t *testing.T) {
	sig := New()
	var mu sync.Mutex
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		if _, err := sig.Connect(nil, func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}, WithMode(api.ModeDirect)); err != nil {
			t.Fatalf("Connect: %v", err)
		}
	}
	sig.Emit()
	for i, v := range order {
		if v != i {
			t.Fatalf("connect-order violated at %d: got %d", i, v)
		}
	}
}

func TestOneShotFiresOnce(t *testing.T) {
	sig := New()
	var calls atomic.Int32
	_, err := sig.Connect(nil, func() { calls.Add(1) }, WithMode(api.ModeDirect), WithOneShot())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	sig.Emit()
	sig.Emit()
	sig.Emit()
	if calls.Load() != 1 {
		t.Fatalf("want 1 call, got %d", calls.Load())
	}
}

func TestHandlerPanicDoesNotStopOtherHandlers(t *testing.T) {
	sig := New()
	var secondCalled atomic.Bool
	if _, err := sig.Connect(nil, func() { panic("boom") }, WithMode(api.ModeDirect)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := sig.Connect(nil, func() { secondCalled.Store(true) }, WithMode(api.ModeDirect)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	sig.Emit()
	if !secondCalled.Load() {
		t.Fatal("second handler should still run after the first panics")
	}
}

func TestHandlerReturningErrorDoesNotStopOthers(t *testing.T) {
	sig := New()
	var secondCalled atomic.Bool
	if _, err := sig.Connect(nil, func() error { return errors.New("fail") }, WithMode(api.ModeDirect)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := sig.Connect(nil, func() { secondCalled.Store(true) }, WithMode(api.ModeDirect)); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	sig.Emit()
	if !secondCalled.Load() {
		t.Fatal("second handler should still run after the first returns an error")
	}
}

func TestDisconnectByReceiver(t *testing.T) {
	sig := New()
	type rcv struct{ n int }
	r1, r2 := &rcv{1}, &rcv{2}
	sig.Connect(r1, func() {}, WithMode(api.ModeDirect))
	sig.Connect(r2, func() {}, WithMode(api.ModeDirect))
	sig.Connect(r1, func() {}, WithMode(api.ModeDirect))

	n := sig.Disconnect(r1, nil)
	if n != 2 {
		t.Fatalf("want 2 removed, got %d", n)
	}
	if len(sig.conns) != 1 {
		t.Fatalf("want 1 remaining connection, got %d", len(sig.conns))
	}
}

func TestDisconnectByHandlerIdentity(t *testing.T) {
	sig := New()
	h := func() {}
	sig.Connect(nil, h, WithMode(api.ModeDirect))
	sig.Connect(nil, func() {}, WithMode(api.ModeDirect))

	n := sig.Disconnect(nil, h)
	if n != 1 {
		t.Fatalf("want 1 removed, got %d", n)
	}
}

func TestDisconnectBothNilRemovesAll(t *testing.T) {
	sig := New()
	sig.Connect(nil, func() {}, WithMode(api.ModeDirect))
	sig.Connect(nil, func() {}, WithMode(api.ModeDirect))
	if n := sig.Disconnect(nil, nil); n != 2 {
		t.Fatalf("want 2 removed, got %d", n)
	}
}

func TestQueuedDeliveryCrossContext(t *testing.T) {
	receiverCtx := context.NewLoopContext(8)
	go receiverCtx.Run()
	defer receiverCtx.Stop()

	sig := New()
	recv := &contextualStub{ctx: receiverCtx}
	done := make(chan struct{})
	_, err := sig.Connect(recv, func() { close(done) }, WithMode(api.ModeQueued))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	sig.Emit()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queued handler never ran")
	}
}

func TestModeAutoDirectWhenSameContext(t *testing.T) {
	ctx := context.NewLoopContext(8)
	recv := &contextualStub{ctx: ctx}
	sig := New()
	var ranOnSameGoroutine bool
	_, err := sig.Connect(recv, func() {
		cur, _ := context.Current()
		ranOnSameGoroutine = cur != nil && cur.ID() == ctx.ID()
	}) // ModeAuto by default
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ctx.Stop()
		_ = ctx.Post(func() { sig.Emit() })
	}()
	go ctx.Run()
	<-done
	time.Sleep(10 * time.Millisecond)
	if !ranOnSameGoroutine {
		t.Fatal("expected handler to have observed the same execution context (direct dispatch)")
	}
}

func TestConnectWeakDropsAfterReceiverCollected(t *testing.T) {
	sig := New()
	// The pointer field keeps rcv off the tiny allocator: a small pointer-free
	// object can share an allocation block with `called` below, which stays
	// reachable through the handler, so the receiver would never be collected.
	type rcv struct {
		n    int
		next *rcv
	}
	r := &rcv{n: 1}
	var called atomic.Bool
	if _, err := ConnectWeak(sig, r, func() { called.Store(true) }, WithMode(api.ModeDirect)); err != nil {
		t.Fatalf("ConnectWeak: %v", err)
	}

	sig.Emit()
	if !called.Load() {
		t.Fatal("expected the weakly-connected handler to run while receiver is alive")
	}

	r = nil
	for i := 0; i < 20; i++ {
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
		sig.mu.Lock()
		n := len(sig.conns)
		sig.mu.Unlock()
		if n == 0 {
			return
		}
	}
	t.Fatal("connection was not reaped after receiver became unreachable")
}

type contextualStub struct {
	ctx *context.ExecutionContext
}

func (c *contextualStub) ExecutionContext() *context.ExecutionContext { return c.ctx }
