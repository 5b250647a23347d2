package context

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/tsignal-go/api"
)

func TestBindIsIdempotentPerGoroutine(t *testing.T) {
	c1 := Bind()
	c2 := Bind()
	if c1 != c2 {
		t.Fatalf("Bind() should return the same context for the same goroutine")
	}
	if c1.Bound() {
		t.Fatalf("Bind() should not attach a backing loop")
	}
}

func TestLoopContextPostFIFO(t *testing.T) {
	ctx := NewLoopContext(8)
	go ctx.Run()
	defer ctx.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		i := i
		if err := ctx.Post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("FIFO order violated: order[%d] = %d", i, v)
		}
	}
}

func TestPostAsyncAwaitsCompletion(t *testing.T) {
	ctx := NewLoopContext(8)
	go ctx.Run()
	defer ctx.Stop()

	var ran atomic.Int32
	done := make(chan struct{})
	err := ctx.PostAsync(func() <-chan error {
		ch := make(chan error, 1)
		go func() {
			time.Sleep(10 * time.Millisecond)
			ran.Store(1)
			ch <- nil
		}()
		return ch
	})
	if err != nil {
		t.Fatalf("PostAsync: %v", err)
	}
	if err := ctx.Post(func() {
		if ran.Load() != 1 {
			t.Errorf("async job should have completed before next post runs")
		}
		close(done)
	}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ordered completion")
	}
}

func TestUnboundContextPostFails(t *testing.T) {
	ctx := New()
	if err := ctx.Post(func() {}); err == nil {
		t.Fatal("expected ErrNoLoop on an unbound context")
	}
}

func TestStopAfterStopIsNoop(t *testing.T) {
	ctx := NewLoopContext(4)
	go ctx.Run()
	ctx.Stop()
	ctx.Stop() // must not hang or panic
}

func TestPoolContextPostHasNoFIFOGuaranteeButRunsEverything(t *testing.T) {
	exec := &api.MockExecutor{}
	ctx := NewPoolContext(exec)
	if !ctx.Bound() {
		t.Fatal("a pool-backed context should report itself bound")
	}

	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		if err := ctx.Post(func() { n.Add(1); wg.Done() }); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}
	wg.Wait()
	if n.Load() != 10 {
		t.Fatalf("want 10 jobs run, got %d", n.Load())
	}
}
