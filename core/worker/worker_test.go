package worker

import (
	stdcontext "context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/tsignal-go/api"
)

func TestLifecycleHappyPath(t *testing.T) {
	w := New(-1)
	if w.State() != api.WorkerCreated {
		t.Fatalf("want Created, got %v", w.State())
	}

	started := make(chan struct{})
	err := w.Start(stdcontext.Background(), func(stop <-chan struct{}) error {
		close(started)
		<-stop
		return nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	if w.State() != api.WorkerRunning {
		t.Fatalf("want Running, got %v", w.State())
	}

	if err := w.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if w.State() != api.WorkerStopped {
		t.Fatalf("want Stopped, got %v", w.State())
	}
}

func TestStartTwiceFails(t *testing.T) {
	w := New(-1)
	run := func(stop <-chan struct{}) error { <-stop; return nil }
	if err := w.Start(stdcontext.Background(), run); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop(time.Second)

	if err := w.Start(stdcontext.Background(), run); !errors.Is(err, api.ErrLifecycle) {
		t.Fatalf("expected ErrLifecycle on second Start, got %v", err)
	}
}

func TestStopFromCreatedIsNoop(t *testing.T) {
	w := New(-1)
	if err := w.Stop(time.Second); err != nil {
		t.Fatalf("Stop from Created should be a no-op, got %v", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w := New(-1)
	w.Start(stdcontext.Background(), func(stop <-chan struct{}) error { <-stop; return nil })
	if err := w.Stop(time.Second); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := w.Stop(time.Second); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestQueueTaskRunsInOrder(t *testing.T) {
	w := New(-1)
	w.Start(stdcontext.Background(), func(stop <-chan struct{}) error { <-stop; return nil })
	defer w.Stop(time.Second)

	var counter atomic.Int32
	var seen [3]int32
	for i := 0; i < 3; i++ {
		idx := i
		done := make(chan struct{})
		err := w.QueueTask(func() <-chan error {
			ch := make(chan error, 1)
			seen[idx] = counter.Add(1)
			close(done)
			ch <- nil
			return ch
		})
		if err != nil {
			t.Fatalf("QueueTask: %v", err)
		}
		<-done
	}
	for i, v := range seen {
		if int(v) != i+1 {
			t.Fatalf("out-of-order execution: seen[%d] = %d", i, v)
		}
	}
}

func TestQueueTaskOnStoppedWorkerFails(t *testing.T) {
	w := New(-1)
	w.Start(stdcontext.Background(), func(stop <-chan struct{}) error { <-stop; return nil })
	w.Stop(time.Second)

	if err := w.QueueTask(func() <-chan error { ch := make(chan error); close(ch); return ch }); !errors.Is(err, api.ErrPostFault) {
		t.Fatalf("expected ErrPostFault, got %v", err)
	}
}

func TestStopAggregatesRunError(t *testing.T) {
	w := New(-1)
	w.Start(stdcontext.Background(), func(stop <-chan struct{}) error {
		<-stop
		return errors.New("run failed")
	})
	// Stop still succeeds: background task errors are logged, not returned.
	if err := w.Stop(time.Second); err != nil {
		t.Fatalf("Stop should swallow run's error, got %v", err)
	}
}

func TestDrainTimeoutExceeded(t *testing.T) {
	w := New(-1)
	w.Start(stdcontext.Background(), func(stop <-chan struct{}) error {
		<-stop
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	if err := w.Stop(10 * time.Millisecond); !errors.Is(err, api.ErrDrainTimeout) {
		t.Fatalf("expected ErrDrainTimeout, got %v", err)
	}
	// Clean up the still-running worker so the test process doesn't leak it.
	w.Stop(time.Second)
}
