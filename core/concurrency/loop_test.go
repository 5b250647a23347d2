package concurrency

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunsPushedJobsInOrder(t *testing.T) {
	l := NewLoop(4)
	go l.Run()
	defer l.Stop()

	var n atomic.Int32
	results := make(chan int32, 10)
	for i := 0; i < 10; i++ {
		if !l.Push(func() { results <- n.Add(1) }) {
			t.Fatal("Push returned false on a running loop")
		}
	}
	for i := int32(1); i <= 10; i++ {
		select {
		case got := <-results:
			if got != i {
				t.Fatalf("want %d, got %d", i, got)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for job")
		}
	}
}

func TestLoopStopRejectsFurtherPushes(t *testing.T) {
	l := NewLoop(4)
	go l.Run()
	l.Stop()
	if l.Push(func() {}) {
		t.Fatal("expected Push to fail after Stop")
	}
}

func TestExecutorSubmitAndResize(t *testing.T) {
	e := NewExecutor(2, false)
	defer e.Close()

	done := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		if err := e.Submit(func() { done <- struct{}{} }); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("task never ran")
		}
	}

	e.Resize(4)
	if e.NumWorkers() != 4 {
		t.Fatalf("want 4 workers, got %d", e.NumWorkers())
	}
}

func TestSchedulerFiresAndCancels(t *testing.T) {
	s := NewScheduler()

	fired := make(chan struct{})
	_, err := s.Schedule(int64(5*time.Millisecond), func() { close(fired) })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("scheduled callback never fired")
	}

	calledAfterCancel := make(chan struct{})
	c, err := s.Schedule(int64(50*time.Millisecond), func() { close(calledAfterCancel) })
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := s.Cancel(c); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	select {
	case <-calledAfterCancel:
		t.Fatal("canceled callback should not have fired")
	case <-time.After(100 * time.Millisecond):
	}
}
