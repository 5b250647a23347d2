package facade

import (
	stdcontext "context"
	"testing"
	"time"
)

func TestFacadeLifecycle(t *testing.T) {
	f := New(Config{ExecutorWorkers: 2})
	if f.Control() == nil || f.Scheduler() == nil || f.Executor() == nil {
		t.Fatal("facade should construct a full ambient stack")
	}

	w := f.NewWorker(-1)
	started := make(chan struct{})
	if err := w.Start(stdcontext.Background(), func(stop <-chan struct{}) error {
		close(started)
		<-stop
		return nil
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started

	f.Control().SetMetric("demo.started", true)
	if got := f.Control().Stats()["demo.started"]; got != true {
		t.Fatalf("expected metric to round-trip, got %v", got)
	}

	if err := f.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
