// File: adapters/affinity_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// AffinityAdapter implements api.Affinity by delegating to the affinity
// package's platform-specific pthread/Win32 thread pinning. NUMA locality is
// tracked only as a label here; Go's scheduler exposes no way to bind
// goroutines (as opposed to OS threads) to a NUMA node.

package adapters

import (
	"runtime"

	"github.com/momentics/tsignal-go/affinity"
	"github.com/momentics/tsignal-go/api"
)

// AffinityAdapter implements api.Affinity. Pin locks the calling goroutine to
// its OS thread before attempting to pin that thread to a CPU; Unpin releases
// the OS thread lock so the scheduler may migrate the goroutine again.
type AffinityAdapter struct {
	currentCPU  int
	currentNUMA int
	pinned      bool
}

// NewAffinityAdapter creates a new AffinityAdapter with no binding.
func NewAffinityAdapter() api.Affinity {
	return &AffinityAdapter{currentCPU: -1, currentNUMA: -1}
}

// Pin locks the current goroutine's OS thread and pins it to cpuID. cpuID
// of -1 selects CPU 0. numaID is recorded for Get()/diagnostics only.
func (a *AffinityAdapter) Pin(cpuID int, numaID int) error {
	if cpuID < 0 {
		cpuID = 0
	}
	if cpuID >= runtime.NumCPU() {
		cpuID = cpuID % runtime.NumCPU()
	}
	runtime.LockOSThread()
	if err := affinity.SetAffinity(cpuID); err != nil {
		runtime.UnlockOSThread()
		return err
	}
	a.currentCPU = cpuID
	a.currentNUMA = numaID
	a.pinned = true
	return nil
}

// Unpin releases the OS thread lock acquired by Pin, allowing the runtime to
// resume scheduling this goroutine onto any thread.
func (a *AffinityAdapter) Unpin() error {
	if a.pinned {
		runtime.UnlockOSThread()
	}
	a.pinned = false
	a.currentCPU = -1
	a.currentNUMA = -1
	return nil
}

// Get returns the currently effective CPU and NUMA IDs for this adapter.
func (a *AffinityAdapter) Get() (cpuID int, numaID int, err error) {
	return a.currentCPU, a.currentNUMA, nil
}
