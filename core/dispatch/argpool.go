// File: core/dispatch/argpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// snapshotPool reuses []*Connection slices across Emit calls, so a signal
// with a stable connection count does not allocate a fresh backing array on
// every emission.

package dispatch

import "github.com/momentics/tsignal-go/pool"

var snapshotPool = pool.NewSyncPool(func() []*Connection {
	return make([]*Connection, 0, 8)
})

func getSnapshot() []*Connection {
	return snapshotPool.Get()[:0]
}

func putSnapshot(s []*Connection) {
	for i := range s {
		s[i] = nil
	}
	snapshotPool.Put(s)
}
