// File: core/dispatch/cleanup.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package dispatch

import "runtime"

// runtimeAddCleanup registers fn to run once ptr becomes unreachable,
// without fn itself keeping ptr alive (fn must not close over ptr).
func runtimeAddCleanup[T any](ptr *T, fn func()) {
	runtime.AddCleanup(ptr, func(_ struct{}) { fn() }, struct{}{})
}
