// File: core/context/goroutine_id.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// goroutineID recovers the calling goroutine's runtime id by parsing its own
// stack trace header ("goroutine 123 [running]:"). Go deliberately exposes no
// supported API for this; it is used here only as the least-bad substitute
// for a stable per-goroutine identity, to let Current() resolve "the loop
// driving this goroutine" without threading a context parameter through
// every call in the codebase. Never used for scheduling decisions, only for
// registry lookups.

package context

import (
	"bytes"
	"runtime"
	"strconv"
)

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if i := bytes.Index(b, []byte(prefix)); i >= 0 {
		b = b[i+len(prefix):]
	}
	if sp := bytes.IndexByte(b, ' '); sp >= 0 {
		b = b[:sp]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
