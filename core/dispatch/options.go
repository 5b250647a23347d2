// File: core/dispatch/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package dispatch

import "github.com/momentics/tsignal-go/api"

type connectOptions struct {
	mode    api.Mode
	oneShot bool
	weak    bool
}

func defaultOptions() connectOptions {
	return connectOptions{mode: api.ModeAuto}
}

// ConnectOption customizes a Connect/ConnectWeak call.
type ConnectOption func(*connectOptions)

// WithMode pins the connection's dispatch mode instead of resolving it via
// ModeAuto at emit time.
func WithMode(m api.Mode) ConnectOption {
	return func(o *connectOptions) { o.mode = m }
}

// WithOneShot marks the connection to be removed after its first successful
// dispatch.
func WithOneShot() ConnectOption {
	return func(o *connectOptions) { o.oneShot = true }
}

// WithWeak requests a weak receiver reference. Only ConnectWeak builds a true
// weak reference; on Connect a non-nil receiver is still held strongly (a
// warning is logged), and on a free callable (receiver == nil) the option is
// inert, matching the source library's documented "weak is inert there"
// behavior.
func WithWeak() ConnectOption {
	return func(o *connectOptions) { o.weak = true }
}
