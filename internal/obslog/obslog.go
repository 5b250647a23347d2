// File: internal/obslog/obslog.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package-wide structured logger shared by core/dispatch, core/worker, and
// facade. TSIGNAL_DEBUG (any value other than unset/"0"/"false") raises the
// level to Debug, enabling per-emission, per-record dispatch-mode logging.

package obslog

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger instance.
var Log = logrus.New()

func init() {
	Log.SetLevel(logrus.InfoLevel)
	if debugEnabled() {
		Log.SetLevel(logrus.DebugLevel)
	}
}

func debugEnabled() bool {
	v := strings.TrimSpace(os.Getenv("TSIGNAL_DEBUG"))
	if v == "" || v == "0" || strings.EqualFold(v, "false") {
		return false
	}
	return true
}
