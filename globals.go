//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import "sync/atomic"

// loadFlag/storeFlag back the process-wide boolean toggles spec.md §5
// requires be atomic (selected backend, auto-detect flag, log level,
// logging callback installed/not).
func loadFlag(flag *int32) bool {
	return atomic.LoadInt32(flag) != 0
}

func storeFlag(flag *int32, v bool) {
	var i int32
	if v {
		i = 1
	}
	atomic.StoreInt32(flag, i)
}
