//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/jnoble-mh/mediahandling/internal/shim"
)

// BackendLogLevel represents the native FFmpeg log level, forwarded
// verbatim from av_log. This is distinct from the library's own
// five-level LogLevel (logging.go), which spec.md §6 defines.
type BackendLogLevel int32

// Log level constants matching FFmpeg's AV_LOG_* values.
const (
	BackendLogQuiet   BackendLogLevel = -8 // Print no output
	BackendLogPanic   BackendLogLevel = 0  // Something went really wrong, crash
	BackendLogFatal   BackendLogLevel = 8  // Something went wrong, exit now
	BackendLogError   BackendLogLevel = 16 // Something went wrong, recovery possible
	BackendLogWarning BackendLogLevel = 24 // Something unexpected but recovery possible
	BackendLogInfo    BackendLogLevel = 32 // Standard information
	BackendLogVerbose BackendLogLevel = 40 // Detailed information
	BackendLogDebug   BackendLogLevel = 48 // Stuff for debugging
	BackendLogTrace   BackendLogLevel = 56 // Extremely verbose debugging
)

// String returns the string representation of the log level.
func (l BackendLogLevel) String() string {
	switch {
	case l <= BackendLogQuiet:
		return "quiet"
	case l <= BackendLogPanic:
		return "panic"
	case l <= BackendLogFatal:
		return "fatal"
	case l <= BackendLogError:
		return "error"
	case l <= BackendLogWarning:
		return "warning"
	case l <= BackendLogInfo:
		return "info"
	case l <= BackendLogVerbose:
		return "verbose"
	case l <= BackendLogDebug:
		return "debug"
	default:
		return "trace"
	}
}

// ToLibraryLevel maps l onto the library's own five-level LogLevel
// scale (logging.go), so EnableBackendLogs can forward av_log severity
// through AssignLoggerCallback's filter instead of collapsing every
// backend line to one fixed level.
func (l BackendLogLevel) ToLibraryLevel() LogLevel {
	switch {
	case l <= BackendLogFatal:
		return LogLevelFatal
	case l <= BackendLogError:
		return LogLevelCritical
	case l <= BackendLogWarning:
		return LogLevelWarning
	case l <= BackendLogInfo:
		return LogLevelInfo
	default:
		return LogLevelDebug
	}
}

// BackendLogCallback is called for each raw FFmpeg log message.
// level is the log level, message is the formatted message.
type BackendLogCallback func(level BackendLogLevel, message string)

var (
	logCallbackMu sync.Mutex
	logCallback   BackendLogCallback
	logCBHandle   uintptr
)

// setBackendLogLevel sets the FFmpeg log level.
// This requires the ffshim library to be available.
// Returns an error if the shim is not loaded.
func setBackendLogLevel(level BackendLogLevel) error {
	if err := shim.Load(); err != nil {
		return err
	}
	return shim.SetLogLevel(int32(level))
}

// setBackendLogCallback sets a custom log handler for FFmpeg messages.
// Pass nil to restore the default logging behavior.
// This requires the ffshim library to be available.
func setBackendLogCallback(cb BackendLogCallback) error {
	if err := shim.Load(); err != nil {
		return err
	}

	logCallbackMu.Lock()
	defer logCallbackMu.Unlock()

	if cb == nil {
		// Restore default callback
		logCallback = nil
		return shim.SetLogCallback(0)
	}

	logCallback = cb

	// Create a purego callback if we haven't yet
	if logCBHandle == 0 {
		logCBHandle = purego.NewCallback(logCallbackTrampoline)
	}

	return shim.SetLogCallback(logCBHandle)
}

// logCallbackTrampoline is called by the shim and forwards to the Go callback.
// Signature: void (*)(void *avcl, int level, const char *msg)
func logCallbackTrampoline(_ purego.CDecl, _ unsafe.Pointer, level int32, msg *byte) {
	logCallbackMu.Lock()
	cb := logCallback
	logCallbackMu.Unlock()

	if cb == nil {
		return
	}

	// Convert C string to Go string
	goMsg := ""
	if msg != nil {
		// Find the length
		ptr := unsafe.Pointer(msg)
		for i := 0; ; i++ {
			b := *(*byte)(unsafe.Pointer(uintptr(ptr) + uintptr(i)))
			if b == 0 {
				goMsg = string(unsafe.Slice(msg, i))
				break
			}
			if i > 4096 { // Safety limit
				goMsg = string(unsafe.Slice(msg, i))
				break
			}
		}
	}

	cb(BackendLogLevel(level), goMsg)
}

// IsLoggingAvailable returns true if logging functionality is available.
// Logging requires the ffshim helper library to be installed.
func IsLoggingAvailable() bool {
	if err := shim.Load(); err != nil {
		return false
	}
	return shim.IsLoaded()
}
