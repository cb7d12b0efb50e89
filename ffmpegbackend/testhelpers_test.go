//go:build !ios && !android && (amd64 || arm64)

package ffmpegbackend

import (
	"testing"

	"github.com/jnoble-mh/mediahandling/internal/bindings"
)

// requireFFmpeg skips t unless the native FFmpeg shared libraries this
// package dlopens (libavformat/libavcodec/libavutil/libswscale/
// libswresample) are actually present on the host, since none of this
// package's functionality is reachable without them. It returns false
// when the test was skipped.
func requireFFmpeg(t *testing.T) bool {
	t.Helper()
	if err := bindings.Load(); err != nil {
		t.Skipf("FFmpeg shared libraries not available: %v", err)
		return false
	}
	return true
}
