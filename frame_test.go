//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import (
	"sync"
	"testing"
)

// countingFrameDataBackend wraps fakeBackend to count FrameData calls,
// so tests can assert Frame.Data's lazy-conversion cache only invokes
// the backend once per distinct conversion target.
type countingFrameDataBackend struct {
	*fakeBackend
	mu    sync.Mutex
	calls int
}

func (c *countingFrameDataBackend) FrameData(f *Frame, target *FrameConversionTarget) (FrameData, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if target != nil {
		return FrameData{PixelFormat: target.PixelFormat}, nil
	}
	return FrameData{}, nil
}

func (c *countingFrameDataBackend) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestFrameDataWithoutTargetCallsBackendDirectly(t *testing.T) {
	cb := &countingFrameDataBackend{fakeBackend: newFakeBackend()}
	f := newDecodedFrame(cb, nil, MediaTypeVideo, 0, FrameRate25.Invert())

	if _, err := f.Data(); err != nil {
		t.Fatalf("Data() failed: %v", err)
	}
	if _, err := f.Data(); err != nil {
		t.Fatalf("Data() (second call) failed: %v", err)
	}
	if got := cb.callCount(); got != 2 {
		t.Fatalf("expected no caching without a conversion target (2 backend calls), got %d", got)
	}
}

func TestFrameDataCachesConversionResult(t *testing.T) {
	cb := &countingFrameDataBackend{fakeBackend: newFakeBackend()}
	f := newDecodedFrame(cb, nil, MediaTypeVideo, 0, FrameRate25.Invert())
	f.SetConversionTarget(&FrameConversionTarget{PixelFormat: PixelFormatYUV420, Dimensions: Dimensions{Width: 640, Height: 480}})

	first, err := f.Data()
	if err != nil {
		t.Fatalf("Data() failed: %v", err)
	}
	second, err := f.Data()
	if err != nil {
		t.Fatalf("Data() (second call) failed: %v", err)
	}
	if first.PixelFormat != second.PixelFormat {
		t.Fatalf("expected cached FrameData to be identical across calls: %+v vs %+v", first, second)
	}
	if got := cb.callCount(); got != 1 {
		t.Fatalf("expected exactly one backend call for a cached conversion, got %d", got)
	}
	if first.PixelFormat != PixelFormatYUV420 {
		t.Fatalf("expected the cached conversion's pixel format, got %v", first.PixelFormat)
	}
}

func TestFrameSetConversionTargetClearsCache(t *testing.T) {
	cb := &countingFrameDataBackend{fakeBackend: newFakeBackend()}
	f := newDecodedFrame(cb, nil, MediaTypeVideo, 0, FrameRate25.Invert())
	f.SetConversionTarget(&FrameConversionTarget{PixelFormat: PixelFormatYUV420})
	if _, err := f.Data(); err != nil {
		t.Fatalf("Data() failed: %v", err)
	}
	if got := cb.callCount(); got != 1 {
		t.Fatalf("expected 1 backend call after first Data(), got %d", got)
	}

	f.SetConversionTarget(&FrameConversionTarget{PixelFormat: PixelFormatRGB24})
	second, err := f.Data()
	if err != nil {
		t.Fatalf("Data() after re-targeting failed: %v", err)
	}
	if got := cb.callCount(); got != 2 {
		t.Fatalf("expected re-targeting to invalidate the cache and trigger a second backend call, got %d", got)
	}
	if second.PixelFormat != PixelFormatRGB24 {
		t.Fatalf("expected the new target's pixel format, got %v", second.PixelFormat)
	}
}

func TestFrameExtractPropertiesDelegatesToBackend(t *testing.T) {
	fb := newFakeBackend()
	video := newDecodedFrame(fb, nil, MediaTypeVideo, 0, FrameRate25.Invert())
	if err := video.ExtractProperties(); err != nil {
		t.Fatalf("ExtractProperties (video) failed: %v", err)
	}
	if _, ok := GetProp[ColourSpace](video.Properties(), PropertyColourSpace); !ok {
		t.Fatalf("expected ExtractProperties to populate COLOUR_SPACE on a video frame")
	}

	audio := newDecodedFrame(fb, nil, MediaTypeAudio, 0, NewRational(1, 48000))
	if err := audio.ExtractProperties(); err != nil {
		t.Fatalf("ExtractProperties (audio) failed: %v", err)
	}
	if _, ok := GetProp[int32](audio.Properties(), PropertyAudioSamples); !ok {
		t.Fatalf("expected ExtractProperties to populate AUDIO_SAMPLES on an audio frame")
	}
}

func TestFrameTimestampOverride(t *testing.T) {
	fb := newFakeBackend()
	f := newDecodedFrame(fb, nil, MediaTypeVideo, 5, FrameRate25.Invert())
	if f.Timestamp() != 5 {
		t.Fatalf("expected initial timestamp 5, got %d", f.Timestamp())
	}
	f.SetTimestamp(42)
	if f.Timestamp() != 42 {
		t.Fatalf("expected timestamp 42 after SetTimestamp, got %d", f.Timestamp())
	}
}

func TestNewFrameFailsWithoutAnActiveBackend(t *testing.T) {
	if ActiveBackend() != nil {
		t.Skip("a backend is already active in this process; NewFrame's no-backend path isn't reachable")
	}
	if _, err := NewFrame(MediaTypeVideo); err != ErrNotLoaded {
		t.Fatalf("expected ErrNotLoaded with no active backend, got %v", err)
	}
}
