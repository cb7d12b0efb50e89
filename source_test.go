//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import (
	"os"
	"path/filepath"
	"testing"
)

func mustTempFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("fake media bytes"), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestOpenSourcePopulatesContainerProperties(t *testing.T) {
	fb := newFakeBackend()
	dir := t.TempDir()
	path := mustTempFile(t, dir, "clip.mov")

	videoDesc := StreamDescriptor{Index: 0, Type: StreamTypeVideo, FrameRate: FrameRate25, TimeBase: NewRational(1, 25), Duration: 2_000_000, BitRate: 4_000_000, Dimensions: Dimensions{Width: 1920, Height: 1080}}
	audioDesc := StreamDescriptor{Index: 1, Type: StreamTypeAudio, TimeBase: NewRational(1, 48000), Duration: 2_000_000, BitRate: 192_000, SampleRate: 48000}
	in := newFakeInput([]StreamDescriptor{videoDesc, audioDesc}, nil)
	in.format = "QuickTime / MOV"
	fb.script(path, in)

	src, err := openSource(fb, path)
	if err != nil {
		t.Fatalf("openSource failed: %v", err)
	}
	defer src.Close()

	if src.StreamCount() != 2 {
		t.Fatalf("StreamCount: got %d want 2", src.StreamCount())
	}
	if src.VideoStreamCount() != 1 {
		t.Fatalf("VideoStreamCount: got %d want 1", src.VideoStreamCount())
	}
	if src.AudioStreamCount() != 1 {
		t.Fatalf("AudioStreamCount: got %d want 1", src.AudioStreamCount())
	}
	if got, ok := GetProp[string](src.Properties(), PropertyFileFormat); !ok || got != "QuickTime / MOV" {
		t.Fatalf("FILE_FORMAT: got (%q, %v)", got, ok)
	}
	if got, ok := GetProp[string](src.Properties(), PropertyFilename); !ok || got != path {
		t.Fatalf("FILENAME: got (%q, %v) want %q", got, ok, path)
	}
	if !src.Properties().IsLocked() {
		t.Fatalf("expected Source properties to be locked after open")
	}
}

func TestOpenSourceMissingFileFails(t *testing.T) {
	fb := newFakeBackend()
	if _, err := openSource(fb, filepath.Join(t.TempDir(), "does-not-exist.mov")); err == nil {
		t.Fatalf("expected opening a nonexistent file to fail")
	}
}

func TestSourceStreamCachesByIndex(t *testing.T) {
	fb := newFakeBackend()
	dir := t.TempDir()
	path := mustTempFile(t, dir, "clip.mov")

	desc := StreamDescriptor{Index: 0, Type: StreamTypeVideo, FrameRate: FrameRate25, TimeBase: NewRational(1, 25), Dimensions: Dimensions{Width: 640, Height: 480}}
	in := newFakeInput([]StreamDescriptor{desc}, nil)
	fb.script(path, in)

	src, err := openSource(fb, path)
	if err != nil {
		t.Fatalf("openSource failed: %v", err)
	}
	defer src.Close()

	first, err := src.Stream(0)
	if err != nil {
		t.Fatalf("Stream(0) failed: %v", err)
	}
	second, err := src.Stream(0)
	if err != nil {
		t.Fatalf("Stream(0) (cached) failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected Source.Stream to cache and return the same *Stream on repeat calls")
	}
}

func TestSourceStreamUnknownIndexFails(t *testing.T) {
	fb := newFakeBackend()
	dir := t.TempDir()
	path := mustTempFile(t, dir, "clip.mov")

	desc := StreamDescriptor{Index: 0, Type: StreamTypeVideo, FrameRate: FrameRate25, TimeBase: NewRational(1, 25)}
	in := newFakeInput([]StreamDescriptor{desc}, nil)
	fb.script(path, in)

	src, err := openSource(fb, path)
	if err != nil {
		t.Fatalf("openSource failed: %v", err)
	}
	defer src.Close()

	if _, err := src.Stream(7); err == nil {
		t.Fatalf("expected Stream(7) to fail when no such index exists")
	}
}

func TestSourceNextPacketQueuesForInterestedStreams(t *testing.T) {
	fb := newFakeBackend()
	videoDesc := StreamDescriptor{Index: 0, Type: StreamTypeVideo, FrameRate: FrameRate25, TimeBase: NewRational(1, 25)}
	audioDesc := StreamDescriptor{Index: 1, Type: StreamTypeAudio, TimeBase: NewRational(1, 48000)}
	packets := []Packet{
		NewPacket(1, 0, 0, true, 10, nil),
		NewPacket(0, 0, 0, true, 10, nil),
		NewPacket(1, 1, 1, false, 10, nil),
		NewPacket(0, 1, 1, false, 10, nil),
	}
	in := newFakeInput([]StreamDescriptor{videoDesc, audioDesc}, packets)
	src := newTestSource(fb, in)

	// Without any declared interest, a packet for a stream nobody asked
	// for is discarded rather than queued.
	pkt, ok, err := src.nextPacket(0)
	if err != nil || !ok {
		t.Fatalf("nextPacket(0) #1: got (%v, %v, %v)", pkt, ok, err)
	}
	if pkt.StreamIndex != 0 {
		t.Fatalf("expected stream 0's packet, got stream %d", pkt.StreamIndex)
	}

	src.qmu.Lock()
	queued := len(src.queue[1])
	src.qmu.Unlock()
	if queued != 0 {
		t.Fatalf("expected the audio packet read along the way to be discarded (no declared interest), got %d queued", queued)
	}

	// Once interest is declared, a packet that arrives for that stream
	// while scanning for another is queued instead of discarded.
	src.acquireInterest(1)
	pkt, ok, err = src.nextPacket(0)
	if err != nil || !ok {
		t.Fatalf("nextPacket(0) #2: got (%v, %v, %v)", pkt, ok, err)
	}
	if pkt.PTS != 1 {
		t.Fatalf("expected stream 0's second packet (pts=1), got pts=%d", pkt.PTS)
	}

	audioPkt, ok, err := src.nextPacket(1)
	if err != nil || !ok {
		t.Fatalf("nextPacket(1) from queue: got (%v, %v, %v)", audioPkt, ok, err)
	}
	if audioPkt.StreamIndex != 1 || audioPkt.PTS != 1 {
		t.Fatalf("expected the queued audio packet (stream 1, pts=1), got stream %d pts %d", audioPkt.StreamIndex, audioPkt.PTS)
	}
}

func TestSourceReleaseInterestSaturatesAtZero(t *testing.T) {
	fb := newFakeBackend()
	in := newFakeInput(nil, nil)
	src := newTestSource(fb, in)

	src.releaseInterest(3) // no matching acquireInterest; must not underflow or panic

	src.qmu.Lock()
	got := src.interest[3]
	src.qmu.Unlock()
	if got != 0 {
		t.Fatalf("expected interest counter to stay at 0, got %d", got)
	}
}

func TestSourceCloseIsIdempotent(t *testing.T) {
	fb := newFakeBackend()
	dir := t.TempDir()
	path := mustTempFile(t, dir, "clip.mov")
	in := newFakeInput(nil, nil)
	fb.script(path, in)

	src, err := openSource(fb, path)
	if err != nil {
		t.Fatalf("openSource failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := src.Stream(0); err != ErrClosed {
		t.Fatalf("expected Stream() on a closed Source to return ErrClosed, got %v", err)
	}
}
