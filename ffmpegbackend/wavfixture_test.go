//go:build !ios && !android && (amd64 || arm64)

package ffmpegbackend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mh "github.com/jnoble-mh/mediahandling"
)

// writeSilentWAVFixture authors a silent PCM WAV file independent of this
// package's Engine, so the header mh.CreateSource later reports can be
// cross-checked against a demuxer this backend never touched.
func writeSilentWAVFixture(t *testing.T, path string, sampleRate, bitDepth, numChans, numSamples int) {
	t.Helper()
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating WAV fixture: %v", err)
	}
	defer out.Close()

	enc := wav.NewEncoder(out, sampleRate, bitDepth, numChans, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: numChans, SampleRate: sampleRate},
		Data:           make([]int, numSamples*numChans), // zero-valued: silence
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("writing WAV fixture samples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing WAV fixture: %v", err)
	}
}

// TestSilentWAVHeaderMatchesEngineProperties covers spec.md's silent-WAV
// seed scenario (mono, 22050Hz, 16-bit): a fixture file is authored with
// go-audio/wav directly, then opened through mh.CreateSource against the
// real Engine. go-audio/wav.Decoder re-reads the same file's header
// independently, as an external cross-check that the Engine's
// AUDIO_SAMPLING_RATE/AUDIO_LAYOUT properties agree with what the
// container actually holds, rather than trusting the Engine's own
// demuxer as the sole source of truth.
func TestSilentWAVHeaderMatchesEngineProperties(t *testing.T) {
	if !requireFFmpeg(t) {
		return
	}

	const (
		sampleRate = 22050
		bitDepth   = 16
		numChans   = 1
		numSamples = 5 * 20
	)
	path := filepath.Join(t.TempDir(), "silence.wav")
	writeSilentWAVFixture(t, path, sampleRate, bitDepth, numChans, numSamples)

	in, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopening WAV fixture: %v", err)
	}
	defer in.Close()
	dec := wav.NewDecoder(in)
	if !dec.IsValidFile() {
		t.Fatalf("go-audio/wav does not consider the fixture a valid WAV file")
	}
	dec.ReadInfo()
	if int(dec.SampleRate) != sampleRate {
		t.Fatalf("go-audio/wav reports sample rate %d, want %d", dec.SampleRate, sampleRate)
	}
	if int(dec.NumChans) != numChans {
		t.Fatalf("go-audio/wav reports %d channels, want %d", dec.NumChans, numChans)
	}
	if int(dec.BitDepth) != bitDepth {
		t.Fatalf("go-audio/wav reports bit depth %d, want %d", dec.BitDepth, bitDepth)
	}

	if !mh.Initialise(mh.BackendFFmpeg) {
		t.Fatal("failed to initialise the ffmpeg backend")
	}
	src, err := mh.CreateSource(path)
	if err != nil {
		t.Fatalf("CreateSource(%s) failed: %v", path, err)
	}
	defer src.Close()

	if src.AudioStreamCount() == 0 {
		t.Fatal("expected at least one audio stream in the WAV fixture")
	}
	audioStream, err := src.Stream(0)
	if err != nil {
		t.Fatalf("opening stream 0 failed: %v", err)
	}
	rate, ok := mh.GetProp[int32](audioStream.Properties(), mh.PropertyAudioSamplingRate)
	if !ok {
		t.Fatal("AUDIO_SAMPLING_RATE not populated by the Engine")
	}
	if int(rate) != sampleRate {
		t.Fatalf("Engine reports AUDIO_SAMPLING_RATE=%d, go-audio/wav reports %d", rate, sampleRate)
	}
	layout, ok := mh.GetProp[mh.ChannelLayout](audioStream.Properties(), mh.PropertyAudioLayout)
	if !ok {
		t.Fatal("AUDIO_LAYOUT not populated by the Engine")
	}
	if layout != mh.ChannelLayoutMono {
		t.Fatalf("Engine reports AUDIO_LAYOUT=%v, fixture is mono", layout)
	}
}
