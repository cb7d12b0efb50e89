//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import (
	"path/filepath"
	"testing"
)

func configureVideoStream(t *testing.T, s *Stream) {
	t.Helper()
	if err := s.SetProperty(PropertyDimensions, Dimensions{Width: 1280, Height: 720}); err != nil {
		t.Fatalf("SetProperty(DIMENSIONS) failed: %v", err)
	}
	if err := s.SetProperty(PropertyFrameRate, FrameRate25); err != nil {
		t.Fatalf("SetProperty(FRAME_RATE) failed: %v", err)
	}
	if err := s.SetProperty(PropertyCompression, CompressionCRF); err != nil {
		t.Fatalf("SetProperty(COMPRESSION) failed: %v", err)
	}
	if err := s.SetProperty(PropertyPixelFormat, PixelFormatYUV420); err != nil {
		t.Fatalf("SetProperty(PIXEL_FORMAT) failed: %v", err)
	}
}

func configureLosslessAudioStream(t *testing.T, s *Stream) {
	t.Helper()
	if err := s.SetProperty(PropertyAudioSamplingRate, int32(48000)); err != nil {
		t.Fatalf("SetProperty(AUDIO_SAMPLING_RATE) failed: %v", err)
	}
	if err := s.SetProperty(PropertyAudioLayout, ChannelLayoutStereo); err != nil {
		t.Fatalf("SetProperty(AUDIO_LAYOUT) failed: %v", err)
	}
	if err := s.SetInputAudioFormat(SampleFormatSigned16, 48000, ChannelLayoutStereo); err != nil {
		t.Fatalf("SetInputAudioFormat failed: %v", err)
	}
}

func TestNewSinkSkipsMismatchedCodecsInsteadOfFailing(t *testing.T) {
	fb := newFakeBackend()
	path := filepath.Join(t.TempDir(), "out.mov")

	sink, err := newSink(fb, path, []Codec{CodecAAC, CodecH264}, []Codec{CodecH264})
	if err != nil {
		t.Fatalf("newSink failed: %v", err)
	}
	if got := len(sink.VideoStreams()); got != 1 {
		t.Fatalf("expected only the valid video codec to produce a video stream, got %d", got)
	}
	if got := len(sink.AudioStreams()); got != 0 {
		t.Fatalf("expected the video codec requested as audio to be skipped, got %d audio streams", got)
	}
}

func TestNewSinkFailsWhenNoStreamSurvives(t *testing.T) {
	fb := newFakeBackend()
	path := filepath.Join(t.TempDir(), "out.mov")

	if _, err := newSink(fb, path, []Codec{CodecAAC}, []Codec{CodecH264}); err == nil {
		t.Fatalf("expected newSink to fail when every requested codec is in the wrong list")
	}
}

func TestNewSinkRejectsNonDirectoryParent(t *testing.T) {
	fb := newFakeBackend()
	path := filepath.Join(t.TempDir(), "does-not-exist", "out.mov")

	if _, err := newSink(fb, path, []Codec{CodecH264}, nil); err == nil {
		t.Fatalf("expected newSink to fail when the destination's parent directory doesn't exist")
	}
}

func TestSinkHeaderWaitsForEveryStreamReady(t *testing.T) {
	fb := newFakeBackend()
	path := filepath.Join(t.TempDir(), "out.mov")

	sink, err := newSink(fb, path, []Codec{CodecH264}, []Codec{CodecFLAC})
	if err != nil {
		t.Fatalf("newSink failed: %v", err)
	}
	video, err := sink.VideoStream(0)
	if err != nil {
		t.Fatalf("VideoStream(0) failed: %v", err)
	}
	audio, err := sink.AudioStream(0)
	if err != nil {
		t.Fatalf("AudioStream(0) failed: %v", err)
	}

	configureVideoStream(t, video)
	if err := video.WriteFrame(newDecodedFrame(fb, nil, MediaTypeVideo, 0, FrameRate25.Invert())); err != nil {
		t.Fatalf("video WriteFrame failed: %v", err)
	}

	out := sink.out.(*fakeOutput)
	out.mu.Lock()
	headerWritten := out.headerWritten
	out.mu.Unlock()
	if headerWritten {
		t.Fatalf("expected the container header not to be written until every stream is ready")
	}

	configureLosslessAudioStream(t, audio)
	if err := audio.WriteFrame(newDecodedFrame(fb, nil, MediaTypeAudio, 0, NewRational(1, 48000))); err != nil {
		t.Fatalf("audio WriteFrame failed: %v", err)
	}

	out.mu.Lock()
	headerWritten = out.headerWritten
	out.mu.Unlock()
	if !headerWritten {
		t.Fatalf("expected the container header to be written once every stream is ready")
	}
}

func TestSinkFinishRequiresHeaderWritten(t *testing.T) {
	fb := newFakeBackend()
	path := filepath.Join(t.TempDir(), "out.mov")

	sink, err := newSink(fb, path, []Codec{CodecH264}, nil)
	if err != nil {
		t.Fatalf("newSink failed: %v", err)
	}
	if err := sink.Finish(); err == nil {
		t.Fatalf("expected Finish to fail before any stream's encoder was configured")
	}
}

func TestSinkFinishWritesTrailerAndIsIdempotent(t *testing.T) {
	fb := newFakeBackend()
	path := filepath.Join(t.TempDir(), "out.mov")

	sink, err := newSink(fb, path, []Codec{CodecH264}, nil)
	if err != nil {
		t.Fatalf("newSink failed: %v", err)
	}
	video, err := sink.VideoStream(0)
	if err != nil {
		t.Fatalf("VideoStream(0) failed: %v", err)
	}
	configureVideoStream(t, video)
	if err := video.WriteFrame(newDecodedFrame(fb, nil, MediaTypeVideo, 0, FrameRate25.Invert())); err != nil {
		t.Fatalf("video WriteFrame failed: %v", err)
	}

	if err := sink.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	out := sink.out.(*fakeOutput)
	out.mu.Lock()
	trailerWritten := out.trailerWritten
	closed := out.closed
	out.mu.Unlock()
	if !trailerWritten {
		t.Fatalf("expected Finish to write the trailer")
	}
	if !closed {
		t.Fatalf("expected Finish to close the output handle")
	}

	if err := sink.Finish(); err == nil {
		t.Fatalf("expected a second Finish call to report the sink as already closed")
	}
}
