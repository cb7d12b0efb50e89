//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import "testing"

func newTestSource(fb *fakeBackend, in *fakeInput) *Source {
	return &Source{
		backend:     fb,
		in:          in,
		descriptors: in.descriptors,
		streams:     make(map[int]*Stream),
		interest:    make(map[int]uint32),
		queue:       make(map[int][]Packet),
	}
}

func TestNewReadingStreamClassifiesVideoVsImage(t *testing.T) {
	fb := newFakeBackend()
	videoDesc := StreamDescriptor{Index: 0, Type: StreamTypeVideo, FrameRate: FrameRate25, TimeBase: NewRational(1, 25), Dimensions: Dimensions{Width: 640, Height: 480}}
	imageDesc := StreamDescriptor{Index: 1, Type: StreamTypeVideo, Dimensions: Dimensions{Width: 640, Height: 480}}
	in := newFakeInput([]StreamDescriptor{videoDesc, imageDesc}, nil)
	src := newTestSource(fb, in)

	video, err := newReadingStream(fb, src, in, videoDesc)
	if err != nil {
		t.Fatalf("newReadingStream(video) failed: %v", err)
	}
	if video.Type() != StreamTypeVideo {
		t.Errorf("expected a non-zero frame rate stream to classify as VIDEO, got %s", video.Type())
	}

	image, err := newReadingStream(fb, src, in, imageDesc)
	if err != nil {
		t.Fatalf("newReadingStream(image) failed: %v", err)
	}
	if image.Type() != StreamTypeImage {
		t.Errorf("expected a zero frame rate video stream to classify as IMAGE, got %s", image.Type())
	}
}

func TestStreamFrameReadsSequentially(t *testing.T) {
	fb := newFakeBackend()
	desc := StreamDescriptor{Index: 0, Type: StreamTypeVideo, FrameRate: FrameRate25, TimeBase: NewRational(1, 25), Dimensions: Dimensions{Width: 640, Height: 480}}
	packets := []Packet{
		NewPacket(0, 0, 0, true, 100, nil),
		NewPacket(0, 1, 1, false, 120, nil),
		NewPacket(0, 2, 2, false, 110, nil),
	}
	in := newFakeInput([]StreamDescriptor{desc}, packets)
	src := newTestSource(fb, in)

	s, err := newReadingStream(fb, src, in, desc)
	if err != nil {
		t.Fatalf("newReadingStream failed: %v", err)
	}

	for i, want := range []int64{0, 1, 2} {
		frame, err := s.Frame(-1)
		if err != nil {
			t.Fatalf("Frame(-1) #%d failed: %v", i, err)
		}
		if frame == nil {
			t.Fatalf("Frame(-1) #%d returned nil frame before end of stream", i)
		}
		if frame.Timestamp() != want {
			t.Fatalf("Frame(-1) #%d: got timestamp %d want %d", i, frame.Timestamp(), want)
		}
	}

	frame, err := s.Frame(-1)
	if err != nil {
		t.Fatalf("Frame(-1) at end of stream failed: %v", err)
	}
	if frame != nil {
		t.Fatalf("expected nil frame at end of stream, got one with timestamp %d", frame.Timestamp())
	}
}

func TestStreamIndexRecomputesFrameCountAndBitrate(t *testing.T) {
	fb := newFakeBackend()
	desc := StreamDescriptor{Index: 0, Type: StreamTypeVideo, FrameRate: FrameRate25, TimeBase: NewRational(1, 25), Dimensions: Dimensions{Width: 640, Height: 480}}
	packets := []Packet{
		NewPacket(0, 0, 0, true, 1000, nil),
		NewPacket(0, 1, 1, false, 1000, nil),
		NewPacket(0, 2, 2, false, 1000, nil),
		NewPacket(0, 3, 3, false, 1000, nil),
	}
	in := newFakeInput([]StreamDescriptor{desc}, packets)
	src := newTestSource(fb, in)

	s, err := newReadingStream(fb, src, in, desc)
	if err != nil {
		t.Fatalf("newReadingStream failed: %v", err)
	}
	if !s.Properties().IsLocked() {
		t.Fatalf("expected a freshly opened reading stream's properties to be locked")
	}

	if err := s.Index(); err != nil {
		t.Fatalf("Index() failed: %v", err)
	}
	if !s.Properties().IsLocked() {
		t.Fatalf("expected Index() to re-lock properties before returning")
	}

	count, ok := GetProp[int64](s.Properties(), PropertyFrameCount)
	if !ok || count != 4 {
		t.Fatalf("FRAME_COUNT: got (%d, %v) want (4, true)", count, ok)
	}
	bitrate, ok := GetProp[int64](s.Properties(), PropertyBitrate)
	if !ok || bitrate <= 0 {
		t.Fatalf("BITRATE: got (%d, %v), want a positive value", bitrate, ok)
	}
}

func TestStreamSetPropertyRejectsAfterLock(t *testing.T) {
	fb := newFakeBackend()
	s := newWritingStream(fb, nil, &fakeOutput{}, CodecH264, StreamTypeVideo)
	if err := s.SetProperty(PropertyDimensions, Dimensions{Width: 1920, Height: 1080}); err != nil {
		t.Fatalf("SetProperty before lock failed: %v", err)
	}
	s.Properties().Lock()
	err := s.SetProperty(PropertyFrameRate, FrameRate25)
	if _, ok := err.(ErrLockedProperty); !ok {
		t.Fatalf("expected ErrLockedProperty after lock, got %v", err)
	}
}

func TestStreamWriteFrameRejectsCodecKindMismatch(t *testing.T) {
	fb := newFakeBackend()
	s := newWritingStream(fb, nil, &fakeOutput{}, CodecAAC, StreamTypeVideo)
	err := s.WriteFrame(newDecodedFrame(fb, nil, MediaTypeVideo, 0, FrameRate25.Invert()))
	if _, ok := err.(ErrIncompatibleCodec); !ok {
		t.Fatalf("expected ErrIncompatibleCodec for an audio codec on a video stream, got %v", err)
	}
}

func TestStreamWriteFrameAudioRequiresBitrateUnlessLossless(t *testing.T) {
	fb := newFakeBackend()
	s := newWritingStream(fb, nil, &fakeOutput{}, CodecAAC, StreamTypeAudio)
	if err := s.SetProperty(PropertyAudioSamplingRate, int32(48000)); err != nil {
		t.Fatalf("SetProperty(AUDIO_SAMPLING_RATE) failed: %v", err)
	}
	if err := s.SetProperty(PropertyAudioLayout, ChannelLayoutStereo); err != nil {
		t.Fatalf("SetProperty(AUDIO_LAYOUT) failed: %v", err)
	}
	if err := s.SetInputAudioFormat(SampleFormatSigned16, 48000, ChannelLayoutStereo); err != nil {
		t.Fatalf("SetInputAudioFormat failed: %v", err)
	}

	frame := newDecodedFrame(fb, nil, MediaTypeAudio, 0, NewRational(1, 48000))
	err := s.WriteFrame(frame)
	if _, ok := err.(ErrMissingProperty); !ok {
		t.Fatalf("expected ErrMissingProperty for a missing BITRATE on a lossy audio codec, got %v", err)
	}
}

func TestStreamWriteFrameLosslessAudioSkipsBitrateRequirement(t *testing.T) {
	fb := newFakeBackend()
	s := newWritingStream(fb, nil, &fakeOutput{}, CodecFLAC, StreamTypeAudio)
	if err := s.SetProperty(PropertyAudioSamplingRate, int32(48000)); err != nil {
		t.Fatalf("SetProperty(AUDIO_SAMPLING_RATE) failed: %v", err)
	}
	if err := s.SetProperty(PropertyAudioLayout, ChannelLayoutStereo); err != nil {
		t.Fatalf("SetProperty(AUDIO_LAYOUT) failed: %v", err)
	}
	if err := s.SetInputAudioFormat(SampleFormatSigned16, 48000, ChannelLayoutStereo); err != nil {
		t.Fatalf("SetInputAudioFormat failed: %v", err)
	}

	frame := newDecodedFrame(fb, nil, MediaTypeAudio, 0, NewRational(1, 48000))
	if err := s.WriteFrame(frame); err != nil {
		t.Fatalf("expected WriteFrame to succeed for a lossless codec without BITRATE set, got %v", err)
	}
	if !s.Properties().IsLocked() {
		t.Fatalf("expected a successful encoder setup to lock properties")
	}
}

func TestStreamWriteFrameVideoEncoderSetup(t *testing.T) {
	fb := newFakeBackend()
	out := &fakeOutput{}
	s := newWritingStream(fb, nil, out, CodecH264, StreamTypeVideo)
	if err := s.SetProperty(PropertyDimensions, Dimensions{Width: 1920, Height: 1080}); err != nil {
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

	frame := newDecodedFrame(fb, nil, MediaTypeVideo, 0, FrameRate25.Invert())
	if err := s.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if len(out.videoConfigs) != 1 {
		t.Fatalf("expected exactly one ConfigureEncoder call, got %d", len(out.videoConfigs))
	}
	if got := out.videoConfigs[0].PixelFormat; got != PixelFormatYUV420 {
		t.Fatalf("EncoderConfig.PixelFormat: got %v want YUV420", got)
	}
}

func TestStreamWriteFrameVideoMissingDimensionsFails(t *testing.T) {
	fb := newFakeBackend()
	s := newWritingStream(fb, nil, &fakeOutput{}, CodecH264, StreamTypeVideo)
	if err := s.SetProperty(PropertyFrameRate, FrameRate25); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}
	frame := newDecodedFrame(fb, nil, MediaTypeVideo, 0, FrameRate25.Invert())
	err := s.WriteFrame(frame)
	missing, ok := err.(ErrMissingProperty)
	if !ok || missing.Key != PropertyDimensions {
		t.Fatalf("expected ErrMissingProperty{DIMENSIONS}, got %v", err)
	}
}

func TestStreamEncoderSetupFailureIsSticky(t *testing.T) {
	fb := newFakeBackend()
	s := newWritingStream(fb, nil, &fakeOutput{}, CodecH264, StreamTypeVideo)
	frame := newDecodedFrame(fb, nil, MediaTypeVideo, 0, FrameRate25.Invert())

	first := s.WriteFrame(frame)
	if first == nil {
		t.Fatalf("expected the first WriteFrame to fail due to missing properties")
	}
	second := s.WriteFrame(frame)
	if second != first {
		t.Fatalf("expected the sticky encoder-setup error to be returned unchanged on a second call: first=%v second=%v", first, second)
	}
}

func TestStreamInvalidProfileFallsBackWithoutFailing(t *testing.T) {
	fb := newFakeBackend()
	s := newWritingStream(fb, nil, &fakeOutput{}, CodecH264, StreamTypeVideo)
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
	if err := s.SetProperty(PropertyProfile, VideoProfile("not-a-real-profile")); err != nil {
		t.Fatalf("SetProperty(PROFILE) failed: %v", err)
	}

	frame := newDecodedFrame(fb, nil, MediaTypeVideo, 0, FrameRate25.Invert())
	if err := s.WriteFrame(frame); err != nil {
		t.Fatalf("expected an invalid PROFILE to warn and fall back rather than fail setup, got %v", err)
	}
}
