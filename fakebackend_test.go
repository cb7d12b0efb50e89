//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import (
	"fmt"
	"sync"
)

// fakeBackend is an in-process Backend double used by this package's own
// tests: Source/Stream/Sink are built entirely against the Backend
// interface (backend.go), so exercising them doesn't require the bundled
// ffmpegbackend engine or the native FFmpeg libraries it dlopens. This
// mirrors the stdlib's own sql.Register/driver.Driver pattern of testing
// database/sql against a fake driver rather than a real database.
type fakeBackend struct {
	mu sync.Mutex

	caps   map[Codec]CodecCapabilities
	inputs map[string]*fakeInput
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		caps:   make(map[Codec]CodecCapabilities),
		inputs: make(map[string]*fakeInput),
	}
}

// script registers in to be returned by OpenInput(path), letting tests
// drive Source/Stream against scripted container contents instead of a
// real media file.
func (fb *fakeBackend) script(path string, in *fakeInput) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.inputs[path] = in
}

func (fb *fakeBackend) Name() string { return "fake" }

// --- input side ---

type fakeInput struct {
	mu          sync.Mutex
	descriptors []StreamDescriptor
	packets     []Packet
	readIdx     int
	format      string
	metadata    map[string]string // "streamIndex|key" -> value, streamIndex -1 = container
	closed      bool
}

func (*fakeInput) isInputHandle() {}

func newFakeInput(descriptors []StreamDescriptor, packets []Packet) *fakeInput {
	return &fakeInput{
		descriptors: descriptors,
		packets:     packets,
		metadata:    make(map[string]string),
	}
}

func (fb *fakeBackend) OpenInput(path string) (InputHandle, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	in, ok := fb.inputs[path]
	if !ok {
		return nil, fmt.Errorf("fakebackend: OpenInput(%q) not scripted; call fb.script first", path)
	}
	return in, nil
}

func (fb *fakeBackend) CloseInput(in InputHandle) error {
	n, ok := in.(*fakeInput)
	if !ok {
		return fmt.Errorf("fakebackend: not a fake input handle")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}

func (fb *fakeBackend) Streams(in InputHandle) ([]StreamDescriptor, error) {
	n, ok := in.(*fakeInput)
	if !ok {
		return nil, fmt.Errorf("fakebackend: not a fake input handle")
	}
	out := make([]StreamDescriptor, len(n.descriptors))
	copy(out, n.descriptors)
	return out, nil
}

func (fb *fakeBackend) ContainerFormat(in InputHandle) (string, error) {
	n, ok := in.(*fakeInput)
	if !ok {
		return "", fmt.Errorf("fakebackend: not a fake input handle")
	}
	return n.format, nil
}

func (fb *fakeBackend) Metadata(in InputHandle, streamIndex int, key string) (string, bool) {
	n, ok := in.(*fakeInput)
	if !ok {
		return "", false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	v, found := n.metadata[fmt.Sprintf("%d|%s", streamIndex, key)]
	return v, found
}

func (fb *fakeBackend) ReadPacket(in InputHandle) (Packet, error) {
	n, ok := in.(*fakeInput)
	if !ok {
		return Packet{}, fmt.Errorf("fakebackend: not a fake input handle")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.readIdx >= len(n.packets) {
		return Packet{}, NewError(AVERROR_EOF, "read_frame")
	}
	pkt := n.packets[n.readIdx]
	n.readIdx++
	return pkt, nil
}

func (fb *fakeBackend) SeekStream(in InputHandle, streamIndex int, timestampMicros int64) error {
	n, ok := in.(*fakeInput)
	if !ok {
		return fmt.Errorf("fakebackend: not a fake input handle")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.readIdx = 0
	return nil
}

// --- decoding ---

type fakeDecoder struct {
	streamIndex int
	mediaType   MediaType
	timeBase    Rational
	closed      bool
}

func (*fakeDecoder) isDecoderHandle() {}

func (fb *fakeBackend) OpenDecoder(in InputHandle, streamIndex int) (DecoderHandle, error) {
	n, ok := in.(*fakeInput)
	if !ok {
		return nil, fmt.Errorf("fakebackend: not a fake input handle")
	}
	for _, d := range n.descriptors {
		if d.Index == streamIndex {
			mt := MediaTypeAudio
			if d.Type != StreamTypeAudio {
				mt = MediaTypeVideo
			}
			return &fakeDecoder{streamIndex: streamIndex, mediaType: mt, timeBase: d.TimeBase}, nil
		}
	}
	return nil, fmt.Errorf("fakebackend: no stream at index %d", streamIndex)
}

func (fb *fakeBackend) CloseDecoder(dec DecoderHandle) error {
	d, ok := dec.(*fakeDecoder)
	if !ok {
		return fmt.Errorf("fakebackend: not a fake decoder handle")
	}
	d.closed = true
	return nil
}

func (fb *fakeBackend) DecodePacket(dec DecoderHandle, pkt Packet) (*Frame, error) {
	d, ok := dec.(*fakeDecoder)
	if !ok {
		return nil, fmt.Errorf("fakebackend: not a fake decoder handle")
	}
	return newDecodedFrame(fb, nil, d.mediaType, pkt.PTS, d.timeBase), nil
}

func (fb *fakeBackend) FlushDecoder(dec DecoderHandle) (*Frame, error) {
	return nil, nil
}

// --- conversion ---

func (fb *fakeBackend) Scale(f *Frame, dstFmt PixelFormat, dst Dimensions) (*Frame, error) {
	out := newDecodedFrame(fb, nil, f.MediaType(), f.Timestamp(), f.TimeBase())
	out.Properties().Set(PropertyPixelFormat, dstFmt)
	out.Properties().Set(PropertyDimensions, dst)
	return out, nil
}

func (fb *fakeBackend) Resample(f *Frame, dstFmt SampleFormat, dstRate int, dstLayout ChannelLayout) (*Frame, error) {
	out := newDecodedFrame(fb, nil, f.MediaType(), f.Timestamp(), f.TimeBase())
	out.Properties().Set(PropertyAudioFormat, dstFmt)
	out.Properties().Set(PropertyAudioSamplingRate, int32(dstRate))
	out.Properties().Set(PropertyAudioLayout, dstLayout)
	return out, nil
}

// --- output side ---

type fakeOutput struct {
	mu             sync.Mutex
	path           string
	headerWritten  bool
	trailerWritten bool
	closed         bool
	videoConfigs   []EncoderConfig
	audioConfigs   []EncoderConfig
	written        []Packet
}

func (*fakeOutput) isOutputHandle() {}

func (fb *fakeBackend) CreateOutput(path string) (OutputHandle, error) {
	return &fakeOutput{path: path}, nil
}

func (fb *fakeBackend) CloseOutput(out OutputHandle) error {
	o, ok := out.(*fakeOutput)
	if !ok {
		return fmt.Errorf("fakebackend: not a fake output handle")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

type fakeEncoder struct {
	kind StreamType
	cfg  EncoderConfig
}

func (*fakeEncoder) isEncoderHandle() {}

// QueryCodecInContainer always reports compatible: fakeBackend has no
// notion of container-specific codec tables, and tests that want an
// incompatible pairing exercise that through Capabilities instead.
func (fb *fakeBackend) QueryCodecInContainer(out OutputHandle, codec Codec) (bool, error) {
	return true, nil
}

func (fb *fakeBackend) ConfigureEncoder(out OutputHandle, kind StreamType, cfg EncoderConfig) (EncoderHandle, error) {
	o, ok := out.(*fakeOutput)
	if !ok {
		return nil, fmt.Errorf("fakebackend: not a fake output handle")
	}
	o.mu.Lock()
	if kind == StreamTypeAudio {
		o.audioConfigs = append(o.audioConfigs, cfg)
	} else {
		o.videoConfigs = append(o.videoConfigs, cfg)
	}
	o.mu.Unlock()
	return &fakeEncoder{kind: kind, cfg: cfg}, nil
}

func (fb *fakeBackend) EncodeFrame(enc EncoderHandle, f *Frame) ([]Packet, error) {
	if _, ok := enc.(*fakeEncoder); !ok {
		return nil, fmt.Errorf("fakebackend: not a fake encoder handle")
	}
	return nil, nil
}

func (fb *fakeBackend) FlushEncoder(enc EncoderHandle) ([]Packet, error) {
	return nil, nil
}

func (fb *fakeBackend) WritePacket(out OutputHandle, enc EncoderHandle, pkt Packet) error {
	o, ok := out.(*fakeOutput)
	if !ok {
		return fmt.Errorf("fakebackend: not a fake output handle")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.written = append(o.written, pkt)
	return nil
}

func (fb *fakeBackend) WriteHeader(out OutputHandle) error {
	o, ok := out.(*fakeOutput)
	if !ok {
		return fmt.Errorf("fakebackend: not a fake output handle")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.headerWritten = true
	return nil
}

func (fb *fakeBackend) WriteTrailer(out OutputHandle) error {
	o, ok := out.(*fakeOutput)
	if !ok {
		return fmt.Errorf("fakebackend: not a fake output handle")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.trailerWritten = true
	return nil
}

// --- capabilities / frame plumbing ---

func (fb *fakeBackend) Capabilities(codec Codec) (CodecCapabilities, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if codec == CodecNone {
		return CodecCapabilities{}, fmt.Errorf("fakebackend: codec %s is not supported", codec)
	}
	if c, ok := fb.caps[codec]; ok {
		return c, nil
	}
	return CodecCapabilities{}, nil
}

func (fb *fakeBackend) ExtractFrameProperties(f *Frame) error {
	f.Properties().Set(PropertyFieldOrder, FieldOrderProgressive)
	if f.MediaType() == MediaTypeAudio {
		f.Properties().Set(PropertyAudioSamples, int32(1024))
	} else {
		f.Properties().Set(PropertyColourSpace, ColourSpace{})
	}
	return nil
}

func (fb *fakeBackend) FrameData(f *Frame, target *FrameConversionTarget) (FrameData, error) {
	if f.MediaType() == MediaTypeAudio {
		return FrameData{SampleCount: 1024}, nil
	}
	return FrameData{}, nil
}

func (fb *fakeBackend) NewFrame(mediaType MediaType) (any, error) {
	return struct{}{}, nil
}
