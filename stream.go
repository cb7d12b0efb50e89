//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/creasty/defaults"
	validate "gopkg.in/dealancer/validate.v2"
)

// StreamMode distinguishes a Stream opened for decoding (attached to a
// Source) from one opened for encoding (attached to a Sink). A Stream's
// mode is fixed at construction and never changes, per spec.md §4.D.1's
// state diagram.
type StreamMode int

const (
	StreamModeReading StreamMode = iota
	StreamModeWriting
)

func (m StreamMode) String() string {
	if m == StreamModeWriting {
		return "WRITING"
	}
	return "READING"
}

// profileTable is the per-codec valid-profile set spec.md §4.D.3
// enumerates for H.264, MPEG-2 and DNxHD/DNxHR. A profile requested
// outside this table for its codec is rejected with a WARNING and the
// backend's own default is used instead, rather than failing encoder
// setup outright.
var profileTable = map[Codec][]VideoProfile{
	CodecH264: {
		ProfileH264Baseline, ProfileH264Main, ProfileH264High,
		ProfileH264High10, ProfileH264High422, ProfileH264High444,
	},
	CodecMPEG2Video: {
		ProfileMPEG2Simple, ProfileMPEG2Main, ProfileMPEG2High, ProfileMPEG2_422,
	},
	CodecDNxHD: {
		ProfileDNxHD, ProfileDNxHRLB, ProfileDNxHRSQ,
		ProfileDNxHRHQ, ProfileDNxHRHQX, ProfileDNxHR444,
	},
}

func validProfileForCodec(c Codec, p VideoProfile) bool {
	for _, v := range profileTable[c] {
		if v == p {
			return true
		}
	}
	return false
}

// h264Presets is the preset list spec.md §4.D.3 names; Stream passes a
// preset on to EncoderConfig only for CodecH264. The bundled backend's
// applyVideoEncoderOptions (ffmpegbackend/engine_output.go) does not set
// a preset on the encoder.
var h264Presets = map[VideoPreset]bool{
	PresetVeryslow: true, PresetSlower: true, PresetSlow: true, PresetMedium: true,
	PresetFast: true, PresetFaster: true, PresetVeryfast: true,
	PresetSuperfast: true, PresetUltrafast: true,
}

// Stream is a single elementary audio, video or image stream, open
// either for decoding (mode == StreamModeReading, owned by a Source) or
// encoding (mode == StreamModeWriting, owned by a Sink), per spec.md
// §4.D. Reading-mode Streams hold a weak back-reference to their Source
// and do not outlive it; writing-mode Streams are symmetric against a
// Sink.
type Stream struct {
	mu sync.Mutex

	backend Backend
	mode    StreamMode
	kind    StreamType
	props   PropertyBag

	// Reading-mode state.
	source        *Source
	in            InputHandle
	streamIndex   int
	dec           DecoderHandle
	frameRate     Rational
	timeBase      Rational
	ptsInterval   int64
	lastTimestamp int64
	havePriorRead bool
	outTarget     *FrameConversionTarget
	closed        bool

	// Writing-mode state.
	sink         *Sink
	out          OutputHandle
	codec        Codec
	enc          EncoderHandle
	encSetupOnce sync.Once
	encSetupErr  error
	finalised    bool
	frameCounter int64
	sampleAccum  int64

	haveInputFormat       bool
	declaredPixelFormat   PixelFormat
	declaredDimensions    Dimensions
	haveInputAudioFormat  bool
	declaredSampleFormat  SampleFormat
	declaredSampleRate    int
	declaredChannelLayout ChannelLayout

	needsVideoConversion bool
	needsAudioConversion bool
	encoderPixelFormat   PixelFormat
	encoderDimensions    Dimensions
	encoderSampleFormat  SampleFormat
	encoderSampleRate    int
	encoderChannelLayout ChannelLayout
}

// newReadingStream opens a decoder for one of a Source's elementary
// streams and primes its properties, per spec.md §4.D's reading-mode
// contract ("open decoder ... classify VIDEO/IMAGE/AUDIO ... extract
// properties").
func newReadingStream(backend Backend, source *Source, in InputHandle, desc StreamDescriptor) (*Stream, error) {
	dec, err := backend.OpenDecoder(in, desc.Index)
	if err != nil {
		return nil, err
	}

	kind := StreamTypeAudio
	if desc.Type == StreamTypeVideo {
		if desc.FrameRate.Num == 0 {
			kind = StreamTypeImage
		} else {
			kind = StreamTypeVideo
		}
	}

	s := &Stream{
		backend:       backend,
		mode:          StreamModeReading,
		kind:          kind,
		source:        source,
		in:            in,
		streamIndex:   desc.Index,
		dec:           dec,
		frameRate:     desc.FrameRate,
		timeBase:      desc.TimeBase,
		lastTimestamp: -1,
		ptsInterval:   computePtsInterval(kind, desc.FrameRate, desc.TimeBase),
	}
	s.props = *NewPropertyBag()
	s.populateReadingProperties(desc)
	if kind != StreamTypeAudio {
		s.primeVideoProperties()
	}
	s.props.Lock()
	return s, nil
}

// computePtsInterval derives the "close enough to read forward instead
// of seeking" threshold Stream.Frame uses, per spec.md §4.D: roughly one
// frame's worth of timebase ticks for video/image streams, and a
// conservative always-seek threshold of 1 for audio (which has no
// single well-defined frame duration once variable packet sizes are in
// play).
func computePtsInterval(kind StreamType, frameRate, timeBase Rational) int64 {
	if kind == StreamTypeAudio || frameRate.Num == 0 || timeBase.IsZero() {
		return 1
	}
	tb := timeBase.Float64()
	if tb <= 0 {
		return 1
	}
	interval := int64(math.Round(frameRate.Invert().Float64() / tb))
	if interval < 1 {
		interval = 1
	}
	return interval
}

func (s *Stream) populateReadingProperties(desc StreamDescriptor) {
	p := &s.props
	p.Set(PropertyCodec, desc.Codec)
	p.Set(PropertyCodecName, desc.Codec.String())
	p.Set(PropertyTimescale, desc.TimeBase)
	if desc.FrameRate.Num != 0 {
		p.Set(PropertyFrameRate, desc.FrameRate)
	}
	// desc.Duration is the container's overall duration (AV_TIME_BASE
	// units), not this stream's own native duration field; describeStreams
	// (ffmpegbackend/engine.go) has no per-stream duration wired through,
	// so this is an honest approximation rather than the exact per-stream
	// figure spec.md's "native_duration * TIMESCALE" formula assumes.
	p.Set(PropertyDuration, NewRational(desc.Duration, 1_000_000))
	p.Set(PropertyBitrate, desc.BitRate)

	switch s.kind {
	case StreamTypeAudio:
		p.Set(PropertyAudioChannels, int32(desc.ChannelLayout.ChannelCount()))
		p.Set(PropertyAudioSamplingRate, int32(desc.SampleRate))
		p.Set(PropertyAudioFormat, desc.SampleFormat)
		p.Set(PropertyAudioLayout, desc.ChannelLayout)
	default: // video or image
		p.Set(PropertyFrameCount, int64(0))
		p.Set(PropertyPixelFormat, desc.PixelFormat)
		p.Set(PropertyDimensions, desc.Dimensions)
		if desc.Dimensions.Height != 0 {
			p.Set(PropertyDisplayAspectRatio, NewRational(int64(desc.Dimensions.Width), int64(desc.Dimensions.Height)))
		}
	}

	if tag, ok := s.backend.Metadata(s.in, s.streamIndex, "timecode"); ok && desc.FrameRate.Num != 0 {
		tc := NewTimeCode(desc.FrameRate.Invert(), desc.FrameRate, 0)
		if err := tc.SetTimeCode(tag); err != nil {
			logMessagef(LogLevelWarning, "stream %d: malformed timecode metadata %q: %v", desc.Index, tag, err)
		} else {
			p.Set(PropertyStartTimeCode, tc)
		}
	}
}

// primeVideoProperties decodes forward until the first frame is
// produced, merges its FIELD_ORDER/COLOUR_SPACE into the Stream's
// properties (neither is known from the container's stream parameters
// alone), and rewinds to the start, per spec.md §4.D.2. A failure here
// is logged, not fatal: the Stream still opens with whatever it could
// determine from the container alone.
func (s *Stream) primeVideoProperties() {
	var lastErr error
	for retries := 0; retries < 256; retries++ {
		pkt, ok, err := s.source.nextPacket(s.streamIndex)
		if err != nil {
			lastErr = err
			break
		}
		if !ok {
			break
		}
		frame, derr := s.backend.DecodePacket(s.dec, pkt)
		if derr != nil {
			lastErr = derr
			break
		}
		if frame == nil {
			continue
		}
		if perr := frame.ExtractProperties(); perr == nil {
			if fo, ok2 := GetProp[FieldOrder](frame.Properties(), PropertyFieldOrder); ok2 {
				s.props.Set(PropertyFieldOrder, fo)
			}
			if cs, ok2 := GetProp[ColourSpace](frame.Properties(), PropertyColourSpace); ok2 {
				s.props.Set(PropertyColourSpace, cs)
			}
		}
		break
	}
	if lastErr != nil {
		logMessagef(LogLevelWarning, "stream %d: property priming decode failed: %v", s.streamIndex, lastErr)
	}
	if err := s.backend.SeekStream(s.in, s.streamIndex, 0); err != nil {
		logMessagef(LogLevelWarning, "stream %d: rewind after property priming failed: %v", s.streamIndex, err)
	}
	s.source.clearQueue()
	s.lastTimestamp = -1
	s.havePriorRead = false
}

// newWritingStream constructs a Stream attached to a Sink for the given
// codec. Its encoder is not opened yet: encoder setup is deferred to the
// first WriteFrame call, per spec.md §4.D.3's once-latch.
func newWritingStream(backend Backend, sink *Sink, out OutputHandle, codec Codec, kind StreamType) *Stream {
	s := &Stream{
		backend: backend,
		mode:    StreamModeWriting,
		kind:    kind,
		sink:    sink,
		out:     out,
		codec:   codec,
	}
	s.props = *NewPropertyBag()
	s.props.Set(PropertyCodec, codec)
	s.props.Set(PropertyCodecName, codec.String())
	return s
}

// Properties returns the Stream's PropertyBag.
func (s *Stream) Properties() *PropertyBag { return &s.props }

// Mode reports whether this Stream reads or writes.
func (s *Stream) Mode() StreamMode { return s.mode }

// Type reports whether this Stream is VIDEO, IMAGE or AUDIO.
func (s *Stream) Type() StreamType { return s.kind }

// SetProperty sets a configuration property on a writing-mode Stream
// before its encoder is configured (DIMENSIONS, FRAME_RATE, COMPRESSION,
// BITRATE, GOP, PROFILE, PRESET, LEVEL, AUDIO_SAMPLING_RATE,
// AUDIO_LAYOUT and so on), or is a no-op returning ErrLockedProperty
// once the underlying PropertyBag has been locked (reading-mode Streams
// lock immediately after construction; writing-mode ones lock once
// their encoder has been configured).
func (s *Stream) SetProperty(key MediaProperty, value any) error {
	if s.props.IsLocked() {
		return ErrLockedProperty{Key: key}
	}
	s.props.Set(key, value)
	return nil
}

// SetOutputFormat declares the pixel format/dimensions a reading
// video/image Stream should hand back from Data() (set_output_format,
// spec.md §4.D). A zero Dimensions field is filled from the Stream's
// native dimensions.
func (s *Stream) SetOutputFormat(pixFmt PixelFormat, dims Dimensions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != StreamModeReading || (s.kind != StreamTypeVideo && s.kind != StreamTypeImage) {
		return errors.New("mediahandling: set_output_format is only valid for a reading video/image stream")
	}
	srcDims, _ := GetProp[Dimensions](&s.props, PropertyDimensions)
	if dims.Width == 0 {
		dims.Width = srcDims.Width
	}
	if dims.Height == 0 {
		dims.Height = srcDims.Height
	}
	s.outTarget = &FrameConversionTarget{PixelFormat: pixFmt, Dimensions: dims}
	return nil
}

// SetOutputAudioFormat is SetOutputFormat's audio counterpart
// (set_output_format's audio form, spec.md §4.D): it declares the
// sample format/rate/layout a reading audio Stream should hand back
// from Data().
func (s *Stream) SetOutputAudioFormat(sampleFmt SampleFormat, rate int, layout ChannelLayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != StreamModeReading || s.kind != StreamTypeAudio {
		return errors.New("mediahandling: set_output_audio_format is only valid for a reading audio stream")
	}
	if rate == 0 {
		rate, _ = intProperty(&s.props, PropertyAudioSamplingRate)
	}
	if layout == 0 {
		layout, _ = GetProp[ChannelLayout](&s.props, PropertyAudioLayout)
	}
	s.outTarget = &FrameConversionTarget{SampleFormat: sampleFmt, SampleRate: rate, ChannelLayout: layout}
	return nil
}

// SetInputFormat declares the pixel format/dimensions of the frames a
// caller will push to a writing video/image Stream, so encoder setup
// can decide whether each write needs scaling first, per spec.md §4.D.
func (s *Stream) SetInputFormat(pixFmt PixelFormat, dims Dimensions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != StreamModeWriting || (s.kind != StreamTypeVideo && s.kind != StreamTypeImage) {
		return errors.New("mediahandling: set_input_format is only valid for a writing video/image stream")
	}
	if s.finalised {
		return ErrStreamFinalised{}
	}
	s.declaredPixelFormat = pixFmt
	s.declaredDimensions = dims
	s.haveInputFormat = true
	return nil
}

// SetInputAudioFormat declares the sample format/rate/layout of the
// frames a caller will push to a writing audio Stream. Encoder setup
// requires this to have been called at least once, per spec.md §4.D.3's
// audio-path validation.
func (s *Stream) SetInputAudioFormat(sampleFmt SampleFormat, rate int, layout ChannelLayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != StreamModeWriting || s.kind != StreamTypeAudio {
		return errors.New("mediahandling: set_input_audio_format is only valid for a writing audio stream")
	}
	if s.finalised {
		return ErrStreamFinalised{}
	}
	s.declaredSampleFormat = sampleFmt
	s.declaredSampleRate = rate
	s.declaredChannelLayout = layout
	s.haveInputAudioFormat = true
	return nil
}

// Frame returns the decoded frame at timestamp ts (in the Stream's
// native timebase units), or the next frame in playback order if ts is
// -1, per spec.md §4.D's operations table. Seeking is only triggered
// when ts moves backward or jumps further than roughly one frame from
// the last read timestamp; small forward steps read ahead instead.
func (s *Stream) Frame(ts int64) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != StreamModeReading {
		return nil, errors.New("mediahandling: frame() is only valid for a reading stream")
	}

	var frame *Frame
	var err error
	switch {
	case ts == -1:
		frame, err = s.readNextLocked()
	case !s.havePriorRead || ts < s.lastTimestamp || abs64(ts-s.lastTimestamp) > s.ptsInterval:
		if serr := s.backend.SeekStream(s.in, s.streamIndex, ts); serr != nil {
			return nil, serr
		}
		s.source.clearQueue()
		frame, err = s.seekDrainToLocked(ts)
	case ts == s.lastTimestamp:
		frame, err = s.readNextLocked()
	default:
		frame, err = s.seekDrainToLocked(ts)
	}
	if err != nil {
		return nil, err
	}
	if frame != nil {
		s.lastTimestamp = frame.Timestamp()
		s.havePriorRead = true
		frame.SetConversionTarget(s.outTarget)
	}
	if !s.props.IsLocked() {
		s.props.Lock()
	}
	return frame, nil
}

// FrameBySecond is frame(⌊seconds·rate/scale⌋), per spec.md §4.D.
func (s *Stream) FrameBySecond(seconds float64) (*Frame, error) {
	rate := s.frameRate.Float64()
	scale := s.timeBase.Float64()
	if scale == 0 {
		return nil, errors.New("mediahandling: stream time base is unknown")
	}
	ts := int64(math.Floor(seconds * rate / scale))
	return s.Frame(ts)
}

// FrameByFrameNumber is frame(⌊n/rate/scale⌋), per spec.md §4.D.
func (s *Stream) FrameByFrameNumber(n int64) (*Frame, error) {
	rate := s.frameRate.Float64()
	scale := s.timeBase.Float64()
	if rate == 0 || scale == 0 {
		return nil, errors.New("mediahandling: stream frame rate or time base is unknown")
	}
	ts := int64(math.Floor(float64(n) / rate / scale))
	return s.Frame(ts)
}

func (s *Stream) readNextLocked() (*Frame, error) {
	for {
		pkt, ok, err := s.source.nextPacket(s.streamIndex)
		if err != nil {
			return nil, err
		}
		if !ok {
			return s.backend.FlushDecoder(s.dec)
		}
		frame, err := s.backend.DecodePacket(s.dec, pkt)
		if err != nil {
			return nil, err
		}
		if frame != nil {
			return frame, nil
		}
	}
}

func (s *Stream) seekDrainToLocked(ts int64) (*Frame, error) {
	var last *Frame
	for retries := 0; retries < 100000; retries++ {
		frame, err := s.readNextLocked()
		if err != nil {
			return nil, err
		}
		if frame == nil {
			return last, nil
		}
		last = frame
		if frame.Timestamp() == ts {
			return frame, nil
		}
	}
	logMessagef(LogLevelWarning, "stream %d: seek to %d did not land exactly after 100000 frames; returning closest", s.streamIndex, ts)
	return last, nil
}

// Index recomputes FRAME_COUNT, DURATION and BITRATE by scanning the
// entire stream from the start, per spec.md §4.D's operations table.
// Properties are transiently unlocked for the duration of the scan and
// re-locked before returning, requiring exclusive access via the
// Stream's own mutex (concurrent reads during a rescan are not
// supported, per spec.md §5's single-owner model).
func (s *Stream) Index() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != StreamModeReading {
		return errors.New("mediahandling: index() is only valid for a reading stream")
	}

	wasLocked := s.props.IsLocked()
	s.props.Unlock()
	restore := func() {
		if wasLocked {
			s.props.Lock()
		}
	}

	if err := s.backend.SeekStream(s.in, s.streamIndex, 0); err != nil {
		restore()
		return err
	}
	s.source.clearQueue()

	var frameCount, totalBytes int64
	for {
		pkt, ok, err := s.source.nextPacket(s.streamIndex)
		if err != nil {
			restore()
			return err
		}
		if !ok {
			break
		}
		totalBytes += int64(pkt.Size)
		frame, derr := s.backend.DecodePacket(s.dec, pkt)
		if derr != nil {
			restore()
			return derr
		}
		if frame != nil {
			frameCount++
		}
	}
	for {
		frame, derr := s.backend.FlushDecoder(s.dec)
		if derr != nil || frame == nil {
			break
		}
		frameCount++
	}

	s.props.Set(PropertyFrameCount, frameCount)
	var durSeconds float64
	if s.kind != StreamTypeAudio && s.frameRate.Num != 0 && frameCount > 0 {
		dur := NewRational(frameCount, 1).Div(s.frameRate)
		s.props.Set(PropertyDuration, dur)
		durSeconds = dur.Float64()
	} else if d, ok := GetProp[Rational](&s.props, PropertyDuration); ok {
		durSeconds = d.Float64()
	}
	if durSeconds > 0 {
		s.props.Set(PropertyBitrate, int64(float64(totalBytes*8)/durSeconds))
	}

	if err := s.backend.SeekStream(s.in, s.streamIndex, 0); err != nil {
		restore()
		return err
	}
	s.source.clearQueue()
	s.lastTimestamp = -1
	s.havePriorRead = false
	restore()
	return nil
}

// WriteFrame pushes f to be encoded, or, when f is nil, signals
// end-of-stream and flushes the encoder, per spec.md §4.D.4. The first
// call (with either a real frame or nil) runs the full encoder-setup
// sequence exactly once, under a once-latch; a setup failure is sticky
// and returned on every subsequent call.
func (s *Stream) WriteFrame(f *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != StreamModeWriting {
		return errors.New("mediahandling: write_frame() is only valid for a writing stream")
	}
	if s.finalised {
		return ErrStreamFinalised{}
	}
	if err := s.runEncoderSetupLocked(); err != nil {
		return err
	}

	if f == nil {
		if _, err := s.backend.FlushEncoder(s.enc); err != nil {
			return err
		}
		s.finalised = true
		return nil
	}

	conv := f
	switch s.kind {
	case StreamTypeAudio:
		if s.needsAudioConversion {
			out, err := s.backend.Resample(f, s.encoderSampleFormat, s.encoderSampleRate, s.encoderChannelLayout)
			if err != nil {
				return err
			}
			if out != nil {
				conv = out
			}
		}
		sampleCount := 0
		if data, err := conv.Data(); err == nil {
			sampleCount = data.SampleCount
		}
		conv.SetTimestamp(s.sampleAccum)
		s.sampleAccum += int64(sampleCount)
	default:
		if s.needsVideoConversion {
			out, err := s.backend.Scale(f, s.encoderPixelFormat, s.encoderDimensions)
			if err != nil {
				return err
			}
			if out != nil {
				conv = out
			}
		}
		conv.SetTimestamp(s.frameCounter)
		s.frameCounter++
	}

	packets, err := s.backend.EncodeFrame(s.enc, conv)
	if err != nil {
		return err
	}
	for _, pkt := range packets {
		if werr := s.backend.WritePacket(s.out, s.enc, pkt); werr != nil {
			return werr
		}
	}
	return nil
}

func (s *Stream) runEncoderSetupLocked() error {
	s.encSetupOnce.Do(func() {
		s.encSetupErr = s.doEncoderSetupLocked()
		if s.encSetupErr != nil {
			logMessagef(LogLevelCritical, "stream: encoder setup failed: %v", s.encSetupErr)
		}
	})
	return s.encSetupErr
}

// doEncoderSetupLocked runs the ordered validation/configuration stages
// spec.md §4.D.3 specifies: codec/container compatibility, per-media
// required properties, bitrate strategy, GOP, profile/preset/level, and
// finally opening the encoder and notifying the Sink so it can write its
// header lazily.
func (s *Stream) doEncoderSetupLocked() error {
	if _, err := s.backend.Capabilities(s.codec); err != nil {
		return ErrIncompatibleCodec{Reason: err.Error()}
	}
	if (s.kind == StreamTypeAudio) == isVideoCodec(s.codec) {
		return ErrIncompatibleCodec{Reason: fmt.Sprintf("codec %s is not valid for a %s stream", s.codec, s.kind)}
	}
	if ok, err := s.backend.QueryCodecInContainer(s.out, s.codec); err != nil {
		return ErrIncompatibleCodec{Reason: err.Error()}
	} else if !ok {
		return ErrIncompatibleCodec{Reason: fmt.Sprintf("codec %s is not compatible with this container", s.codec)}
	}

	cfg := EncoderConfig{Codec: s.codec}

	if s.kind == StreamTypeAudio {
		if !s.haveInputAudioFormat {
			return ErrMissingProperty{Key: PropertyAudioFormat}
		}
		rate, ok := intProperty(&s.props, PropertyAudioSamplingRate)
		if !ok {
			return ErrMissingProperty{Key: PropertyAudioSamplingRate}
		}
		layout, ok := GetProp[ChannelLayout](&s.props, PropertyAudioLayout)
		if !ok {
			return ErrMissingProperty{Key: PropertyAudioLayout}
		}
		if !losslessAudioCodecs[s.codec] {
			bitrate, ok := GetProp[int64](&s.props, PropertyBitrate)
			if !ok {
				return ErrMissingProperty{Key: PropertyBitrate}
			}
			cfg.BitRate = bitrate
		}

		caps, _ := s.backend.Capabilities(s.codec)
		sampleFmt := s.declaredSampleFormat
		if !caps.supportsSampleFormat(sampleFmt) {
			for _, candidate := range caps.SampleFormats {
				sampleFmt = candidate
				break
			}
		}
		cfg.SampleFormat = sampleFmt
		cfg.SampleRate = rate
		cfg.ChannelLayout = layout

		s.encoderSampleFormat = sampleFmt
		s.encoderSampleRate = rate
		s.encoderChannelLayout = layout
		s.needsAudioConversion = s.declaredSampleFormat != sampleFmt ||
			s.declaredSampleRate != rate || s.declaredChannelLayout != layout
		s.props.Set(PropertyAudioFormat, sampleFmt)
		s.props.Set(PropertyTimescale, NewRational(1, int64(rate)))
	} else {
		dims, ok := GetProp[Dimensions](&s.props, PropertyDimensions)
		if !ok {
			return ErrMissingProperty{Key: PropertyDimensions}
		}
		frameRate, ok := GetProp[Rational](&s.props, PropertyFrameRate)
		if !ok {
			return ErrMissingProperty{Key: PropertyFrameRate}
		}
		compression, ok := GetProp[CompressionStrategy](&s.props, PropertyCompression)
		if !ok {
			return ErrMissingProperty{Key: PropertyCompression}
		}
		pixFmt, ok := GetProp[PixelFormat](&s.props, PropertyPixelFormat)
		if !ok || pixFmt == PixelFormatUnknown {
			return ErrMissingProperty{Key: PropertyPixelFormat}
		}

		cfg.Dimensions = dims
		cfg.FrameRate = frameRate
		cfg.PixelFormat = pixFmt
		cfg.Strategy = compression

		switch compression {
		case CompressionCBR, CompressionTargetBitrate:
			bitrate, ok := GetProp[int64](&s.props, PropertyBitrate)
			if !ok {
				return ErrMissingProperty{Key: PropertyBitrate}
			}
			cfg.BitRate = bitrate
			// MIN_BITRATE/MAX_BITRATE are recorded in the PropertyBag for
			// introspection but have no backend hook: the muxer's encoder
			// setup (ffmpegbackend/muxer.go) exposes no rc_min_rate/
			// rc_max_rate setter, and this package adds none rather than
			// fabricate a binding the donor never carried.
		}

		if gop, ok := GetProp[GOP](&s.props, PropertyGOP); ok {
			cfg.GOP = gop
		}
		// THREADS is likewise recorded for introspection only: the muxer
		// has no per-encoder thread-count setter either. hardwareConcurrency
		// still seeds the property so callers see a sensible default.
		if _, ok := s.props.GetProperty(PropertyThreads); !ok {
			s.props.Set(PropertyThreads, int32(runtime.NumCPU()))
		}
		cfg.Threads, _ = intProperty(&s.props, PropertyThreads)

		if profile, ok := GetProp[VideoProfile](&s.props, PropertyProfile); ok && profile != ProfileNone {
			if validProfileForCodec(s.codec, profile) {
				cfg.Profile = profile
			} else {
				logMessagef(LogLevelWarning, "stream: profile %q is not valid for codec %s; using backend default", profile, s.codec)
			}
		}
		if s.codec == CodecH264 {
			if preset, ok := GetProp[VideoPreset](&s.props, PropertyPreset); ok && h264Presets[preset] {
				cfg.Preset = preset
			}
		}
		if level, ok := GetProp[VideoLevel](&s.props, PropertyLevel); ok {
			cfg.Level = level
		}

		s.props.Set(PropertyTimescale, frameRate.Invert())

		s.encoderPixelFormat = pixFmt
		s.encoderDimensions = dims
		if s.haveInputFormat {
			s.needsVideoConversion = s.declaredPixelFormat != pixFmt ||
				s.declaredDimensions != dims
		}
	}

	if err := defaults.Set(&cfg); err != nil {
		return fmt.Errorf("stream: applying encoder config defaults: %w", err)
	}
	if err := validate.Validate(&cfg); err != nil {
		return fmt.Errorf("stream: encoder config: %w", err)
	}

	enc, err := s.backend.ConfigureEncoder(s.out, s.kind, cfg)
	if err != nil {
		return err
	}
	s.enc = enc
	s.props.Lock()
	if s.sink != nil {
		if herr := s.sink.onStreamReady(); herr != nil {
			return herr
		}
	}
	return nil
}

func isVideoCodec(c Codec) bool {
	switch c {
	case CodecAAC, CodecAC3, CodecALAC, CodecFLAC, CodecMP3, CodecPCMS16LE, CodecPCMS24LE, CodecVorbis, CodecWavPack:
		return false
	default:
		return true
	}
}

// intProperty reads an int-shaped property that may have been stored as
// int, int32 or int64 (callers populate these inconsistently depending
// on whether the value came from a StreamDescriptor field or user code).
func intProperty(b *PropertyBag, key MediaProperty) (int, bool) {
	raw, ok := b.GetProperty(key)
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

// close releases the Stream's native decoder and its interest in the
// owning Source's packet dispatch, per spec.md §5's resource-ownership
// rules. It is idempotent.
func (s *Stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.mode != StreamModeReading {
		return
	}
	s.closed = true
	if s.dec != nil {
		_ = s.backend.CloseDecoder(s.dec)
	}
	if s.source != nil {
		s.source.releaseInterest(s.streamIndex)
	}
}
