//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import (
	"fmt"
	"sync"
)

// BackendType enumerates the native codec/container engines a host can
// select with Initialise, per spec.md §6. Exactly one is active per
// process; spec.md's non-goals explicitly exclude running several at
// once, so ActiveBackend is a single atomically-swapped value rather
// than a registry keyed by type.
type BackendType int32

const (
	BackendFFmpeg BackendType = iota
	BackendGStreamer
	BackendIntelMediaSDK
)

func (b BackendType) String() string {
	switch b {
	case BackendFFmpeg:
		return "ffmpeg"
	case BackendGStreamer:
		return "gstreamer"
	case BackendIntelMediaSDK:
		return "intel-media-sdk"
	default:
		return fmt.Sprintf("backend(%d)", int32(b))
	}
}

// StreamDescriptor is the read-only summary a Backend reports for one
// elementary stream of an opened container, per spec.md §4.E.1's open
// sequence ("enumerate streams"). Source.Streams() builds its Stream
// values from these.
type StreamDescriptor struct {
	Index         int
	Type          StreamType
	Codec         Codec
	Dimensions    Dimensions
	PixelFormat   PixelFormat
	FieldOrder    FieldOrder
	SampleFormat  SampleFormat
	SampleRate    int
	ChannelLayout ChannelLayout
	FrameRate     Rational
	TimeBase      Rational
	Duration      int64 // in microseconds (AV_TIME_BASE units)
	BitRate       int64
}

// CodecCapabilities is what a Backend reports for Stream.setCodec's
// compatibility gate (spec.md §4.D.3: "format-compatibility gates keyed
// to codec capabilities").
type CodecCapabilities struct {
	PixelFormats  []PixelFormat
	SampleFormats []SampleFormat
	SampleRates   []int
	Profiles      []VideoProfile
	Presets       []VideoPreset
}

// supportsPixelFormat reports whether f is among the capability's allowed pixel
// formats. An empty list means "no restriction reported by the backend".
func (c CodecCapabilities) supportsPixelFormat(f PixelFormat) bool {
	if len(c.PixelFormats) == 0 {
		return true
	}
	for _, p := range c.PixelFormats {
		if p == f {
			return true
		}
	}
	return false
}

func (c CodecCapabilities) supportsSampleFormat(f SampleFormat) bool {
	if len(c.SampleFormats) == 0 {
		return true
	}
	for _, s := range c.SampleFormats {
		if s == f {
			return true
		}
	}
	return false
}

// InputHandle and OutputHandle are opaque container handles a Backend
// hands back from OpenInput/CreateOutput. Stream/Source/Sink never
// inspect their contents; they only thread them back into later Backend
// calls.
type InputHandle interface{ isInputHandle() }

// OutputHandle is the write-side counterpart of InputHandle.
type OutputHandle interface{ isOutputHandle() }

// DecoderHandle identifies one opened per-stream decoder.
type DecoderHandle interface{ isDecoderHandle() }

// EncoderHandle identifies one configured per-stream encoder.
type EncoderHandle interface{ isEncoderHandle() }

// Packet is a demuxed-but-not-decoded (or encoded-but-not-muxed) unit of
// data, tagged with the elementary stream it belongs to. Source owns
// cross-stream packet dispatch (spec.md §4.E.2) entirely in terms of
// this type; the backend never needs to know about interest refcounts
// or per-stream queues.
type Packet struct {
	StreamIndex int
	PTS, DTS    int64
	KeyFrame    bool
	Size        int

	// native is the backend's private representation (an FFmpeg
	// AVPacket wrapper, for the bundled backend). Only the Backend
	// implementation that produced it ever type-asserts this back out.
	native any
}

// NewPacket constructs a Packet carrying a backend-private payload.
// Exported for use by Backend implementations in other packages, which
// cannot set Packet's unexported native field directly.
func NewPacket(streamIndex int, pts, dts int64, keyFrame bool, size int, native any) Packet {
	return Packet{StreamIndex: streamIndex, PTS: pts, DTS: dts, KeyFrame: keyFrame, Size: size, native: native}
}

// PacketNative returns p's backend-private payload.
func PacketNative(p Packet) any { return p.native }

// EncoderConfig is the per-stream configuration a Sink hands to
// Backend.ConfigureEncoder during Stream's encoder-setup stage
// (spec.md §4.D.3). Defaults are filled in by creasty/defaults before
// validation with dealancer/validate.v2, matching the configuration
// idiom the rest of the domain stack uses for EncoderConfig.
type EncoderConfig struct {
	Codec Codec

	// Video fields.
	Dimensions  Dimensions
	FrameRate   Rational
	PixelFormat PixelFormat
	FieldOrder  FieldOrder
	GOP         GOP
	Profile     VideoProfile
	Preset      VideoPreset `default:"medium"`
	Level       VideoLevel
	Strategy    CompressionStrategy
	BitRate     int64 `default:"8000000" validate:"gte=0"`
	Threads     int   `default:"0" validate:"gte=0"`

	// Audio fields.
	SampleFormat  SampleFormat
	SampleRate    int `default:"48000" validate:"gte=0"`
	ChannelLayout ChannelLayout
	BitDepth      int `default:"16" validate:"gte=0"`
}

// Backend is the abstract native codec/container engine this library
// orchestrates, per spec.md §1's "out of scope (external collaborators,
// interfaces only)" list. It is a pure orchestration seam: open/close a
// container, enumerate streams, read one packet, seek, decode
// packet->frame, scale/convert a raw frame, encode frame->packet, write
// packet, write header/trailer, and enumerate codec capabilities.
//
// Exactly one Backend is active per process (ActiveBackend); Source and
// Sink are built against the Backend interface, never a concrete
// implementation, so swapping the active backend never touches their
// code.
type Backend interface {
	// Name identifies the backend for diagnostics and logging.
	Name() string

	// OpenInput opens path (a single file, or an image-sequence pattern
	// already resolved by the caller) as a demuxable container.
	OpenInput(path string) (InputHandle, error)
	CloseInput(in InputHandle) error

	// Streams enumerates the elementary streams of an opened container.
	Streams(in InputHandle) ([]StreamDescriptor, error)

	// ContainerFormat reports the opened container's demuxer name (e.g.
	// "QuickTime / MOV"), for Source's FILE_FORMAT property.
	ContainerFormat(in InputHandle) (string, error)

	// Metadata looks up a tag by key, either container-level
	// (streamIndex < 0, e.g. the "timecode" tag Source/Stream parse
	// into START_TIMECODE) or on one elementary stream.
	Metadata(in InputHandle, streamIndex int, key string) (string, bool)

	// ReadPacket demuxes the next packet from the container, from
	// whichever stream the container yields it for next. When the
	// container is exhausted it returns an error for which ErrorCode
	// reports AVERROR_EOF (the Backend implementation maps its own EOF
	// signal to that).
	ReadPacket(in InputHandle) (Packet, error)

	// SeekStream repositions the container's read cursor so the next
	// packets read for streamIndex start at or before timestampMicros.
	SeekStream(in InputHandle, streamIndex int, timestampMicros int64) error

	OpenDecoder(in InputHandle, streamIndex int) (DecoderHandle, error)
	CloseDecoder(dec DecoderHandle) error

	// DecodePacket feeds one packet to dec and returns the next
	// decoded frame, if any is ready. A nil Frame with a nil error
	// means the packet was consumed but produced no output yet
	// (typical of B-frame reordering); the caller keeps reading.
	DecodePacket(dec DecoderHandle, pkt Packet) (*Frame, error)

	// FlushDecoder drains frames buffered inside dec after the input
	// stream has been fully read. Returns a nil Frame once drained.
	FlushDecoder(dec DecoderHandle) (*Frame, error)

	// Scale converts a decoded video frame to the requested pixel
	// format and/or dimensions.
	Scale(f *Frame, dstFmt PixelFormat, dst Dimensions) (*Frame, error)

	// Resample converts a decoded audio frame to the requested sample
	// format, sample rate and channel layout.
	Resample(f *Frame, dstFmt SampleFormat, dstRate int, dstLayout ChannelLayout) (*Frame, error)

	CreateOutput(path string) (OutputHandle, error)
	CloseOutput(out OutputHandle) error

	// QueryCodecInContainer reports whether codec can be muxed into
	// out's container at all (spec.md §4.D.3 stage 1, before any
	// per-media validation runs).
	QueryCodecInContainer(out OutputHandle, codec Codec) (bool, error)

	// ConfigureEncoder performs the one-shot encoder-open sequence
	// (spec.md §4.D.3's ordered validation stages) for one elementary
	// stream of out.
	ConfigureEncoder(out OutputHandle, kind StreamType, cfg EncoderConfig) (EncoderHandle, error)

	// EncodeFrame feeds a frame to enc and returns zero or more
	// packets ready to be written (an encoder may buffer frames before
	// emitting, e.g. B-frame reordering or audio frame-size packing).
	EncodeFrame(enc EncoderHandle, f *Frame) ([]Packet, error)

	// FlushEncoder drains any packets buffered inside enc once the
	// Stream has sent its final frame.
	FlushEncoder(enc EncoderHandle) ([]Packet, error)

	WritePacket(out OutputHandle, enc EncoderHandle, pkt Packet) error
	WriteHeader(out OutputHandle) error
	WriteTrailer(out OutputHandle) error

	// Capabilities reports what codec supports, for Stream's
	// format-compatibility gate.
	Capabilities(codec Codec) (CodecCapabilities, error)

	// ExtractFrameProperties populates f's PropertyBag from its native
	// payload, per spec.md §4.C's extract_properties(). The backend
	// does not materialise these until this is called, since most
	// decoded frames never need them read.
	ExtractFrameProperties(f *Frame) error

	// FrameData returns a read-only view of f's native plane/sample
	// data, per spec.md §4.C's data(). target is nil for the
	// unconverted view; non-nil requests a one-shot scale/resample
	// into target's format, which the caller (Frame.Data) caches.
	FrameData(f *Frame, target *FrameConversionTarget) (FrameData, error)

	// NewFrame allocates a blank native frame for a to-be-encoded
	// Frame, per spec.md §6's create_frame().
	NewFrame(mediaType MediaType) (any, error)
}

var (
	registryMu sync.Mutex
	registry   = map[BackendType]func() Backend{}
)

// RegisterBackend makes a Backend constructor available under kind.
// A Backend implementation package calls this from its own init(),
// mirroring database/sql's driver-registration pattern: the host
// application blank-imports the backend package it wants
// (e.g. _ "github.com/jnoble-mh/mediahandling/ffmpegbackend") and then
// calls Initialise(kind). This keeps the facade package free of any
// import on a concrete backend, which would otherwise be a circular
// import since a concrete backend must import this package for the
// Backend interface and domain types it implements against.
func RegisterBackend(kind BackendType, factory func() Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = factory
}
