//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import "sync"

// FrameConversionTarget describes the decode-side output conversion a
// Stream has configured (set_output_format), per spec.md §4.D.1/§4.C.
// A video target fixes PixelFormat and Dimensions; an audio target
// fixes SampleFormat, SampleRate and ChannelLayout. Which fields are
// meaningful depends on the owning Frame's MediaType.
type FrameConversionTarget struct {
	PixelFormat   PixelFormat
	Dimensions    Dimensions
	SampleFormat  SampleFormat
	SampleRate    int
	ChannelLayout ChannelLayout
}

// FrameData is the read-only (for decoded frames) or write-one (for
// constructed frames) view spec.md §3 calls out: plane-pointer array,
// byte length per plane and in total, line_size (row stride of plane
// 0), pixel format, sample format and sample count.
type FrameData struct {
	Planes       [][]byte
	PlaneSizes   []int
	TotalSize    int
	LineSize     int
	PixelFormat  PixelFormat
	SampleFormat SampleFormat
	SampleCount  int
}

// Frame is a decoded or decode-target unit, per spec.md §3's table:
// visual (pixel planes) or audio (samples per channel), carrying its
// own timestamp and optional attached conversion context.
//
// Plane pointers inside the FrameData returned by Data remain valid
// only until the next frame is fetched from the same Stream (spec.md
// §4.A: "Data exists for the lifetime of the Frame and until the next
// frame-retrieval"); Frame does not copy on access, matching the
// "borrows from the Stream with an explicit lifetime" option spec.md
// §9's Design Notes prefers for performance.
type Frame struct {
	mu sync.Mutex

	props     PropertyBag
	mediaType MediaType
	timestamp int64
	timeBase  Rational

	// native is the backend-private decoded or to-be-encoded payload.
	// Only the Backend that produced it ever type-asserts it back out.
	native any

	backend Backend
	target  *FrameConversionTarget
	cached  *FrameData
}

// NewFrame returns a blank Frame of the given media type, ready to
// have its FrameData populated and be pushed to a writing Stream, per
// spec.md §6's create_frame(). It is the only way user code constructs
// a Frame directly; decoded frames are always returned by a reading
// Stream.
func NewFrame(mediaType MediaType) (*Frame, error) {
	backend := ActiveBackend()
	if backend == nil {
		return nil, ErrNotLoaded
	}
	native, err := backend.NewFrame(mediaType)
	if err != nil {
		return nil, err
	}
	return &Frame{
		mediaType: mediaType,
		native:    native,
		backend:   backend,
		props:     NewPropertyBag(),
	}, nil
}

// newDecodedFrame wraps a backend-produced frame. Called only by
// Stream's read path.
func newDecodedFrame(backend Backend, native any, mediaType MediaType, timestamp int64, timeBase Rational) *Frame {
	return &Frame{
		mediaType: mediaType,
		timestamp: timestamp,
		timeBase:  timeBase,
		native:    native,
		backend:   backend,
		props:     NewPropertyBag(),
	}
}

// NewNativeFrame wraps a backend-produced native payload into a Frame.
// It is exported for use by Backend implementations living in other
// packages (e.g. ffmpegbackend), which cannot reach this package's
// unexported constructor directly.
func NewNativeFrame(backend Backend, native any, mediaType MediaType, timestamp int64, timeBase Rational) *Frame {
	return newDecodedFrame(backend, native, mediaType, timestamp, timeBase)
}

// Properties returns the Frame's PropertyBag.
func (f *Frame) Properties() *PropertyBag { return &f.props }

// MediaType reports whether this is a video or audio frame.
func (f *Frame) MediaType() MediaType { return f.mediaType }

// Timestamp returns the frame's native-timebase presentation
// timestamp.
func (f *Frame) Timestamp() int64 { return f.timestamp }

// SetTimestamp overrides the frame's presentation timestamp. Used by a
// writing Stream's write loop (spec.md §4.D.4) when assigning
// monotonically-increasing PTS to constructed frames.
func (f *Frame) SetTimestamp(ts int64) { f.timestamp = ts }

// TimeBase returns the Rational that converts Timestamp into seconds.
func (f *Frame) TimeBase() Rational { return f.timeBase }

// Native exposes the backend-private payload for the Backend
// implementation's own use (Stream/Source/Sink never inspect it).
func (f *Frame) Native() any { return f.native }

// SetConversionTarget attaches the decode-side output conversion a
// Stream has configured, per spec.md §4.D.1. Passing nil clears it,
// reverting Data to the unconverted view.
func (f *Frame) SetConversionTarget(target *FrameConversionTarget) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target = target
	f.cached = nil
}

// ExtractProperties populates the Frame's PropertyBag from its native
// payload, per spec.md §4.C's extract_properties(). Callers must
// invoke this before reading FIELD_ORDER, PIXEL_ASPECT_RATIO,
// COLOUR_SPACE, AUDIO_SAMPLES or AUDIO_FORMAT, since the backend does
// not materialise them until a frame has actually been decoded.
func (f *Frame) ExtractProperties() error {
	if f.backend == nil {
		return ErrNotLoaded
	}
	return f.backend.ExtractFrameProperties(f)
}

// Data returns the Frame's plane/sample view, per spec.md §4.C: if a
// conversion target is configured, the conversion is performed lazily
// on first access and the result cached on this Frame; subsequent
// calls return the same cached buffer. Without a target, Data returns
// pointers into the native frame directly.
func (f *Frame) Data() (FrameData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.target == nil {
		if f.backend == nil {
			return FrameData{}, ErrNotLoaded
		}
		return f.backend.FrameData(f, nil)
	}

	if f.cached != nil {
		return *f.cached, nil
	}
	if f.backend == nil {
		return FrameData{}, ErrNotLoaded
	}
	fd, err := f.backend.FrameData(f, f.target)
	if err != nil {
		return FrameData{}, err
	}
	f.cached = &fd
	return fd, nil
}
