//go:build !ios && !android && (amd64 || arm64)

// Package mediahandling provides a uniform, property-driven façade over
// a native audio/video demuxing, decoding, encoding and muxing backend.
// It lets a caller open a media container, enumerate its elementary
// streams, pull decoded frames (pixel- or sample-converted on demand),
// and conversely construct a container, configure per-stream encoders,
// and push frames to be encoded and interleaved on disk. It also
// auto-recognises image-sequence inputs and exposes them as a single
// synthetic video stream.
package mediahandling

import "sync"

var (
	backendMu      sync.RWMutex
	backend        Backend
	activeBackend  BackendType = BackendFFmpeg
	backendStarted bool
)

// Initialise selects and loads the native backend for the process,
// per spec.md §6's library entry points. kind must have been
// registered by a blank-imported backend package (RegisterBackend);
// the bundled FFmpeg backend registers itself as BackendFFmpeg when
// github.com/jnoble-mh/mediahandling/ffmpegbackend is imported.
// Selecting an unregistered kind (BackendGStreamer and
// BackendIntelMediaSDK have no bundled implementation) logs a warning
// and fails, matching original_source/Src/mediahandling.cpp's
// behaviour for a reserved but unimplemented backend value. Exactly
// one backend is active per process (spec.md §1's non-goals); calling
// Initialise again replaces the previous selection.
func Initialise(kind BackendType) bool {
	registryMu.Lock()
	factory, ok := registry[kind]
	registryMu.Unlock()
	if !ok {
		logMessagef(LogLevelWarning, "backend %s is not registered; blank-import its package first", kind)
		return false
	}

	backendMu.Lock()
	defer backendMu.Unlock()
	backend = factory()
	activeBackend = kind
	backendStarted = true
	return true
}

// ActiveBackend returns the process-wide Backend installed by
// Initialise, or nil if Initialise has not been called. CreateSource,
// CreateSink and NewFrame resolve the backend through this when they
// construct a Source, Sink or Frame, which then keeps that Backend for
// its lifetime.
func ActiveBackend() Backend {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backend
}

// ActiveBackendType reports which BackendType Initialise last
// selected.
func ActiveBackendType() BackendType {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return activeBackend
}

// EnableBackendLogs forwards the native backend's own log stream
// (e.g. FFmpeg's av_log) to the process, independent of the library's
// own LoggingFunc installed via AssignLoggerCallback. Disabled by
// default since the raw backend stream is typically far noisier than
// the library's five-level log.
func EnableBackendLogs(enabled bool) error {
	if enabled {
		return setBackendLogCallback(func(level BackendLogLevel, message string) {
			logMessage(level.ToLibraryLevel(), message)
		})
	}
	return setBackendLogCallback(nil)
}

// CreateSource opens path for reading, per spec.md §6/§4.E's open
// sequence. path may be a single media file or, when
// AutoDetectImageSequences is enabled, one member of a numbered image
// sequence (the sequence's printf-style pattern is resolved
// automatically).
func CreateSource(path string) (*Source, error) {
	b := ActiveBackend()
	if b == nil {
		return nil, ErrNotLoaded
	}
	src, err := openSource(b, path)
	if err != nil {
		return nil, err
	}
	logMessagef(LogLevelInfo, "mediahandling: opened %s", src)
	return src, nil
}

// CreateSink constructs a container at path for writing, configuring
// one Stream per requested codec, per spec.md §6/§4.F. videoCodecs and
// audioCodecs may each be empty; at least one of the two must be
// non-empty.
func CreateSink(path string, videoCodecs, audioCodecs []Codec) (*Sink, error) {
	b := ActiveBackend()
	if b == nil {
		return nil, ErrNotLoaded
	}
	if len(videoCodecs) == 0 && len(audioCodecs) == 0 {
		return nil, ErrIncompatibleCodec{Reason: "no codecs requested"}
	}
	sink, err := newSink(b, path, videoCodecs, audioCodecs)
	if err != nil {
		return nil, err
	}
	logMessagef(LogLevelInfo, "mediahandling: created %s", sink)
	return sink, nil
}

// CreateFrame allocates a blank Frame of the given media type, per
// spec.md §6's create_frame(). It is an alias of NewFrame kept for
// symmetry with CreateSource/CreateSink's naming.
func CreateFrame(mediaType MediaType) (*Frame, error) {
	return NewFrame(mediaType)
}
