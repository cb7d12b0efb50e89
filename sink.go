//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// isImageCodec reports whether c is one of the still-image codecs,
// letting Sink construction classify a requested video-slot codec as a
// StreamTypeImage writing Stream rather than StreamTypeVideo.
func isImageCodec(c Codec) bool {
	switch c {
	case CodecJPEG2000, CodecPNG, CodecTIFF, CodecDPX:
		return true
	default:
		return false
	}
}

// Sink is a container under construction, per spec.md §4.F: one writing
// Stream per requested codec, a one-shot header written once every
// Stream's encoder has been configured, and a one-shot trailer written
// on Finish.
type Sink struct {
	id      uuid.UUID
	backend Backend
	out     OutputHandle
	path    string
	props   PropertyBag

	mu             sync.Mutex
	videoStreams   []*Stream
	audioStreams   []*Stream
	headerOnce     sync.Once
	headerWritten  bool
	headerErr      error
	trailerWritten bool
	closed         bool
}

// newSink implements CreateSink's construction sequence (spec.md §4.F):
// validate the destination's parent directory, open the output
// container, and create one writing Stream per requested codec — a
// codec placed in the wrong list (a known audio codec requested as a
// video stream, or vice versa) is rejected with a CRITICAL log naming
// the mismatch and simply skipped, rather than failing the whole Sink.
func newSink(b Backend, path string, videoCodecs, audioCodecs []Codec) (*Sink, error) {
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("mediahandling: %s is not a directory", dir)
		}
		return nil, err
	}

	out, err := b.CreateOutput(path)
	if err != nil {
		return nil, err
	}

	sink := &Sink{id: uuid.New(), backend: b, out: out, path: path}
	sink.props = *NewPropertyBag()
	sink.props.Set(PropertyFilename, path)

	for _, c := range videoCodecs {
		if !isVideoCodec(c) {
			logMessagef(LogLevelCritical, "sink: codec %s is an audio codec; cannot use it for a video stream", c)
			continue
		}
		kind := StreamTypeVideo
		if isImageCodec(c) {
			kind = StreamTypeImage
		}
		sink.videoStreams = append(sink.videoStreams, newWritingStream(b, sink, out, c, kind))
	}
	for _, c := range audioCodecs {
		if isVideoCodec(c) {
			logMessagef(LogLevelCritical, "sink: codec %s is a video codec; cannot use it for an audio stream", c)
			continue
		}
		sink.audioStreams = append(sink.audioStreams, newWritingStream(b, sink, out, c, StreamTypeAudio))
	}

	if len(sink.videoStreams) == 0 && len(sink.audioStreams) == 0 {
		_ = b.CloseOutput(out)
		return nil, ErrIncompatibleCodec{Reason: "no writable stream could be created from the requested codecs"}
	}
	return sink, nil
}

// Properties returns the Sink's PropertyBag.
func (sink *Sink) Properties() *PropertyBag { return &sink.props }

// VideoStream returns the i'th video/image writing Stream, in the order
// videoCodecs was given to CreateSink.
func (sink *Sink) VideoStream(i int) (*Stream, error) {
	if i < 0 || i >= len(sink.videoStreams) {
		return nil, fmt.Errorf("mediahandling: no video stream at index %d", i)
	}
	return sink.videoStreams[i], nil
}

// AudioStream returns the i'th audio writing Stream, in the order
// audioCodecs was given to CreateSink.
func (sink *Sink) AudioStream(i int) (*Stream, error) {
	if i < 0 || i >= len(sink.audioStreams) {
		return nil, fmt.Errorf("mediahandling: no audio stream at index %d", i)
	}
	return sink.audioStreams[i], nil
}

// VideoStreams returns every video/image writing Stream.
func (sink *Sink) VideoStreams() []*Stream {
	return append([]*Stream(nil), sink.videoStreams...)
}

// AudioStreams returns every audio writing Stream.
func (sink *Sink) AudioStreams() []*Stream {
	return append([]*Stream(nil), sink.audioStreams...)
}

// onStreamReady is called by a writing Stream once its own encoder has
// been configured. The container header can only be written once every
// requested stream has a configured encoder (the muxer needs every
// stream's parameters before it can write one header covering all of
// them), so this is a no-op until that holds, then writes the header
// exactly once.
func (sink *Sink) onStreamReady() error {
	sink.mu.Lock()
	ready := true
	for _, st := range sink.videoStreams {
		if st.enc == nil {
			ready = false
			break
		}
	}
	if ready {
		for _, st := range sink.audioStreams {
			if st.enc == nil {
				ready = false
				break
			}
		}
	}
	sink.mu.Unlock()
	if !ready {
		return nil
	}

	sink.headerOnce.Do(func() {
		if err := sink.backend.WriteHeader(sink.out); err != nil {
			sink.headerErr = err
			return
		}
		sink.mu.Lock()
		sink.headerWritten = true
		sink.mu.Unlock()
	})
	return sink.headerErr
}

// Finish flushes every Stream's encoder and writes the trailer exactly
// once, per spec.md §4.F. It requires the header to already have been
// written (i.e. every requested stream successfully configured its
// encoder via at least one WriteFrame call); a trailer-write failure is
// returned to the caller rather than logged and silently discarded,
// diverging from original_source/Src/mediasink.cpp's destructor
// behaviour since a caller calling Finish explicitly can and should act
// on that failure.
func (sink *Sink) Finish() error {
	sink.mu.Lock()
	if sink.closed {
		sink.mu.Unlock()
		return ErrSinkClosed{}
	}
	if !sink.headerWritten {
		sink.mu.Unlock()
		return fmt.Errorf("mediahandling: sink finished before its container header was written")
	}
	if sink.trailerWritten {
		sink.mu.Unlock()
		return nil
	}
	sink.trailerWritten = true
	sink.closed = true
	streams := make([]*Stream, 0, len(sink.videoStreams)+len(sink.audioStreams))
	streams = append(streams, sink.videoStreams...)
	streams = append(streams, sink.audioStreams...)
	sink.mu.Unlock()

	for _, st := range streams {
		if !st.finalised {
			if err := st.WriteFrame(nil); err != nil {
				logMessagef(LogLevelWarning, "sink: flushing stream failed: %v", err)
			}
		}
	}

	if err := sink.backend.WriteTrailer(sink.out); err != nil {
		return err
	}
	return sink.backend.CloseOutput(sink.out)
}

// Close is an alias for Finish, for symmetry with Source.Close.
func (sink *Sink) Close() error { return sink.Finish() }

// String returns a diagnostic one-liner identifying this Sink by its
// instance id, path, and stream counts, for log messages.
func (sink *Sink) String() string {
	return fmt.Sprintf("Sink{id=%s path=%q video=%d audio=%d}",
		sink.id, sink.path, len(sink.videoStreams), len(sink.audioStreams))
}
