//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Source is an opened, read-only media container, per spec.md §4.E. It
// owns the backend's InputHandle and every reading-mode Stream derived
// from it; Streams hold a weak back-reference to their Source and do
// not outlive it (spec.md §3).
//
// Cross-stream packet dispatch (spec.md §4.E.2) is Source's
// responsibility, not any individual Stream's: demuxing interleaves
// packets for every elementary stream on one read cursor, so whichever
// Stream asks for its next packet may have to trigger reads that land
// on a different stream's packets first. Those are queued for later if
// some other open Stream has declared interest (held a Stream via
// Source.Stream), or discarded if nothing is listening.
type Source struct {
	id          uuid.UUID
	backend     Backend
	in          InputHandle
	path        string
	descriptors []StreamDescriptor
	props       PropertyBag

	mu      sync.Mutex
	streams map[int]*Stream
	closed  bool

	qmu      sync.Mutex
	interest map[int]uint32
	queue    map[int][]Packet
}

// openSource implements CreateSource's full open sequence (spec.md
// §4.E): resolve an image-sequence pattern if the path is one member of
// a detected sequence, open the container, enumerate streams, and
// populate Source-level properties from the container and its first
// video stream.
func openSource(b Backend, path string) (*Source, error) {
	openPath := path
	sequencePattern := ""

	if AutoDetectImageSequences() && pathIsInSequence(path) {
		if pattern, ok := generateSequencePattern(path); ok {
			sequencePattern = pattern
			openPath = pattern
		}
	}
	if sequencePattern == "" {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	}

	in, err := b.OpenInput(openPath)
	if err != nil {
		return nil, err
	}
	descriptors, err := b.Streams(in)
	if err != nil {
		_ = b.CloseInput(in)
		return nil, err
	}

	src := &Source{
		id:          uuid.New(),
		backend:     b,
		in:          in,
		path:        path,
		descriptors: descriptors,
		streams:     make(map[int]*Stream),
		interest:    make(map[int]uint32),
		queue:       make(map[int][]Packet),
	}
	src.props = *NewPropertyBag()
	src.populateProperties(sequencePattern)
	src.props.Lock()
	return src, nil
}

// populateProperties fills in Source's container-level properties, per
// spec.md §4.E's open sequence. IMAGE-classified streams are tallied as
// VIDEO_STREAMS here, since classification of a video stream as VIDEO
// vs. IMAGE (by frame rate) is a Stream-level decision made only once a
// Stream is actually opened for that index (newReadingStream); the
// descriptor alone only distinguishes video from audio.
func (src *Source) populateProperties(sequencePattern string) {
	p := &src.props
	p.Set(PropertyFilename, src.path)
	if format, err := src.backend.ContainerFormat(src.in); err == nil {
		p.Set(PropertyFileFormat, format)
	}
	if sequencePattern != "" {
		p.Set(PropertySequencePattern, sequencePattern)
	}

	var videoCount, audioCount int32
	var firstFrameRate Rational
	haveFrameRate := false
	var maxDuration int64
	var totalBitrate int64

	for _, d := range src.descriptors {
		switch d.Type {
		case StreamTypeVideo:
			videoCount++
			if !haveFrameRate && d.FrameRate.Num != 0 {
				firstFrameRate = d.FrameRate
				haveFrameRate = true
			}
		case StreamTypeAudio:
			audioCount++
		}
		if d.Duration > maxDuration {
			maxDuration = d.Duration
		}
		totalBitrate += d.BitRate
	}

	p.Set(PropertyStreams, int32(len(src.descriptors)))
	p.Set(PropertyVideoStreams, videoCount)
	p.Set(PropertyAudioStreams, audioCount)
	if haveFrameRate {
		p.Set(PropertyFrameRate, firstFrameRate)
	}
	p.Set(PropertyDuration, NewRational(maxDuration, 1_000_000))
	p.Set(PropertyBitrate, totalBitrate)

	if tag, ok := src.backend.Metadata(src.in, -1, "timecode"); ok && haveFrameRate {
		tc := NewTimeCode(firstFrameRate.Invert(), firstFrameRate, 0)
		if err := tc.SetTimeCode(tag); err != nil {
			logMessagef(LogLevelWarning, "source: malformed timecode metadata %q: %v", tag, err)
		} else {
			p.Set(PropertyStartTimeCode, tc)
		}
	}
}

// Properties returns the Source's PropertyBag.
func (src *Source) Properties() *PropertyBag { return &src.props }

// StreamCount reports how many elementary streams the container has.
func (src *Source) StreamCount() int { return len(src.descriptors) }

// VideoStreamCount reports how many of the container's streams are
// video or image (spec.md's VIDEO_STREAMS property).
func (src *Source) VideoStreamCount() int32 {
	v, _ := GetProp[int32](&src.props, PropertyVideoStreams)
	return v
}

// AudioStreamCount reports how many of the container's streams are
// audio (spec.md's AUDIO_STREAMS property).
func (src *Source) AudioStreamCount() int32 {
	v, _ := GetProp[int32](&src.props, PropertyAudioStreams)
	return v
}

// Stream returns the reading-mode Stream for the elementary stream at
// index, opening its decoder on first request and caching it for
// subsequent calls, per spec.md §4.E/§4.D.
func (src *Source) Stream(index int) (*Stream, error) {
	src.mu.Lock()
	if src.closed {
		src.mu.Unlock()
		return nil, ErrClosed
	}
	if st, ok := src.streams[index]; ok {
		src.mu.Unlock()
		return st, nil
	}
	var found *StreamDescriptor
	for i := range src.descriptors {
		if src.descriptors[i].Index == index {
			d := src.descriptors[i]
			found = &d
			break
		}
	}
	src.mu.Unlock()
	if found == nil {
		return nil, fmt.Errorf("mediahandling: no stream at index %d", index)
	}

	src.acquireInterest(index)
	st, err := newReadingStream(src.backend, src, src.in, *found)
	if err != nil {
		src.releaseInterest(index)
		return nil, err
	}

	src.mu.Lock()
	src.streams[index] = st
	src.mu.Unlock()
	return st, nil
}

// acquireInterest registers that some Stream wants packets for
// streamIndex, so Source.nextPacket queues rather than discards packets
// that arrive for it while another Stream is reading, per spec.md
// §4.E.2.
func (src *Source) acquireInterest(streamIndex int) {
	src.qmu.Lock()
	defer src.qmu.Unlock()
	src.interest[streamIndex]++
}

// releaseInterest is the inverse of acquireInterest, called from a
// Stream's close(). The counter saturates at zero: an unmatched release
// (a bug elsewhere, not a condition a caller can trigger through normal
// use) is logged and otherwise ignored rather than underflowing into a
// very large unsigned value.
func (src *Source) releaseInterest(streamIndex int) {
	src.qmu.Lock()
	defer src.qmu.Unlock()
	if src.interest[streamIndex] == 0 {
		logMessagef(LogLevelWarning, "source: interest refcount underflow for stream %d", streamIndex)
		return
	}
	src.interest[streamIndex]--
}

// nextPacket returns the next packet belonging to streamIndex, either
// from that stream's queue (populated by an earlier read that landed on
// a different stream) or by reading forward from the container until
// one arrives, per spec.md §4.E.2. ok is false (with a nil error) at
// end of stream.
func (src *Source) nextPacket(streamIndex int) (Packet, bool, error) {
	src.qmu.Lock()
	if q := src.queue[streamIndex]; len(q) > 0 {
		pkt := q[0]
		src.queue[streamIndex] = q[1:]
		src.qmu.Unlock()
		return pkt, true, nil
	}
	src.qmu.Unlock()

	for {
		pkt, err := src.backend.ReadPacket(src.in)
		if err != nil {
			if ErrorCode(err) == AVERROR_EOF {
				return Packet{}, false, nil
			}
			return Packet{}, false, err
		}
		if pkt.StreamIndex == streamIndex {
			return pkt, true, nil
		}
		src.qmu.Lock()
		if src.interest[pkt.StreamIndex] > 0 {
			src.queue[pkt.StreamIndex] = append(src.queue[pkt.StreamIndex], pkt)
		}
		src.qmu.Unlock()
	}
}

// clearQueue discards every stream's queued-but-unconsumed packets,
// called after any seek (which invalidates the container's read
// position for every stream, not just the one that requested the
// seek).
func (src *Source) clearQueue() {
	src.qmu.Lock()
	defer src.qmu.Unlock()
	for k := range src.queue {
		delete(src.queue, k)
	}
}

// Close releases every Stream opened against this Source and closes the
// underlying container. It is idempotent.
func (src *Source) Close() error {
	src.mu.Lock()
	if src.closed {
		src.mu.Unlock()
		return nil
	}
	src.closed = true
	streams := make([]*Stream, 0, len(src.streams))
	for _, st := range src.streams {
		streams = append(streams, st)
	}
	src.mu.Unlock()

	for _, st := range streams {
		st.close()
	}
	return src.backend.CloseInput(src.in)
}

// String returns a diagnostic one-liner identifying this Source by its
// instance id, path, and stream counts, for log messages.
func (src *Source) String() string {
	return fmt.Sprintf("Source{id=%s path=%q video=%d audio=%d}",
		src.id, src.path, src.VideoStreamCount(), src.AudioStreamCount())
}
