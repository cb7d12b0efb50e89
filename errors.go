//go:build !ios && !android && (amd64 || arm64)

package mediahandling

import (
	"errors"

	"github.com/jnoble-mh/mediahandling/avutil"
)

// FFmpegError is an error from FFmpeg operations.
// It contains the raw FFmpeg error code and a human-readable message.
type FFmpegError = avutil.Error

// Common errors
var (
	// ErrOutOfMemory indicates memory allocation failed.
	ErrOutOfMemory = errors.New("mediahandling: out of memory")

	// ErrNotLoaded indicates FFmpeg libraries are not loaded.
	ErrNotLoaded = errors.New("mediahandling: FFmpeg libraries not loaded")

	// ErrClosed indicates the resource has been closed.
	ErrClosed = errors.New("mediahandling: resource is closed")

	// ErrNoVideoStream indicates no video stream is present.
	ErrNoVideoStream = errors.New("mediahandling: no video stream")

	// ErrNoAudioStream indicates no audio stream is present.
	ErrNoAudioStream = errors.New("mediahandling: no audio stream")

	// ErrDecoderNotOpened indicates the decoder has not been opened.
	ErrDecoderNotOpened = errors.New("mediahandling: decoder not opened")
)

// Typed sentinel errors, following the donor's metadata.go idiom
// (ErrEncoderClosed/ErrHeaderAlreadyWritten/ErrInvalidStream as
// zero-field struct types rather than errors.New values) so callers can
// errors.As-match a specific failure kind, per spec.md §7's table of
// error kinds by behaviour.
type (
	// ErrLockedProperty is returned (informationally; callers generally
	// ignore it, since spec.md treats a locked-property write as a
	// silent no-op) when Set is attempted on a locked PropertyBag.
	ErrLockedProperty struct{ Key MediaProperty }

	// ErrMissingProperty indicates a required property was not set
	// before an operation that depends on it (e.g. encoder setup).
	ErrMissingProperty struct{ Key MediaProperty }

	// ErrIncompatibleCodec indicates the requested codec is not valid
	// for the container, or a video codec was requested for an audio
	// role (or vice versa).
	ErrIncompatibleCodec struct{ Reason string }

	// ErrStreamFinalised indicates a write was attempted on a writing
	// Stream that has already received its end-of-stream flush.
	ErrStreamFinalised struct{}

	// ErrSinkClosed indicates an operation was attempted on a Sink
	// after Finish/Close.
	ErrSinkClosed struct{}
)

func (e ErrLockedProperty) Error() string {
	return "mediahandling: property is locked and cannot be set"
}

func (e ErrMissingProperty) Error() string {
	return "mediahandling: required property not set"
}

func (e ErrIncompatibleCodec) Error() string {
	return "mediahandling: incompatible codec: " + e.Reason
}

func (e ErrStreamFinalised) Error() string {
	return "mediahandling: stream has been finalised; no further writes accepted"
}

func (e ErrSinkClosed) Error() string {
	return "mediahandling: sink is closed"
}

// Error code constants re-exported from avutil
const (
	AVERROR_EOF               = avutil.AVERROR_EOF
	AVERROR_EAGAIN            = avutil.AVERROR_EAGAIN
	AVERROR_EINVAL            = avutil.AVERROR_EINVAL
	AVERROR_ENOMEM            = avutil.AVERROR_ENOMEM
	AVERROR_DECODER_NOT_FOUND = avutil.AVERROR_DECODER_NOT_FOUND
	AVERROR_ENCODER_NOT_FOUND = avutil.AVERROR_ENCODER_NOT_FOUND
)

// NewError creates an FFmpegError from an error code.
// Returns nil if code >= 0.
func NewError(code int32, op string) error {
	return avutil.NewError(code, op)
}

// ErrorCode returns the FFmpeg error code from an error, or 0 if not an FFmpeg error.
func ErrorCode(err error) int32 {
	return avutil.Code(err)
}
