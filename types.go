//go:build !ios && !android && (amd64 || arm64)

package mediahandling

// MediaType classifies an elementary stream or Frame.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeVideo
	MediaTypeImage
	MediaTypeAudio
)

func (t MediaType) String() string {
	switch t {
	case MediaTypeVideo:
		return "VIDEO"
	case MediaTypeImage:
		return "IMAGE"
	case MediaTypeAudio:
		return "AUDIO"
	default:
		return "UNKNOWN"
	}
}

// PixelFormat is the closed set of pixel layouts this library reasons
// about at the domain level, grounded on
// original_source/Include/types.h's PixelFormat enum (the donor's own
// avutil.PixelFormat is the much larger native FFmpeg enum, used only
// inside ffmpegbackend at the FFI boundary).
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatRGB24
	PixelFormatYUV420
	PixelFormatYUV422
	PixelFormatYUV444
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatRGB24:
		return "RGB24"
	case PixelFormatYUV420:
		return "YUV420"
	case PixelFormatYUV422:
		return "YUV422"
	case PixelFormatYUV444:
		return "YUV444"
	default:
		return "UNKNOWN"
	}
}

// SampleFormat is the closed set of audio sample encodings, grounded on
// original_source/Include/types.h's SampleFormat enum.
type SampleFormat int

const (
	SampleFormatNone SampleFormat = iota
	SampleFormatUnsigned8
	SampleFormatSigned16
	SampleFormatSigned32
	SampleFormatSigned64
	SampleFormatFloat
	SampleFormatDouble
	SampleFormatUnsigned8P
	SampleFormatSigned16P
	SampleFormatSigned32P
	SampleFormatSigned64P
	SampleFormatFloatP
	SampleFormatDoubleP
)

// FieldOrder describes interlacing, per spec.md §3/§4.C.
type FieldOrder int

const (
	FieldOrderProgressive FieldOrder = iota
	FieldOrderTopFirst
	FieldOrderBottomFirst
)

// ChannelLayout is the semantic arrangement of audio channels, grounded
// on the donor's resampler.go ChannelLayout (same bitmask values, so the
// ffmpegbackend boundary can pass them straight to av_get_channel_layout
// callers without a translation table).
type ChannelLayout int64

const (
	ChannelLayoutMono        ChannelLayout = 0x4
	ChannelLayoutStereo      ChannelLayout = 0x3
	ChannelLayout2Point1     ChannelLayout = 0xB
	ChannelLayoutSurround    ChannelLayout = 0x7
	ChannelLayout5Point0     ChannelLayout = 0x607
	ChannelLayout5Point1     ChannelLayout = 0x60F
	ChannelLayout6Point1     ChannelLayout = 0x70F
	ChannelLayout7Point1     ChannelLayout = 0x63F
	ChannelLayout7Point1Wide ChannelLayout = 0x6CF
)

// ChannelCount returns the number of channels implied by the layout.
func (c ChannelLayout) ChannelCount() int {
	n := 0
	v := uint64(c)
	for v != 0 {
		n += int(v & 1)
		v >>= 1
	}
	return n
}

// Dimensions is a video frame's width/height in pixels.
type Dimensions struct {
	Width  int32
	Height int32
}

// GOP describes group-of-pictures structure: n is the GOP size (distance
// between keyframes), m is the max consecutive B-frames.
type GOP struct {
	N int32
	M int32
}

// ColourSpace carries the four components spec.md §3 groups under
// COLOUR_SPACE: primaries, transfer characteristic, matrix coefficients,
// and range (full/limited).
type ColourSpace struct {
	Primaries string
	Transfer  string
	Matrix    string
	Range     ColourRange
}

// ColourRange distinguishes full-range ("JPEG") from limited-range
// ("MPEG") sample values.
type ColourRange int

const (
	ColourRangeUnspecified ColourRange = iota
	ColourRangeLimited
	ColourRangeFull
)

// CompressionStrategy is a video encoder's bitrate-control mode, per
// spec.md §3/§4.D.3.
type CompressionStrategy int

const (
	CompressionUnspecified CompressionStrategy = iota
	CompressionCBR
	CompressionTargetBitrate
	CompressionCRF
	CompressionCQP
)

// VideoProfile is a codec-specific encoder profile, per spec.md
// §4.D.3's compatibility table.
type VideoProfile string

const (
	ProfileNone VideoProfile = ""

	// H.264
	ProfileH264Baseline VideoProfile = "baseline"
	ProfileH264Main     VideoProfile = "main"
	ProfileH264High     VideoProfile = "high"
	ProfileH264High10   VideoProfile = "high10"
	ProfileH264High422  VideoProfile = "high422"
	ProfileH264High444  VideoProfile = "high444"

	// MPEG-2
	ProfileMPEG2Simple VideoProfile = "simple"
	ProfileMPEG2Main   VideoProfile = "main"
	ProfileMPEG2High   VideoProfile = "high"
	ProfileMPEG2_422   VideoProfile = "422"

	// DNxHD / DNxHR
	ProfileDNxHD       VideoProfile = "dnxhd"
	ProfileDNxHRLB     VideoProfile = "dnxhr_lb"
	ProfileDNxHRSQ     VideoProfile = "dnxhr_sq"
	ProfileDNxHRHQ     VideoProfile = "dnxhr_hq"
	ProfileDNxHRHQX    VideoProfile = "dnxhr_hqx"
	ProfileDNxHR444    VideoProfile = "dnxhr_444"
)

// VideoPreset is an H.264-only encoder speed/quality tradeoff knob, per
// spec.md §4.D.3.
type VideoPreset string

const (
	PresetNone     VideoPreset = ""
	PresetVeryslow VideoPreset = "veryslow"
	PresetSlower   VideoPreset = "slower"
	PresetSlow     VideoPreset = "slow"
	PresetMedium   VideoPreset = "medium"
	PresetFast     VideoPreset = "fast"
	PresetFaster   VideoPreset = "faster"
	PresetVeryfast VideoPreset = "veryfast"
	PresetSuperfast VideoPreset = "superfast"
	PresetUltrafast VideoPreset = "ultrafast"
)

// VideoLevel is a codec-specific encoder level (e.g. H.264 level 4.1).
type VideoLevel string

// InterpolationMethod selects the scaler's resampling kernel when
// Backend.Scale is asked to change video dimensions.
type InterpolationMethod int

const (
	InterpolationDefault InterpolationMethod = iota
	InterpolationBilinear
	InterpolationBicubic
	InterpolationLanczos
	InterpolationNearest
)

// Codec is the closed set of codecs this library supports, per
// spec.md §6.
type Codec int

const (
	CodecNone Codec = iota

	// Video
	CodecH264
	CodecMPEG2Video
	CodecMPEG4
	CodecDNxHD
	CodecMJPEG
	CodecRaw

	// Image
	CodecJPEG2000
	CodecPNG
	CodecTIFF
	CodecDPX

	// Audio
	CodecAAC
	CodecAC3
	CodecALAC
	CodecFLAC
	CodecMP3
	CodecPCMS16LE
	CodecPCMS24LE
	CodecVorbis
	CodecWavPack
)

func (c Codec) String() string {
	switch c {
	case CodecH264:
		return "H264"
	case CodecMPEG2Video:
		return "MPEG2VIDEO"
	case CodecMPEG4:
		return "MPEG4"
	case CodecDNxHD:
		return "DNXHD"
	case CodecMJPEG:
		return "MJPEG"
	case CodecRaw:
		return "RAW"
	case CodecJPEG2000:
		return "JPEG2000"
	case CodecPNG:
		return "PNG"
	case CodecTIFF:
		return "TIFF"
	case CodecDPX:
		return "DPX"
	case CodecAAC:
		return "AAC"
	case CodecAC3:
		return "AC3"
	case CodecALAC:
		return "ALAC"
	case CodecFLAC:
		return "FLAC"
	case CodecMP3:
		return "MP3"
	case CodecPCMS16LE:
		return "PCM_S16_LE"
	case CodecPCMS24LE:
		return "PCM_S24_LE"
	case CodecVorbis:
		return "VORBIS"
	case CodecWavPack:
		return "WAVPACK"
	default:
		return "NONE"
	}
}

// losslessAudioCodecs mirrors original_source/ffmpeg/ffmpegstream.cpp's
// NOBITRATE_CODECS set: these audio codecs don't require BITRATE at
// encoder-setup time (spec.md §4.D.3 stage 2).
var losslessAudioCodecs = map[Codec]bool{
	CodecWavPack:  true,
	CodecPCMS16LE: true,
	CodecFLAC:     true,
}

// StreamType classifies a Stream, per spec.md §4.D.
type StreamType int

const (
	StreamTypeVideo StreamType = iota
	StreamTypeImage
	StreamTypeAudio
)

func (t StreamType) String() string {
	switch t {
	case StreamTypeVideo:
		return "VIDEO"
	case StreamTypeImage:
		return "IMAGE"
	case StreamTypeAudio:
		return "AUDIO"
	default:
		return "UNKNOWN"
	}
}
