//go:build !ios && !android && (amd64 || arm64)

package ffmpegbackend

import (
	mh "github.com/jnoble-mh/mediahandling"
	"github.com/jnoble-mh/mediahandling/avcodec"
	"github.com/jnoble-mh/mediahandling/avutil"
)

// codecFromNative maps an AVCodecID onto the closed Codec set Stream and
// Sink reason about, per spec.md §3's Codec table. Native codecs the
// domain doesn't name (most of the donor's much larger CodecID list)
// fall back to CodecNone; callers treat that as "unsupported for this
// operation" rather than a crash.
func codecFromNative(id avcodec.CodecID) mh.Codec {
	switch id {
	case avcodec.CodecIDH264:
		return mh.CodecH264
	case avcodec.CodecIDMPEG2VIDEO:
		return mh.CodecMPEG2Video
	case avcodec.CodecIDMPEG4:
		return mh.CodecMPEG4
	case avcodec.CodecIDDNXHD:
		return mh.CodecDNxHD
	case avcodec.CodecIDMJPEG:
		return mh.CodecMJPEG
	case avcodec.CodecIDRAWVIDEO:
		return mh.CodecRaw
	case avcodec.CodecIDJPEG2000:
		return mh.CodecJPEG2000
	case avcodec.CodecIDPNG:
		return mh.CodecPNG
	case avcodec.CodecIDTIFF:
		return mh.CodecTIFF
	case avcodec.CodecIDDPX:
		return mh.CodecDPX
	case avcodec.CodecIDAAC:
		return mh.CodecAAC
	case avcodec.CodecIDAC3:
		return mh.CodecAC3
	case avcodec.CodecIDALAC:
		return mh.CodecALAC
	case avcodec.CodecIDFLAC:
		return mh.CodecFLAC
	case avcodec.CodecIDMP3:
		return mh.CodecMP3
	case avcodec.CodecIDPCMS16LE:
		return mh.CodecPCMS16LE
	case avcodec.CodecIDPCMS24LE:
		return mh.CodecPCMS24LE
	case avcodec.CodecIDVORBIS:
		return mh.CodecVorbis
	case avcodec.CodecIDWAVPACK:
		return mh.CodecWavPack
	default:
		return mh.CodecNone
	}
}

// codecToNative is codecFromNative's inverse, used by ConfigureEncoder
// to look up an AVCodec by the domain Codec a Stream was built with.
func codecToNative(c mh.Codec) avcodec.CodecID {
	switch c {
	case mh.CodecH264:
		return avcodec.CodecIDH264
	case mh.CodecMPEG2Video:
		return avcodec.CodecIDMPEG2VIDEO
	case mh.CodecMPEG4:
		return avcodec.CodecIDMPEG4
	case mh.CodecDNxHD:
		return avcodec.CodecIDDNXHD
	case mh.CodecMJPEG:
		return avcodec.CodecIDMJPEG
	case mh.CodecRaw:
		return avcodec.CodecIDRAWVIDEO
	case mh.CodecJPEG2000:
		return avcodec.CodecIDJPEG2000
	case mh.CodecPNG:
		return avcodec.CodecIDPNG
	case mh.CodecTIFF:
		return avcodec.CodecIDTIFF
	case mh.CodecDPX:
		return avcodec.CodecIDDPX
	case mh.CodecAAC:
		return avcodec.CodecIDAAC
	case mh.CodecAC3:
		return avcodec.CodecIDAC3
	case mh.CodecALAC:
		return avcodec.CodecIDALAC
	case mh.CodecFLAC:
		return avcodec.CodecIDFLAC
	case mh.CodecMP3:
		return avcodec.CodecIDMP3
	case mh.CodecPCMS16LE:
		return avcodec.CodecIDPCMS16LE
	case mh.CodecPCMS24LE:
		return avcodec.CodecIDPCMS24LE
	case mh.CodecVorbis:
		return avcodec.CodecIDVORBIS
	case mh.CodecWavPack:
		return avcodec.CodecIDWAVPACK
	default:
		return avcodec.CodecIDNone
	}
}

// pixelFormatFromNative collapses FFmpeg's much larger AVPixelFormat
// enum onto the four families spec.md §3 names. Formats outside those
// families (e.g. NV12, the RGBA variants) report the nearest family by
// chroma subsampling, since that's what a caller configuring
// set_output_format actually cares about; the native format itself is
// still used verbatim for the decode/scale path.
func pixelFormatFromNative(pf avutil.PixelFormat) mh.PixelFormat {
	switch pf {
	case avutil.PixelFormatRGB24, avutil.PixelFormatBGR24,
		avutil.PixelFormatARGB, avutil.PixelFormatRGBA,
		avutil.PixelFormatABGR, avutil.PixelFormatBGRA:
		return mh.PixelFormatRGB24
	case avutil.PixelFormatYUV422P, avutil.PixelFormatYUVJ422P,
		avutil.PixelFormatYUYV422:
		return mh.PixelFormatYUV422
	case avutil.PixelFormatYUV444P, avutil.PixelFormatYUVJ444P:
		return mh.PixelFormatYUV444
	case avutil.PixelFormatYUV420P, avutil.PixelFormatYUVJ420P,
		avutil.PixelFormatNV12, avutil.PixelFormatNV21:
		return mh.PixelFormatYUV420
	default:
		return mh.PixelFormatUnknown
	}
}

// pixelFormatToNative picks a concrete native pixel format to request
// for a domain PixelFormat, for use as a Scale/ConfigureEncoder target.
func pixelFormatToNative(pf mh.PixelFormat) avutil.PixelFormat {
	switch pf {
	case mh.PixelFormatRGB24:
		return avutil.PixelFormatRGB24
	case mh.PixelFormatYUV422:
		return avutil.PixelFormatYUV422P
	case mh.PixelFormatYUV444:
		return avutil.PixelFormatYUV444P
	case mh.PixelFormatYUV420:
		return avutil.PixelFormatYUV420P
	default:
		return avutil.PixelFormatYUV420P
	}
}

func sampleFormatFromNative(sf avutil.SampleFormat) mh.SampleFormat {
	switch sf {
	case avutil.SampleFormatU8:
		return mh.SampleFormatUnsigned8
	case avutil.SampleFormatS16:
		return mh.SampleFormatSigned16
	case avutil.SampleFormatS32:
		return mh.SampleFormatSigned32
	case avutil.SampleFormatS64:
		return mh.SampleFormatSigned64
	case avutil.SampleFormatFlt:
		return mh.SampleFormatFloat
	case avutil.SampleFormatDbl:
		return mh.SampleFormatDouble
	case avutil.SampleFormatU8P:
		return mh.SampleFormatUnsigned8P
	case avutil.SampleFormatS16P:
		return mh.SampleFormatSigned16P
	case avutil.SampleFormatS32P:
		return mh.SampleFormatSigned32P
	case avutil.SampleFormatS64P:
		return mh.SampleFormatSigned64P
	case avutil.SampleFormatFltP:
		return mh.SampleFormatFloatP
	case avutil.SampleFormatDblP:
		return mh.SampleFormatDoubleP
	default:
		return mh.SampleFormatNone
	}
}

func sampleFormatToNative(sf mh.SampleFormat) avutil.SampleFormat {
	switch sf {
	case mh.SampleFormatUnsigned8:
		return avutil.SampleFormatU8
	case mh.SampleFormatSigned16:
		return avutil.SampleFormatS16
	case mh.SampleFormatSigned32:
		return avutil.SampleFormatS32
	case mh.SampleFormatSigned64:
		return avutil.SampleFormatS64
	case mh.SampleFormatFloat:
		return avutil.SampleFormatFlt
	case mh.SampleFormatDouble:
		return avutil.SampleFormatDbl
	case mh.SampleFormatUnsigned8P:
		return avutil.SampleFormatU8P
	case mh.SampleFormatSigned16P:
		return avutil.SampleFormatS16P
	case mh.SampleFormatSigned32P:
		return avutil.SampleFormatS32P
	case mh.SampleFormatSigned64P:
		return avutil.SampleFormatS64P
	case mh.SampleFormatFloatP:
		return avutil.SampleFormatFltP
	case mh.SampleFormatDoubleP:
		return avutil.SampleFormatDblP
	default:
		return avutil.SampleFormatFltP
	}
}

// defaultLayoutForCount mirrors resampler.go's defaultChannelLayout,
// re-exposed for StreamDescriptor construction where only a raw channel
// count (from AVCodecParameters) is available.
func defaultLayoutForCount(channels int) mh.ChannelLayout {
	return mh.ChannelLayout(defaultChannelLayout(channels))
}

// colorSpaceName renders a subset of AVColorSpace/AVColorPrimaries/
// AVColorTransferCharacteristic as the short strings spec.md §3's
// COLOUR_SPACE groups under Primaries/Transfer/Matrix. Values this
// library doesn't recognise render as "unspecified" rather than a raw
// number, since a caller branching on the string shouldn't need to know
// FFmpeg's enum space.
func colorSpaceName(cs ColorSpace) string {
	switch cs {
	case ColorSpaceBT709:
		return "bt709"
	case ColorSpaceBT470BG, ColorSpaceSMPTE170M:
		return "bt601"
	case ColorSpaceBT2020NCL, ColorSpaceBT2020CL:
		return "bt2020"
	case ColorSpaceSMPTE240M:
		return "smpte240m"
	default:
		return "unspecified"
	}
}

func colorPrimariesName(p ColorPrimaries) string {
	switch p {
	case ColorPrimariesBT709:
		return "bt709"
	case ColorPrimariesBT470BG, ColorPrimariesSMPTE170M:
		return "bt601"
	case ColorPrimariesBT2020:
		return "bt2020"
	default:
		return "unspecified"
	}
}

func colorTransferName(t ColorTransfer) string {
	switch t {
	case ColorTransferBT709:
		return "bt709"
	case ColorTransferSMPTE170M:
		return "bt601"
	case ColorTransferSMPTE2084:
		return "pq"
	case ColorTransferARIB_STD_B67:
		return "hlg"
	case ColorTransferIEC61966_2_1:
		return "srgb"
	default:
		return "unspecified"
	}
}

func colorRangeFromNative(r ColorRange) mh.ColourRange {
	switch r {
	case ColorRangeMPEG:
		return mh.ColourRangeLimited
	case ColorRangeJPEG:
		return mh.ColourRangeFull
	default:
		return mh.ColourRangeUnspecified
	}
}
