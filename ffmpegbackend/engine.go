//go:build !ios && !android && (amd64 || arm64)

package ffmpegbackend

import (
	"errors"
	"sync"

	"github.com/bluenviron/mediacommon/pkg/codecs/h264"
	mh "github.com/jnoble-mh/mediahandling"
	"github.com/jnoble-mh/mediahandling/avcodec"
	"github.com/jnoble-mh/mediahandling/avformat"
	"github.com/jnoble-mh/mediahandling/avutil"
	"github.com/jnoble-mh/mediahandling/internal/bindings"
)

func init() {
	mh.RegisterBackend(mh.BackendFFmpeg, func() mh.Backend { return New() })
}

// Engine is the bundled FFmpeg implementation of mh.Backend, built on
// top of this package's muxer/scaler/resampler engine and the
// avformat/avcodec bindings, which it calls directly for demuxing and
// decoding through per-stream handles addressable by index, as
// spec.md's Source/Sink require.
//
// scalers and resamplers cache the swscale/swresample converters
// FrameData/Scale/Resample ask for, keyed by the conversion they
// perform. A Stream re-requests the same conversion on every frame it
// writes or reads, and sws_getContext/swr_alloc_set_opts are too
// expensive to pay per frame; converterCacheLimit bounds how many
// distinct conversions stay alive at once so an unusual workload that
// asks for many different targets can't leak converters unbounded.
type Engine struct {
	convMu     sync.Mutex
	scalers    map[scaleKey]*Scaler
	resamplers map[resampleKey]*Resampler
}

// converterCacheLimit is the number of distinct conversions each of an
// Engine's two caches (scalers, resamplers) keeps warm before it starts
// evicting.
const converterCacheLimit = 8

// New constructs an Engine. Most callers never need this directly:
// blank-importing this package registers BackendFFmpeg with
// mediahandling.Initialise.
func New() *Engine {
	return &Engine{
		scalers:    make(map[scaleKey]*Scaler),
		resamplers: make(map[resampleKey]*Resampler),
	}
}

func (e *Engine) Name() string { return "ffmpeg" }

// nativeInput is the concrete InputHandle for an opened container.
type nativeInput struct {
	mu       sync.Mutex
	fmtCtx   avformat.FormatContext
	streams  []mh.StreamDescriptor
	decoders map[int]*nativeDecoder
	pkt      avcodec.Packet
}

func (n *nativeInput) isInputHandle() {}

func (e *Engine) OpenInput(path string) (mh.InputHandle, error) {
	if err := bindings.Load(); err != nil {
		return nil, err
	}

	var ctx avformat.FormatContext
	if err := avformat.OpenInput(&ctx, path, nil, nil); err != nil {
		return nil, err
	}
	if err := avformat.FindStreamInfo(ctx, nil); err != nil {
		avformat.CloseInput(&ctx)
		return nil, err
	}

	pkt := avcodec.PacketAlloc()
	if pkt == nil {
		avformat.CloseInput(&ctx)
		return nil, mh.ErrOutOfMemory
	}

	n := &nativeInput{
		fmtCtx:   ctx,
		decoders: make(map[int]*nativeDecoder),
		pkt:      pkt,
	}
	n.streams = describeStreams(ctx)
	return n, nil
}

func (e *Engine) CloseInput(in mh.InputHandle) error {
	n, ok := in.(*nativeInput)
	if !ok || n == nil {
		return errors.New("ffmpegbackend: not an input handle produced by this backend")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, dec := range n.decoders {
		avcodec.FreeContext(&dec.ctx)
	}
	if n.pkt != nil {
		avcodec.PacketFree(&n.pkt)
	}
	avformat.CloseInput(&n.fmtCtx)
	return nil
}

func (e *Engine) Streams(in mh.InputHandle) ([]mh.StreamDescriptor, error) {
	n, ok := in.(*nativeInput)
	if !ok {
		return nil, errors.New("ffmpegbackend: not an input handle produced by this backend")
	}
	out := make([]mh.StreamDescriptor, len(n.streams))
	copy(out, n.streams)
	return out, nil
}

func (e *Engine) ContainerFormat(in mh.InputHandle) (string, error) {
	n, ok := in.(*nativeInput)
	if !ok {
		return "", errors.New("ffmpegbackend: not an input handle produced by this backend")
	}
	return avformat.GetInputFormatLongName(n.fmtCtx), nil
}

func (e *Engine) Metadata(in mh.InputHandle, streamIndex int, key string) (string, bool) {
	n, ok := in.(*nativeInput)
	if !ok {
		return "", false
	}
	if streamIndex < 0 {
		return avutil.DictGet(avformat.GetMetadata(n.fmtCtx), key)
	}
	st := avformat.GetStream(n.fmtCtx, streamIndex)
	if st == nil {
		return "", false
	}
	return avutil.DictGet(avformat.GetStreamMetadata(st), key)
}

func describeStreams(ctx avformat.FormatContext) []mh.StreamDescriptor {
	count := avformat.GetNumStreams(ctx)
	out := make([]mh.StreamDescriptor, 0, count)
	for i := 0; i < count; i++ {
		st := avformat.GetStream(ctx, i)
		if st == nil {
			continue
		}
		par := avformat.GetStreamCodecPar(st)
		if par == nil {
			continue
		}

		tbNum, tbDen := avformat.GetStreamTimeBase(st)
		desc := mh.StreamDescriptor{
			Index:    i,
			Codec:    codecFromNative(avformat.GetCodecParCodecID(par)),
			TimeBase: mh.NewRational(int64(tbNum), int64(tbDen)),
			Duration: avformat.GetDuration(ctx),
			BitRate:  avformat.GetBitRate(ctx),
		}

		switch avformat.GetCodecParType(par) {
		case avutil.MediaTypeVideo:
			desc.Type = mh.StreamTypeVideo
			desc.Dimensions = mh.Dimensions{
				Width:  avformat.GetCodecParWidth(par),
				Height: avformat.GetCodecParHeight(par),
			}
			desc.PixelFormat = pixelFormatFromNative(avutil.PixelFormat(avformat.GetCodecParFormat(par)))
			frNum, frDen := avformat.GetStreamAvgFrameRate(st)
			desc.FrameRate = mh.NewRational(int64(frNum), int64(frDen))
		case avutil.MediaTypeAudio:
			desc.Type = mh.StreamTypeAudio
			desc.SampleRate = int(avformat.GetCodecParSampleRate(par))
			desc.SampleFormat = sampleFormatFromNative(avutil.SampleFormat(avformat.GetCodecParFormat(par)))
			desc.ChannelLayout = mh.ChannelLayout(defaultLayoutForCount(int(avformat.GetCodecParChannels(par))))
		default:
			continue
		}

		out = append(out, desc)
	}
	return out
}

func (e *Engine) ReadPacket(in mh.InputHandle) (mh.Packet, error) {
	n, ok := in.(*nativeInput)
	if !ok {
		return mh.Packet{}, errors.New("ffmpegbackend: not an input handle produced by this backend")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := avformat.ReadFrame(n.fmtCtx, n.pkt); err != nil {
		return mh.Packet{}, err
	}
	streamIndex := int(avcodec.GetPacketStreamIndex(n.pkt))
	pts := avcodec.GetPacketPTS(n.pkt)
	dts := avcodec.GetPacketDTS(n.pkt)
	keyFrame := avcodec.GetPacketFlags(n.pkt)&1 != 0 // AV_PKT_FLAG_KEY
	size := int(avcodec.GetPacketSize(n.pkt))

	if streamIndex >= 0 && streamIndex < len(n.streams) && n.streams[streamIndex].Codec == mh.CodecH264 {
		crossCheckH264Keyframe(bytesFromPlane(avcodec.GetPacketData(n.pkt), size), keyFrame, streamIndex)
	}

	cloned := avcodec.PacketAlloc()
	if cloned == nil {
		avcodec.PacketUnref(n.pkt)
		return mh.Packet{}, mh.ErrOutOfMemory
	}
	if err := avcodec.PacketRef(cloned, n.pkt); err != nil {
		avcodec.PacketUnref(n.pkt)
		return mh.Packet{}, err
	}
	avcodec.PacketUnref(n.pkt)
	return mh.NewPacket(streamIndex, pts, dts, keyFrame, size, cloned), nil
}

// crossCheckH264Keyframe independently verifies libavformat's AV_PKT_FLAG_KEY
// against mediacommon's h264.IsRandomAccess, which inspects the access
// unit's NAL types directly. Only meaningful for Annex-B elementary
// streams (raw .h264, MPEG-TS); containers that store H.264 as
// length-prefixed AVCC (MP4, MOV) fail AnnexB.Unmarshal, which is
// expected and silently ignored rather than logged as a mismatch.
func crossCheckH264Keyframe(data []byte, reportedKeyFrame bool, streamIndex int) {
	if len(data) == 0 {
		return
	}
	var au h264.AnnexB
	if err := au.Unmarshal(data); err != nil {
		return
	}
	if actual := h264.IsRandomAccess(au); actual != reportedKeyFrame {
		mh.LogMessagef(mh.LogLevelWarning,
			"ffmpegbackend: stream %d keyframe flag mismatch: libavformat=%v mediacommon=%v",
			streamIndex, reportedKeyFrame, actual)
	}
}

func (e *Engine) SeekStream(in mh.InputHandle, streamIndex int, timestampMicros int64) error {
	n, ok := in.(*nativeInput)
	if !ok {
		return errors.New("ffmpegbackend: not an input handle produced by this backend")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return avformat.SeekFrame(n.fmtCtx, int32(streamIndex), timestampMicros, 0)
}

// nativeDecoder is the concrete DecoderHandle for one opened
// per-stream decoder.
type nativeDecoder struct {
	ctx         avcodec.Context
	mediaType   avutil.MediaType
	streamIndex int
	timeBase    avutil.Rational
	frame       avutil.Frame
}

func (d *nativeDecoder) isDecoderHandle() {}

func (e *Engine) OpenDecoder(in mh.InputHandle, streamIndex int) (mh.DecoderHandle, error) {
	n, ok := in.(*nativeInput)
	if !ok {
		return nil, errors.New("ffmpegbackend: not an input handle produced by this backend")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if existing, found := n.decoders[streamIndex]; found {
		return existing, nil
	}

	st := avformat.GetStream(n.fmtCtx, streamIndex)
	if st == nil {
		return nil, errors.New("ffmpegbackend: invalid stream index")
	}
	par := avformat.GetStreamCodecPar(st)
	codecID := avformat.GetCodecParCodecID(par)

	codec := avcodec.FindDecoder(codecID)
	if codec == nil {
		return nil, avutil.Error{Code: int32(avutil.AVERROR_DECODER_NOT_FOUND), Op: "avcodec_find_decoder"}
	}

	ctx := avcodec.AllocContext3(codec)
	if ctx == nil {
		return nil, mh.ErrOutOfMemory
	}
	if err := avcodec.ParametersToContext(ctx, par); err != nil {
		avcodec.FreeContext(&ctx)
		return nil, err
	}
	if err := avcodec.Open2(ctx, codec, nil); err != nil {
		avcodec.FreeContext(&ctx)
		return nil, err
	}

	frame := avutil.FrameAlloc()
	if frame == nil {
		avcodec.FreeContext(&ctx)
		return nil, mh.ErrOutOfMemory
	}

	tbNum, tbDen := avformat.GetStreamTimeBase(st)
	dec := &nativeDecoder{
		ctx:         ctx,
		mediaType:   avformat.GetCodecParType(par),
		streamIndex: streamIndex,
		timeBase:    avutil.NewRational(tbNum, tbDen),
		frame:       frame,
	}
	n.decoders[streamIndex] = dec
	return dec, nil
}

func (e *Engine) CloseDecoder(dec mh.DecoderHandle) error {
	d, ok := dec.(*nativeDecoder)
	if !ok {
		return errors.New("ffmpegbackend: not a decoder handle produced by this backend")
	}
	avutil.FrameFree(&d.frame)
	avcodec.FreeContext(&d.ctx)
	return nil
}

func (e *Engine) DecodePacket(dec mh.DecoderHandle, pkt mh.Packet) (*mh.Frame, error) {
	d, ok := dec.(*nativeDecoder)
	if !ok {
		return nil, errors.New("ffmpegbackend: not a decoder handle produced by this backend")
	}
	native, ok := mh.PacketNative(pkt).(avcodec.Packet)
	if !ok || native == nil {
		return nil, errors.New("ffmpegbackend: packet was not produced by this backend")
	}
	defer avcodec.PacketFree(&native)

	if err := avcodec.SendPacket(d.ctx, native); err != nil && !avutil.IsAgain(err) {
		return nil, err
	}
	return d.receiveFrame(e)
}

func (e *Engine) FlushDecoder(dec mh.DecoderHandle) (*mh.Frame, error) {
	d, ok := dec.(*nativeDecoder)
	if !ok {
		return nil, errors.New("ffmpegbackend: not a decoder handle produced by this backend")
	}
	return d.receiveFrame(e)
}

func (d *nativeDecoder) receiveFrame(backend mh.Backend) (*mh.Frame, error) {
	if err := avcodec.ReceiveFrame(d.ctx, d.frame); err != nil {
		if avutil.IsAgain(err) || avutil.IsEOF(err) {
			return nil, nil
		}
		return nil, err
	}

	owned := avutil.FrameAlloc()
	if owned == nil {
		return nil, mh.ErrOutOfMemory
	}
	if err := avutil.FrameRef(owned, d.frame); err != nil {
		avutil.FrameFree(&owned)
		return nil, err
	}
	avutil.FrameUnref(d.frame)

	pts := avutil.GetFramePTS(owned)
	mediaType := mh.MediaTypeAudio
	if d.mediaType == avutil.MediaTypeVideo {
		mediaType = mh.MediaTypeVideo
	}
	tb := mh.NewRational(int64(d.timeBase.Num), int64(d.timeBase.Den))
	return mh.NewNativeFrame(backend, owned, mediaType, pts, tb), nil
}
