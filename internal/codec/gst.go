package codec

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/tenclass/sweet-encoder/internal/picture"
)

// GstAdapter drives an x264enc GStreamer pipeline: an appsrc fed with
// tightly-packed I420 buffers, x264enc configured per StreamConfig, an
// h264parse to repeat SPS/PPS ahead of every keyframe, and an appsink that
// the pipeline worker polls for the resulting Annex-B sample. Polling
// (rather than a signal callback) mirrors the reference pack's approach to
// avoiding re-entrant cgo callbacks from the GStreamer main loop.
type GstAdapter struct {
	log      zerolog.Logger
	pipeline *gst.Pipeline
	src      *app.Source
	sink     *app.Sink
	seq      int64

	mu     sync.Mutex
	closed bool
}

// vbvBufCapacityMillis is x264enc's "vbv-buf-capacity", expressed in
// milliseconds of buffered video rather than a bit count. The required VBV
// buffer size is 2x the configured bitrate (buffer_kbit = 2 * bitrate_kbps),
// which in a milliseconds-of-bitrate property is a constant regardless of
// the configured bitrate: 2 * bitrate_kbps / bitrate_kbps * 1000ms = 2000ms.
const vbvBufCapacityMillis = 2000

// NewGstAdapter builds and starts the encoder pipeline for a screen of the
// given dimensions. Construction failures are fatal per the error
// taxonomy's "Configuration error"/"Allocation failure" rows.
func NewGstAdapter(width, height int, cfg StreamConfig, log zerolog.Logger) (*GstAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gst.Init(nil)

	pipelineStr := fmt.Sprintf(
		"appsrc name=src is-live=true block=true format=time do-timestamp=true "+
			"caps=video/x-raw,format=I420,width=%d,height=%d,framerate=%d/1 ! "+
			"x264enc name=enc speed-preset=%s profile=%s tune=%s pass=qual "+
			"quantizer=%d bitrate=%d threads=%d bframes=0 b-adapt=false "+
			"key-int-max=7200 byte-stream=true vbv-buf-capacity=%d option-string=%s ! "+
			"h264parse config-interval=-1 ! "+
			"appsink name=sink emit-signals=false max-buffers=2 drop=false sync=false",
		width, height, cfg.FPS,
		cfg.Preset, cfg.Profile, tuneString(cfg.Flags),
		cfg.CRF, cfg.BitrateBps/1000, cfg.Threads,
		vbvBufCapacityMillis, optionString(cfg.Flags),
	)

	log.Debug().Str("pipeline", pipelineStr).Msg("building codec pipeline")

	pipeline, err := gst.NewPipelineFromString(pipelineStr)
	if err != nil {
		return nil, errors.Wrap(err, "codec: failed to build gstreamer pipeline")
	}

	srcElement, err := pipeline.GetElementByName("src")
	if err != nil {
		return nil, errors.Wrap(err, "codec: missing appsrc")
	}
	sinkElement, err := pipeline.GetElementByName("sink")
	if err != nil {
		return nil, errors.Wrap(err, "codec: missing appsink")
	}

	a := &GstAdapter{
		log:      log,
		pipeline: pipeline,
		src:      app.SrcFromElement(srcElement),
		sink:     app.SinkFromElement(sinkElement),
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, errors.Wrap(err, "codec: failed to start pipeline")
	}

	return a, nil
}

// tuneString builds the x264enc "tune" flag set: zero-latency is always
// present because the encoder must never buffer frames waiting to reorder
// (matches the no-frame-reordering non-goal), fastdecode is added when
// requested by the stream config.
func tuneString(flags Flags) string {
	tunes := []string{"zerolatency"}
	if flags&FlagFastDecode != 0 {
		tunes = append(tunes, "fastdecode")
	}
	return strings.Join(tunes, "+")
}

// optionString builds the raw libx264 option string passed through
// x264enc's option-string property, for parameters GStreamer does not
// expose as first-class properties: a fixed GOP with scene-cut detection
// disabled (keyframes come from an explicit ForceKeyframe request or the
// 7200-frame interval), plus CABAC and extended references when their
// flag bits are set.
func optionString(flags Flags) string {
	opts := []string{"scenecut=0", "keyint-min=7200"}
	if flags&FlagArithmeticEntropy != 0 {
		opts = append(opts, "cabac=1")
	}
	if flags&FlagExtendedRefs != 0 {
		opts = append(opts, "ref=3")
	}
	return strings.Join(opts, ":")
}

// Encode pushes pic's planar bytes into the pipeline and pulls the
// resulting sample. Frame-type hints are carried as a force-key-unit event
// sent immediately before the buffer, since x264enc has no per-buffer
// keyframe field of its own.
func (a *GstAdapter) Encode(pic *picture.Working) (*Sample, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, errors.New("codec: encode called after close")
	}
	a.mu.Unlock()

	if pic.NextFrameType == picture.Keyframe {
		a.requestKeyUnit()
	}

	buf := gst.NewBufferFromBytes(packI420(pic.Image))
	if ret := a.src.PushBuffer(buf); ret != gst.FlowOK {
		return nil, errors.Errorf("codec: appsrc push-buffer failed: %v", ret)
	}

	sample, err := a.sink.PullSample()
	if err != nil {
		// A pull timeout/EOS on a live, block=true pipeline is the
		// "codec transient" case: no output this tick.
		return nil, nil
	}
	if sample == nil {
		return nil, nil
	}
	gbuf := sample.GetBuffer()
	if gbuf == nil {
		return nil, nil
	}
	nal := gbuf.Bytes()
	if len(nal) == 0 {
		return nil, nil
	}

	seq := atomic.AddInt64(&a.seq, 1)
	return &Sample{NAL: nal, Seq: seq}, nil
}

// requestKeyUnit sends a GstForceKeyUnit custom downstream event, the
// standard GStreamer mechanism for asking a video encoder to emit a
// keyframe on its next input buffer.
func (a *GstAdapter) requestKeyUnit() {
	structure := gst.NewStructure("GstForceKeyUnit")
	_ = structure.SetValue("all-headers", true)
	event := gst.NewCustomEvent(gst.EventCustomDownstream, structure)
	a.pipeline.SendEvent(event)
}

// packI420 flattens a picture.YUV420 (already tightly packed, since
// picture.NewYUV420 allocates stride==width planes) into one contiguous
// buffer in Y, U, V plane order, matching the I420 caps declared above.
func packI420(img *picture.YUV420) []byte {
	out := make([]byte, 0, len(img.Y)+len(img.U)+len(img.V))
	out = append(out, img.Y...)
	out = append(out, img.U...)
	out = append(out, img.V...)
	return out
}

// Close tears down the pipeline. Safe to call more than once.
func (a *GstAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	if err := a.pipeline.SetState(gst.StateNull); err != nil {
		a.log.Warn().Err(err).Msg("codec: error stopping pipeline")
	}
	a.pipeline.Unref()

	// Give the pipeline's internal streaming thread a moment to settle
	// before the process may exit, matching the reference pack's
	// stop-then-sleep pattern for its polling goroutine.
	time.Sleep(10 * time.Millisecond)
	return nil
}
