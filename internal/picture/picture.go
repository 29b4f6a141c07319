// Package picture holds the persistent full-screen planar YUV working
// picture that is submitted to the codec once per encoder tick.
package picture

// FrameType hints the codec which picture type to encode next.
type FrameType int

const (
	// Auto lets the codec decide. Under the GOP policy in internal/codec
	// (scene-cut disabled, 7200-frame keyframe interval) it yields a
	// keyframe only when that interval elapses.
	Auto FrameType = iota
	Keyframe
)

// YUV420 is a planar 4:2:0 image with independent per-plane strides. It is
// used both for the small per-slice conversion tile and for the full-screen
// Working Picture.
type YUV420 struct {
	Width, Height int
	Y, U, V       []byte
	StrideY       int
	StrideU       int
	StrideV       int
}

// NewYUV420 allocates a tightly-packed planar 4:2:0 image sized to w x h.
// w and h must be even.
func NewYUV420(w, h int) *YUV420 {
	cw, ch := w/2, h/2
	return &YUV420{
		Width:   w,
		Height:  h,
		Y:       make([]byte, w*h),
		U:       make([]byte, cw*ch),
		V:       make([]byte, cw*ch),
		StrideY: w,
		StrideU: cw,
		StrideV: cw,
	}
}

// Working is the persistent composite picture submitted to the codec.
type Working struct {
	Image         *YUV420
	PTS           int64
	NextFrameType FrameType
}

// NewWorking allocates a full-screen Working Picture.
func NewWorking(width, height int) *Working {
	return &Working{
		Image:         NewYUV420(width, height),
		NextFrameType: Auto,
	}
}

// DrawSlice stitches a converted tile into the working picture at (x, y).
// x, y, w, h are guaranteed even by the slice alignment rules upstream, so
// the chroma-plane halving below is always exact.
func (w *Working) DrawSlice(x, y, width, height int, tile *YUV420) {
	copyPlane(w.Image.Y, w.Image.StrideY, x, y, tile.Y, tile.StrideY, width, height)
	copyPlane(w.Image.U, w.Image.StrideU, x/2, y/2, tile.U, tile.StrideU, width/2, height/2)
	copyPlane(w.Image.V, w.Image.StrideV, x/2, y/2, tile.V, tile.StrideV, width/2, height/2)
}

func copyPlane(dst []byte, dstStride, x, y int, src []byte, srcStride, w, h int) {
	for row := 0; row < h; row++ {
		dstOff := (y+row)*dstStride + x
		srcOff := row * srcStride
		copy(dst[dstOff:dstOff+w], src[srcOff:srcOff+w])
	}
}

// Tick advances the presentation timestamp and resolves the frame type,
// consuming the forceKeyframe request. Returns the resolved frame type for
// the picture about to be submitted to the codec.
func (w *Working) Tick(forceKeyframe bool) FrameType {
	w.PTS++
	if forceKeyframe {
		w.NextFrameType = Keyframe
	} else {
		w.NextFrameType = Auto
	}
	return w.NextFrameType
}
