// Package screen owns the guest framebuffer backing bitmap and the logic
// that blits incoming dirty-region partials into it.
package screen

import "fmt"

// Descriptor is the immutable geometry of the guest screen for a session.
type Descriptor struct {
	Width  int
	Height int
	Bpp    int // 24 or 32
	Stride int // bytes per row, >= Width*Bpp/8
}

// Validate checks the invariants required by the rest of the pipeline.
func (d Descriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("screen: width and height must be positive, got %dx%d", d.Width, d.Height)
	}
	if d.Width%2 != 0 || d.Height%2 != 0 {
		return fmt.Errorf("screen: width and height must be even, got %dx%d", d.Width, d.Height)
	}
	if d.Bpp != 24 && d.Bpp != 32 {
		return fmt.Errorf("screen: unsupported bpp %d, expected 24 or 32", d.Bpp)
	}
	minStride := d.Width * d.Bpp / 8
	if d.Stride < minStride {
		return fmt.Errorf("screen: stride %d smaller than minimum %d", d.Stride, minStride)
	}
	return nil
}

// BytesPerPixel returns the packed pixel size in bytes.
func (d Descriptor) BytesPerPixel() int {
	return d.Bpp / 8
}

// IOSegment is a single scatter/gather chunk of a Partial's source pixels.
// Length is always a multiple of the partial's source Stride; segment
// boundaries need not fall on row boundaries.
type IOSegment struct {
	Data []byte
}

// Partial is a dirty-rectangle update from the guest graphics device.
type Partial struct {
	X, Y          int
	Width, Height int
	Stride        int // source row stride in bytes
	Flip          bool
	Segments      []IOSegment
}

// Buffer is the contiguous packed-pixel bitmap sized to the guest screen.
// It is not safe for concurrent use; callers must serialize access
// externally (the pipeline does so with its own lock).
type Buffer struct {
	desc  Descriptor
	pixel []byte
}

// New allocates a zeroed Buffer for the given descriptor.
func New(desc Descriptor) *Buffer {
	return &Buffer{
		desc:  desc,
		pixel: make([]byte, desc.Stride*desc.Height),
	}
}

// Descriptor returns the screen geometry this buffer was allocated for.
func (b *Buffer) Descriptor() Descriptor {
	return b.desc
}

// Bytes exposes the raw pixel storage. Callers reading a sub-rectangle must
// only do so while holding the pipeline lock (see internal/pipeline).
func (b *Buffer) Bytes() []byte {
	return b.pixel
}

// Blit copies a Partial's scatter/gather payload into the buffer, following
// the flip and stride rules in the data model. It panics on any invariant
// violation (out-of-bounds rectangle, short segment list) — ingestion is
// infallible by contract, and a violation means the producer is broken.
func (b *Buffer) Blit(p Partial) {
	bpp := b.desc.BytesPerPixel()
	dstStride := b.desc.Stride
	rowBytes := p.Width * bpp

	var dstOffset int
	var rowStep int
	if p.Flip {
		dstOffset = dstStride*(p.Y+p.Height-1) + p.X*bpp
		rowStep = -dstStride
	} else {
		dstOffset = dstStride*p.Y + p.X*bpp
		rowStep = dstStride
	}

	bufLen := len(b.pixel)
	remaining := p.Height
	for _, seg := range p.Segments {
		if remaining == 0 {
			break
		}
		if p.Stride <= 0 || len(seg.Data)%p.Stride != 0 {
			panic(fmt.Sprintf("screen: segment length %d is not a multiple of stride %d", len(seg.Data), p.Stride))
		}
		copyRows := len(seg.Data) / p.Stride
		srcOffset := 0
		for copyRows > 0 && remaining > 0 {
			dstEnd := dstOffset + rowBytes
			if dstOffset < 0 || dstEnd > bufLen {
				panic(fmt.Sprintf("screen: blit out of bounds, dst range [%d,%d) buffer size %d", dstOffset, dstEnd, bufLen))
			}
			copy(b.pixel[dstOffset:dstEnd], seg.Data[srcOffset:srcOffset+rowBytes])
			srcOffset += p.Stride
			dstOffset += rowStep
			copyRows--
			remaining--
		}
	}
	if remaining > 0 {
		panic(fmt.Sprintf("screen: segment list supplied %d of %d rows", p.Height-remaining, p.Height))
	}
}

// Rect is an aligned or unaligned pixel rectangle.
type Rect struct {
	X, Y, Width, Height int
}

// AlignForEncode expands r so left/right are multiples of 16 and top/bottom
// are multiples of 2, then clamps to the screen bounds. The color-conversion
// routines and the codec require chroma-subsample-aligned regions; 16-pixel
// horizontal alignment also matches typical macroblock boundaries.
//
// Deliberately, this only affects the region handed to the encoder — the
// blit above already wrote the unaligned pixels; the expanded border picks
// up whatever was previously in the buffer at those bytes.
func (b *Buffer) AlignForEncode(r Rect) Rect {
	const widthAlign = 16
	const heightAlign = 2

	left, top := r.X, r.Y
	right, bottom := r.X+r.Width, r.Y+r.Height

	if left%widthAlign != 0 {
		left -= left % widthAlign
	}
	if right%widthAlign != 0 {
		right += widthAlign - (right % widthAlign)
	}
	if top%heightAlign != 0 {
		top -= top % heightAlign
	}
	if bottom%heightAlign != 0 {
		bottom += heightAlign - (bottom % heightAlign)
	}

	if right > b.desc.Width {
		right = b.desc.Width
	}
	if bottom > b.desc.Height {
		bottom = b.desc.Height
	}

	return Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
}

// SubRect returns a view (stride, offset) into the buffer for the given
// rectangle, for the color-conversion step. It does not copy.
func (b *Buffer) SubRect(r Rect) (data []byte, stride int) {
	bpp := b.desc.BytesPerPixel()
	offset := r.Y*b.desc.Stride + r.X*bpp
	return b.pixel[offset:], b.desc.Stride
}
