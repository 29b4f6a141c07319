// Package colorconvert wraps the packed-RGB to planar-I420 conversion the
// worker needs for each pending slice. It is the "external collaborator"
// named in the spec — bound here to a small embedded cgo routine, the same
// technique the reference pack uses for its own packed-to-planar converter.
package colorconvert

// #include "argb_to_i420.h"
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/tenclass/sweet-encoder/internal/picture"
)

// ToI420 converts a packed-pixel rectangle of the given bpp (24 or 32) into
// dst, an already-allocated I420 tile of the matching dimensions. src must
// contain at least height rows of srcStride bytes.
func ToI420(bpp int, src []byte, srcStride int, dst *picture.YUV420) error {
	if len(src) == 0 || dst.Width == 0 || dst.Height == 0 {
		return nil
	}
	srcPtr := (*C.uint8_t)(unsafe.Pointer(&src[0]))
	yPtr := (*C.uint8_t)(unsafe.Pointer(&dst.Y[0]))
	uPtr := (*C.uint8_t)(unsafe.Pointer(&dst.U[0]))
	vPtr := (*C.uint8_t)(unsafe.Pointer(&dst.V[0]))

	switch bpp {
	case 32:
		C.sweet_argb_to_i420(
			srcPtr, C.int(srcStride),
			yPtr, C.int(dst.StrideY),
			uPtr, C.int(dst.StrideU),
			vPtr, C.int(dst.StrideV),
			C.int(dst.Width), C.int(dst.Height),
		)
	case 24:
		C.sweet_rgb24_to_i420(
			srcPtr, C.int(srcStride),
			yPtr, C.int(dst.StrideY),
			uPtr, C.int(dst.StrideU),
			vPtr, C.int(dst.StrideV),
			C.int(dst.Width), C.int(dst.Height),
		)
	default:
		panic(fmt.Sprintf("colorconvert: unsupported bpp %d", bpp))
	}
	return nil
}
