package imagefusion

import (
	"math"
	"unsafe"
)

// buffer is a pixel allocation. Views (Image descriptors) point into it;
// two views are shared iff they reference the same buffer. The garbage
// collector plays the role of the reference count: a buffer lives for as
// long as any descriptor references it.
type buffer struct {
	data          []byte
	typ           Type
	width, height int // allocation size in pixels
	stride        int // bytes per allocation row
}

func newBuffer(width, height int, t Type) *buffer {
	pix := t.Channels() * t.Kind().BaseSize()
	stride := width * pix
	return &buffer{
		data:   make([]byte, stride*height),
		typ:    t,
		width:  width,
		height: height,
		stride: stride,
	}
}

// row returns the elements of one view row as a typed slice,
// width*channels long. T must match the image's base kind.
func row[T Element](im *Image, y int) []T {
	off := im.off + y*im.stride
	n := im.width * im.typ.Channels()
	return unsafe.Slice((*T)(unsafe.Pointer(&im.buf.data[off])), n)
}

// rawRow returns the bytes of one view row, excluding inter-row padding.
func rawRow(im *Image, y int) []byte {
	off := im.off + y*im.stride
	n := im.width * im.typ.Channels() * im.typ.Kind().BaseSize()
	return im.buf.data[off : off+n : off+n]
}

// saturate converts v to the element type T. Integer targets are rounded
// half to even and clamped to their numeric range; NaN maps to 0.
// Floating-point targets convert without clamping.
func saturate[T Element](v float64) T {
	k := KindOf[T]()
	if k.IsFloat() {
		return T(v)
	}
	if math.IsNaN(v) {
		return T(0)
	}
	v = math.RoundToEven(v)
	if v < k.RangeMin() {
		v = k.RangeMin()
	} else if v > k.RangeMax() {
		v = k.RangeMax()
	}
	return T(v)
}

// saturateKind is the dynamically-typed counterpart of saturate, used by
// SetValueAt and the colour mappings.
func saturateKind(v float64, k Kind) float64 {
	if k.IsFloat() {
		return v
	}
	if math.IsNaN(v) {
		return 0
	}
	v = math.RoundToEven(v)
	if v < k.RangeMin() {
		return k.RangeMin()
	}
	if v > k.RangeMax() {
		return k.RangeMax()
	}
	return v
}
