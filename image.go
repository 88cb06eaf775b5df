package imagefusion

import "fmt"

// An Image is a descriptor over a shared pixel allocation: the element tag,
// the current view rectangle and the byte offset of the view's top-left
// pixel. Copying the struct copies the descriptor only; use Clone for a deep
// copy and SharedCopy for an explicitly aliasing view.
//
// The zero Image is the only permitted zero-sized image.
type Image struct {
	buf           *buffer
	typ           Type
	width, height int
	off           int // byte offset of the view top-left inside buf.data
	stride        int // bytes per allocation row
}

// New allocates an image of the given size and full type. The pixel content
// is unspecified. Fails with a SizeError on non-positive dimensions and a
// TypeError on an invalid tag.
func New(width, height int, t Type) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, SizeError{Msg: "image size must be positive", Width: width, Height: height}
	}
	if t.Kind() == KindInvalid {
		return nil, TypeError{Msg: "cannot create image", Tag: t}
	}
	b := newBuffer(width, height, t)
	return &Image{buf: b, typ: t, width: width, height: height, stride: b.stride}, nil
}

func (im *Image) Empty() bool  { return im == nil || im.buf == nil }
func (im *Image) Width() int   { return im.width }
func (im *Image) Height() int  { return im.height }
func (im *Image) Type() Type   { return im.typ }
func (im *Image) Kind() Kind   { return im.typ.Kind() }
func (im *Image) Channels() int {
	if im.Empty() {
		return 0
	}
	return im.typ.Channels()
}

// PixelSize is the size of one full pixel in bytes.
func (im *Image) PixelSize() int {
	return im.typ.Channels() * im.typ.Kind().BaseSize()
}

// Stride is the distance between the starts of two consecutive view rows,
// in bytes.
func (im *Image) Stride() int { return im.stride }

// Raw exposes the view's pixels as raw bytes starting at the view's
// top-left pixel, together with the row stride in bytes: row y begins at
// offset y*stride. The slice aliases the allocation; external pixel
// kernels and matrix libraries read and write through it in place.
func (im *Image) Raw() (data []byte, stride int) {
	if im.Empty() {
		return nil, 0
	}
	return im.buf.data[im.off:], im.stride
}

// Shared reports whether the two descriptors point into the same
// allocation.
func (im *Image) Shared(o *Image) bool {
	return im != nil && o != nil && im.buf != nil && im.buf == o.buf
}

// SharedCopy returns a new descriptor aliasing the same allocation with the
// same view. This is the only way to obtain an aliasing view; plain Clone
// always copies.
func (im *Image) SharedCopy() *Image {
	cp := *im
	return &cp
}

// Take moves the pixel buffer out of o into im, leaving o as the default
// (zero-sized) image.
func (im *Image) Take(o *Image) {
	*im = *o
	*o = Image{}
}

// Clone deep-copies the current view into an independent allocation of
// exactly the view's size.
func (im *Image) Clone() *Image {
	if im.Empty() {
		return &Image{}
	}
	out, _ := New(im.width, im.height, im.typ)
	for y := 0; y < im.height; y++ {
		copy(rawRow(out, y), rawRow(im, y))
	}
	return out
}

// CloneSubPixel copies a sub-pixel-accurate rectangle of the current view
// using four-tap bilinear interpolation:
//
//	J(x,y) = I(x0,y0)(1−Δx)(1−Δy) + I(x0+1,y0)Δx(1−Δy)
//	       + I(x0,y0+1)(1−Δx)Δy   + I(x0+1,y0+1)ΔxΔy
//
// The source rectangle starts at the fractional location (x, y) of the view
// and spans width × height output pixels.
func (im *Image) CloneSubPixel(x, y float64, width, height int) (*Image, error) {
	if im.Empty() {
		return nil, SizeError{Msg: "cannot clone sub-pixel window of an empty image"}
	}
	if width <= 0 || height <= 0 {
		return nil, SizeError{Msg: "sub-pixel window size must be positive", Width: width, Height: height}
	}
	if x < 0 || y < 0 || x+float64(width) > float64(im.width)+1e-9 || y+float64(height) > float64(im.height)+1e-9 {
		return nil, SizeError{Msg: fmt.Sprintf("sub-pixel window (%g,%g %dx%d) outside image", x, y, width, height)}
	}
	out, err := New(width, height, im.typ)
	if err != nil {
		return nil, err
	}
	c := im.Channels()
	for oy := 0; oy < height; oy++ {
		sy := y + float64(oy)
		y0 := int(sy)
		if y0 > im.height-1 {
			y0 = im.height - 1
		}
		y1 := min(y0+1, im.height-1)
		dy := sy - float64(y0)
		for ox := 0; ox < width; ox++ {
			sx := x + float64(ox)
			x0 := int(sx)
			if x0 > im.width-1 {
				x0 = im.width - 1
			}
			x1 := min(x0+1, im.width-1)
			dx := sx - float64(x0)
			for ch := 0; ch < c; ch++ {
				v := im.mustDoubleAt(x0, y0, ch)*(1-dx)*(1-dy) +
					im.mustDoubleAt(x1, y0, ch)*dx*(1-dy) +
					im.mustDoubleAt(x0, y1, ch)*(1-dx)*dy +
					im.mustDoubleAt(x1, y1, ch)*dx*dy
				out.mustSetValueAt(ox, oy, ch, v)
			}
		}
	}
	return out, nil
}

// PixAt returns a pointer to one element of the current view. T must match
// the image's base kind; a mismatch or an out-of-bounds location panics,
// like an out-of-range slice index.
func PixAt[T Element](im *Image, x, y, c int) *T {
	if KindOf[T]() != im.typ.Kind() {
		panic(LogicError{Msg: fmt.Sprintf("PixAt element type %s on %s image", KindOf[T](), im.typ)})
	}
	if x < 0 || y < 0 || x >= im.width || y >= im.height || c < 0 || c >= im.Channels() {
		panic(LogicError{Msg: fmt.Sprintf("PixAt (%d,%d,%d) outside %dx%dx%d", x, y, c, im.width, im.height, im.Channels())})
	}
	return &row[T](im, y)[x*im.Channels()+c]
}

// DoubleAt loads one element through float64, at the cost of one type
// switch per call.
func (im *Image) DoubleAt(x, y, c int) (float64, error) {
	if im.Empty() || x < 0 || y < 0 || x >= im.width || y >= im.height || c < 0 || c >= im.Channels() {
		return 0, SizeError{Msg: fmt.Sprintf("access (%d,%d,%d) outside image", x, y, c), Width: im.width, Height: im.height}
	}
	return im.mustDoubleAt(x, y, c), nil
}

func (im *Image) mustDoubleAt(x, y, c int) float64 {
	i := x*im.Channels() + c
	switch im.typ.Kind() {
	case KInt8:
		return float64(row[int8](im, y)[i])
	case KUint8:
		return float64(row[uint8](im, y)[i])
	case KInt16:
		return float64(row[int16](im, y)[i])
	case KUint16:
		return float64(row[uint16](im, y)[i])
	case KInt32:
		return float64(row[int32](im, y)[i])
	case KFloat32:
		return float64(row[float32](im, y)[i])
	case KFloat64:
		return row[float64](im, y)[i]
	}
	panic(LogicError{Msg: "exhausted type switch"})
}

// SetValueAt stores one element through float64 with saturation, at the
// cost of one type switch per call.
func (im *Image) SetValueAt(x, y, c int, v float64) error {
	if im.Empty() || x < 0 || y < 0 || x >= im.width || y >= im.height || c < 0 || c >= im.Channels() {
		return SizeError{Msg: fmt.Sprintf("access (%d,%d,%d) outside image", x, y, c), Width: im.width, Height: im.height}
	}
	im.mustSetValueAt(x, y, c, v)
	return nil
}

func (im *Image) mustSetValueAt(x, y, c int, v float64) {
	i := x*im.Channels() + c
	switch im.typ.Kind() {
	case KInt8:
		row[int8](im, y)[i] = saturate[int8](v)
	case KUint8:
		row[uint8](im, y)[i] = saturate[uint8](v)
	case KInt16:
		row[int16](im, y)[i] = saturate[int16](v)
	case KUint16:
		row[uint16](im, y)[i] = saturate[uint16](v)
	case KInt32:
		row[int32](im, y)[i] = saturate[int32](v)
	case KFloat32:
		row[float32](im, y)[i] = float32(v)
	case KFloat64:
		row[float64](im, y)[i] = v
	default:
		panic(LogicError{Msg: "exhausted type switch"})
	}
}

// Set fills every element of the current view with the per-channel values
// given; missing trailing values repeat the last one.
func (im *Image) Set(vals ...float64) {
	if im.Empty() || len(vals) == 0 {
		return
	}
	c := im.Channels()
	for y := 0; y < im.height; y++ {
		for x := 0; x < im.width; x++ {
			for ch := 0; ch < c; ch++ {
				v := vals[min(ch, len(vals)-1)]
				im.mustSetValueAt(x, y, ch, v)
			}
		}
	}
}

// Split decomposes a multi-channel image into per-channel copies.
func (im *Image) Split() []*Image {
	if im.Empty() {
		return nil
	}
	c := im.Channels()
	out := make([]*Image, c)
	single := TypeOf(im.typ.Kind(), 1)
	for ch := 0; ch < c; ch++ {
		s, _ := New(im.width, im.height, single)
		for y := 0; y < im.height; y++ {
			for x := 0; x < im.width; x++ {
				s.mustSetValueAt(x, y, 0, im.mustDoubleAt(x, y, ch))
			}
		}
		out[ch] = s
	}
	return out
}

// Merge recomposes single-channel images of equal size and kind into one
// multi-channel image (copying).
func Merge(channels []*Image) (*Image, error) {
	if len(channels) == 0 {
		return nil, ArgumentError{Msg: "merge: no channels"}
	}
	if len(channels) > MaxChannels {
		return nil, TypeError{Msg: fmt.Sprintf("merge: %d channels exceed the maximum", len(channels))}
	}
	first := channels[0]
	for i, c := range channels {
		if c.Empty() {
			return nil, SizeError{Msg: "merge: empty channel image"}
		}
		if c.Channels() != 1 {
			return nil, TypeError{Msg: "merge: channel images must be single-channel", Tag: c.typ}
		}
		if c.width != first.width || c.height != first.height {
			return nil, SizeError{Msg: fmt.Sprintf("merge: channel %d size mismatch", i), Width: c.width, Height: c.height}
		}
		if c.Kind() != first.Kind() {
			return nil, TypeError{Msg: "merge: channel kind mismatch", Tag: c.typ}
		}
	}
	out, err := New(first.width, first.height, TypeOf(first.Kind(), len(channels)))
	if err != nil {
		return nil, err
	}
	for ch, c := range channels {
		for y := 0; y < out.height; y++ {
			for x := 0; x < out.width; x++ {
				out.mustSetValueAt(x, y, ch, c.mustDoubleAt(x, y, 0))
			}
		}
	}
	return out, nil
}

// IsMaskFor reports whether im can mask other: equal view size, uint8 base
// kind and either one channel or other's channel count.
func (im *Image) IsMaskFor(other *Image) bool {
	if im.Empty() || other.Empty() {
		return false
	}
	return im.typ.Kind() == KUint8 &&
		im.width == other.width && im.height == other.height &&
		(im.Channels() == 1 || im.Channels() == other.Channels())
}

// maskSet reports whether the mask admits location (x,y) for channel c.
// A nil mask admits everything; a single-channel mask gates all channels.
func maskSet(mask *Image, x, y, c int) bool {
	if mask == nil || mask.Empty() {
		return true
	}
	mc := c
	if mask.Channels() == 1 {
		mc = 0
	}
	return row[uint8](mask, y)[x*mask.Channels()+mc] != 0
}
