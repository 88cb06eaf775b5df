package imagefusion

// origin returns the view's top-left corner in allocation coordinates.
func (im *Image) origin() Point {
	if im.Empty() {
		return Point{}
	}
	pix := im.PixelSize()
	return Point{X: (im.off % im.stride) / pix, Y: im.off / im.stride}
}

// CropWindow reports the current view rectangle in the coordinates of the
// original (uncropped) image.
func (im *Image) CropWindow() Rect {
	o := im.origin()
	return Rect{X: o.X, Y: o.Y, Width: im.width, Height: im.height}
}

// Crop narrows the view to r, given relative to the current view. Nested
// crops compose by addition of their origins. The requested rectangle is
// intersected with the current view; an empty intersection is a SizeError.
func (im *Image) Crop(r Rect) error {
	if im.Empty() {
		return SizeError{Msg: "cannot crop an empty image"}
	}
	cur := Rect{X: 0, Y: 0, Width: im.width, Height: im.height}
	sect := r.Intersect(cur)
	if sect.Empty() {
		return SizeError{Msg: "crop " + r.String() + " does not intersect view " + cur.String()}
	}
	im.setWindowAbs(Rect{
		X:      im.origin().X + sect.X,
		Y:      im.origin().Y + sect.Y,
		Width:  sect.Width,
		Height: sect.Height,
	})
	return nil
}

// Uncrop restores the original size and offset, regardless of how many
// crops were applied.
func (im *Image) Uncrop() {
	if im.Empty() {
		return
	}
	im.setWindowAbs(Rect{X: 0, Y: 0, Width: im.buf.width, Height: im.buf.height})
}

// AdjustCropBorders grows (positive) or shrinks (negative) each border of
// the view, clamped to the original bounds and to a non-empty window.
func (im *Image) AdjustCropBorders(top, bottom, left, right int) {
	if im.Empty() {
		return
	}
	w := im.CropWindow()
	x0 := w.X - left
	y0 := w.Y - top
	x1 := w.X + w.Width + right
	y1 := w.Y + w.Height + bottom
	x0 = max(0, min(x0, im.buf.width-1))
	y0 = max(0, min(y0, im.buf.height-1))
	x1 = max(x0+1, min(x1, im.buf.width))
	y1 = max(y0+1, min(y1, im.buf.height))
	im.setWindowAbs(Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0})
}

// MoveCropWindow shifts the view without resizing it, clamped so it stays
// inside the original bounds.
func (im *Image) MoveCropWindow(dx, dy int) {
	if im.Empty() {
		return
	}
	w := im.CropWindow()
	x := max(0, min(w.X+dx, im.buf.width-w.Width))
	y := max(0, min(w.Y+dy, im.buf.height-w.Height))
	im.setWindowAbs(Rect{X: x, Y: y, Width: w.Width, Height: w.Height})
}

// setWindowAbs installs a view rectangle given in allocation coordinates.
// The caller guarantees it lies inside the allocation.
func (im *Image) setWindowAbs(r Rect) {
	im.off = r.Y*im.stride + r.X*im.PixelSize()
	im.width = r.Width
	im.height = r.Height
}

// A ConstImage is a read-only view: the same descriptor as an Image but
// exposing no mutating operation. A view taken from a ConstImage is again
// read-only; a Clone is an independent writable image.
type ConstImage struct {
	im Image
}

// Const wraps the image in a read-only view sharing the same allocation.
func (im *Image) Const() *ConstImage {
	if im == nil {
		return nil
	}
	return &ConstImage{im: *im}
}

func (c *ConstImage) Empty() bool {
	return c == nil || c.im.Empty()
}
func (c *ConstImage) Width() int    { return c.im.width }
func (c *ConstImage) Height() int   { return c.im.height }
func (c *ConstImage) Type() Type    { return c.im.typ }
func (c *ConstImage) Channels() int { return c.im.Channels() }

// SharedCopy of a read-only view stays read-only.
func (c *ConstImage) SharedCopy() *ConstImage {
	cp := c.im
	return &ConstImage{im: cp}
}

func (c *ConstImage) Clone() *Image { return c.im.Clone() }

func (c *ConstImage) DoubleAt(x, y, ch int) (float64, error) { return c.im.DoubleAt(x, y, ch) }

func (c *ConstImage) CropWindow() Rect { return c.im.CropWindow() }

// Crop narrows the read-only view; same contract as Image.Crop.
func (c *ConstImage) Crop(r Rect) error { return c.im.Crop(r) }

func (c *ConstImage) Uncrop() { c.im.Uncrop() }

// Shared reports whether the read-only view aliases the image's allocation.
func (c *ConstImage) Shared(o *Image) bool { return c.im.Shared(o) }

// constSrc returns the underlying descriptor for read-only kernel access.
func (c *ConstImage) constSrc() *Image {
	if c == nil {
		return nil
	}
	return &c.im
}
