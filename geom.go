package imagefusion

import "fmt"

// A Point is a pixel location. Channel-less; the channel index travels
// separately where needed.
type Point struct {
	X, Y int
}

// A Rect is a rectangle given by its top-left corner and its size, in the
// pixel frame of whatever image it refers to.
type Rect struct {
	X, Y          int
	Width, Height int
}

func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Intersect clips r against o. The result is empty if they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x0 := max(r.X, o.X)
	y0 := max(r.Y, o.Y)
	x1 := min(r.X+r.Width, o.X+o.Width)
	y1 := min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Expand grows the rectangle by margin pixels on every border.
func (r Rect) Expand(margin int) Rect {
	return Rect{X: r.X - margin, Y: r.Y - margin, Width: r.Width + 2*margin, Height: r.Height + 2*margin}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}
