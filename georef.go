package imagefusion

// GeoRef carries the geo-reference of a raster: the affine geotransform in
// GDAL order (origin x, pixel width, row rotation, origin y, column
// rotation, pixel height) and the projection as WKT. It is a plain value
// record; it can be captured at read time, supplied at write time or
// attached to a dataset handle later.
type GeoRef struct {
	GeoTransform [6]float64
	Projection   string
	NoData       *float64
}

// Valid reports whether the record carries a usable geotransform.
func (g GeoRef) Valid() bool {
	return g.GeoTransform[1] != 0 || g.GeoTransform[2] != 0
}

// PixelToCoord maps pixel coordinates to projected coordinates.
func (g GeoRef) PixelToCoord(x, y float64) (cx, cy float64) {
	gt := g.GeoTransform
	return gt[0] + gt[1]*x + gt[2]*y, gt[3] + gt[4]*x + gt[5]*y
}

// Extent returns the projected bounding box of a width × height raster.
func (g GeoRef) Extent(width, height int) (minX, minY, maxX, maxY float64) {
	xs := make([]float64, 0, 4)
	ys := make([]float64, 0, 4)
	for _, c := range [][2]float64{{0, 0}, {float64(width), 0}, {0, float64(height)}, {float64(width), float64(height)}} {
		x, y := g.PixelToCoord(c[0], c[1])
		xs = append(xs, x)
		ys = append(ys, y)
	}
	minX, maxX = xs[0], xs[0]
	minY, maxY = ys[0], ys[0]
	for i := 1; i < 4; i++ {
		if xs[i] < minX {
			minX = xs[i]
		}
		if xs[i] > maxX {
			maxX = xs[i]
		}
		if ys[i] < minY {
			minY = ys[i]
		}
		if ys[i] > maxY {
			maxY = ys[i]
		}
	}
	return
}

// Translated returns the record shifted by a pixel offset, e.g. for a crop
// window.
func (g GeoRef) Translated(dx, dy int) GeoRef {
	out := g
	ox, oy := g.PixelToCoord(float64(dx), float64(dy))
	out.GeoTransform[0] = ox
	out.GeoTransform[3] = oy
	return out
}
