package imagefusion

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"unsafe"

	"github.com/airbusgeo/godal"
	"github.com/google/uuid"
)

// InterpMethod selects the resampling used by Warp.
type InterpMethod int

const (
	InterpNearest InterpMethod = iota
	InterpBilinear
	InterpCubic
	InterpLanczos
)

func (m InterpMethod) gdalName() string {
	switch m {
	case InterpBilinear:
		return "bilinear"
	case InterpCubic:
		return "cubic"
	case InterpLanczos:
		return "lanczos"
	}
	return "near"
}

type readOptions struct {
	channels         []int
	region           Rect
	flipH, flipV     bool
	ignoreColorTable bool
}

// ReadOption adjusts ReadFile.
type ReadOption func(*readOptions) error

// Channels selects (and possibly duplicates) source bands, 0-based. The
// default reads all bands.
func Channels(channels ...int) ReadOption {
	return func(o *readOptions) error {
		o.channels = channels
		return nil
	}
}

// Region restricts reading to a window of the source, clamped to its
// bounds. A zero width or height means full extent in that direction.
func Region(r Rect) ReadOption {
	return func(o *readOptions) error {
		if r.Width < 0 || r.Height < 0 || r.X < 0 || r.Y < 0 {
			return SizeError{Msg: "ill-formed read region " + r.String()}
		}
		o.region = r
		return nil
	}
}

// FlipHorizontal mirrors the image left-right while reading.
func FlipHorizontal() ReadOption {
	return func(o *readOptions) error { o.flipH = true; return nil }
}

// FlipVertical mirrors the image top-bottom while reading.
func FlipVertical() ReadOption {
	return func(o *readOptions) error { o.flipV = true; return nil }
}

// IgnoreColorTable reads palette indices as plain values instead of
// expanding them through the colour table.
func IgnoreColorTable() ReadOption {
	return func(o *readOptions) error { o.ignoreColorTable = true; return nil }
}

// ReadFile reads a raster through the external driver library. The driver
// is detected from the file content; the returned GeoRef carries the
// source's geotransform and projection when present.
func ReadFile(path string, opts ...ReadOption) (*Image, GeoRef, error) {
	var o readOptions
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, GeoRef{}, err
		}
	}
	ds, err := godal.Open(path)
	if err != nil {
		return nil, GeoRef{}, NotFoundError{Msg: fmt.Sprintf("open %s: %v", path, err)}
	}
	defer ds.Close()

	str := ds.Structure()
	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, GeoRef{}, DriverError{Op: "read", Err: fmt.Errorf("%s has no raster bands", path)}
	}

	channels := o.channels
	if len(channels) == 0 {
		channels = make([]int, len(bands))
		for i := range channels {
			channels[i] = i
		}
	}
	for _, c := range channels {
		if c < 0 || c >= len(bands) {
			return nil, GeoRef{}, TypeError{Msg: fmt.Sprintf("%s: band %d does not exist", path, c)}
		}
	}

	region := o.region
	if region.Width == 0 {
		region.Width = str.SizeX - region.X
	}
	if region.Height == 0 {
		region.Height = str.SizeY - region.Y
	}
	region = region.Intersect(Rect{Width: str.SizeX, Height: str.SizeY})
	if region.Empty() {
		return nil, GeoRef{}, SizeError{Msg: fmt.Sprintf("read region outside %s", path)}
	}

	kind := KindOfGDAL(str.DataType)
	if kind == KindInvalid {
		return nil, GeoRef{}, TypeError{Msg: fmt.Sprintf("%s: unsupported driver depth %d", path, str.DataType)}
	}

	// palette expansion turns one index band into RGB
	var palette [][4]int16
	if !o.ignoreColorTable && len(channels) == 1 {
		ct := bands[channels[0]].ColorTable()
		if len(ct.Entries) > 0 {
			palette = ct.Entries
		}
	}

	outType := TypeOf(kind, len(channels))
	if palette != nil {
		outType = TypeOf(KUint8, 3)
	}
	if outType == TypeInvalid {
		return nil, GeoRef{}, TypeError{Msg: fmt.Sprintf("%s: %d channels unsupported", path, len(channels))}
	}
	im, err := New(region.Width, region.Height, outType)
	if err != nil {
		return nil, GeoRef{}, err
	}

	if palette != nil {
		idx := make([]uint8, region.Width*region.Height)
		if err := bands[channels[0]].Read(region.X, region.Y, idx, region.Width, region.Height); err != nil {
			return nil, GeoRef{}, DriverError{Op: "read", Err: err}
		}
		for y := 0; y < region.Height; y++ {
			r := row[uint8](im, y)
			for x := 0; x < region.Width; x++ {
				e := [4]int16{0, 0, 0, 255}
				if int(idx[y*region.Width+x]) < len(palette) {
					e = palette[idx[y*region.Width+x]]
				}
				r[x*3], r[x*3+1], r[x*3+2] = uint8(e[0]), uint8(e[1]), uint8(e[2])
			}
		}
	} else {
		for i, c := range channels {
			if err := readBandInto(im, bands[c], i, region); err != nil {
				return nil, GeoRef{}, err
			}
		}
	}

	if o.flipH {
		flipHorizontal(im)
	}
	if o.flipV {
		flipVertical(im)
	}

	ref := GeoRef{Projection: ds.Projection()}
	if gt, err := ds.GeoTransform(); err == nil {
		ref.GeoTransform = gt
		if region.X != 0 || region.Y != 0 {
			ref = ref.Translated(region.X, region.Y)
		}
	}
	return im, ref, nil
}

type bandReadArgs struct {
	im     *Image
	band   godal.Band
	ch     int
	region Rect
}

func readBand[T Element](a bandReadArgs) (struct{}, error) {
	tmp := make([]T, a.region.Width*a.region.Height)
	if err := a.band.Read(a.region.X, a.region.Y, tmp, a.region.Width, a.region.Height); err != nil {
		return struct{}{}, DriverError{Op: "read", Err: err}
	}
	c := a.im.Channels()
	for y := 0; y < a.region.Height; y++ {
		r := row[T](a.im, y)
		for x := 0; x < a.region.Width; x++ {
			r[x*c+a.ch] = tmp[y*a.region.Width+x]
		}
	}
	return struct{}{}, nil
}

func readBandInto(im *Image, band godal.Band, ch int, region Rect) error {
	// int8 excluded: GDAL delivers 8-bit data as Byte
	_, err := Dispatch(im.typ, Cases[bandReadArgs, struct{}]{
		Uint8:   readBand[uint8],
		Int16:   readBand[int16],
		Uint16:  readBand[uint16],
		Int32:   readBand[int32],
		Float32: readBand[float32],
		Float64: readBand[float64],
	}, bandReadArgs{im: im, band: band, ch: ch, region: region})
	return err
}

func flipHorizontal(im *Image) {
	ps := im.PixelSize()
	tmp := make([]byte, ps)
	for y := 0; y < im.height; y++ {
		r := rawRow(im, y)
		for x0, x1 := 0, im.width-1; x0 < x1; x0, x1 = x0+1, x1-1 {
			a, b := r[x0*ps:(x0+1)*ps], r[x1*ps:(x1+1)*ps]
			copy(tmp, a)
			copy(a, b)
			copy(b, tmp)
		}
	}
}

func flipVertical(im *Image) {
	tmp := make([]byte, im.width*im.PixelSize())
	for y0, y1 := 0, im.height-1; y0 < y1; y0, y1 = y0+1, y1-1 {
		a, b := rawRow(im, y0), rawRow(im, y1)
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

var gdalTypeName = map[Kind]string{
	KInt8:    "Byte",
	KUint8:   "Byte",
	KInt16:   "Int16",
	KUint16:  "UInt16",
	KInt32:   "Int32",
	KFloat32: "Float32",
	KFloat64: "Float64",
}

// AsDataset exposes the pixel buffer as a dataset of the external raster
// library without copying, so geo-metadata can be attached in place. The
// caller must Close the dataset before the image is garbage collected and
// must not let it outlive the image; keep is returned to make the
// dependency explicit and must be called after Close.
func (im *Image) AsDataset(ref GeoRef) (ds *godal.Dataset, keep func(), err error) {
	if im.Empty() {
		return nil, nil, SizeError{Msg: "cannot expose an empty image as dataset"}
	}
	base := im.Kind().BaseSize()
	conn := fmt.Sprintf(
		"MEM:::DATAPOINTER=%d,PIXELS=%d,LINES=%d,BANDS=%d,DATATYPE=%s,PIXELOFFSET=%d,LINEOFFSET=%d,BANDOFFSET=%d",
		pointerTo(im), im.width, im.height, im.Channels(),
		gdalTypeName[im.Kind()], im.PixelSize(), im.stride, base,
	)
	ds, err = godal.Open(conn)
	if err != nil {
		return nil, nil, DriverError{Op: "as-dataset", Err: err}
	}
	if ref.Valid() {
		if err := ds.SetGeoTransform(ref.GeoTransform); err != nil {
			ds.Close()
			return nil, nil, DriverError{Op: "as-dataset", Err: err}
		}
	}
	if ref.Projection != "" {
		if err := ds.SetProjection(ref.Projection); err != nil {
			ds.Close()
			return nil, nil, DriverError{Op: "as-dataset", Err: err}
		}
	}
	if ref.NoData != nil {
		if err := ds.SetNoData(*ref.NoData); err != nil {
			ds.Close()
			return nil, nil, DriverError{Op: "as-dataset", Err: err}
		}
	}
	return ds, func() { runtime.KeepAlive(im.buf.data) }, nil
}

func pointerTo(im *Image) uintptr {
	return uintptr(unsafe.Pointer(&im.buf.data[im.off]))
}

var driverByExt = map[string]godal.DriverName{
	".tif":  godal.GTiff,
	".tiff": godal.GTiff,
	".vrt":  godal.VRT,
	".png":  godal.DriverName("PNG"),
	".jpg":  godal.DriverName("JPEG"),
	".jpeg": godal.DriverName("JPEG"),
	".bmp":  godal.DriverName("BMP"),
	".img":  godal.DriverName("HFA"),
}

type writeOptions struct {
	driver          godal.DriverName
	creationOptions []string
}

// WriteOption adjusts Write.
type WriteOption func(*writeOptions)

// Driver forces a specific output driver instead of detecting one from the
// file extension.
func Driver(name string) WriteOption {
	return func(o *writeOptions) { o.driver = godal.DriverName(name) }
}

// CreationOptions passes driver-specific key=value options through
// untouched.
func CreationOptions(opts ...string) WriteOption {
	return func(o *writeOptions) { o.creationOptions = append(o.creationOptions, opts...) }
}

// Write emits the current view to a file through the external driver
// library. The driver is chosen by file extension unless forced with
// Driver.
func (im *Image) Write(path string, ref GeoRef, opts ...WriteOption) error {
	if im.Empty() {
		return SizeError{Msg: "cannot write an empty image"}
	}
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.driver == "" {
		ext := strings.ToLower(filepath.Ext(path))
		drv, ok := driverByExt[ext]
		if !ok {
			return FileFormatError{Msg: fmt.Sprintf("no driver for extension %q", ext)}
		}
		o.driver = drv
	}

	src, keep, err := im.AsDataset(ref)
	if err != nil {
		return err
	}
	defer keep()

	switches := []string{"-of", string(o.driver)}
	for _, co := range o.creationOptions {
		switches = append(switches, "-co", co)
	}
	out, err := src.Translate(path, switches)
	src.Close()
	if err != nil {
		return DriverError{Op: "write " + path, Err: err}
	}
	if err := out.Close(); err != nil {
		return DriverError{Op: "close " + path, Err: err}
	}
	return nil
}

// Warp reprojects the view from src to dst georeferencing with the given
// interpolation method. When size is omitted the output size is derived
// from dst's geotransform and the source extent.
func (im *Image) Warp(src, dst GeoRef, method InterpMethod, size ...int) (*Image, error) {
	if im.Empty() {
		return nil, SizeError{Msg: "cannot warp an empty image"}
	}
	if !src.Valid() || !dst.Valid() {
		return nil, ArgumentError{Msg: "warp needs valid geotransforms on both sides"}
	}
	srcDS, keep, err := im.AsDataset(src)
	if err != nil {
		return nil, err
	}
	defer keep()
	defer srcDS.Close()

	switches := []string{"-r", method.gdalName(), "-of", "MEM"}
	if dst.Projection != "" {
		switches = append(switches, "-t_srs", dst.Projection)
	}
	if len(size) == 2 {
		switches = append(switches, "-ts", fmt.Sprint(size[0]), fmt.Sprint(size[1]))
	} else {
		// derive the output grid from dst's geotransform over the source extent
		minX, minY, maxX, maxY := src.Extent(im.width, im.height)
		switches = append(switches,
			"-te", fmt.Sprint(minX), fmt.Sprint(minY), fmt.Sprint(maxX), fmt.Sprint(maxY),
			"-tr", fmt.Sprint(dst.GeoTransform[1]), fmt.Sprint(-dst.GeoTransform[5]),
		)
	}

	name := "/vsimem/" + uuid.NewString()
	warped, err := godal.Warp(name, []*godal.Dataset{srcDS}, switches)
	if err != nil {
		return nil, DriverError{Op: "warp", Err: err}
	}
	defer warped.Close()

	str := warped.Structure()
	out, err := New(str.SizeX, str.SizeY, TypeOf(im.Kind(), str.NBands))
	if err != nil {
		return nil, err
	}
	for i, b := range warped.Bands() {
		if err := readBandInto(out, b, i, Rect{Width: str.SizeX, Height: str.SizeY}); err != nil {
			return nil, err
		}
	}
	return out, nil
}
