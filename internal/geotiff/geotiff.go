// Package geotiff reads and writes plain uncompressed (Geo)TIFF rasters
// in pure Go, without the GDAL driver. It covers the subset the test suite
// needs: single-IFD files, contiguous planar layout, strips or tiles,
// and the pixel-scale/tiepoint geo tags.
package geotiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"

	"github.com/airbusgeo/imagefusion"
)

const (
	compressionNone = 1
	planarContig    = 1

	sampleFormatUInt   = 1
	sampleFormatInt    = 2
	sampleFormatIEEEFP = 3
)

// ifd mirrors the TIFF fields the decoder consumes.
type ifd struct {
	ImageWidth                uint64   `tiff:"field,tag=256"`
	ImageLength               uint64   `tiff:"field,tag=257"`
	BitsPerSample             []uint16 `tiff:"field,tag=258"`
	Compression               uint16   `tiff:"field,tag=259"`
	PhotometricInterpretation uint16   `tiff:"field,tag=262"`
	StripOffsets              []uint64 `tiff:"field,tag=273"`
	SamplesPerPixel           uint16   `tiff:"field,tag=277"`
	RowsPerStrip              uint64   `tiff:"field,tag=278"`
	StripByteCounts           []uint64 `tiff:"field,tag=279"`
	PlanarConfiguration       uint16   `tiff:"field,tag=284"`
	TileWidth                 uint16   `tiff:"field,tag=322"`
	TileLength                uint16   `tiff:"field,tag=323"`
	TileOffsets               []uint64 `tiff:"field,tag=324"`
	TileByteCounts            []uint64 `tiff:"field,tag=325"`
	SampleFormat              []uint16 `tiff:"field,tag=339"`

	ModelPixelScaleTag []float64 `tiff:"field,tag=33550"`
	ModelTiePointTag   []float64 `tiff:"field,tag=33922"`
	NoData             string    `tiff:"field,tag=42113"`
}

func (f *ifd) kind() (imagefusion.Kind, error) {
	bits := uint16(8)
	if len(f.BitsPerSample) > 0 {
		bits = f.BitsPerSample[0]
	}
	format := uint16(sampleFormatUInt)
	if len(f.SampleFormat) > 0 {
		format = f.SampleFormat[0]
	}
	switch {
	case bits == 8 && format == sampleFormatUInt:
		return imagefusion.KUint8, nil
	case bits == 8 && format == sampleFormatInt:
		return imagefusion.KInt8, nil
	case bits == 16 && format == sampleFormatUInt:
		return imagefusion.KUint16, nil
	case bits == 16 && format == sampleFormatInt:
		return imagefusion.KInt16, nil
	case bits == 32 && format == sampleFormatInt:
		return imagefusion.KInt32, nil
	case bits == 32 && format == sampleFormatIEEEFP:
		return imagefusion.KFloat32, nil
	case bits == 64 && format == sampleFormatIEEEFP:
		return imagefusion.KFloat64, nil
	}
	return imagefusion.KindInvalid, imagefusion.TypeError{
		Msg: fmt.Sprintf("unsupported sample layout: %d bits, format %d", bits, format),
	}
}

// DecodeFile reads path as an uncompressed TIFF.
func DecodeFile(path string) (*imagefusion.Image, imagefusion.GeoRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, imagefusion.GeoRef{}, imagefusion.NotFoundError{Msg: err.Error()}
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads an uncompressed contiguous TIFF from r.
func Decode(r tiff.ReadAtReadSeeker) (*imagefusion.Image, imagefusion.GeoRef, error) {
	tif, err := tiff.Parse(r, nil, nil)
	if err != nil {
		return nil, imagefusion.GeoRef{}, imagefusion.FileFormatError{Msg: fmt.Sprintf("parse tiff: %v", err)}
	}
	ifds := tif.IFDs()
	if len(ifds) == 0 {
		return nil, imagefusion.GeoRef{}, imagefusion.FileFormatError{Msg: "tiff has no IFD"}
	}
	fields := &ifd{}
	if err := tiff.UnmarshalIFD(ifds[0], fields); err != nil {
		return nil, imagefusion.GeoRef{}, imagefusion.FileFormatError{Msg: fmt.Sprintf("unmarshal ifd: %v", err)}
	}
	if fields.Compression > compressionNone {
		return nil, imagefusion.GeoRef{}, imagefusion.FileFormatError{Msg: fmt.Sprintf("compression %d not supported", fields.Compression)}
	}
	if fields.PlanarConfiguration > planarContig {
		return nil, imagefusion.GeoRef{}, imagefusion.FileFormatError{Msg: "separate planar layout not supported"}
	}
	kind, err := fields.kind()
	if err != nil {
		return nil, imagefusion.GeoRef{}, err
	}
	channels := int(fields.SamplesPerPixel)
	if channels == 0 {
		channels = 1
	}
	width, height := int(fields.ImageWidth), int(fields.ImageLength)
	im, err := imagefusion.New(width, height, imagefusion.TypeOf(kind, channels))
	if err != nil {
		return nil, imagefusion.GeoRef{}, err
	}

	var order binary.ByteOrder = binary.LittleEndian
	if tif.Order() == "MM" {
		order = binary.BigEndian
	}
	dec := sampleDecoder(kind, order)
	es := kind.BaseSize()

	readBlock := func(off, count uint64, bx, by, bw, bh int) error {
		buf := make([]byte, count)
		if _, err := r.ReadAt(buf, int64(off)); err != nil {
			return imagefusion.DriverError{Op: "read block", Err: err}
		}
		rowBytes := bw * channels * es
		for y := 0; y < bh; y++ {
			iy := by + y
			if iy >= height {
				break
			}
			rb := buf[y*rowBytes:]
			for x := 0; x < bw; x++ {
				ix := bx + x
				if ix >= width {
					break
				}
				for c := 0; c < channels; c++ {
					v := dec(rb[(x*channels+c)*es:])
					im.SetValueAt(ix, iy, c, v)
				}
			}
		}
		return nil
	}

	switch {
	case len(fields.TileOffsets) > 0:
		tw, th := int(fields.TileWidth), int(fields.TileLength)
		if tw == 0 || th == 0 {
			return nil, imagefusion.GeoRef{}, imagefusion.FileFormatError{Msg: "tiled tiff without tile size"}
		}
		ntx := (width + tw - 1) / tw
		for i, off := range fields.TileOffsets {
			bx := (i % ntx) * tw
			by := (i / ntx) * th
			if err := readBlock(off, fields.TileByteCounts[i], bx, by, tw, th); err != nil {
				return nil, imagefusion.GeoRef{}, err
			}
		}
	case len(fields.StripOffsets) > 0:
		rps := int(fields.RowsPerStrip)
		if rps == 0 {
			rps = height
		}
		for i, off := range fields.StripOffsets {
			by := i * rps
			bh := min(rps, height-by)
			if err := readBlock(off, fields.StripByteCounts[i], 0, by, width, bh); err != nil {
				return nil, imagefusion.GeoRef{}, err
			}
		}
	default:
		return nil, imagefusion.GeoRef{}, imagefusion.FileFormatError{Msg: "tiff has neither strips nor tiles"}
	}

	var ref imagefusion.GeoRef
	if len(fields.ModelPixelScaleTag) >= 2 && len(fields.ModelTiePointTag) >= 6 {
		ref.GeoTransform = [6]float64{
			fields.ModelTiePointTag[3], fields.ModelPixelScaleTag[0], 0,
			fields.ModelTiePointTag[4], 0, -fields.ModelPixelScaleTag[1],
		}
	}
	if fields.NoData != "" {
		var nd float64
		if _, err := fmt.Sscanf(fields.NoData, "%g", &nd); err == nil {
			ref.NoData = &nd
		}
	}
	return im, ref, nil
}

func sampleDecoder(k imagefusion.Kind, order binary.ByteOrder) func([]byte) float64 {
	switch k {
	case imagefusion.KInt8:
		return func(b []byte) float64 { return float64(int8(b[0])) }
	case imagefusion.KUint8:
		return func(b []byte) float64 { return float64(b[0]) }
	case imagefusion.KInt16:
		return func(b []byte) float64 { return float64(int16(order.Uint16(b))) }
	case imagefusion.KUint16:
		return func(b []byte) float64 { return float64(order.Uint16(b)) }
	case imagefusion.KInt32:
		return func(b []byte) float64 { return float64(int32(order.Uint32(b))) }
	case imagefusion.KFloat32:
		return func(b []byte) float64 { return float64(floatFrom32(order.Uint32(b))) }
	default:
		return func(b []byte) float64 { return floatFrom64(order.Uint64(b)) }
	}
}

// EncodeFile writes im as an uncompressed little-endian striped TIFF.
func EncodeFile(path string, im *imagefusion.Image, ref imagefusion.GeoRef) error {
	f, err := os.Create(path)
	if err != nil {
		return imagefusion.DriverError{Op: "create " + path, Err: err}
	}
	if err := Encode(f, im, ref); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes im as an uncompressed little-endian striped TIFF with
// geo tags when ref carries an axis-aligned geotransform.
func Encode(w io.Writer, im *imagefusion.Image, ref imagefusion.GeoRef) error {
	if im.Empty() {
		return imagefusion.SizeError{Msg: "cannot encode an empty image"}
	}
	enc := newEncoder(im, ref)
	return enc.writeTo(w)
}
