package geotiff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/airbusgeo/imagefusion"
)

func floatFrom32(bits uint32) float32 { return math.Float32frombits(bits) }
func floatFrom64(bits uint64) float64 { return math.Float64frombits(bits) }

// TIFF field types used by the encoder.
const (
	typeAscii  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

type field struct {
	tag, typ uint16
	count    uint32
	data     []byte // encoded values; placed inline when <= 4 bytes
}

type encoder struct {
	im     *imagefusion.Image
	ref    imagefusion.GeoRef
	fields []field
}

func newEncoder(im *imagefusion.Image, ref imagefusion.GeoRef) *encoder {
	e := &encoder{im: im, ref: ref}
	k := im.Kind()
	bits := uint16(k.BaseSize() * 8)
	samples := uint16(im.Channels())

	format := uint16(sampleFormatUInt)
	switch {
	case k.IsFloat():
		format = sampleFormatIEEEFP
	case k.IsSigned():
		format = sampleFormatInt
	}
	photometric := uint16(1) // min-is-black
	if samples == 3 {
		photometric = 2 // RGB
	}

	e.addLong(256, uint32(im.Width()))
	e.addLong(257, uint32(im.Height()))
	e.addShorts(258, repeat16(bits, int(samples)))
	e.addShort(259, compressionNone)
	e.addShort(262, photometric)
	e.addLong(273, 0) // strip offset, patched in writeTo
	e.addShort(277, samples)
	e.addLong(278, uint32(im.Height()))
	e.addLong(279, uint32(im.Width()*im.Height()*im.Channels()*k.BaseSize()))
	e.addShort(284, planarContig)
	e.addShorts(339, repeat16(format, int(samples)))

	gt := ref.GeoTransform
	if ref.Valid() && gt[2] == 0 && gt[4] == 0 {
		e.addDoubles(33550, []float64{gt[1], -gt[5], 0})
		e.addDoubles(33922, []float64{0, 0, 0, gt[0], gt[3], 0})
	}
	if ref.NoData != nil {
		e.addAscii(42113, fmt.Sprintf("%g", *ref.NoData))
	}
	sort.Slice(e.fields, func(i, j int) bool { return e.fields[i].tag < e.fields[j].tag })
	return e
}

func repeat16(v uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func (e *encoder) addShort(tag, v uint16) {
	e.addShorts(tag, []uint16{v})
}

func (e *encoder) addShorts(tag uint16, vs []uint16) {
	data := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint16(data[2*i:], v)
	}
	e.fields = append(e.fields, field{tag: tag, typ: typeShort, count: uint32(len(vs)), data: data})
}

func (e *encoder) addLong(tag uint16, v uint32) {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, v)
	e.fields = append(e.fields, field{tag: tag, typ: typeLong, count: 1, data: data})
}

func (e *encoder) addDoubles(tag uint16, vs []float64) {
	data := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(v))
	}
	e.fields = append(e.fields, field{tag: tag, typ: typeDouble, count: uint32(len(vs)), data: data})
}

func (e *encoder) addAscii(tag uint16, s string) {
	data := append([]byte(s), 0)
	e.fields = append(e.fields, field{tag: tag, typ: typeAscii, count: uint32(len(data)), data: data})
}

func (e *encoder) setLong(tag uint16, v uint32) {
	for i := range e.fields {
		if e.fields[i].tag == tag {
			binary.LittleEndian.PutUint32(e.fields[i].data, v)
			return
		}
	}
}

// writeTo lays the file out as header, IFD, overflow area, pixel data.
func (e *encoder) writeTo(w io.Writer) error {
	const ifdStart = 8
	n := len(e.fields)
	ifdSize := 2 + 12*n + 4

	overflowStart := uint32(ifdStart + ifdSize)
	overflowSize := uint32(0)
	for _, f := range e.fields {
		if len(f.data) > 4 {
			overflowSize += uint32(len(f.data) + len(f.data)%2)
		}
	}
	e.setLong(273, overflowStart+overflowSize)

	buf := &bytes.Buffer{}
	buf.WriteString("II")
	binary.Write(buf, binary.LittleEndian, uint16(42))
	binary.Write(buf, binary.LittleEndian, uint32(ifdStart))

	overflow := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, uint16(n))
	for _, f := range e.fields {
		binary.Write(buf, binary.LittleEndian, f.tag)
		binary.Write(buf, binary.LittleEndian, f.typ)
		binary.Write(buf, binary.LittleEndian, f.count)
		var inline [4]byte
		if len(f.data) <= 4 {
			copy(inline[:], f.data)
		} else {
			binary.LittleEndian.PutUint32(inline[:], overflowStart+uint32(overflow.Len()))
			overflow.Write(f.data)
			if len(f.data)%2 == 1 {
				overflow.WriteByte(0)
			}
		}
		buf.Write(inline[:])
	}
	binary.Write(buf, binary.LittleEndian, uint32(0)) // no next IFD
	buf.Write(overflow.Bytes())

	if _, err := w.Write(buf.Bytes()); err != nil {
		return imagefusion.DriverError{Op: "write tiff header", Err: err}
	}
	return e.writePixels(w)
}

func (e *encoder) writePixels(w io.Writer) error {
	im := e.im
	k := im.Kind()
	es := k.BaseSize()
	c := im.Channels()
	rowBuf := make([]byte, im.Width()*c*es)
	enc := sampleEncoder(k)
	for y := 0; y < im.Height(); y++ {
		for x := 0; x < im.Width(); x++ {
			for ch := 0; ch < c; ch++ {
				v, _ := im.DoubleAt(x, y, ch)
				enc(rowBuf[(x*c+ch)*es:], v)
			}
		}
		if _, err := w.Write(rowBuf); err != nil {
			return imagefusion.DriverError{Op: "write tiff data", Err: err}
		}
	}
	return nil
}

func sampleEncoder(k imagefusion.Kind) func([]byte, float64) {
	switch k {
	case imagefusion.KInt8:
		return func(b []byte, v float64) { b[0] = byte(int8(v)) }
	case imagefusion.KUint8:
		return func(b []byte, v float64) { b[0] = byte(uint8(v)) }
	case imagefusion.KInt16:
		return func(b []byte, v float64) { binary.LittleEndian.PutUint16(b, uint16(int16(v))) }
	case imagefusion.KUint16:
		return func(b []byte, v float64) { binary.LittleEndian.PutUint16(b, uint16(v)) }
	case imagefusion.KInt32:
		return func(b []byte, v float64) { binary.LittleEndian.PutUint32(b, uint32(int32(v))) }
	case imagefusion.KFloat32:
		return func(b []byte, v float64) { binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v))) }
	default:
		return func(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) }
	}
}
