package imagefusion

import (
	"math"

	"github.com/airbusgeo/godal"
)

// Kind enumerates the seven supported base element kinds.
type Kind int8

const (
	// the zero Kind is the invalid sentinel, so zero-valued tags never
	// masquerade as real element kinds
	KindInvalid Kind = iota
	KInt8
	KUint8
	KInt16
	KUint16
	KInt32
	KFloat32
	KFloat64

	kindStride = 8
)

// MaxChannels is the largest channel count a full image type can carry.
const MaxChannels = 25

// Type is a full image type: a base kind combined with a channel count in
// 1..MaxChannels. It is a single small integer; equality and hashing are
// identity. The zero Type is TypeInvalid.
type Type int16

const TypeInvalid Type = 0

// TypeOf packs a base kind and a channel count into a full type.
// It returns TypeInvalid if either is out of range.
func TypeOf(k Kind, channels int) Type {
	if k < KInt8 || k > KFloat64 || channels < 1 || channels > MaxChannels {
		return TypeInvalid
	}
	return Type(int(k) + kindStride*(channels-1))
}

// Kind recovers the base element kind.
func (t Type) Kind() Kind {
	if t <= 0 || int(t) >= kindStride*MaxChannels {
		return KindInvalid
	}
	return Kind(int(t) % kindStride)
}

// Channels recovers the channel count.
func (t Type) Channels() int {
	if t.Kind() == KindInvalid {
		return 0
	}
	return int(t)/kindStride + 1
}

// WithChannels returns the same base kind with a different channel count.
func (t Type) WithChannels(channels int) Type {
	return TypeOf(t.Kind(), channels)
}

func (k Kind) IsInteger() bool { return k >= KInt8 && k <= KInt32 }
func (k Kind) IsFloat() bool   { return k == KFloat32 || k == KFloat64 }

func (k Kind) IsSigned() bool {
	switch k {
	case KInt8, KInt16, KInt32, KFloat32, KFloat64:
		return true
	}
	return false
}

// BaseSize is the size of one element in bytes.
func (k Kind) BaseSize() int {
	switch k {
	case KInt8, KUint8:
		return 1
	case KInt16, KUint16:
		return 2
	case KInt32, KFloat32:
		return 4
	case KFloat64:
		return 8
	}
	return 0
}

// RangeMin is the lower bound of the conventional image range: the numeric
// minimum for integer kinds and 0 for floating-point kinds.
func (k Kind) RangeMin() float64 {
	switch k {
	case KInt8:
		return math.MinInt8
	case KInt16:
		return math.MinInt16
	case KInt32:
		return math.MinInt32
	}
	return 0
}

// RangeMax is the upper bound of the conventional image range: the numeric
// maximum for integer kinds and 1 for floating-point kinds.
func (k Kind) RangeMax() float64 {
	switch k {
	case KInt8:
		return math.MaxInt8
	case KUint8:
		return math.MaxUint8
	case KInt16:
		return math.MaxInt16
	case KUint16:
		return math.MaxUint16
	case KInt32:
		return math.MaxInt32
	case KFloat32, KFloat64:
		return 1
	}
	return 0
}

// ResultKind promotes integer kinds one step toward int32 so that sums and
// differences of two values cannot overflow. int32 and the floating-point
// kinds are unchanged.
func (k Kind) ResultKind() Kind {
	switch k {
	case KInt8, KUint8:
		return KInt16
	case KInt16, KUint16:
		return KInt32
	}
	return k
}

// ResultType applies ResultKind to the base kind, keeping the channel count.
func (t Type) ResultType() Type {
	return TypeOf(t.Kind().ResultKind(), t.Channels())
}

func (k Kind) String() string {
	switch k {
	case KInt8:
		return "int8"
	case KUint8:
		return "uint8"
	case KInt16:
		return "int16"
	case KUint16:
		return "uint16"
	case KInt32:
		return "int32"
	case KFloat32:
		return "float32"
	case KFloat64:
		return "float64"
	}
	return "invalid"
}

func (t Type) String() string {
	if t == TypeInvalid || t.Kind() == KindInvalid {
		return "invalid"
	}
	if t.Channels() == 1 {
		return t.Kind().String()
	}
	return t.Kind().String() + "x" + itoa(t.Channels())
}

func itoa(n int) string {
	if n >= 10 {
		return string([]byte{'0' + byte(n/10), '0' + byte(n%10)})
	}
	return string([]byte{'0' + byte(n)})
}

// GDALType maps a base kind to the raster driver's depth code. Signed 8-bit
// data travels as Byte, following the GDAL convention.
func (k Kind) GDALType() godal.DataType {
	switch k {
	case KInt8, KUint8:
		return godal.Byte
	case KInt16:
		return godal.Int16
	case KUint16:
		return godal.UInt16
	case KInt32:
		return godal.Int32
	case KFloat32:
		return godal.Float32
	case KFloat64:
		return godal.Float64
	}
	return godal.Unknown
}

// KindOfGDAL maps the raster driver's depth code back to a base kind.
// Unknown or unsupported depths map to KindInvalid.
func KindOfGDAL(dt godal.DataType) Kind {
	switch dt {
	case godal.Byte:
		return KUint8
	case godal.Int16:
		return KInt16
	case godal.UInt16:
		return KUint16
	case godal.Int32:
		return KInt32
	case godal.Float32:
		return KFloat32
	case godal.Float64:
		return KFloat64
	}
	return KindInvalid
}
