package imagefusion

// Element constrains the statically-typed pixel kernels to the seven
// supported base kinds. bool is rejected at compile time by not being a
// member.
type Element interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~float32 | ~float64
}

// KindOf returns the base kind of the static element type T.
func KindOf[T Element]() Kind {
	var z T
	switch any(z).(type) {
	case int8:
		return KInt8
	case uint8:
		return KUint8
	case int16:
		return KInt16
	case uint16:
		return KUint16
	case int32:
		return KInt32
	case float32:
		return KFloat32
	case float64:
		return KFloat64
	}
	return KindInvalid
}

// Cases carries one entry point per base kind, each usually the same generic
// function instantiated at that kind's element type:
//
//	res, err := Dispatch(img.Type(), Cases[kernelArgs, int]{
//		Int8:  kernel[int8],  Uint8:   kernel[uint8],
//		Int16: kernel[int16], Uint16:  kernel[uint16],
//		Int32: kernel[int32], Float32: kernel[float32],
//		Float64: kernel[float64],
//	}, args)
//
// Leaving an entry nil restricts the dispatch: a runtime tag whose kind has
// no entry fails with a TypeError naming the tag.
type Cases[A, R any] struct {
	Int8    func(A) (R, error)
	Uint8   func(A) (R, error)
	Int16   func(A) (R, error)
	Uint16  func(A) (R, error)
	Int32   func(A) (R, error)
	Float32 func(A) (R, error)
	Float64 func(A) (R, error)
}

// Dispatch invokes the entry point matching the runtime tag's base kind.
// An invalid tag, or a tag whose kind was left out of the case set, yields
// a TypeError.
func Dispatch[A, R any](t Type, c Cases[A, R], arg A) (R, error) {
	var fn func(A) (R, error)
	switch t.Kind() {
	case KInt8:
		fn = c.Int8
	case KUint8:
		fn = c.Uint8
	case KInt16:
		fn = c.Int16
	case KUint16:
		fn = c.Uint16
	case KInt32:
		fn = c.Int32
	case KFloat32:
		fn = c.Float32
	case KFloat64:
		fn = c.Float64
	default:
		var zero R
		return zero, TypeError{Msg: "dispatch: invalid image type", Tag: t}
	}
	if fn == nil {
		var zero R
		return zero, TypeError{Msg: "dispatch: image type not supported here", Tag: t}
	}
	return fn(arg)
}
