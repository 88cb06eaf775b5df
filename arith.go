package imagefusion

import "math"

type loaderArgs struct{ im *Image }

// loadRow materialises one view row as float64 values.
func loadRow[T Element](a loaderArgs) (func(int, []float64), error) {
	im := a.im
	return func(y int, dst []float64) {
		r := row[T](im, y)
		for i, v := range r {
			dst[i] = float64(v)
		}
	}, nil
}

// loader builds a row-to-float64 reader for the image through the
// dispatcher.
func loader(im *Image) (func(int, []float64), error) {
	return Dispatch(im.typ, Cases[loaderArgs, func(int, []float64)]{
		Int8:    loadRow[int8],
		Uint8:   loadRow[uint8],
		Int16:   loadRow[int16],
		Uint16:  loadRow[uint16],
		Int32:   loadRow[int32],
		Float32: loadRow[float32],
		Float64: loadRow[float64],
	}, loaderArgs{im})
}

// storeRow writes one row of float64 values with saturation.
func storeRow[T Element](a loaderArgs) (func(int, []float64), error) {
	im := a.im
	return func(y int, src []float64) {
		r := row[T](im, y)
		for i, v := range src {
			r[i] = saturate[T](v)
		}
	}, nil
}

func storer(im *Image) (func(int, []float64), error) {
	return Dispatch(im.typ, Cases[loaderArgs, func(int, []float64)]{
		Int8:    storeRow[int8],
		Uint8:   storeRow[uint8],
		Int16:   storeRow[int16],
		Uint16:  storeRow[uint16],
		Int32:   storeRow[int32],
		Float32: storeRow[float32],
		Float64: storeRow[float64],
	}, loaderArgs{im})
}

func checkOperands(a, b *Image) error {
	if a.Empty() || b.Empty() {
		return SizeError{Msg: "arithmetic on an empty image"}
	}
	if a.width != b.width || a.height != b.height {
		return SizeError{Msg: "operand size mismatch", Width: b.width, Height: b.height}
	}
	if a.typ != b.typ {
		return TypeError{Msg: "operand type mismatch", Tag: b.typ}
	}
	return nil
}

func resultTypeOf(src Type, explicit []Type) (Type, error) {
	if len(explicit) == 0 {
		return src, nil
	}
	t := explicit[0]
	if t.Kind() == KindInvalid {
		return TypeInvalid, TypeError{Msg: "invalid result type", Tag: t}
	}
	if t.Channels() != src.Channels() {
		return TypeInvalid, TypeError{Msg: "result type channel mismatch", Tag: t}
	}
	return t, nil
}

// binaryOp runs op over corresponding elements of a and b, saturating into
// a fresh image of the result type. Integer operands are widened before op
// runs, so intermediate results cannot wrap.
func binaryOp(a, b *Image, explicit []Type, op func(x, y float64) float64) (*Image, error) {
	if err := checkOperands(a, b); err != nil {
		return nil, err
	}
	rt, err := resultTypeOf(a.typ, explicit)
	if err != nil {
		return nil, err
	}
	out, err := New(a.width, a.height, rt)
	if err != nil {
		return nil, err
	}
	la, err := loader(a)
	if err != nil {
		return nil, err
	}
	lb, err := loader(b)
	if err != nil {
		return nil, err
	}
	st, err := storer(out)
	if err != nil {
		return nil, err
	}
	n := a.width * a.Channels()
	ra := make([]float64, n)
	rb := make([]float64, n)
	for y := 0; y < a.height; y++ {
		la(y, ra)
		lb(y, rb)
		for i := 0; i < n; i++ {
			ra[i] = op(ra[i], rb[i])
		}
		st(y, ra)
	}
	return out, nil
}

// Add returns the element-wise sum, saturated to the source type or to the
// explicitly supplied result type.
func (im *Image) Add(o *Image, resultType ...Type) (*Image, error) {
	return binaryOp(im, o, resultType, func(x, y float64) float64 { return x + y })
}

// Subtract returns the element-wise difference with saturation.
func (im *Image) Subtract(o *Image, resultType ...Type) (*Image, error) {
	return binaryOp(im, o, resultType, func(x, y float64) float64 { return x - y })
}

// Multiply returns the element-wise product with saturation.
func (im *Image) Multiply(o *Image, resultType ...Type) (*Image, error) {
	return binaryOp(im, o, resultType, func(x, y float64) float64 { return x * y })
}

// Divide returns the element-wise quotient. Division by zero yields 0;
// otherwise the quotient is computed in floating point and, for integer
// result types, rounded half to even by the saturating store.
func (im *Image) Divide(o *Image, resultType ...Type) (*Image, error) {
	return binaryOp(im, o, resultType, func(x, y float64) float64 {
		if y == 0 {
			return 0
		}
		return x / y
	})
}

// AbsDiff returns the element-wise absolute difference with saturation.
func (im *Image) AbsDiff(o *Image, resultType ...Type) (*Image, error) {
	return binaryOp(im, o, resultType, func(x, y float64) float64 { return math.Abs(x - y) })
}

// Abs returns the element-wise absolute value with saturation.
func (im *Image) Abs(resultType ...Type) (*Image, error) {
	if im.Empty() {
		return nil, SizeError{Msg: "arithmetic on an empty image"}
	}
	rt, err := resultTypeOf(im.typ, resultType)
	if err != nil {
		return nil, err
	}
	out, err := New(im.width, im.height, rt)
	if err != nil {
		return nil, err
	}
	ld, err := loader(im)
	if err != nil {
		return nil, err
	}
	st, err := storer(out)
	if err != nil {
		return nil, err
	}
	n := im.width * im.Channels()
	r := make([]float64, n)
	for y := 0; y < im.height; y++ {
		ld(y, r)
		for i := 0; i < n; i++ {
			r[i] = math.Abs(r[i])
		}
		st(y, r)
	}
	return out, nil
}

// bitwiseOp applies op to the raw view bytes of both operands, regardless
// of the declared element type. Intended for masks.
func bitwiseOp(a, b *Image, op func(x, y byte) byte) (*Image, error) {
	if err := checkOperands(a, b); err != nil {
		return nil, err
	}
	out, _ := New(a.width, a.height, a.typ)
	for y := 0; y < a.height; y++ {
		ra, rb, ro := rawRow(a, y), rawRow(b, y), rawRow(out, y)
		for i := range ro {
			ro[i] = op(ra[i], rb[i])
		}
	}
	return out, nil
}

// BitwiseAnd combines the raw buffers bit by bit.
func (im *Image) BitwiseAnd(o *Image) (*Image, error) {
	return bitwiseOp(im, o, func(x, y byte) byte { return x & y })
}

// BitwiseOr combines the raw buffers bit by bit.
func (im *Image) BitwiseOr(o *Image) (*Image, error) {
	return bitwiseOp(im, o, func(x, y byte) byte { return x | y })
}

// BitwiseXor combines the raw buffers bit by bit.
func (im *Image) BitwiseXor(o *Image) (*Image, error) {
	return bitwiseOp(im, o, func(x, y byte) byte { return x ^ y })
}

// BitwiseNot inverts every bit of the raw view bytes.
func (im *Image) BitwiseNot() (*Image, error) {
	if im.Empty() {
		return nil, SizeError{Msg: "arithmetic on an empty image"}
	}
	out, _ := New(im.width, im.height, im.typ)
	for y := 0; y < im.height; y++ {
		ra, ro := rawRow(im, y), rawRow(out, y)
		for i := range ro {
			ro[i] = ^ra[i]
		}
	}
	return out, nil
}
