package imagefusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constImage(t *testing.T, w, h int, typ Type, vals ...float64) *Image {
	t.Helper()
	im, err := New(w, h, typ)
	require.NoError(t, err)
	im.Set(vals...)
	return im
}

func TestAddSaturates(t *testing.T) {
	a := constImage(t, 4, 4, TypeOf(KUint8, 1), 200)
	b := constImage(t, 4, 4, TypeOf(KUint8, 1), 100)

	sum, err := a.Add(b)
	require.NoError(t, err)
	v, _ := sum.DoubleAt(0, 0, 0)
	assert.Equal(t, 255.0, v)

	// explicit wider result type keeps the true sum
	wide, err := a.Add(b, TypeOf(KInt16, 1))
	require.NoError(t, err)
	v, _ = wide.DoubleAt(0, 0, 0)
	assert.Equal(t, 300.0, v)
}

func TestSubtractSaturatesAtZero(t *testing.T) {
	a := constImage(t, 3, 3, TypeOf(KUint16, 2), 10, 10)
	b := constImage(t, 3, 3, TypeOf(KUint16, 2), 300, 5)
	diff, err := a.Subtract(b)
	require.NoError(t, err)
	v, _ := diff.DoubleAt(1, 1, 0)
	assert.Equal(t, 0.0, v)
	v, _ = diff.DoubleAt(1, 1, 1)
	assert.Equal(t, 5.0, v)
}

func TestMultiplySaturates(t *testing.T) {
	a := constImage(t, 2, 2, TypeOf(KInt8, 1), 100)
	b := constImage(t, 2, 2, TypeOf(KInt8, 1), 100)
	prod, err := a.Multiply(b)
	require.NoError(t, err)
	v, _ := prod.DoubleAt(0, 0, 0)
	assert.Equal(t, 127.0, v)
}

func TestDivide(t *testing.T) {
	a := constImage(t, 2, 2, TypeOf(KUint8, 1), 7)
	zero := constImage(t, 2, 2, TypeOf(KUint8, 1), 0)
	two := constImage(t, 2, 2, TypeOf(KUint8, 1), 2)

	// x/0 is 0 by definition
	q, err := a.Divide(zero)
	require.NoError(t, err)
	v, _ := q.DoubleAt(0, 0, 0)
	assert.Equal(t, 0.0, v)

	// 7/2 = 3.5 rounds to even
	q, err = a.Divide(two)
	require.NoError(t, err)
	v, _ = q.DoubleAt(0, 0, 0)
	assert.Equal(t, 4.0, v)

	five := constImage(t, 2, 2, TypeOf(KUint8, 1), 5)
	q, err = five.Divide(two) // 2.5 rounds to 2
	require.NoError(t, err)
	v, _ = q.DoubleAt(0, 0, 0)
	assert.Equal(t, 2.0, v)
}

func TestAbsDiffAndAbs(t *testing.T) {
	a := constImage(t, 2, 2, TypeOf(KInt16, 1), 10)
	b := constImage(t, 2, 2, TypeOf(KInt16, 1), 250)
	d, err := a.AbsDiff(b)
	require.NoError(t, err)
	v, _ := d.DoubleAt(0, 0, 0)
	assert.Equal(t, 240.0, v)

	neg := constImage(t, 2, 2, TypeOf(KInt16, 1), -123)
	abs, err := neg.Abs()
	require.NoError(t, err)
	v, _ = abs.DoubleAt(1, 1, 0)
	assert.Equal(t, 123.0, v)

	// abs of the most negative int8 saturates instead of wrapping
	m := constImage(t, 1, 1, TypeOf(KInt8, 1), -128)
	abs, err = m.Abs()
	require.NoError(t, err)
	v, _ = abs.DoubleAt(0, 0, 0)
	assert.Equal(t, 127.0, v)
}

func TestArithmeticRejectsMismatch(t *testing.T) {
	a := constImage(t, 4, 4, TypeOf(KUint8, 1), 1)
	smaller := constImage(t, 3, 4, TypeOf(KUint8, 1), 1)
	otherType := constImage(t, 4, 4, TypeOf(KUint16, 1), 1)

	_, err := a.Add(smaller)
	var serr SizeError
	require.ErrorAs(t, err, &serr)

	_, err = a.Add(otherType)
	var terr TypeError
	require.ErrorAs(t, err, &terr)
}

func TestFloatArithmeticKeepsValues(t *testing.T) {
	a := constImage(t, 2, 2, TypeOf(KFloat64, 1), 0.75)
	b := constImage(t, 2, 2, TypeOf(KFloat64, 1), 0.5)
	sum, err := a.Add(b)
	require.NoError(t, err)
	v, _ := sum.DoubleAt(0, 0, 0)
	assert.Equal(t, 1.25, v) // floats do not saturate
}

func TestBitwiseOps(t *testing.T) {
	a := constImage(t, 2, 2, TypeOf(KUint8, 1), 0b10101010)
	b := constImage(t, 2, 2, TypeOf(KUint8, 1), 0b11001100)

	and, err := a.BitwiseAnd(b)
	require.NoError(t, err)
	v, _ := and.DoubleAt(0, 0, 0)
	assert.Equal(t, float64(0b10001000), v)

	or, err := a.BitwiseOr(b)
	require.NoError(t, err)
	v, _ = or.DoubleAt(0, 0, 0)
	assert.Equal(t, float64(0b11101110), v)

	xor, err := a.BitwiseXor(b)
	require.NoError(t, err)
	v, _ = xor.DoubleAt(0, 0, 0)
	assert.Equal(t, float64(0b01100110), v)

	not, err := a.BitwiseNot()
	require.NoError(t, err)
	v, _ = not.DoubleAt(0, 0, 0)
	assert.Equal(t, float64(0b01010101), v)
}
