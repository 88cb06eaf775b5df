package imagefusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadArguments(t *testing.T) {
	_, err := New(0, 10, TypeOf(KUint8, 1))
	var serr SizeError
	require.ErrorAs(t, err, &serr)
	_, err = New(10, -1, TypeOf(KUint8, 1))
	require.ErrorAs(t, err, &serr)
	_, err = New(10, 10, TypeInvalid)
	var terr TypeError
	require.ErrorAs(t, err, &terr)
}

func TestDefaultImageIsEmpty(t *testing.T) {
	var im Image
	assert.True(t, im.Empty())
	assert.Equal(t, 0, im.Width())
	assert.Equal(t, 0, im.Height())
	assert.Equal(t, 0, im.Channels())
}

func TestCloneIndependence(t *testing.T) {
	a, err := New(8, 6, TypeOf(KUint16, 2))
	require.NoError(t, err)
	a.Set(100, 200)

	b := a.Clone()
	assert.False(t, a.Shared(b))

	*PixAt[uint16](b, 3, 3, 0) = 9999
	v, _ := a.DoubleAt(3, 3, 0)
	assert.Equal(t, 100.0, v)

	*PixAt[uint16](a, 2, 2, 1) = 7777
	v, _ = b.DoubleAt(2, 2, 1)
	assert.Equal(t, 200.0, v)
}

func TestSharedCopyAliases(t *testing.T) {
	a, err := New(5, 5, TypeOf(KInt32, 1))
	require.NoError(t, err)
	a.Set(0)

	b := a.SharedCopy()
	assert.True(t, a.Shared(b))
	assert.True(t, b.Shared(a))

	*PixAt[int32](b, 4, 4, 0) = -12345
	v, _ := a.DoubleAt(4, 4, 0)
	assert.Equal(t, -12345.0, v)
}

func TestTakeEmptiesSource(t *testing.T) {
	a, _ := New(4, 4, TypeOf(KUint8, 1))
	a.Set(42)
	var b Image
	b.Take(a)
	assert.True(t, a.Empty())
	v, _ := b.DoubleAt(0, 0, 0)
	assert.Equal(t, 42.0, v)
}

// write through a cropped shared view, observe through the original
func TestSharedCropWriteThrough(t *testing.T) {
	a, err := New(100, 100, TypeOf(KUint16, 2))
	require.NoError(t, err)
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			*PixAt[uint16](a, x, y, 0) = uint16(x)
			*PixAt[uint16](a, x, y, 1) = uint16(y)
		}
	}

	b := a.SharedCopy()
	require.NoError(t, b.Crop(Rect{X: 10, Y: 10, Width: 20, Height: 20}))
	*PixAt[uint16](b, 0, 0, 0) = 1337

	v, _ := a.DoubleAt(10, 10, 0)
	assert.Equal(t, 1337.0, v)
	v, _ = a.Clone().DoubleAt(10, 10, 0)
	assert.Equal(t, 1337.0, v)
}

func TestConstImageHasNoMutableAccess(t *testing.T) {
	a, _ := New(4, 4, TypeOf(KUint8, 1))
	a.Set(9)
	c := a.Const()
	assert.Equal(t, 4, c.Width())
	v, err := c.DoubleAt(1, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)

	// a view of a read-only view stays read-only, but clones are writable
	cc := c.SharedCopy()
	assert.True(t, cc.Shared(a))
	w := c.Clone()
	assert.False(t, w.Shared(a))
	require.NoError(t, w.SetValueAt(0, 0, 0, 1))
}

func TestSplitMerge(t *testing.T) {
	a, _ := New(3, 2, TypeOf(KInt16, 3))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			for c := 0; c < 3; c++ {
				*PixAt[int16](a, x, y, c) = int16(100*c + 10*y + x)
			}
		}
	}
	parts := a.Split()
	require.Len(t, parts, 3)
	for c, p := range parts {
		assert.Equal(t, 1, p.Channels())
		v, _ := p.DoubleAt(2, 1, 0)
		assert.Equal(t, float64(100*c+12), v)
	}

	back, err := Merge(parts)
	require.NoError(t, err)
	assert.Equal(t, a.Type(), back.Type())
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			for c := 0; c < 3; c++ {
				va, _ := a.DoubleAt(x, y, c)
				vb, _ := back.DoubleAt(x, y, c)
				assert.Equal(t, va, vb)
			}
		}
	}

	_, err = Merge(nil)
	var aerr ArgumentError
	require.ErrorAs(t, err, &aerr)
}

func TestCloneSubPixel(t *testing.T) {
	a, _ := New(4, 4, TypeOf(KFloat64, 1))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			*PixAt[float64](a, x, y, 0) = float64(x)
		}
	}
	// half-pixel shift along x interpolates neighbouring columns
	b, err := a.CloneSubPixel(0.5, 0, 3, 4)
	require.NoError(t, err)
	v, _ := b.DoubleAt(0, 0, 0)
	assert.InDelta(t, 0.5, v, 1e-12)
	v, _ = b.DoubleAt(2, 3, 0)
	assert.InDelta(t, 2.5, v, 1e-12)
}

func TestIsMaskFor(t *testing.T) {
	im, _ := New(6, 6, TypeOf(KUint16, 3))
	m1, _ := New(6, 6, TypeOf(KUint8, 1))
	m3, _ := New(6, 6, TypeOf(KUint8, 3))
	m2, _ := New(6, 6, TypeOf(KUint8, 2))
	wrongSize, _ := New(5, 6, TypeOf(KUint8, 1))
	wrongKind, _ := New(6, 6, TypeOf(KUint16, 1))

	assert.True(t, m1.IsMaskFor(im))
	assert.True(t, m3.IsMaskFor(im))
	assert.False(t, m2.IsMaskFor(im))
	assert.False(t, wrongSize.IsMaskFor(im))
	assert.False(t, wrongKind.IsMaskFor(im))
}

func TestSetValueAtSaturates(t *testing.T) {
	im, _ := New(2, 2, TypeOf(KUint8, 1))
	require.NoError(t, im.SetValueAt(0, 0, 0, 300))
	require.NoError(t, im.SetValueAt(1, 0, 0, -5))
	require.NoError(t, im.SetValueAt(0, 1, 0, 2.5)) // round half to even
	v, _ := im.DoubleAt(0, 0, 0)
	assert.Equal(t, 255.0, v)
	v, _ = im.DoubleAt(1, 0, 0)
	assert.Equal(t, 0.0, v)
	v, _ = im.DoubleAt(0, 1, 0)
	assert.Equal(t, 2.0, v)

	err := im.SetValueAt(5, 0, 0, 1)
	var serr SizeError
	require.ErrorAs(t, err, &serr)
}
