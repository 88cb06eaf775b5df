package imagefusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleChannelMaskAnd(t *testing.T) {
	im, _ := New(3, 1, TypeOf(KUint8, 2))
	// pixel 0: both channels in range; pixel 1: one outside; pixel 2: both outside
	*PixAt[uint8](im, 0, 0, 0) = 10
	*PixAt[uint8](im, 0, 0, 1) = 10
	*PixAt[uint8](im, 1, 0, 0) = 10
	*PixAt[uint8](im, 1, 0, 1) = 200
	*PixAt[uint8](im, 2, 0, 0) = 200
	*PixAt[uint8](im, 2, 0, 1) = 200

	valid := NewIntervalSet(ClosedInterval(0, 100))
	m, err := im.CreateSingleChannelMask(true, valid)
	require.NoError(t, err)
	assert.Equal(t, TypeOf(KUint8, 1), m.Type())

	vals := []float64{255, 0, 0}
	for x, want := range vals {
		v, _ := m.DoubleAt(x, 0, 0)
		assert.Equal(t, want, v, "x=%d", x)
	}

	// OR semantics flag the invalid-range style
	m, err = im.CreateSingleChannelMask(false, valid)
	require.NoError(t, err)
	vals = []float64{255, 255, 0}
	for x, want := range vals {
		v, _ := m.DoubleAt(x, 0, 0)
		assert.Equal(t, want, v, "x=%d", x)
	}
}

func TestMultiChannelMask(t *testing.T) {
	im, _ := New(2, 1, TypeOf(KInt16, 2))
	*PixAt[int16](im, 0, 0, 0) = 5
	*PixAt[int16](im, 0, 0, 1) = -5
	*PixAt[int16](im, 1, 0, 0) = 500
	*PixAt[int16](im, 1, 0, 1) = 5

	m, err := im.CreateMultiChannelMask(NewIntervalSet(ClosedInterval(0, 100)))
	require.NoError(t, err)
	assert.Equal(t, TypeOf(KUint8, 2), m.Type())

	expect := [][]float64{{255, 0}, {0, 255}}
	for x := 0; x < 2; x++ {
		for c := 0; c < 2; c++ {
			v, _ := m.DoubleAt(x, 0, c)
			assert.Equal(t, expect[x][c], v, "x=%d c=%d", x, c)
		}
	}
}

func TestMaskPerChannelSets(t *testing.T) {
	im, _ := New(1, 1, TypeOf(KUint8, 3))
	*PixAt[uint8](im, 0, 0, 0) = 10
	*PixAt[uint8](im, 0, 0, 1) = 20
	*PixAt[uint8](im, 0, 0, 2) = 30

	m, err := im.CreateSingleChannelMask(true,
		NewIntervalSet(ClosedInterval(0, 15)),
		NewIntervalSet(ClosedInterval(15, 25)),
		NewIntervalSet(ClosedInterval(25, 35)),
	)
	require.NoError(t, err)
	v, _ := m.DoubleAt(0, 0, 0)
	assert.Equal(t, 255.0, v)

	// wrong set count
	_, err = im.CreateSingleChannelMask(true,
		NewIntervalSet(ClosedInterval(0, 1)), NewIntervalSet(ClosedInterval(0, 1)))
	var terr TypeError
	require.ErrorAs(t, err, &terr)
}

// open endpoints collapse to closed for floating-point element kinds
func TestFloatMaskClosedCollapse(t *testing.T) {
	im, _ := New(1, 1, TypeOf(KFloat64, 1))
	*PixAt[float64](im, 0, 0, 0) = 0.5

	m, err := im.CreateSingleChannelMask(true, NewIntervalSet(OpenInterval(0.5, 1)))
	require.NoError(t, err)
	v, _ := m.DoubleAt(0, 0, 0)
	assert.Equal(t, 255.0, v)

	imInt, _ := New(1, 1, TypeOf(KUint8, 1))
	*PixAt[uint8](imInt, 0, 0, 0) = 5
	m, err = imInt.CreateSingleChannelMask(true, NewIntervalSet(OpenInterval(5, 10)))
	require.NoError(t, err)
	v, _ = m.DoubleAt(0, 0, 0)
	assert.Equal(t, 0.0, v)
}
