package imagefusion

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestMinMaxLocations(t *testing.T) {
	im, _ := New(5, 5, TypeOf(KInt16, 1))
	im.Set(10)
	*PixAt[int16](im, 3, 2, 0) = -7
	*PixAt[int16](im, 1, 4, 0) = 99

	mm, err := im.MinMaxLocations(nil)
	require.NoError(t, err)
	require.Len(t, mm, 1)
	assert.Equal(t, -7.0, mm[0].MinVal)
	assert.Equal(t, Point{3, 2}, mm[0].MinLoc)
	assert.Equal(t, 99.0, mm[0].MaxVal)
	assert.Equal(t, Point{1, 4}, mm[0].MaxLoc)
}

func TestMinMaxLocationsAllMasked(t *testing.T) {
	im, _ := New(4, 4, TypeOf(KUint8, 1))
	im.Set(50)
	mask, _ := New(4, 4, TypeOf(KUint8, 1))
	mask.Set(0)

	mm, err := im.MinMaxLocations(mask.Const())
	require.NoError(t, err)
	assert.Equal(t, Point{-1, -1}, mm[0].MinLoc)
	assert.Equal(t, Point{-1, -1}, mm[0].MaxLoc)
	assert.Equal(t, 0.0, mm[0].MinVal)
}

func TestMeanStdDevAgainstReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	im, _ := New(16, 16, TypeOf(KFloat64, 1))
	vals := make([]float64, 0, 256)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := rng.Float64()
			*PixAt[float64](im, x, y, 0) = v
			vals = append(vals, v)
		}
	}

	mean, dev, err := im.MeanStdDev(nil, true)
	require.NoError(t, err)
	assert.InDelta(t, stat.Mean(vals, nil), mean[0], 1e-12)
	assert.InDelta(t, stat.StdDev(vals, nil), dev[0], 1e-9)

	// population vs sample denominator
	_, popDev, err := im.MeanStdDev(nil, false)
	require.NoError(t, err)
	n := float64(len(vals))
	assert.InDelta(t, stat.StdDev(vals, nil)*math.Sqrt((n-1)/n), popDev[0], 1e-9)
}

func TestMaskedMean(t *testing.T) {
	im, _ := New(2, 1, TypeOf(KUint8, 1))
	*PixAt[uint8](im, 0, 0, 0) = 10
	*PixAt[uint8](im, 1, 0, 0) = 250
	mask, _ := New(2, 1, TypeOf(KUint8, 1))
	*PixAt[uint8](mask, 0, 0, 0) = 255
	*PixAt[uint8](mask, 1, 0, 0) = 0

	mean, err := im.Mean(mask.Const())
	require.NoError(t, err)
	assert.Equal(t, 10.0, mean[0])

	// mask that does not fit is rejected
	bad, _ := New(3, 1, TypeOf(KUint8, 1))
	_, err = im.Mean(bad.Const())
	var terr TypeError
	require.ErrorAs(t, err, &terr)
}
