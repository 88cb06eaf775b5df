package imagefusion

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomRGB(t *testing.T, typ Type, seed int64) *Image {
	t.Helper()
	im, err := New(8, 8, typ)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(seed))
	k := typ.Kind()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			for c := 0; c < typ.Channels(); c++ {
				v := rng.Float64()
				if !k.IsFloat() {
					v = math.Round(k.RangeMin() + v*(k.RangeMax()-k.RangeMin()))
				}
				im.mustSetValueAt(x, y, c, v)
			}
		}
	}
	return im
}

func maxAbsDiff(t *testing.T, a, b *Image) float64 {
	t.Helper()
	require.Equal(t, a.Type(), b.Type())
	worst := 0.0
	for y := 0; y < a.Height(); y++ {
		for x := 0; x < a.Width(); x++ {
			for c := 0; c < a.Channels(); c++ {
				va, _ := a.DoubleAt(x, y, c)
				vb, _ := b.DoubleAt(x, y, c)
				if d := math.Abs(va - vb); d > worst {
					worst = d
				}
			}
		}
	}
	return worst
}

func TestColorRoundTripsFloat(t *testing.T) {
	pairs := []struct {
		name     string
		fwd, bwd ColorMapping
		tol      float64
	}{
		{"xyz", ColorRGBToXYZ, ColorXYZToRGB, 1e-4},
		{"ycbcr", ColorRGBToYCbCr, ColorYCbCrToRGB, 1e-9},
		{"hsv", ColorRGBToHSV, ColorHSVToRGB, 1e-9},
		{"hls", ColorRGBToHLS, ColorHLSToRGB, 1e-9},
		{"lab", ColorRGBToLab, ColorLabToRGB, 1e-4},
		{"luv", ColorRGBToLuv, ColorLuvToRGB, 1e-4},
	}
	for _, p := range pairs {
		t.Run(p.name, func(t *testing.T) {
			im := randomRGB(t, TypeOf(KFloat64, 3), 42)
			mid, err := im.ConvertColor(p.fwd)
			require.NoError(t, err)
			back, err := mid.ConvertColor(p.bwd)
			require.NoError(t, err)
			assert.LessOrEqual(t, maxAbsDiff(t, im, back), p.tol)
		})
	}
}

func TestColorRoundTripUint16(t *testing.T) {
	im := randomRGB(t, TypeOf(KUint16, 3), 7)
	mid, err := im.ConvertColor(ColorRGBToYCbCr)
	require.NoError(t, err)
	back, err := mid.ConvertColor(ColorYCbCrToRGB)
	require.NoError(t, err)
	// within a couple of quantisation steps
	assert.LessOrEqual(t, maxAbsDiff(t, im, back), 2.0)
}

func TestGrayFormula(t *testing.T) {
	im, _ := New(1, 1, TypeOf(KUint8, 3))
	*PixAt[uint8](im, 0, 0, 0) = 255
	*PixAt[uint8](im, 0, 0, 1) = 0
	*PixAt[uint8](im, 0, 0, 2) = 0

	g, err := im.ConvertColor(ColorRGBToGray)
	require.NoError(t, err)
	assert.Equal(t, 1, g.Channels())
	v, _ := g.DoubleAt(0, 0, 0)
	assert.Equal(t, 76.0, v) // 0.299 * 255 rounded

	rgb, err := g.ConvertColor(ColorGrayToRGB)
	require.NoError(t, err)
	assert.Equal(t, 3, rgb.Channels())
	for c := 0; c < 3; c++ {
		v, _ := rgb.DoubleAt(0, 0, c)
		assert.Equal(t, 76.0, v)
	}
}

func TestNormalizedDifferenceIndex(t *testing.T) {
	im, _ := New(2, 1, TypeOf(KFloat64, 2))
	*PixAt[float64](im, 0, 0, 0) = 0.6
	*PixAt[float64](im, 0, 0, 1) = 0.2
	*PixAt[float64](im, 1, 0, 0) = 0 // zero sum protected
	*PixAt[float64](im, 1, 0, 1) = 0

	ndi, err := im.ConvertColor(ColorPosNegToNDI)
	require.NoError(t, err)
	// canonical [-1,1] is mapped onto the float image range [0,1]
	v, _ := ndi.DoubleAt(0, 0, 0)
	assert.InDelta(t, 0.75, v, 1e-12)
	v, _ = ndi.DoubleAt(1, 0, 0)
	assert.InDelta(t, 0.5, v, 1e-12)
}

func TestBuiltUpIndex(t *testing.T) {
	im, _ := New(1, 1, TypeOf(KFloat64, 3))
	*PixAt[float64](im, 0, 0, 0) = 0.2 // red
	*PixAt[float64](im, 0, 0, 1) = 0.3 // nir
	*PixAt[float64](im, 0, 0, 2) = 0.6 // swir1

	bu, err := im.ConvertColor(ColorRedNIRSWIRToBU)
	require.NoError(t, err)
	ndbi := (0.6 - 0.3) / (0.6 + 0.3)
	ndvi := (0.3 - 0.2) / (0.3 + 0.2)
	want := ((ndbi - ndvi) + 2) / 4 // canonical [-2,2] mapped to [0,1]
	v, _ := bu.DoubleAt(0, 0, 0)
	assert.InDelta(t, want, v, 1e-12)
}

func TestConvertTargetKindAndPermutation(t *testing.T) {
	im := randomRGB(t, TypeOf(KUint8, 3), 3)
	out, err := im.ConvertColor(ColorRGBToGray, TargetKind(KFloat64))
	require.NoError(t, err)
	assert.Equal(t, TypeOf(KFloat64, 1), out.Type())

	// a BGR-ordered source supplies a channel permutation
	px, _ := New(1, 1, TypeOf(KUint8, 3))
	*PixAt[uint8](px, 0, 0, 0) = 0
	*PixAt[uint8](px, 0, 0, 1) = 0
	*PixAt[uint8](px, 0, 0, 2) = 255 // red in BGR order
	swapped, err := px.ConvertColor(ColorRGBToGray, SourceChannels(2, 1, 0))
	require.NoError(t, err)
	v, _ := swapped.DoubleAt(0, 0, 0)
	assert.Equal(t, 76.0, v)

	_, err = im.ConvertColor(ColorRGBToGray, SourceChannels(0, 1))
	var terr TypeError
	require.ErrorAs(t, err, &terr)
}

func TestConvertChannelCountMismatch(t *testing.T) {
	im, _ := New(2, 2, TypeOf(KUint8, 1))
	_, err := im.ConvertColor(ColorRGBToXYZ)
	var terr TypeError
	require.ErrorAs(t, err, &terr)
}
