package geotiff

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airbusgeo/imagefusion"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	types := []imagefusion.Type{
		imagefusion.TypeOf(imagefusion.KUint8, 3),
		imagefusion.TypeOf(imagefusion.KInt16, 1),
		imagefusion.TypeOf(imagefusion.KUint16, 2),
		imagefusion.TypeOf(imagefusion.KFloat64, 1),
	}
	rng := rand.New(rand.NewSource(5))
	for _, typ := range types {
		t.Run(typ.String(), func(t *testing.T) {
			im, err := imagefusion.New(13, 9, typ)
			require.NoError(t, err)
			k := typ.Kind()
			for y := 0; y < 9; y++ {
				for x := 0; x < 13; x++ {
					for c := 0; c < typ.Channels(); c++ {
						v := k.RangeMin() + rng.Float64()*(k.RangeMax()-k.RangeMin())
						require.NoError(t, im.SetValueAt(x, y, c, v))
					}
				}
			}

			nodata := -1.0
			ref := imagefusion.GeoRef{
				GeoTransform: [6]float64{500000, 30, 0, 4600000, 0, -30},
				NoData:       &nodata,
			}

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, im, ref))

			back, gotRef, err := Decode(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			require.Equal(t, im.Type(), back.Type())
			require.Equal(t, im.Width(), back.Width())
			require.Equal(t, im.Height(), back.Height())

			for y := 0; y < 9; y++ {
				for x := 0; x < 13; x++ {
					for c := 0; c < typ.Channels(); c++ {
						a, _ := im.DoubleAt(x, y, c)
						b, _ := back.DoubleAt(x, y, c)
						require.Equal(t, a, b, "(%d,%d,%d)", x, y, c)
					}
				}
			}
			assert.Equal(t, ref.GeoTransform, gotRef.GeoTransform)
			require.NotNil(t, gotRef.NoData)
			assert.Equal(t, nodata, *gotRef.NoData)
		})
	}
}

func TestEncodeDecodeFile(t *testing.T) {
	im, err := imagefusion.New(4, 4, imagefusion.TypeOf(imagefusion.KUint8, 1))
	require.NoError(t, err)
	im.Set(42)

	path := filepath.Join(t.TempDir(), "plain.tif")
	require.NoError(t, EncodeFile(path, im, imagefusion.GeoRef{}))

	back, ref, err := DecodeFile(path)
	require.NoError(t, err)
	assert.False(t, ref.Valid())
	v, _ := back.DoubleAt(3, 3, 0)
	assert.Equal(t, 42.0, v)
}

func TestDecodeMissingFile(t *testing.T) {
	_, _, err := DecodeFile(filepath.Join(t.TempDir(), "nope.tif"))
	var nerr imagefusion.NotFoundError
	require.ErrorAs(t, err, &nerr)
}

func TestEncodeEmptyImage(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, &imagefusion.Image{}, imagefusion.GeoRef{})
	var serr imagefusion.SizeError
	require.ErrorAs(t, err, &serr)
}
