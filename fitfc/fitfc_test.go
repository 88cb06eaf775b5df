package fitfc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airbusgeo/imagefusion"
)

func buildStore(t *testing.T, w, h int, typ imagefusion.Type, h1v, l1v, l2v float64) *imagefusion.SrcImages {
	t.Helper()
	src := imagefusion.NewSrcImages()
	mk := func(v float64) *imagefusion.Image {
		im, err := imagefusion.New(w, h, typ)
		require.NoError(t, err)
		im.Set(v)
		return im
	}
	src.Set("high", 1, mk(h1v))
	src.Set("low", 1, mk(l1v))
	src.Set("low", 2, mk(l2v))
	return src
}

// a uniform coarse change carries over as a uniform fine change
func TestPredictUniformChange(t *testing.T) {
	src := buildStore(t, 12, 12, imagefusion.TypeOf(imagefusion.KUint16, 2), 100, 50, 60)

	f := New()
	f.SetSrcImages(src)
	o := NewOptions()
	o.WinSize = 5
	o.NumberNeighbors = 8
	require.NoError(t, f.SetOptions(o))
	require.NoError(t, f.Predict(2, nil, nil))

	out := f.Output()
	require.Equal(t, imagefusion.TypeOf(imagefusion.KUint16, 2), out.Type())
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			for c := 0; c < 2; c++ {
				v, _ := out.DoubleAt(x, y, c)
				require.Equal(t, 110.0, v, "(%d,%d,%d)", x, y, c)
			}
		}
	}
}

// no coarse change reproduces the reference fine image
func TestPredictNoChange(t *testing.T) {
	w, h := 10, 10
	src := imagefusion.NewSrcImages()
	fine, _ := imagefusion.New(w, h, imagefusion.TypeOf(imagefusion.KFloat64, 1))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			*imagefusion.PixAt[float64](fine, x, y, 0) = float64(x) / 10
		}
	}
	coarse := fine.Clone()
	src.Set("high", 1, fine)
	src.Set("low", 1, coarse)
	src.Set("low", 2, coarse.Clone())

	f := New()
	f.SetSrcImages(src)
	o := NewOptions()
	o.WinSize = 3
	o.NumberNeighbors = 1 // same-column neighbours tie with the pixel and share its value
	require.NoError(t, f.SetOptions(o))
	require.NoError(t, f.Predict(2, nil, nil))

	out := f.Output()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v, _ := out.DoubleAt(x, y, 0)
			want, _ := fine.DoubleAt(x, y, 0)
			require.InDelta(t, want, v, 1e-9, "(%d,%d)", x, y)
		}
	}
}

func TestOptionValidation(t *testing.T) {
	f := New()
	var aerr imagefusion.ArgumentError

	even := NewOptions()
	even.WinSize = 4
	require.ErrorAs(t, f.SetOptions(even), &aerr)

	none := NewOptions()
	none.NumberNeighbors = 0
	require.ErrorAs(t, f.SetOptions(none), &aerr)
}

func TestMissingSource(t *testing.T) {
	src := imagefusion.NewSrcImages()
	im, _ := imagefusion.New(4, 4, imagefusion.TypeOf(imagefusion.KUint8, 1))
	im.Set(1)
	src.Set("high", 1, im)

	f := New()
	f.SetSrcImages(src)
	require.NoError(t, f.SetOptions(NewOptions()))
	err := f.Predict(2, nil, nil)
	var nerr imagefusion.NotFoundError
	require.ErrorAs(t, err, &nerr)
}

func TestRunsUnderParallelizer(t *testing.T) {
	src := buildStore(t, 16, 16, imagefusion.TypeOf(imagefusion.KUint16, 1), 100, 50, 55)

	par := imagefusion.NewParallel(New())
	par.SetSrcImages(src)
	opts := &imagefusion.ParallelOptions{Threads: 4, AlgOpts: NewOptions()}
	require.NoError(t, par.SetOptions(opts))
	require.NoError(t, par.Predict(2, nil, nil))

	out := par.Output()
	assert.Equal(t, 16, out.Width())
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v, _ := out.DoubleAt(x, y, 0)
			require.Equal(t, 105.0, v)
		}
	}
}
