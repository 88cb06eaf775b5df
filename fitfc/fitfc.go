// Package fitfc implements the Fit-FC fusion variant: per-window linear
// regression from the coarse image at the reference date to the coarse
// image at the prediction date, applied to the fine reference image, with
// residual compensation and spatial filtering over the most similar
// neighbours, weighted by inverse distance.
//
// It needs only one reference date, which makes it the fallback when a
// second high-resolution acquisition is unavailable.
package fitfc

import (
	"fmt"
	"math"
	"sort"

	"github.com/airbusgeo/imagefusion"
	"gonum.org/v1/gonum/stat"
)

// Options configures a Fit-FC prediction.
type Options struct {
	imagefusion.Options

	// HighTag and LowTag name the resolutions in the source store.
	HighTag, LowTag string

	// Date1 is the reference date with a high-resolution image.
	Date1 int

	// WinSize is the moving regression window in pixels. Must be odd.
	WinSize int

	// NumberNeighbors is how many spectrally similar neighbours feed the
	// spatial filtering step.
	NumberNeighbors int
}

func NewOptions() *Options {
	return &Options{
		HighTag:         "high",
		LowTag:          "low",
		WinSize:         31,
		NumberNeighbors: 20,
	}
}

func (o *Options) CloneOpts() imagefusion.AlgOptions {
	cp := *o
	return &cp
}

func (o *Options) validate() error {
	if o.WinSize < 3 || o.WinSize%2 == 0 {
		return imagefusion.ArgumentError{Msg: "window size must be odd and at least 3"}
	}
	if o.NumberNeighbors < 1 {
		return imagefusion.ArgumentError{Msg: "number of neighbours must be at least 1"}
	}
	return nil
}

// Fusor implements imagefusion.Fusor.
type Fusor struct {
	src  *imagefusion.SrcImages
	opts *Options
	out  *imagefusion.Image
}

func New() *Fusor {
	return &Fusor{opts: NewOptions()}
}

func (f *Fusor) SetSrcImages(s *imagefusion.SrcImages) { f.src = s }

func (f *Fusor) SetOptions(o imagefusion.AlgOptions) error {
	fo, ok := o.(*Options)
	if !ok {
		return imagefusion.ArgumentError{Msg: fmt.Sprintf("fitfc needs *fitfc.Options, got %T", o)}
	}
	if err := fo.validate(); err != nil {
		return err
	}
	f.opts = fo
	return nil
}

func (f *Fusor) Output() *imagefusion.Image      { return f.out }
func (f *Fusor) SetOutput(im *imagefusion.Image) { f.out = im }

func (f *Fusor) CloneFusor() imagefusion.Fusor {
	return &Fusor{src: f.src, opts: f.opts}
}

// Predict computes the high-resolution image at the given date.
func (f *Fusor) Predict(date int, validMask, predMask *imagefusion.ConstImage) error {
	if err := f.opts.validate(); err != nil {
		return err
	}
	if f.src == nil {
		return imagefusion.NotFoundError{Msg: "fitfc has no source images"}
	}
	o := f.opts
	h1, err := f.src.Get(o.HighTag, o.Date1)
	if err != nil {
		return err
	}
	l1, err := f.src.Get(o.LowTag, o.Date1)
	if err != nil {
		return err
	}
	l2, err := f.src.Get(o.LowTag, date)
	if err != nil {
		return err
	}
	width, height, c := h1.Width(), h1.Height(), h1.Channels()
	for _, im := range []*imagefusion.ConstImage{l1, l2} {
		if im.Width() != width || im.Height() != height {
			return imagefusion.SizeError{Msg: "source image size mismatch", Width: im.Width(), Height: im.Height()}
		}
		if im.Channels() != c {
			return imagefusion.TypeError{Msg: "source image channel mismatch", Tag: im.Type()}
		}
	}
	if !validMask.Empty() && (validMask.Width() != width || validMask.Height() != height) {
		return imagefusion.SizeError{Msg: "validity mask size mismatch", Width: validMask.Width(), Height: validMask.Height()}
	}

	area := o.PredictionArea()
	if area.Width == 0 && area.Height == 0 {
		area = imagefusion.Rect{Width: width, Height: height}
	}
	bounds := imagefusion.Rect{Width: width, Height: height}
	if area.Empty() || area.Intersect(bounds) != area {
		return imagefusion.SizeError{Msg: "prediction area " + area.String() + " outside sources", Width: area.Width, Height: area.Height}
	}
	if f.out.Empty() || f.out.Width() != area.Width || f.out.Height() != area.Height || f.out.Type() != h1.Type() {
		out, err := imagefusion.New(area.Width, area.Height, h1.Type())
		if err != nil {
			return err
		}
		f.out = out
	}

	k := &fitKernel{o: o, area: area, half: o.WinSize / 2, c: c}
	k.sample = area.Expand(k.half).Intersect(bounds)
	k.sw, k.sh = k.sample.Width, k.sample.Height
	k.h1 = extract(h1, k.sample, c)
	k.l1 = extract(l1, k.sample, c)
	k.l2 = extract(l2, k.sample, c)
	k.buildValidity(validMask)
	k.run(f.out, predMask)
	return nil
}

type fitKernel struct {
	o          *Options
	area       imagefusion.Rect
	sample     imagefusion.Rect
	half, c    int
	sw, sh     int
	h1, l1, l2 [][]float64
	valid      []bool
}

func extract(im *imagefusion.ConstImage, sample imagefusion.Rect, c int) [][]float64 {
	planes := make([][]float64, c)
	for ch := 0; ch < c; ch++ {
		p := make([]float64, sample.Width*sample.Height)
		for y := 0; y < sample.Height; y++ {
			for x := 0; x < sample.Width; x++ {
				v, _ := im.DoubleAt(sample.X+x, sample.Y+y, ch)
				p[y*sample.Width+x] = v
			}
		}
		planes[ch] = p
	}
	return planes
}

func (k *fitKernel) buildValidity(mask *imagefusion.ConstImage) {
	k.valid = make([]bool, k.sw*k.sh)
	if mask.Empty() {
		for i := range k.valid {
			k.valid[i] = true
		}
		return
	}
	for y := 0; y < k.sh; y++ {
		for x := 0; x < k.sw; x++ {
			ok := true
			for ch := 0; ch < mask.Channels() && ok; ch++ {
				v, _ := mask.DoubleAt(k.sample.X+x, k.sample.Y+y, ch)
				ok = v != 0
			}
			k.valid[y*k.sw+x] = ok
		}
	}
}

// neighbour is one spatial-filtering candidate.
type neighbour struct {
	idx  int
	diff float64
	dist float64
}

func (k *fitKernel) run(out *imagefusion.Image, predMask *imagefusion.ConstImage) {
	ox := k.area.X - k.sample.X
	oy := k.area.Y - k.sample.Y
	scale := float64(k.o.WinSize) / 2
	xs := make([]float64, 0, k.o.WinSize*k.o.WinSize)
	ys := make([]float64, 0, k.o.WinSize*k.o.WinSize)
	neigh := make([]neighbour, 0, k.o.WinSize*k.o.WinSize)

	for j := 0; j < k.area.Height; j++ {
		for i := 0; i < k.area.Width; i++ {
			if !maskAdmits(predMask, k.area.X+i, k.area.Y+j) {
				continue
			}
			lx, ly := ox+i, oy+j
			cidx := ly*k.sw + lx
			y0, y1 := max(ly-k.half, 0), min(ly+k.half, k.sh-1)
			x0, x1 := max(lx-k.half, 0), min(lx+k.half, k.sw-1)

			// spectrally closest neighbours by mean absolute fine-image
			// difference, weighted by inverse window distance
			neigh = neigh[:0]
			for y := y0; y <= y1; y++ {
				for x := x0; x <= x1; x++ {
					idx := y*k.sw + x
					if !k.valid[idx] {
						continue
					}
					d := 0.0
					for ch := 0; ch < k.c; ch++ {
						d += math.Abs(k.h1[ch][idx] - k.h1[ch][cidx])
					}
					fx := float64(x - lx)
					fy := float64(y - ly)
					neigh = append(neigh, neighbour{
						idx:  idx,
						diff: d / float64(k.c),
						dist: 1 + math.Sqrt(fx*fx+fy*fy)/scale,
					})
				}
			}
			sort.Slice(neigh, func(a, b int) bool { return neigh[a].diff < neigh[b].diff })
			if len(neigh) > k.o.NumberNeighbors {
				neigh = neigh[:k.o.NumberNeighbors]
			}

			for ch := 0; ch < k.c; ch++ {
				// regression model L2 = a·L1 + b over the window
				xs = xs[:0]
				ys = ys[:0]
				for y := y0; y <= y1; y++ {
					for x := x0; x <= x1; x++ {
						idx := y*k.sw + x
						if !k.valid[idx] {
							continue
						}
						xs = append(xs, k.l1[ch][idx])
						ys = append(ys, k.l2[ch][idx])
					}
				}
				alpha, beta := fitModel(xs, ys)

				// model prediction plus compensated coarse residual,
				// filtered over the similar neighbours
				var sw, sv float64
				for _, nb := range neigh {
					res := k.l2[ch][nb.idx] - (alpha + beta*k.l1[ch][nb.idx])
					pred := alpha + beta*k.h1[ch][nb.idx] + res
					wgt := 1 / nb.dist
					sw += wgt
					sv += wgt * pred
				}
				var p float64
				if sw > 0 {
					p = sv / sw
				} else {
					res := k.l2[ch][cidx] - (alpha + beta*k.l1[ch][cidx])
					p = alpha + beta*k.h1[ch][cidx] + res
				}
				out.SetValueAt(i, j, ch, p)
			}
		}
	}
}

// fitModel fits y = alpha + beta·x, falling back to a pure offset model
// when the window is degenerate.
func fitModel(xs, ys []float64) (alpha, beta float64) {
	if len(xs) >= 2 {
		alpha, beta = stat.LinearRegression(xs, ys, nil, false)
		if !math.IsNaN(alpha) && !math.IsNaN(beta) && !math.IsInf(beta, 0) {
			return alpha, beta
		}
	}
	// constant coarse window: carry the mean change
	if len(xs) > 0 {
		return stat.Mean(ys, nil) - stat.Mean(xs, nil), 1
	}
	return 0, 1
}

func maskAdmits(mask *imagefusion.ConstImage, x, y int) bool {
	if mask.Empty() {
		return true
	}
	for ch := 0; ch < mask.Channels(); ch++ {
		v, _ := mask.DoubleAt(x, y, ch)
		if v == 0 {
			return false
		}
	}
	return true
}
