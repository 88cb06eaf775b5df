package estarfm

import (
	"math"

	"github.com/airbusgeo/imagefusion"
	"gonum.org/v1/gonum/stat"
)

// kernel holds the per-prediction working state: the five sources
// materialised as float64 planes over the sample area, the local-weight
// image, the distance kernel and the moving window sums.
//
// The sample area is the prediction area expanded by the window half-size
// and clamped to the source bounds; all planes are sample-area local.
type kernel struct {
	o      *Options
	srcs   *sources
	area   imagefusion.Rect // prediction area, absolute
	sample imagefusion.Rect // sample area, absolute
	half   int
	c      int
	sw, sh int // sample area size
	aw, ah int // prediction area size
	ox, oy int // prediction-area origin in sample-local coordinates

	h1, h3, l1, l2, l3 [][]float64 // [channel][sample pixel]
	valid              []bool      // all-channel validity, sample local
	lw                 []float64   // local correlation weights
	dist               []float64   // window distance kernel, WinSize²

	sumL1, sumL2, sumL3 [][]float64 // [channel][prediction pixel]
	tol1, tol3          [][]float64 // per-window tolerances (local mode)
	tolC1, tolC3        []float64   // per-image tolerances (global mode)
}

func newKernel(o *Options, s *sources, area imagefusion.Rect, validMask *imagefusion.ConstImage) (*kernel, error) {
	half := o.WinSize / 2
	bounds := imagefusion.Rect{Width: s.width, Height: s.height}
	sample := area.Expand(half).Intersect(bounds)

	k := &kernel{
		o:      o,
		srcs:   s,
		area:   area,
		sample: sample,
		half:   half,
		c:      s.channels,
		sw:     sample.Width,
		sh:     sample.Height,
		aw:     area.Width,
		ah:     area.Height,
		ox:     area.X - sample.X,
		oy:     area.Y - sample.Y,
	}
	k.h1 = k.extract(s.h1)
	k.h3 = k.extract(s.h3)
	k.l1 = k.extract(s.l1)
	k.l2 = k.extract(s.l2)
	k.l3 = k.extract(s.l3)
	k.buildValidity(validMask)
	k.buildLocalWeights()
	k.buildDistanceKernel()
	k.buildWindowSums()
	k.buildTolerances()
	return k, nil
}

func (k *kernel) extract(im *imagefusion.ConstImage) [][]float64 {
	planes := make([][]float64, k.c)
	for ch := 0; ch < k.c; ch++ {
		p := make([]float64, k.sw*k.sh)
		for y := 0; y < k.sh; y++ {
			for x := 0; x < k.sw; x++ {
				v, _ := im.DoubleAt(k.sample.X+x, k.sample.Y+y, ch)
				p[y*k.sw+x] = v
			}
		}
		planes[ch] = p
	}
	return planes
}

// buildValidity collapses the (possibly per-channel) validity mask to one
// all-channels-valid plane; the similarity test involves every channel.
func (k *kernel) buildValidity(mask *imagefusion.ConstImage) {
	k.valid = make([]bool, k.sw*k.sh)
	if mask.Empty() {
		for i := range k.valid {
			k.valid[i] = true
		}
		return
	}
	mc := mask.Channels()
	for y := 0; y < k.sh; y++ {
		for x := 0; x < k.sw; x++ {
			ok := true
			for ch := 0; ch < mc && ok; ch++ {
				v, _ := mask.DoubleAt(k.sample.X+x, k.sample.Y+y, ch)
				ok = v != 0
			}
			k.valid[y*k.sw+x] = ok
		}
	}
}

// buildLocalWeights computes the Pearson correlation between the
// concatenated high-resolution and low-resolution multi-channel,
// dual-date samples at every sample location. Degenerate (zero variance)
// and out-of-mask locations yield 0.
func (k *kernel) buildLocalWeights() {
	k.lw = make([]float64, k.sw*k.sh)
	h := make([]float64, 2*k.c)
	l := make([]float64, 2*k.c)
	for i := range k.lw {
		if !k.valid[i] {
			continue
		}
		for ch := 0; ch < k.c; ch++ {
			h[ch] = k.h1[ch][i]
			h[k.c+ch] = k.h3[ch][i]
			l[ch] = k.l1[ch][i]
			l[k.c+ch] = k.l3[ch][i]
		}
		r := stat.Correlation(h, l, nil)
		if !math.IsNaN(r) && !math.IsInf(r, 0) {
			k.lw[i] = r
		}
	}
}

// buildDistanceKernel precomputes 1 + dist/(window/2) for every window
// offset; borders are handled by clipping the window, not the kernel.
func (k *kernel) buildDistanceKernel() {
	w := k.o.WinSize
	k.dist = make([]float64, w*w)
	scale := float64(w) / 2
	for dy := 0; dy < w; dy++ {
		for dx := 0; dx < w; dx++ {
			fx := float64(dx - k.half)
			fy := float64(dy - k.half)
			k.dist[dy*w+dx] = 1 + math.Sqrt(fx*fx+fy*fy)/scale
		}
	}
}

// windowSum computes, for every prediction-area centre, the sum of src
// over the window clipped to the sample area. One column stripe enters and
// one exits per step, so the cost is linear in the pixel count.
func (k *kernel) windowSum(src []float64) []float64 {
	out := make([]float64, k.aw*k.ah)
	colSum := make([]float64, k.sw)

	clampLo := func(v int) int { return max(v, 0) }

	// column sums for the first centre row
	y0 := clampLo(k.oy - k.half)
	y1 := min(k.oy+k.half, k.sh-1)
	for x := 0; x < k.sw; x++ {
		s := 0.0
		for y := y0; y <= y1; y++ {
			s += src[y*k.sw+x]
		}
		colSum[x] = s
	}

	for j := 0; j < k.ah; j++ {
		ly := k.oy + j
		if j > 0 {
			exit := ly - 1 - k.half
			enter := ly + k.half
			for x := 0; x < k.sw; x++ {
				if exit >= 0 {
					colSum[x] -= src[exit*k.sw+x]
				}
				if enter < k.sh {
					colSum[x] += src[enter*k.sw+x]
				}
			}
		}
		// slide across columns
		x0 := clampLo(k.ox - k.half)
		x1 := min(k.ox+k.half, k.sw-1)
		s := 0.0
		for x := x0; x <= x1; x++ {
			s += colSum[x]
		}
		out[j*k.aw] = s
		for i := 1; i < k.aw; i++ {
			lx := k.ox + i
			if exit := lx - 1 - k.half; exit >= 0 {
				s -= colSum[exit]
			}
			if enter := lx + k.half; enter < k.sw {
				s += colSum[enter]
			}
			out[j*k.aw+i] = s
		}
	}
	return out
}

// windowCount is the clipped window area for a prediction-area centre.
func (k *kernel) windowCount(i, j int) int {
	lx, ly := k.ox+i, k.oy+j
	wx := min(lx+k.half, k.sw-1) - max(lx-k.half, 0) + 1
	wy := min(ly+k.half, k.sh-1) - max(ly-k.half, 0) + 1
	return wx * wy
}

func (k *kernel) buildWindowSums() {
	k.sumL1 = make([][]float64, k.c)
	k.sumL2 = make([][]float64, k.c)
	k.sumL3 = make([][]float64, k.c)
	for ch := 0; ch < k.c; ch++ {
		k.sumL1[ch] = k.windowSum(k.l1[ch])
		k.sumL2[ch] = k.windowSum(k.l2[ch])
		k.sumL3[ch] = k.windowSum(k.l3[ch])
	}
}

// buildTolerances derives the per-channel similarity tolerances
// 2·stddev/NumberClasses, either per moving window or over the whole
// image.
func (k *kernel) buildTolerances() {
	scale := 2 / float64(k.o.NumberClasses)
	if !k.o.LocalTolerance {
		// whole-image deviations, so stripe-parallel runs see the same
		// tolerances as a single-threaded run
		k.tolC1 = imageStdDevs(k.srcs.h1, scale)
		k.tolC3 = imageStdDevs(k.srcs.h3, scale)
		return
	}
	k.tol1 = make([][]float64, k.c)
	k.tol3 = make([][]float64, k.c)
	sq := make([]float64, k.sw*k.sh)
	windowStd := func(src []float64) []float64 {
		for i, v := range src {
			sq[i] = v * v
		}
		sums := k.windowSum(src)
		sumsSq := k.windowSum(sq)
		out := make([]float64, k.aw*k.ah)
		for j := 0; j < k.ah; j++ {
			for i := 0; i < k.aw; i++ {
				n := float64(k.windowCount(i, j))
				idx := j*k.aw + i
				mean := sums[idx] / n
				v := sumsSq[idx]/n - mean*mean
				if v > 0 {
					out[idx] = math.Sqrt(v) * scale
				}
			}
		}
		return out
	}
	for ch := 0; ch < k.c; ch++ {
		k.tol1[ch] = windowStd(k.h1[ch])
		k.tol3[ch] = windowStd(k.h3[ch])
	}
}

// imageStdDevs computes per-channel population standard deviations over
// the whole image, scaled into similarity tolerances.
func imageStdDevs(im *imagefusion.ConstImage, scale float64) []float64 {
	c := im.Channels()
	out := make([]float64, c)
	n := float64(im.Width() * im.Height())
	for ch := 0; ch < c; ch++ {
		var sum, sumSq float64
		for y := 0; y < im.Height(); y++ {
			for x := 0; x < im.Width(); x++ {
				v, _ := im.DoubleAt(x, y, ch)
				sum += v
				sumSq += v * v
			}
		}
		mean := sum / n
		if v := sumSq/n - mean*mean; v > 0 {
			out[ch] = math.Sqrt(v) * scale
		}
	}
	return out
}

func (k *kernel) toleranceAt(i, j, ch int) (t1, t3 float64) {
	if k.o.LocalTolerance {
		idx := j*k.aw + i
		return k.tol1[ch][idx], k.tol3[ch][idx]
	}
	return k.tolC1[ch], k.tolC3[ch]
}

// minCandidates is the smallest neighbour set the weighted estimate is
// trusted with; below it the centre pixel is carried over unchanged.
const minCandidates = 6

func (k *kernel) run(out *imagefusion.Image, predMask *imagefusion.ConstImage) {
	w := k.o.WinSize
	cands := make([]int, 0, w*w)
	cdist := make([]float64, 0, w*w)
	xs := make([]float64, 0, 2*w*w)
	ys := make([]float64, 0, 2*w*w)

	for j := 0; j < k.ah; j++ {
		for i := 0; i < k.aw; i++ {
			if !predMaskSet(predMask, k.area.X+i, k.area.Y+j) {
				continue
			}
			lx, ly := k.ox+i, k.oy+j
			cidx := ly*k.sw + lx

			// similarity pass: every channel must stay inside both
			// reference-date tolerances
			cands = cands[:0]
			cdist = cdist[:0]
			y0, y1 := max(ly-k.half, 0), min(ly+k.half, k.sh-1)
			x0, x1 := max(lx-k.half, 0), min(lx+k.half, k.sw-1)
			for y := y0; y <= y1; y++ {
				for x := x0; x <= x1; x++ {
					idx := y*k.sw + x
					if !k.valid[idx] {
						continue
					}
					similar := true
					for ch := 0; ch < k.c && similar; ch++ {
						t1, t3 := k.toleranceAt(i, j, ch)
						similar = math.Abs(k.h1[ch][idx]-k.h1[ch][cidx]) < t1 &&
							math.Abs(k.h3[ch][idx]-k.h3[ch][cidx]) < t3
					}
					if !similar {
						continue
					}
					cands = append(cands, idx)
					cdist = append(cdist, k.dist[(y-ly+k.half)*w+(x-lx+k.half)])
				}
			}

			for ch := 0; ch < k.c; ch++ {
				k.predictPixel(out, i, j, ch, cidx, cands, cdist, &xs, &ys)
			}
		}
	}
}

func (k *kernel) predictPixel(out *imagefusion.Image,
	i, j, ch, cidx int, cands []int, cdist []float64, xs, ys *[]float64) {

	// per-window regression of high against low over both reference dates
	*xs = (*xs)[:0]
	*ys = (*ys)[:0]
	for _, idx := range cands {
		*xs = append(*xs, k.l1[ch][idx], k.l3[ch][idx])
		*ys = append(*ys, k.h1[ch][idx], k.h3[ch][idx])
	}
	beta := regressionSlope(*xs, *ys, k.o.SmoothRegression)

	// weighted sums over the candidates
	var sw, sl1, sl3, sh1, sh3 float64
	for n, idx := range cands {
		d := k.lw[idx] * cdist[n]
		if d <= 0 {
			continue
		}
		wgt := 1 / d
		sw += wgt
		sl1 += wgt * (k.l2[ch][idx] - k.l1[ch][idx])
		sl3 += wgt * (k.l2[ch][idx] - k.l3[ch][idx])
		sh1 += wgt * k.h1[ch][idx]
		sh3 += wgt * k.h3[ch][idx]
	}

	h1c := k.h1[ch][cidx]
	h3c := k.h3[ch][cidx]
	p1, p3 := h1c, h3c
	if len(cands) >= minCandidates && sw > 0 {
		p1 = h1c + beta*sl1/sw
		p3 = h3c + beta*sl3/sw
	}

	// temporal blend by inverse summed low-resolution change
	idx := j*k.aw + i
	d1 := math.Abs(k.sumL1[ch][idx] - k.sumL2[ch][idx])
	d3 := math.Abs(k.sumL3[ch][idx] - k.sumL2[ch][idx])
	w1, w3 := blendWeights(d1, d3)
	p2 := w1*p1 + w3*p3

	if k.o.UseDataRange && (p2 < k.o.DataRangeMin || p2 > k.o.DataRangeMax) && sw > 0 {
		p2 = w1*sh1/sw + w3*sh3/sw
	}
	out.SetValueAt(i, j, ch, p2)
}

// blendWeights turns the two absolute low-resolution changes into convex
// blend weights 1/d1 : 1/d3, handling zero changes.
func blendWeights(d1, d3 float64) (w1, w3 float64) {
	switch {
	case d1 == 0 && d3 == 0:
		return 0.5, 0.5
	case d1 == 0:
		return 1, 0
	case d3 == 0:
		return 0, 1
	}
	t1, t3 := 1/d1, 1/d3
	return t1 / (t1 + t3), t3 / (t1 + t3)
}

func predMaskSet(mask *imagefusion.ConstImage, x, y int) bool {
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
