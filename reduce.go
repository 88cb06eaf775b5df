package imagefusion

import "math"

// MinMax holds one channel's extrema and their first locations in
// row-major order. If the mask admitted no pixel, both locations are the
// sentinel (-1,-1) and both values are 0.
type MinMax struct {
	MinVal, MaxVal float64
	MinLoc, MaxLoc Point
}

func checkMask(im *Image, mask *ConstImage) (*Image, error) {
	if mask == nil || mask.Empty() {
		return nil, nil
	}
	m := mask.constSrc()
	if !m.IsMaskFor(im) {
		return nil, TypeError{Msg: "mask does not fit image", Tag: m.typ}
	}
	return m, nil
}

// MinMaxLocations finds per-channel extrema of the view, restricted to the
// mask when one is given.
func (im *Image) MinMaxLocations(mask *ConstImage) ([]MinMax, error) {
	if im.Empty() {
		return nil, SizeError{Msg: "reduction over an empty image"}
	}
	m, err := checkMask(im, mask)
	if err != nil {
		return nil, err
	}
	c := im.Channels()
	out := make([]MinMax, c)
	for ch := range out {
		out[ch] = MinMax{MinLoc: Point{-1, -1}, MaxLoc: Point{-1, -1}}
	}
	for y := 0; y < im.height; y++ {
		for x := 0; x < im.width; x++ {
			for ch := 0; ch < c; ch++ {
				if !maskSet(m, x, y, ch) {
					continue
				}
				v := im.mustDoubleAt(x, y, ch)
				e := &out[ch]
				if e.MinLoc.X < 0 || v < e.MinVal {
					e.MinVal = v
					e.MinLoc = Point{x, y}
				}
				if e.MaxLoc.X < 0 || v > e.MaxVal {
					e.MaxVal = v
					e.MaxLoc = Point{x, y}
				}
			}
		}
	}
	return out, nil
}

// Mean computes the per-channel mean of the view, restricted to the mask
// when one is given. Channels with no admitted pixel yield 0.
func (im *Image) Mean(mask *ConstImage) ([]float64, error) {
	mean, _, err := im.meanStdDev(mask, false, false)
	return mean, err
}

// MeanStdDev computes per-channel mean and standard deviation. With
// sampleCorrection the denominator of the variance is N-1 instead of N.
func (im *Image) MeanStdDev(mask *ConstImage, sampleCorrection bool) (mean, stdDev []float64, err error) {
	return im.meanStdDev(mask, true, sampleCorrection)
}

func (im *Image) meanStdDev(mask *ConstImage, wantDev, sampleCorrection bool) ([]float64, []float64, error) {
	if im.Empty() {
		return nil, nil, SizeError{Msg: "reduction over an empty image"}
	}
	m, err := checkMask(im, mask)
	if err != nil {
		return nil, nil, err
	}
	c := im.Channels()
	sum := make([]float64, c)
	sumSq := make([]float64, c)
	cnt := make([]int, c)
	for y := 0; y < im.height; y++ {
		for x := 0; x < im.width; x++ {
			for ch := 0; ch < c; ch++ {
				if !maskSet(m, x, y, ch) {
					continue
				}
				v := im.mustDoubleAt(x, y, ch)
				sum[ch] += v
				sumSq[ch] += v * v
				cnt[ch]++
			}
		}
	}
	mean := make([]float64, c)
	var dev []float64
	if wantDev {
		dev = make([]float64, c)
	}
	for ch := 0; ch < c; ch++ {
		if cnt[ch] == 0 {
			continue
		}
		n := float64(cnt[ch])
		mean[ch] = sum[ch] / n
		if !wantDev {
			continue
		}
		denom := n
		if sampleCorrection {
			if cnt[ch] < 2 {
				continue
			}
			denom = n - 1
		}
		v := (sumSq[ch] - sum[ch]*sum[ch]/n) / denom
		if v > 0 {
			dev[ch] = math.Sqrt(v)
		}
	}
	return mean, dev, nil
}
