package imagefusion

import "fmt"

// mask pixels are uint8 with 0 and 255.
const (
	maskClear = 0
	maskSet8  = 255
)

// perChannelSets expands the given sets to one per image channel: a single
// set applies to every channel, otherwise the count must match.
func perChannelSets(im *Image, sets []IntervalSet) ([]IntervalSet, error) {
	c := im.Channels()
	switch len(sets) {
	case c:
		return sets, nil
	case 1:
		out := make([]IntervalSet, c)
		for i := range out {
			out[i] = sets[0]
		}
		return out, nil
	}
	return nil, TypeError{
		Msg: fmt.Sprintf("mask ranges: %d sets for %d channels", len(sets), c),
		Tag: im.typ,
	}
}

// CreateSingleChannelMask builds a one-channel uint8 mask from per-channel
// interval sets. With useAnd a pixel is set when every channel's value lies
// in its set (valid-range semantics); without, when any does
// (invalid-range semantics). For floating-point element kinds the
// open/closed distinction collapses to closed.
func (im *Image) CreateSingleChannelMask(useAnd bool, sets ...IntervalSet) (*Image, error) {
	if im.Empty() {
		return nil, SizeError{Msg: "cannot build mask for an empty image"}
	}
	ranges, err := perChannelSets(im, sets)
	if err != nil {
		return nil, err
	}
	out, err := New(im.width, im.height, TypeOf(KUint8, 1))
	if err != nil {
		return nil, err
	}
	closedOnly := im.Kind().IsFloat()
	c := im.Channels()
	for y := 0; y < im.height; y++ {
		mrow := row[uint8](out, y)
		for x := 0; x < im.width; x++ {
			hit := useAnd
			for ch := 0; ch < c; ch++ {
				in := ranges[ch].Contains(im.mustDoubleAt(x, y, ch), closedOnly)
				if useAnd {
					hit = hit && in
					if !hit {
						break
					}
				} else {
					hit = hit || in
					if hit {
						break
					}
				}
			}
			if hit {
				mrow[x] = maskSet8
			} else {
				mrow[x] = maskClear
			}
		}
	}
	return out, nil
}

// CreateMultiChannelMask builds a uint8 mask with one channel per image
// channel, each set where that channel's value lies in its interval set.
func (im *Image) CreateMultiChannelMask(sets ...IntervalSet) (*Image, error) {
	if im.Empty() {
		return nil, SizeError{Msg: "cannot build mask for an empty image"}
	}
	ranges, err := perChannelSets(im, sets)
	if err != nil {
		return nil, err
	}
	c := im.Channels()
	out, err := New(im.width, im.height, TypeOf(KUint8, c))
	if err != nil {
		return nil, err
	}
	closedOnly := im.Kind().IsFloat()
	for y := 0; y < im.height; y++ {
		mrow := row[uint8](out, y)
		for x := 0; x < im.width; x++ {
			for ch := 0; ch < c; ch++ {
				if ranges[ch].Contains(im.mustDoubleAt(x, y, ch), closedOnly) {
					mrow[x*c+ch] = maskSet8
				} else {
					mrow[x*c+ch] = maskClear
				}
			}
		}
	}
	return out, nil
}

// CreateSingleChannelMaskFromRange is the one-interval-per-channel
// convenience form of CreateSingleChannelMask.
func (im *Image) CreateSingleChannelMaskFromRange(useAnd bool, ivs ...Interval) (*Image, error) {
	sets := make([]IntervalSet, len(ivs))
	for i, iv := range ivs {
		sets[i] = NewIntervalSet(iv)
	}
	return im.CreateSingleChannelMask(useAnd, sets...)
}

// CreateMultiChannelMaskFromRange is the one-interval-per-channel
// convenience form of CreateMultiChannelMask.
func (im *Image) CreateMultiChannelMaskFromRange(ivs ...Interval) (*Image, error) {
	sets := make([]IntervalSet, len(ivs))
	for i, iv := range ivs {
		sets[i] = NewIntervalSet(iv)
	}
	return im.CreateMultiChannelMask(sets...)
}
