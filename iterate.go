package imagefusion

import "fmt"

// ChanIter iterates over all pixels of one channel of the current view,
// yielding a pointer to one element at a time. It respects cropping (view
// size, offset and row stride) and is random-access. It must not be used
// across operations that replace the image's buffer.
type ChanIter[T Element] struct {
	im      *Image
	channel int
	i       int
}

// ChanValues returns an iterator over the given channel. T must match the
// image's base kind.
func ChanValues[T Element](im *Image, channel int) (*ChanIter[T], error) {
	if im.Empty() {
		return nil, SizeError{Msg: "cannot iterate an empty image"}
	}
	if KindOf[T]() != im.Kind() {
		return nil, TypeError{Msg: fmt.Sprintf("channel iterator of %s over image", KindOf[T]()), Tag: im.typ}
	}
	if channel < 0 || channel >= im.Channels() {
		return nil, TypeError{Msg: fmt.Sprintf("channel %d out of range", channel), Tag: im.typ}
	}
	return &ChanIter[T]{im: im, channel: channel, i: -1}, nil
}

// Len is the number of elements the iterator visits: width · height.
func (it *ChanIter[T]) Len() int { return it.im.width * it.im.height }

// Next advances to the next element; the first call moves onto element 0.
func (it *ChanIter[T]) Next() bool {
	it.i++
	return it.i < it.Len()
}

// Value returns a pointer to the current element.
func (it *ChanIter[T]) Value() *T { return it.At(it.i) }

// At returns a pointer to the i-th element in row-major order.
func (it *ChanIter[T]) At(i int) *T {
	y := i / it.im.width
	x := i % it.im.width
	return &row[T](it.im, y)[x*it.im.Channels()+it.channel]
}

// PixelIter iterates over all pixels of the current view, yielding the full
// per-pixel array of channel values as a slice into the pixel buffer.
type PixelIter[T Element] struct {
	im *Image
	i  int
}

// Pixels returns a pixel iterator. T must match the image's base kind.
func Pixels[T Element](im *Image) (*PixelIter[T], error) {
	if im.Empty() {
		return nil, SizeError{Msg: "cannot iterate an empty image"}
	}
	if KindOf[T]() != im.Kind() {
		return nil, TypeError{Msg: fmt.Sprintf("pixel iterator of %s over image", KindOf[T]()), Tag: im.typ}
	}
	return &PixelIter[T]{im: im, i: -1}, nil
}

func (it *PixelIter[T]) Len() int { return it.im.width * it.im.height }

func (it *PixelIter[T]) Next() bool {
	it.i++
	return it.i < it.Len()
}

// Pixel returns the current pixel's channel values, aliasing the buffer.
func (it *PixelIter[T]) Pixel() []T { return it.At(it.i) }

// At returns the i-th pixel in row-major order.
func (it *PixelIter[T]) At(i int) []T {
	y := i / it.im.width
	x := i % it.im.width
	c := it.im.Channels()
	r := row[T](it.im, y)
	return r[x*c : x*c+c : x*c+c]
}
