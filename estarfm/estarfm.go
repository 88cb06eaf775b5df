// Package estarfm implements the ESTARFM spatiotemporal fusion algorithm:
// given high-resolution images at two reference dates and low-resolution
// images at the reference dates and a prediction date, it predicts the
// high-resolution image at the prediction date through locally weighted,
// regression-corrected blending.
package estarfm

import (
	"fmt"

	"github.com/airbusgeo/imagefusion"
)

// Fusor predicts one high-resolution image per call to Predict. It
// implements imagefusion.Fusor and can be wrapped by the stripe
// parallelizer.
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
	eo, ok := o.(*Options)
	if !ok {
		return imagefusion.ArgumentError{Msg: fmt.Sprintf("estarfm needs *estarfm.Options, got %T", o)}
	}
	if err := eo.validate(); err != nil {
		return err
	}
	f.opts = eo
	return nil
}

func (f *Fusor) Output() *imagefusion.Image      { return f.out }
func (f *Fusor) SetOutput(im *imagefusion.Image) { f.out = im }

func (f *Fusor) CloneFusor() imagefusion.Fusor {
	return &Fusor{src: f.src, opts: f.opts, out: nil}
}

// sources bundles the five input views and their common geometry.
type sources struct {
	h1, h3, l1, l2, l3 *imagefusion.ConstImage
	width, height      int
	channels           int
	typ                imagefusion.Type
}

func (f *Fusor) gather(date int) (*sources, error) {
	if f.src == nil {
		return nil, imagefusion.NotFoundError{Msg: "estarfm has no source images"}
	}
	o := f.opts
	var s sources
	var err error
	if s.h1, err = f.src.Get(o.HighTag, o.Date1); err != nil {
		return nil, err
	}
	if s.h3, err = f.src.Get(o.HighTag, o.Date3); err != nil {
		return nil, err
	}
	if s.l1, err = f.src.Get(o.LowTag, o.Date1); err != nil {
		return nil, err
	}
	if s.l2, err = f.src.Get(o.LowTag, date); err != nil {
		return nil, err
	}
	if s.l3, err = f.src.Get(o.LowTag, o.Date3); err != nil {
		return nil, err
	}
	s.width, s.height = s.h1.Width(), s.h1.Height()
	s.channels = s.h1.Channels()
	s.typ = s.h1.Type()
	for _, im := range []*imagefusion.ConstImage{s.h3, s.l1, s.l2, s.l3} {
		if im.Width() != s.width || im.Height() != s.height {
			return nil, imagefusion.SizeError{Msg: "source image size mismatch", Width: im.Width(), Height: im.Height()}
		}
		if im.Channels() != s.channels {
			return nil, imagefusion.TypeError{Msg: "source image channel mismatch", Tag: im.Type()}
		}
	}
	return &s, nil
}

func checkMask(m *imagefusion.ConstImage, s *sources, what string) error {
	if m.Empty() {
		return nil
	}
	if m.Width() != s.width || m.Height() != s.height {
		return imagefusion.SizeError{Msg: what + " size mismatch", Width: m.Width(), Height: m.Height()}
	}
	if m.Type().Kind() != imagefusion.KUint8 {
		return imagefusion.TypeError{Msg: what + " must be uint8", Tag: m.Type()}
	}
	if m.Channels() != 1 && m.Channels() != s.channels {
		return imagefusion.TypeError{Msg: what + " channel mismatch", Tag: m.Type()}
	}
	return nil
}

// Predict computes the high-resolution image at the given date into the
// output buffer. The buffer is reused when it already matches the
// prediction area and source type, so preassigned stripe views survive.
func (f *Fusor) Predict(date int, validMask, predMask *imagefusion.ConstImage) error {
	if err := f.opts.validate(); err != nil {
		return err
	}
	s, err := f.gather(date)
	if err != nil {
		return err
	}
	if err := checkMask(validMask, s, "validity mask"); err != nil {
		return err
	}
	if err := checkMask(predMask, s, "prediction mask"); err != nil {
		return err
	}

	area := f.opts.PredictionArea()
	if area.Width == 0 && area.Height == 0 {
		area = imagefusion.Rect{Width: s.width, Height: s.height}
	}
	bounds := imagefusion.Rect{Width: s.width, Height: s.height}
	if area.Empty() || area.Intersect(bounds) != area {
		return imagefusion.SizeError{Msg: "prediction area " + area.String() + " outside sources", Width: area.Width, Height: area.Height}
	}

	if f.out.Empty() || f.out.Width() != area.Width || f.out.Height() != area.Height || f.out.Type() != s.typ {
		out, err := imagefusion.New(area.Width, area.Height, s.typ)
		if err != nil {
			return err
		}
		f.out = out
	}

	k, err := newKernel(f.opts, s, area, validMask)
	if err != nil {
		return err
	}
	k.run(f.out, predMask)
	return nil
}
