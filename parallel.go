package imagefusion

import (
	"fmt"
	"math"
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// ParallelOptions is the option record of the stripe parallelizer: a
// thread count and the wrapped algorithm's own option record. The
// prediction area of the base record governs the whole prediction; the
// nested record receives per-stripe areas.
type ParallelOptions struct {
	Options
	Threads int
	AlgOpts AlgOptions
}

func (o *ParallelOptions) CloneOpts() AlgOptions {
	cp := *o
	if o.AlgOpts != nil {
		cp.AlgOpts = o.AlgOpts.CloneOpts()
	}
	return &cp
}

// Parallel runs a fusor concurrently over horizontal stripes of the
// prediction area. It is itself a Fusor, so parallelized and plain
// algorithms are interchangeable to callers.
type Parallel struct {
	sample Fusor
	src    *SrcImages
	opts   *ParallelOptions
	out    *Image
}

// NewParallel wraps the given fusor; it is used as the construction sample
// for the per-stripe instances.
func NewParallel(sample Fusor) *Parallel {
	return &Parallel{sample: sample}
}

func (p *Parallel) SetSrcImages(s *SrcImages) { p.src = s }

func (p *Parallel) SetOptions(o AlgOptions) error {
	po, ok := o.(*ParallelOptions)
	if !ok {
		return ArgumentError{Msg: fmt.Sprintf("parallelizer needs ParallelOptions, got %T", o)}
	}
	if po.AlgOpts == nil {
		return ArgumentError{Msg: "parallelizer options carry no algorithm options"}
	}
	p.opts = po
	return nil
}

func (p *Parallel) Output() *Image      { return p.out }
func (p *Parallel) SetOutput(im *Image) { p.out = im }

func (p *Parallel) CloneFusor() Fusor {
	return &Parallel{sample: p.sample, src: p.src, opts: p.opts}
}

// stripeHeights splits height into n stripes by cumulative rounding, so
// the heights sum exactly to height.
func stripeHeights(height, n int) []int {
	step := float64(height) / float64(n)
	out := make([]int, n)
	prev := 0
	for i := 1; i <= n; i++ {
		cur := int(math.Round(float64(i) * step))
		out[i-1] = cur - prev
		prev = cur
	}
	return out
}

// Predict fans the wrapped fusor out over horizontal stripes. All stripes
// run to completion; at most one error is collected and returned after the
// join.
func (p *Parallel) Predict(date int, validMask, predMask *ConstImage) error {
	if p.src == nil {
		return NotFoundError{Msg: "parallelizer has no source images"}
	}
	if p.opts == nil {
		return ArgumentError{Msg: "parallelizer has no options"}
	}
	any := p.src.GetAny()
	if any == nil {
		return NotFoundError{Msg: "source image store is empty"}
	}
	area := p.opts.PredictionArea()
	if area == (Rect{}) {
		area = Rect{Width: any.Width(), Height: any.Height()}
	}
	if area.Empty() {
		return SizeError{Msg: "empty prediction area", Width: area.Width, Height: area.Height}
	}

	n := p.opts.Threads
	if n > runtime.NumCPU() {
		n = runtime.NumCPU()
	}
	if n > area.Height {
		n = area.Height
	}
	if n < 1 {
		n = 1
	}

	// the full-size output buffer is allocated once, with the source
	// element type, unless a matching buffer was preassigned
	if p.out.Empty() || p.out.Width() != area.Width || p.out.Height() != area.Height || p.out.Type() != any.Type() {
		out, err := New(area.Width, area.Height, any.Type())
		if err != nil {
			return err
		}
		p.out = out
	}

	heights := stripeHeights(area.Height, n)
	fusors := make([]Fusor, n)
	views := make([]*Image, n)
	y := 0
	for i := 0; i < n; i++ {
		stripe := Rect{X: area.X, Y: area.Y + y, Width: area.Width, Height: heights[i]}

		f := p.sample.CloneFusor()
		f.SetSrcImages(p.src)
		algOpts := p.opts.AlgOpts.CloneOpts()
		algOpts.SetPredictionArea(stripe)
		if err := f.SetOptions(algOpts); err != nil {
			return fmt.Errorf("stripe %d options: %w", i, err)
		}

		view := p.out.SharedCopy()
		if err := view.Crop(Rect{X: 0, Y: y, Width: area.Width, Height: heights[i]}); err != nil {
			return fmt.Errorf("stripe %d view: %w", i, err)
		}
		f.SetOutput(view)

		fusors[i] = f
		views[i] = view
		y += heights[i]
	}

	workers := pool.New().WithMaxGoroutines(n).WithErrors().WithFirstError()
	for i := 0; i < n; i++ {
		f := fusors[i]
		workers.Go(func() error {
			return f.Predict(date, validMask, predMask)
		})
	}
	err := workers.Wait()

	// a fusor that replaced its output buffer did not write into the
	// preassigned view; copy its result into the master buffer
	for i := 0; i < n; i++ {
		got := fusors[i].Output()
		if got.Shared(p.out) || got.Empty() {
			continue
		}
		if copyErr := copyInto(views[i], got); copyErr != nil && err == nil {
			err = fmt.Errorf("stripe %d collect: %w", i, copyErr)
		}
	}
	return err
}

// copyInto copies src's view into dst's view; sizes must match.
func copyInto(dst, src *Image) error {
	if src.Width() != dst.Width() || src.Height() != dst.Height() {
		return SizeError{Msg: "stripe output size mismatch", Width: src.Width(), Height: src.Height()}
	}
	if src.Type() == dst.Type() {
		for y := 0; y < dst.Height(); y++ {
			copy(rawRow(dst, y), rawRow(src, y))
		}
		return nil
	}
	if src.Channels() != dst.Channels() {
		return TypeError{Msg: "stripe output channel mismatch", Tag: src.Type()}
	}
	for y := 0; y < dst.Height(); y++ {
		for x := 0; x < dst.Width(); x++ {
			for c := 0; c < dst.Channels(); c++ {
				dst.mustSetValueAt(x, y, c, src.mustDoubleAt(x, y, c))
			}
		}
	}
	return nil
}
