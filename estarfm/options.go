package estarfm

import (
	"github.com/airbusgeo/imagefusion"
)

// Default resolution tags under which the source store is queried.
const (
	DefaultHighTag = "high"
	DefaultLowTag  = "low"
)

// Options configures an ESTARFM prediction. The zero value is not usable;
// start from NewOptions.
type Options struct {
	imagefusion.Options

	// HighTag and LowTag name the resolutions in the source store.
	HighTag, LowTag string

	// Date1 and Date3 are the two reference dates with high-resolution
	// imagery.
	Date1, Date3 int

	// WinSize is the moving-window size in pixels. Must be odd.
	WinSize int

	// NumberClasses is the assumed number of land-cover classes; the
	// similarity tolerance per channel is 2·stddev/NumberClasses.
	NumberClasses int

	// LocalTolerance switches the tolerance to per-window standard
	// deviations instead of whole-image ones.
	LocalTolerance bool

	// SmoothRegression blends the regression slope with 1 by the F-test
	// confidence instead of the hard accept/reject rule.
	SmoothRegression bool

	// DataRangeMin/Max bound plausible values; predictions outside fall
	// back to the purely high-resolution estimate. Active when
	// UseDataRange is set.
	UseDataRange               bool
	DataRangeMin, DataRangeMax float64
}

// NewOptions returns the defaults: a 51 pixel window, 40 classes and
// whole-image tolerances.
func NewOptions() *Options {
	return &Options{
		HighTag:       DefaultHighTag,
		LowTag:        DefaultLowTag,
		WinSize:       51,
		NumberClasses: 40,
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
	if o.NumberClasses < 1 {
		return imagefusion.ArgumentError{Msg: "number of classes must be at least 1"}
	}
	if o.UseDataRange && o.DataRangeMin >= o.DataRangeMax {
		return imagefusion.ArgumentError{Msg: "invalid data range"}
	}
	if o.Date1 == o.Date3 {
		return imagefusion.ArgumentError{Msg: "reference dates must differ"}
	}
	return nil
}
