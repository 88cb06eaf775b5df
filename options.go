package imagefusion

// Options is the base every algorithm option record carries: the
// prediction-area rectangle in source-image coordinates.
type Options struct {
	predArea Rect
}

func (o *Options) PredictionArea() Rect { return o.predArea }

func (o *Options) SetPredictionArea(r Rect) { o.predArea = r }

// AlgOptions is the option-record contract shared by all fusors. CloneOpts
// returns an independent copy so the parallelizer can install per-stripe
// prediction areas without touching the caller's record.
type AlgOptions interface {
	PredictionArea() Rect
	SetPredictionArea(r Rect)
	CloneOpts() AlgOptions
}

func (o *Options) CloneOpts() AlgOptions {
	cp := *o
	return &cp
}
