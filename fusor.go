package imagefusion

// A Fusor predicts a high-resolution image at a date from a
// multi-resolution source store. Implementations must replace the output
// buffer only if its size or element type does not match the prediction
// area; otherwise they must write in place, so a parallelizer's
// preassigned stripe views survive.
type Fusor interface {
	// SetSrcImages installs the shared source store. The store is
	// read-only during Predict.
	SetSrcImages(s *SrcImages)

	// SetOptions installs the algorithm's option record. Fails when the
	// record is of the wrong concrete type or carries invalid values.
	SetOptions(o AlgOptions) error

	// Output returns the current output buffer, which may have been
	// preassigned by the caller.
	Output() *Image

	// SetOutput preassigns the output buffer.
	SetOutput(im *Image)

	// Predict computes the prediction-area output for the given date.
	// An optional validity mask (single- or per-channel) and an optional
	// prediction mask restrict the computation.
	Predict(date int, validMask, predMask *ConstImage) error

	// CloneFusor returns an independent fusor of the same kind, sharing
	// no mutable state with the receiver; the parallelizer runs one per
	// stripe.
	CloneFusor() Fusor
}
