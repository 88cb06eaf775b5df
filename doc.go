// Package imagefusion is the substrate shared by the spatiotemporal
// fusion algorithms: a dynamically typed raster container with
// ownership-and-sharing semantics, a runtime-tag-to-static-kernel
// dispatcher, interval masks, the multi-resolution source store, the
// fusor contract and the horizontal-stripe parallelizer.
//
// The algorithms themselves live in subpackages (estarfm, fitfc); they
// pull their inputs from a SrcImages store and write through the Fusor
// contract, so they are interchangeable to callers and to the
// parallelizer.
package imagefusion
