package imagefusion

import (
	"fmt"
	"math"
)

// ColorMapping names one direction of the supported colour-space
// conversions. The set is closed and, except for the two spectral indices,
// bidirectional.
type ColorMapping int

const (
	ColorRGBToGray ColorMapping = iota
	ColorGrayToRGB
	ColorRGBToXYZ
	ColorXYZToRGB
	ColorRGBToYCbCr
	ColorYCbCrToRGB
	ColorRGBToHSV
	ColorHSVToRGB
	ColorRGBToHLS
	ColorHLSToRGB
	ColorRGBToLab
	ColorLabToRGB
	ColorRGBToLuv
	ColorLuvToRGB
	// ColorPosNegToNDI maps a positive-and-negative band pair to the
	// normalised difference index (pos-neg)/(pos+neg).
	ColorPosNegToNDI
	// ColorRedNIRSWIRToBU maps red, NIR and SWIR1 bands to a continuous
	// built-up index (NDBI - NDVI).
	ColorRedNIRSWIRToBU
)

func (m ColorMapping) String() string {
	names := []string{
		"RGB->Gray", "Gray->RGB", "RGB->XYZ", "XYZ->RGB",
		"RGB->YCbCr", "YCbCr->RGB", "RGB->HSV", "HSV->RGB",
		"RGB->HLS", "HLS->RGB", "RGB->Lab", "Lab->RGB",
		"RGB->Luv", "Luv->RGB", "PosNeg->NDI", "RedNIRSWIR->BU",
	}
	if m < 0 || int(m) >= len(names) {
		return "unknown"
	}
	return names[m]
}

// component scaling modes between canonical values and the image range of
// a concrete element kind.
const (
	compLinear  = iota // linear map canonical range <-> type range
	compHue            // x60 for integer kinds, x1 for float kinds
	compChroma2        // like compLinear, but float kinds scale by 2 with no offset
)

type comp struct {
	lo, hi float64
	mode   int
}

var (
	unitComp   = comp{0, 1, compLinear}
	chromaComp = comp{-0.5, 0.5, compChroma2}
	hueComp    = comp{0, 6, compHue}
	labL       = comp{0, 100, compLinear}
	labAB      = comp{-128, 127, compLinear}
	luvU       = comp{-134, 220, compLinear}
	luvV       = comp{-140, 122, compLinear}
	indexComp  = comp{-1, 1, compLinear}
	buComp     = comp{-2, 2, compLinear}
)

type mappingSpec struct {
	in, out []comp
	fn      func(in, out []float64)
}

// toType converts a canonical component value to the image range of kind k.
func (c comp) toType(v float64, k Kind) float64 {
	switch c.mode {
	case compHue:
		if k.IsFloat() {
			return v
		}
		return saturateKind(v*60, k)
	case compChroma2:
		if k.IsFloat() {
			return v * 2
		}
	}
	tmin, tmax := k.RangeMin(), k.RangeMax()
	out := (v-c.lo)/(c.hi-c.lo)*(tmax-tmin) + tmin
	return saturateKind(out, k)
}

// fromType converts an element in the image range of kind k back to the
// canonical component value.
func (c comp) fromType(v float64, k Kind) float64 {
	switch c.mode {
	case compHue:
		if k.IsFloat() {
			return v
		}
		return v / 60
	case compChroma2:
		if k.IsFloat() {
			return v / 2
		}
	}
	tmin, tmax := k.RangeMin(), k.RangeMax()
	return (v-tmin)/(tmax-tmin)*(c.hi-c.lo) + c.lo
}

// Rec.709 D65 primaries.
var rgbToXYZ = [3][3]float64{
	{0.412453, 0.357580, 0.180423},
	{0.212671, 0.715160, 0.072169},
	{0.019334, 0.119193, 0.950227},
}

var xyzToRGB = [3][3]float64{
	{3.240479, -1.537150, -0.498535},
	{-0.969256, 1.875992, 0.041556},
	{0.055648, -0.204043, 1.057311},
}

// D65 reference white.
const (
	whiteX = 0.950456
	whiteY = 1.0
	whiteZ = 1.088754
)

func matMul3(m [3][3]float64, in, out []float64) {
	r, g, b := in[0], in[1], in[2]
	out[0] = m[0][0]*r + m[0][1]*g + m[0][2]*b
	out[1] = m[1][0]*r + m[1][1]*g + m[1][2]*b
	out[2] = m[2][0]*r + m[2][1]*g + m[2][2]*b
}

func rgbToGrayFn(in, out []float64) {
	out[0] = 0.299*in[0] + 0.587*in[1] + 0.114*in[2]
}

func grayToRGBFn(in, out []float64) {
	out[0], out[1], out[2] = in[0], in[0], in[0]
}

// JPEG luma coefficients; the chroma scales 0.564 and 0.713 are the exact
// 0.5/(1-Kb) and 0.5/(1-Kr).
const (
	ycbcrKr = 0.299
	ycbcrKg = 0.587
	ycbcrKb = 0.114
)

func rgbToYCbCrFn(in, out []float64) {
	y := ycbcrKr*in[0] + ycbcrKg*in[1] + ycbcrKb*in[2]
	out[0] = y
	out[1] = (in[2] - y) * 0.5 / (1 - ycbcrKb)
	out[2] = (in[0] - y) * 0.5 / (1 - ycbcrKr)
}

func ycbcrToRGBFn(in, out []float64) {
	y, cb, cr := in[0], in[1], in[2]
	r := y + cr*(1-ycbcrKr)/0.5
	b := y + cb*(1-ycbcrKb)/0.5
	out[0] = r
	out[1] = (y - ycbcrKr*r - ycbcrKb*b) / ycbcrKg
	out[2] = b
}

// rgbHue returns min, max and the hue sextant in [0, 6).
func rgbHue(r, g, b float64) (mn, mx, h float64) {
	mx = math.Max(r, math.Max(g, b))
	mn = math.Min(r, math.Min(g, b))
	d := mx - mn
	if d == 0 {
		return mn, mx, 0
	}
	switch mx {
	case r:
		h = (g - b) / d
		if h < 0 {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	return mn, mx, h
}

func rgbToHSVFn(in, out []float64) {
	mn, mx, h := rgbHue(in[0], in[1], in[2])
	out[0] = h
	if mx > 0 {
		out[1] = (mx - mn) / mx
	} else {
		out[1] = 0
	}
	out[2] = mx
}

func hsvToRGBFn(in, out []float64) {
	h, s, v := in[0], in[1], in[2]
	h = math.Mod(h, 6)
	if h < 0 {
		h += 6
	}
	i := math.Floor(h)
	f := h - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	switch int(i) {
	case 0:
		out[0], out[1], out[2] = v, t, p
	case 1:
		out[0], out[1], out[2] = q, v, p
	case 2:
		out[0], out[1], out[2] = p, v, t
	case 3:
		out[0], out[1], out[2] = p, q, v
	case 4:
		out[0], out[1], out[2] = t, p, v
	default:
		out[0], out[1], out[2] = v, p, q
	}
}

func rgbToHLSFn(in, out []float64) {
	mn, mx, h := rgbHue(in[0], in[1], in[2])
	l := (mx + mn) / 2
	var s float64
	d := mx - mn
	if d > 0 {
		if l < 0.5 {
			s = d / (mx + mn)
		} else {
			s = d / (2 - mx - mn)
		}
	}
	out[0], out[1], out[2] = h, l, s
}

func hlsToRGBFn(in, out []float64) {
	h, l, s := in[0], in[1], in[2]
	if s == 0 {
		out[0], out[1], out[2] = l, l, l
		return
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	hueToRGB := func(t float64) float64 {
		t = math.Mod(t, 6)
		if t < 0 {
			t += 6
		}
		switch {
		case t < 1:
			return p + (q-p)*t
		case t < 3:
			return q
		case t < 4:
			return p + (q-p)*(4-t)
		}
		return p
	}
	out[0] = hueToRGB(h + 2)
	out[1] = hueToRGB(h)
	out[2] = hueToRGB(h - 2)
}

func labF(t float64) float64 {
	if t > 0.008856 {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116
}

func labFInv(t float64) float64 {
	if t > 0.206893 {
		return t * t * t
	}
	return (t - 16.0/116) / 7.787
}

func rgbToLabFn(in, out []float64) {
	var xyz [3]float64
	matMul3(rgbToXYZ, in, xyz[:])
	fx := labF(xyz[0] / whiteX)
	fy := labF(xyz[1] / whiteY)
	fz := labF(xyz[2] / whiteZ)
	if xyz[1]/whiteY > 0.008856 {
		out[0] = 116*fy - 16
	} else {
		out[0] = 903.3 * xyz[1] / whiteY
	}
	out[1] = 500 * (fx - fy)
	out[2] = 200 * (fy - fz)
}

func labToRGBFn(in, out []float64) {
	l, a, b := in[0], in[1], in[2]
	var fy float64
	if l > 903.3*0.008856 {
		fy = (l + 16) / 116
	} else {
		fy = labF(l / 903.3)
	}
	fx := fy + a/500
	fz := fy - b/200
	xyz := []float64{labFInv(fx) * whiteX, labFInv(fy) * whiteY, labFInv(fz) * whiteZ}
	matMul3(xyzToRGB, xyz, out)
}

func luvUV(x, y, z float64) (u, v float64) {
	d := x + 15*y + 3*z
	if d == 0 {
		return 0, 0
	}
	return 4 * x / d, 9 * y / d
}

func rgbToLuvFn(in, out []float64) {
	var xyz [3]float64
	matMul3(rgbToXYZ, in, xyz[:])
	var l float64
	yr := xyz[1] / whiteY
	if yr > 0.008856 {
		l = 116*math.Cbrt(yr) - 16
	} else {
		l = 903.3 * yr
	}
	u, v := luvUV(xyz[0], xyz[1], xyz[2])
	un, vn := luvUV(whiteX, whiteY, whiteZ)
	out[0] = l
	out[1] = 13 * l * (u - un)
	out[2] = 13 * l * (v - vn)
}

func luvToRGBFn(in, out []float64) {
	l, u, v := in[0], in[1], in[2]
	if l <= 0 {
		out[0], out[1], out[2] = 0, 0, 0
		return
	}
	un, vn := luvUV(whiteX, whiteY, whiteZ)
	up := u/(13*l) + un
	vp := v/(13*l) + vn
	var y float64
	if l > 8 {
		y = whiteY * math.Pow((l+16)/116, 3)
	} else {
		y = whiteY * l / 903.3
	}
	var x, z float64
	if vp != 0 {
		x = y * 9 * up / (4 * vp)
		z = y * (12 - 3*up - 20*vp) / (4 * vp)
	}
	matMul3(xyzToRGB, []float64{x, y, z}, out)
}

func posNegToNDIFn(in, out []float64) {
	pos, neg := in[0], in[1]
	if pos+neg == 0 {
		out[0] = 0
		return
	}
	out[0] = (pos - neg) / (pos + neg)
}

func redNIRSWIRToBUFn(in, out []float64) {
	red, nir, swir := in[0], in[1], in[2]
	var ndbi, ndvi float64
	if swir+nir != 0 {
		ndbi = (swir - nir) / (swir + nir)
	}
	if nir+red != 0 {
		ndvi = (nir - red) / (nir + red)
	}
	out[0] = ndbi - ndvi
}

func rgb3() []comp { return []comp{unitComp, unitComp, unitComp} }

var mappings = map[ColorMapping]mappingSpec{
	ColorRGBToGray:  {in: rgb3(), out: []comp{unitComp}, fn: rgbToGrayFn},
	ColorGrayToRGB:  {in: []comp{unitComp}, out: rgb3(), fn: grayToRGBFn},
	ColorRGBToXYZ:   {in: rgb3(), out: rgb3(), fn: func(in, out []float64) { matMul3(rgbToXYZ, in, out) }},
	ColorXYZToRGB:   {in: rgb3(), out: rgb3(), fn: func(in, out []float64) { matMul3(xyzToRGB, in, out) }},
	ColorRGBToYCbCr: {in: rgb3(), out: []comp{unitComp, chromaComp, chromaComp}, fn: rgbToYCbCrFn},
	ColorYCbCrToRGB: {in: []comp{unitComp, chromaComp, chromaComp}, out: rgb3(), fn: ycbcrToRGBFn},
	ColorRGBToHSV:   {in: rgb3(), out: []comp{hueComp, unitComp, unitComp}, fn: rgbToHSVFn},
	ColorHSVToRGB:   {in: []comp{hueComp, unitComp, unitComp}, out: rgb3(), fn: hsvToRGBFn},
	ColorRGBToHLS:   {in: rgb3(), out: []comp{hueComp, unitComp, unitComp}, fn: rgbToHLSFn},
	ColorHLSToRGB:   {in: []comp{hueComp, unitComp, unitComp}, out: rgb3(), fn: hlsToRGBFn},
	ColorRGBToLab:   {in: rgb3(), out: []comp{labL, labAB, labAB}, fn: rgbToLabFn},
	ColorLabToRGB:   {in: []comp{labL, labAB, labAB}, out: rgb3(), fn: labToRGBFn},
	ColorRGBToLuv:   {in: rgb3(), out: []comp{labL, luvU, luvV}, fn: rgbToLuvFn},
	ColorLuvToRGB:   {in: []comp{labL, luvU, luvV}, out: rgb3(), fn: luvToRGBFn},

	ColorPosNegToNDI:    {in: []comp{unitComp, unitComp}, out: []comp{indexComp}, fn: posNegToNDIFn},
	ColorRedNIRSWIRToBU: {in: rgb3(), out: []comp{buComp}, fn: redNIRSWIRToBUFn},
}

type convOpts struct {
	targetKind Kind
	perm       []int
}

// ConvertOption adjusts a colour conversion.
type ConvertOption func(*convOpts) error

// TargetKind selects the element kind of the converted image. The default
// is the source kind.
func TargetKind(k Kind) ConvertOption {
	return func(o *convOpts) error {
		if k < KInt8 || k > KFloat64 {
			return TypeError{Msg: "invalid target kind", Tag: TypeOf(k, 1)}
		}
		o.targetKind = k
		return nil
	}
}

// SourceChannels permutes (or duplicates) the source channels before the
// mapping reads them.
func SourceChannels(perm ...int) ConvertOption {
	return func(o *convOpts) error {
		if len(perm) == 0 {
			return ArgumentError{Msg: "empty source channel permutation"}
		}
		o.perm = perm
		return nil
	}
}

// ConvertColor converts the image through the named mapping. Output
// components are mapped linearly onto the image range of the target type,
// except hue, which is scaled by 60 for integer targets and kept in [0, 6)
// for floating-point targets, and YCbCr chroma, which floating-point targets
// receive doubled into [-1, 1]. Saturation rules match the arithmetic
// operations.
func (im *Image) ConvertColor(m ColorMapping, opts ...ConvertOption) (*Image, error) {
	if im.Empty() {
		return nil, SizeError{Msg: "cannot convert an empty image"}
	}
	spec, ok := mappings[m]
	if !ok {
		return nil, ArgumentError{Msg: fmt.Sprintf("unknown colour mapping %d", int(m))}
	}
	o := convOpts{targetKind: im.Kind()}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	srcCh := make([]int, len(spec.in))
	for i := range srcCh {
		srcCh[i] = i
	}
	if o.perm != nil {
		if len(o.perm) != len(spec.in) {
			return nil, TypeError{
				Msg: fmt.Sprintf("mapping %s needs %d source channels, permutation has %d", m, len(spec.in), len(o.perm)),
				Tag: im.typ,
			}
		}
		copy(srcCh, o.perm)
	}
	for _, ch := range srcCh {
		if ch < 0 || ch >= im.Channels() {
			return nil, TypeError{Msg: fmt.Sprintf("mapping %s: source channel %d out of range", m, ch), Tag: im.typ}
		}
	}
	if o.perm == nil && im.Channels() < len(spec.in) {
		return nil, TypeError{Msg: fmt.Sprintf("mapping %s needs %d channels", m, len(spec.in)), Tag: im.typ}
	}

	out, err := New(im.width, im.height, TypeOf(o.targetKind, len(spec.out)))
	if err != nil {
		return nil, err
	}
	sk, dk := im.Kind(), o.targetKind
	in := make([]float64, len(spec.in))
	res := make([]float64, len(spec.out))
	for y := 0; y < im.height; y++ {
		for x := 0; x < im.width; x++ {
			for i, ch := range srcCh {
				in[i] = spec.in[i].fromType(im.mustDoubleAt(x, y, ch), sk)
			}
			spec.fn(in, res)
			for i := range res {
				out.mustSetValueAt(x, y, i, spec.out[i].toType(res[i], dk))
			}
		}
	}
	return out, nil
}
