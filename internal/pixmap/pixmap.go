// Package pixmap provides the float-pixel buffer the reconstruction
// pipeline operates on, plus the color-space and resampling helpers
// around it.  Samples are float32 in [0,1]; channels are stored as
// separate planes so a single plane can be handed to the inference
// driver without copying.
package pixmap

import (
	"fmt"
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// Filter selects the resampling kernel used by Resize / ResizePlane.
type Filter int

const (
	Nearest Filter = iota
	Linear
	Cubic
)

func (f Filter) scaler() xdraw.Scaler {
	switch f {
	case Linear:
		return xdraw.BiLinear
	case Cubic:
		return xdraw.CatmullRom
	default:
		return xdraw.NearestNeighbor
	}
}

// Image is a planar float32 pixel buffer.  C is 1 (luma), 3 (RGB or
// YCbCr) or 4 (RGB + straight alpha).  Plane c of pixel (x, y) lives at
// Pix[c*W*H + y*W + x].
type Image struct {
	W, H, C int
	Pix     []float32
}

// New allocates a zeroed image.
func New(w, h, c int) *Image {
	return &Image{W: w, H: h, C: c, Pix: make([]float32, w*h*c)}
}

// Plane returns channel c as a mutable slice view.
func (im *Image) Plane(c int) []float32 {
	n := im.W * im.H
	return im.Pix[c*n : (c+1)*n]
}

// SetPlane overwrites channel c with p, which must be W*H long.
func (im *Image) SetPlane(c int, p []float32) {
	copy(im.Plane(c), p)
}

// Clone returns a deep copy.
func (im *Image) Clone() *Image {
	out := &Image{W: im.W, H: im.H, C: im.C, Pix: make([]float32, len(im.Pix))}
	copy(out.Pix, im.Pix)
	return out
}

func clamp01(v float32) float32 {
	// NaN compares false against both bounds; map it to 0 so a
	// degenerate alpha division can never reach the 8-bit output.
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FromNRGBA converts an 8-bit straight-alpha image into a float image
// with the given channel count (3 drops alpha, 4 keeps it).
func FromNRGBA(src *image.NRGBA, channels int) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	im := New(w, h, channels)
	n := w * h
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			im.Pix[i] = float32(row[x*4]) / 255
			im.Pix[n+i] = float32(row[x*4+1]) / 255
			im.Pix[2*n+i] = float32(row[x*4+2]) / 255
			if channels == 4 {
				im.Pix[3*n+i] = float32(row[x*4+3]) / 255
			}
		}
	}
	return im
}

// ToNRGBA quantizes to 8 bits, clamping each sample to [0,1] first.
func (im *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, im.W, im.H))
	n := im.W * im.H
	for i := 0; i < n; i++ {
		var r, g, b, a float32
		switch im.C {
		case 1:
			r, g, b, a = im.Pix[i], im.Pix[i], im.Pix[i], 1
		case 3:
			r, g, b, a = im.Pix[i], im.Pix[n+i], im.Pix[2*n+i], 1
		default:
			r, g, b, a = im.Pix[i], im.Pix[n+i], im.Pix[2*n+i], im.Pix[3*n+i]
		}
		out.Pix[i*4] = uint8(clamp01(r)*255 + 0.5)
		out.Pix[i*4+1] = uint8(clamp01(g)*255 + 0.5)
		out.Pix[i*4+2] = uint8(clamp01(b)*255 + 0.5)
		out.Pix[i*4+3] = uint8(clamp01(a)*255 + 0.5)
	}
	return out
}

// RGB↔YCbCr constants, OpenCV RGB2YUV convention for float images.
const (
	lumaR  = 0.299
	lumaG  = 0.587
	lumaB  = 0.114
	cbGain = 0.492
	crGain = 0.877
)

// RGBToYCbCr converts the first three planes to Y, Cb, Cr; alpha, if
// any, is not carried over.
func RGBToYCbCr(im *Image) (*Image, error) {
	if im.C < 3 {
		return nil, fmt.Errorf("ycbcr conversion needs 3 channels, have %d", im.C)
	}
	out := New(im.W, im.H, 3)
	n := im.W * im.H
	for i := 0; i < n; i++ {
		r, g, b := im.Pix[i], im.Pix[n+i], im.Pix[2*n+i]
		y := lumaR*r + lumaG*g + lumaB*b
		out.Pix[i] = y
		out.Pix[n+i] = (b-y)*cbGain + 0.5
		out.Pix[2*n+i] = (r-y)*crGain + 0.5
	}
	return out, nil
}

// YCbCrToRGB is the exact inverse of RGBToYCbCr.
func YCbCrToRGB(im *Image) (*Image, error) {
	if im.C != 3 {
		return nil, fmt.Errorf("rgb conversion needs 3 channels, have %d", im.C)
	}
	out := New(im.W, im.H, 3)
	n := im.W * im.H
	for i := 0; i < n; i++ {
		y, cb, cr := im.Pix[i], im.Pix[n+i], im.Pix[2*n+i]
		r := y + (cr-0.5)/crGain
		b := y + (cb-0.5)/cbGain
		g := (y - lumaR*r - lumaB*b) / lumaG
		out.Pix[i] = r
		out.Pix[n+i] = g
		out.Pix[2*n+i] = b
	}
	return out, nil
}

// CompositeWhite flattens a 4-channel image against a white background
// (rgb·a + (1−a)) and returns the opaque image together with a copy of
// the alpha plane.  The network only ever sees opaque input.
func CompositeWhite(im *Image) (*Image, []float32) {
	if im.C != 4 {
		return im, nil
	}
	out := New(im.W, im.H, 3)
	n := im.W * im.H
	alpha := make([]float32, n)
	copy(alpha, im.Plane(3))
	for c := 0; c < 3; c++ {
		src := im.Plane(c)
		dst := out.Plane(c)
		for i, a := range alpha {
			dst[i] = src[i]*a + (1 - a)
		}
	}
	return out, alpha
}

// UncompositeWhite reverses CompositeWhite: rgb' = (rgb−1)/a + 1.
// Fully transparent pixels have no recoverable color; they come back
// white rather than NaN.
func UncompositeWhite(im *Image, alpha []float32) *Image {
	out := New(im.W, im.H, 4)
	for c := 0; c < 3; c++ {
		src := im.Plane(c)
		dst := out.Plane(c)
		for i, a := range alpha {
			if a > 0 {
				dst[i] = (src[i]-1)/a + 1
			} else {
				dst[i] = 1
			}
		}
	}
	out.SetPlane(3, alpha)
	return out
}

// ResizePlane resamples a single plane through the x/image/draw
// scalers using a 16-bit grayscale intermediary.
func ResizePlane(p []float32, w, h, nw, nh int, f Filter) []float32 {
	if nw == w && nh == h {
		out := make([]float32, len(p))
		copy(out, p)
		return out
	}
	src := image.NewGray16(image.Rect(0, 0, w, h))
	for i, v := range p {
		u := uint16(clamp01(v)*65535 + 0.5)
		src.Pix[i*2] = uint8(u >> 8)
		src.Pix[i*2+1] = uint8(u)
	}
	dst := image.NewGray16(image.Rect(0, 0, nw, nh))
	f.scaler().Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	out := make([]float32, nw*nh)
	for i := range out {
		u := uint16(dst.Pix[i*2])<<8 | uint16(dst.Pix[i*2+1])
		out[i] = float32(u) / 65535
	}
	return out
}

// Resize resamples every channel independently (the OpenCV convention:
// alpha is scaled like any other plane, no premultiplication).
func Resize(im *Image, nw, nh int, f Filter) *Image {
	out := New(nw, nh, im.C)
	for c := 0; c < im.C; c++ {
		out.SetPlane(c, ResizePlane(im.Plane(c), im.W, im.H, nw, nh, f))
	}
	return out
}

// ZoomPlane2x doubles a plane by pixel replication.  Exact, no
// resampling error: this is the pre-pass upscale the scale network
// then sharpens.
func ZoomPlane2x(p []float32, w, h int) []float32 {
	out := make([]float32, 4*w*h)
	for y := 0; y < h; y++ {
		row := out[2*y*2*w : 2*y*2*w+2*w]
		for x := 0; x < w; x++ {
			v := p[y*w+x]
			row[2*x] = v
			row[2*x+1] = v
		}
		copy(out[(2*y+1)*2*w:(2*y+2)*2*w], row)
	}
	return out
}

// CropPlane takes the top-left cw×ch region of a plane.
func CropPlane(p []float32, w, h, cw, ch int) []float32 {
	out := make([]float32, cw*ch)
	for y := 0; y < ch; y++ {
		copy(out[y*cw:(y+1)*cw], p[y*w:y*w+cw])
	}
	return out
}

// ScaledSize applies a fractional ratio to a size, rounding to the
// nearest pixel and never collapsing below 1.
func ScaledSize(w, h int, ratio float64) (int, int) {
	nw := int(math.Round(float64(w) * ratio))
	nh := int(math.Round(float64(h) * ratio))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
