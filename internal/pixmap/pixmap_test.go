package pixmap

import (
	"image"
	"math"
	"testing"
)

func gradientImage(w, h, c int) *Image {
	im := New(w, h, c)
	for ch := 0; ch < c; ch++ {
		p := im.Plane(ch)
		for i := range p {
			p[i] = float32((i*7+ch*13)%256) / 255
		}
	}
	return im
}

func TestYCbCrRoundTrip(t *testing.T) {
	im := gradientImage(16, 9, 3)
	yuv, err := RGBToYCbCr(im)
	if err != nil {
		t.Fatal(err)
	}
	rgb, err := YCbCrToRGB(yuv)
	if err != nil {
		t.Fatal(err)
	}
	for i := range im.Pix {
		if d := math.Abs(float64(im.Pix[i] - rgb.Pix[i])); d > 1e-5 {
			t.Fatalf("sample %d: %v -> %v (diff %g)", i, im.Pix[i], rgb.Pix[i], d)
		}
	}
}

func TestCompositeWhiteOpaqueIsIdentity(t *testing.T) {
	im := gradientImage(8, 8, 4)
	ones := im.Plane(3)
	for i := range ones {
		ones[i] = 1
	}
	opaque, alpha := CompositeWhite(im)
	if opaque.C != 3 {
		t.Fatalf("composite produced %d channels", opaque.C)
	}
	for c := 0; c < 3; c++ {
		src, dst := im.Plane(c), opaque.Plane(c)
		for i := range src {
			if src[i] != dst[i] {
				t.Fatalf("channel %d sample %d changed: %v -> %v", c, i, src[i], dst[i])
			}
		}
	}
	for i, a := range alpha {
		if a != 1 {
			t.Fatalf("alpha %d = %v", i, a)
		}
	}
}

func TestUncompositeWhiteInverts(t *testing.T) {
	im := gradientImage(8, 4, 4)
	a := im.Plane(3)
	for i := range a {
		a[i] = 0.25 + float32(i%3)*0.25 // 0.25, 0.5, 0.75
	}
	opaque, alpha := CompositeWhite(im)
	back := UncompositeWhite(opaque, alpha)
	for c := 0; c < 3; c++ {
		src, dst := im.Plane(c), back.Plane(c)
		for i := range src {
			if d := math.Abs(float64(src[i] - dst[i])); d > 1e-5 {
				t.Fatalf("channel %d sample %d: %v -> %v", c, i, src[i], dst[i])
			}
		}
	}
}

func TestUncompositeWhiteZeroAlpha(t *testing.T) {
	rgb := gradientImage(4, 4, 3)
	alpha := make([]float32, 16) // fully transparent
	out := UncompositeWhite(rgb, alpha)
	for _, v := range out.Pix {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatal("zero alpha produced NaN/Inf")
		}
	}
	// Quantization must stay in range too.
	nrgba := out.ToNRGBA()
	if len(nrgba.Pix) != 4*16 {
		t.Fatalf("unexpected pix length %d", len(nrgba.Pix))
	}
}

func TestToNRGBAClamps(t *testing.T) {
	im := New(2, 1, 3)
	im.Pix[0] = -0.5
	im.Pix[2] = 1.5
	im.Pix[4] = float32(math.NaN())
	nrgba := im.ToNRGBA()
	if nrgba.Pix[0] != 0 {
		t.Errorf("negative sample quantized to %d, want 0", nrgba.Pix[0])
	}
	if nrgba.Pix[1] != 255 {
		t.Errorf("overrange sample quantized to %d, want 255", nrgba.Pix[1])
	}
	if nrgba.Pix[2] != 0 {
		t.Errorf("NaN sample quantized to %d, want 0", nrgba.Pix[2])
	}
}

func TestFromNRGBARoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 11)
	}
	im := FromNRGBA(src, 4)
	back := im.ToNRGBA()
	for i := range src.Pix {
		if src.Pix[i] != back.Pix[i] {
			t.Fatalf("byte %d: %d -> %d", i, src.Pix[i], back.Pix[i])
		}
	}
}

func TestZoomPlane2x(t *testing.T) {
	p := []float32{1, 2, 3, 4}
	out := ZoomPlane2x(p, 2, 2)
	want := []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("pixel %d = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestCropPlane(t *testing.T) {
	p := make([]float32, 4*3)
	for i := range p {
		p[i] = float32(i)
	}
	out := CropPlane(p, 4, 3, 2, 2)
	want := []float32{0, 1, 4, 5}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("pixel %d = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestResizePlane(t *testing.T) {
	p := make([]float32, 8*6)
	for i := range p {
		p[i] = 0.5
	}
	out := ResizePlane(p, 8, 6, 4, 3, Cubic)
	if len(out) != 4*3 {
		t.Fatalf("resized length %d, want 12", len(out))
	}
	for i, v := range out {
		if math.Abs(float64(v)-0.5) > 1e-3 {
			t.Fatalf("constant plane drifted at %d: %v", i, v)
		}
	}

	same := ResizePlane(p, 8, 6, 8, 6, Linear)
	for i := range p {
		if same[i] != p[i] {
			t.Fatal("same-size resize must be a plain copy")
		}
	}
}

func TestScaledSize(t *testing.T) {
	cases := []struct {
		w, h   int
		ratio  float64
		nw, nh int
	}{
		{20, 28, 0.75, 15, 21},
		{10, 10, 1, 10, 10},
		{3, 3, 0.1, 1, 1},
		{5, 7, 2, 10, 14},
	}
	for _, c := range cases {
		nw, nh := ScaledSize(c.w, c.h, c.ratio)
		if nw != c.nw || nh != c.nh {
			t.Errorf("ScaledSize(%d, %d, %g) = %dx%d, want %dx%d", c.w, c.h, c.ratio, nw, nh, c.nw, c.nh)
		}
	}
}
