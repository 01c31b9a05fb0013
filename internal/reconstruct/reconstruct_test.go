package reconstruct

import (
	"errors"
	"fmt"
	"testing"

	"github.com/AnyUserName/upres/internal/geometry"
	"github.com/AnyUserName/upres/internal/pixmap"
)

// identityNet mimics a convolution stack that reproduces its input on
// the valid interior: each output block is the central region of its
// input block.
type identityNet struct {
	par     geometry.Params
	batches []int // n of every Infer call
	failAt  int   // fail the i-th call (1-based), 0 = never
	calls   int
}

func (n *identityNet) InputSize() int  { return n.par.InputBlockSize() }
func (n *identityNet) OutputSize() int { return n.par.OutputBlockSize() }

func (n *identityNet) Infer(dst, src []float32, count int) error {
	n.calls++
	n.batches = append(n.batches, count)
	if n.failAt > 0 && n.calls == n.failAt {
		return fmt.Errorf("synthetic failure")
	}
	ibs, obs := n.InputSize(), n.OutputSize()
	off := (ibs - obs) / 2
	for k := 0; k < count; k++ {
		for y := 0; y < obs; y++ {
			copy(dst[k*obs*obs+y*obs:k*obs*obs+(y+1)*obs],
				src[k*ibs*ibs+(y+off)*ibs+off:])
		}
	}
	return nil
}

func testPlane(w, h int) []float32 {
	p := make([]float32, w*h)
	for i := range p {
		p[i] = float32((i*31)%997) / 997
	}
	return p
}

// Padding and cropping must be exactly symmetric: with an identity
// network a non-multiple-size plane survives the full pad → tile →
// reconstruct → crop cycle bit for bit.
func TestRoundTripBitExact(t *testing.T) {
	par := geometry.Params{CropSize: 8, LayerCount: 3, OuterPadding: 1}
	w, h := 20, 12 // not multiples of 8
	plane := testPlane(w, h)

	pw, ph := par.PaddedSize(w, h)
	padded := geometry.PadReplicate(plane, w, h, pw, ph)

	r := New(par, 2)
	out, err := r.Reconstruct(&identityNet{par: par}, padded, pw, ph)
	if err != nil {
		t.Fatal(err)
	}

	got := pixmap.CropPlane(out, pw, ph, w, h)
	for i := range plane {
		if got[i] != plane[i] {
			t.Fatalf("pixel %d: %v != %v", i, got[i], plane[i])
		}
	}
}

func TestTailBatchShrinks(t *testing.T) {
	par := geometry.Params{CropSize: 8, LayerCount: 2, OuterPadding: 1}
	// 24x16 = 3x2 tiles; batch 4 leaves a tail of 2.
	w, h := 24, 16
	plane := testPlane(w, h)

	net := &identityNet{par: par}
	r := New(par, 4)
	out, err := r.Reconstruct(net, plane, w, h)
	if err != nil {
		t.Fatal(err)
	}

	if len(net.batches) != 2 || net.batches[0] != 4 || net.batches[1] != 2 {
		t.Fatalf("batch sizes = %v, want [4 2]", net.batches)
	}
	// Every tile must land exactly once: identity output == input.
	for i := range plane {
		if out[i] != plane[i] {
			t.Fatalf("pixel %d: %v != %v", i, out[i], plane[i])
		}
	}
}

func TestInferErrorAborts(t *testing.T) {
	par := geometry.Params{CropSize: 8, LayerCount: 2, OuterPadding: 1}
	plane := testPlane(24, 16)

	net := &identityNet{par: par, failAt: 2}
	r := New(par, 2)
	_, err := r.Reconstruct(net, plane, 24, 16)
	if err == nil {
		t.Fatal("expected inference error")
	}
	if !errors.Is(err, ErrInference) {
		t.Fatalf("error %v is not ErrInference", err)
	}

	// The instance stays usable after a failure.
	net.failAt = 0
	net.calls = 0
	if _, err := r.Reconstruct(net, plane, 24, 16); err != nil {
		t.Fatalf("reconstructor unusable after failure: %v", err)
	}
}

func TestRejectsNonMultiplePlane(t *testing.T) {
	par := geometry.Params{CropSize: 8, LayerCount: 2, OuterPadding: 1}
	r := New(par, 2)
	if _, err := r.Reconstruct(&identityNet{par: par}, make([]float32, 20*16), 20, 16); err == nil {
		t.Fatal("expected error for non-multiple plane")
	}
}

func TestRejectsMismatchedNetwork(t *testing.T) {
	par := geometry.Params{CropSize: 8, LayerCount: 2, OuterPadding: 1}
	other := geometry.Params{CropSize: 8, LayerCount: 3, OuterPadding: 1}
	r := New(par, 1)
	if _, err := r.Reconstruct(&identityNet{par: other}, make([]float32, 8*8), 8, 8); err == nil {
		t.Fatal("expected error for mismatched block sizes")
	}
}
