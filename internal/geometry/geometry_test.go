package geometry

import "testing"

func testParams() Params {
	return Params{CropSize: 10, LayerCount: 3, OuterPadding: 1}
}

func TestDerivedSizes(t *testing.T) {
	p := testParams()
	if got, want := p.InnerPadding(), 3; got != want {
		t.Errorf("inner padding = %d, want %d", got, want)
	}
	if got, want := p.InputBlockSize(), 10+2*(3+1); got != want {
		t.Errorf("input block = %d, want %d", got, want)
	}
	if got, want := p.OutputPadding(), 3+1-3; got != want {
		t.Errorf("output padding = %d, want %d", got, want)
	}
	if got, want := p.OutputBlockSize(), 10+2*1; got != want {
		t.Errorf("output block = %d, want %d", got, want)
	}
	// The crop offset and block size difference must stay consistent:
	// input minus twice the layer shrinkage is the output block.
	if p.InputBlockSize()-2*p.LayerCount != p.OutputBlockSize() {
		t.Error("input/output block sizes disagree with layer shrinkage")
	}
}

func TestPaddedSize(t *testing.T) {
	p := testParams()
	out := p.OutputSize()
	for w := 1; w <= 3*out; w++ {
		for h := 1; h <= 2*out; h += 3 {
			pw, ph := p.PaddedSize(w, h)
			if pw%out != 0 || ph%out != 0 {
				t.Fatalf("%dx%d padded to %dx%d, not multiples of %d", w, h, pw, ph, out)
			}
			if pw < w || ph < h {
				t.Fatalf("%dx%d padded to smaller %dx%d", w, h, pw, ph)
			}
			if pw >= w+out || ph >= h+out {
				t.Fatalf("%dx%d padded to %dx%d, more than one extra block", w, h, pw, ph)
			}
			if w%out == 0 && pw != w {
				t.Fatalf("width %d is a multiple but was padded to %d", w, pw)
			}
		}
	}
}

func TestTilesPartitionCanvas(t *testing.T) {
	p := testParams()
	g, err := NewGrid(p, 30, 20)
	if err != nil {
		t.Fatal(err)
	}
	if g.Cols != 3 || g.Rows != 2 {
		t.Fatalf("grid %dx%d, want 3x2", g.Cols, g.Rows)
	}

	// Every pixel of the canvas must be written by exactly one tile.
	cover := make([]int, g.W*g.H)
	for i := 0; i < g.Tiles(); i++ {
		tile := g.Tile(i)
		for y := 0; y < p.CropSize; y++ {
			for x := 0; x < p.CropSize; x++ {
				cover[(tile.DstY+y)*g.W+tile.DstX+x]++
			}
		}
	}
	for i, c := range cover {
		if c != 1 {
			t.Fatalf("pixel %d covered %d times", i, c)
		}
	}
}

func TestTileInputBlockIsFixedSize(t *testing.T) {
	p := testParams()
	g, err := NewGrid(p, 40, 30)
	if err != nil {
		t.Fatal(err)
	}
	ibs := p.InputBlockSize()
	for i := 0; i < g.Tiles(); i++ {
		tile := g.Tile(i)
		if tile.Left+tile.W+tile.Right != ibs {
			t.Errorf("tile %d: horizontal %d+%d+%d != %d", i, tile.Left, tile.W, tile.Right, ibs)
		}
		if tile.Top+tile.H+tile.Bottom != ibs {
			t.Errorf("tile %d: vertical %d+%d+%d != %d", i, tile.Top, tile.H, tile.Bottom, ibs)
		}
		if tile.X < 0 || tile.Y < 0 || tile.X+tile.W > g.W || tile.Y+tile.H > g.H {
			t.Errorf("tile %d: source rect %+v outside canvas", i, tile)
		}
	}

	// An interior tile keeps the plain outer guard band.
	interior := g.Tile(1*g.Cols + 1)
	if interior.Left != p.OuterPadding || interior.Top != p.OuterPadding {
		t.Errorf("interior tile has padding %d/%d, want %d", interior.Left, interior.Top, p.OuterPadding)
	}
	// The corner tile converts the clamped margin into replication.
	corner := g.Tile(0)
	if corner.Left != p.OuterPadding+p.InnerPadding() {
		t.Errorf("corner tile left padding = %d, want %d", corner.Left, p.OuterPadding+p.InnerPadding())
	}
}

func TestNewGridRejectsNonMultiples(t *testing.T) {
	if _, err := NewGrid(testParams(), 31, 20); err == nil {
		t.Fatal("expected error for non-multiple width")
	}
	if _, err := NewGrid(testParams(), 30, 25); err == nil {
		t.Fatal("expected error for non-multiple height")
	}
}

func TestPadReplicate(t *testing.T) {
	// 2x2 plane grown to 4x3.
	p := []float32{1, 2, 3, 4}
	out := PadReplicate(p, 2, 2, 4, 3)
	want := []float32{
		1, 2, 2, 2,
		3, 4, 4, 4,
		3, 4, 4, 4,
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("pixel %d = %v, want %v\nfull: %v", i, out[i], want[i], out)
		}
	}
}
