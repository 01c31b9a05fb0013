// Package geometry computes tile layout for bounded-memory network
// inference: how many fixed-size blocks cover a plane, how much
// replicated-edge padding the plane needs, and the padded input /
// cropped output rectangle of every block.  Pure math, no I/O.
package geometry

import "fmt"

// Params fixes the block sizes for one model family.  All derived
// sizes come from these three numbers; in particular the output-side
// crop offset is InnerPadding + OuterPadding − LayerCount and must
// never be restated as an independent constant elsewhere.
type Params struct {
	// CropSize is the side of the valid output square one block
	// contributes to the result canvas.
	CropSize int
	// LayerCount is the number of 3×3 stride-1 convolutions in the
	// network; each one shrinks the block by one pixel per side.
	LayerCount int
	// OuterPadding is the extra guard band replicated around every
	// block input beyond the receptive-field margin.
	OuterPadding int
}

// InnerPadding is the receptive-field margin: one pixel per layer.
func (p Params) InnerPadding() int { return p.LayerCount }

// OutputSize is the destination stride between block origins.
func (p Params) OutputSize() int { return p.CropSize }

// InputBlockSize is the fixed side of every block fed to the network,
// regardless of the block's position in the image.
func (p Params) InputBlockSize() int {
	return p.CropSize + 2*(p.InnerPadding()+p.OuterPadding)
}

// OutputPadding is the border of each network output block that is
// discarded as convolution edge artifact.
func (p Params) OutputPadding() int {
	return p.InnerPadding() + p.OuterPadding - p.LayerCount
}

// OutputBlockSize is the side of the block the network emits.
func (p Params) OutputBlockSize() int {
	return p.CropSize + 2*p.OutputPadding()
}

// PaddedSize rounds a canvas up to the smallest multiple of OutputSize
// in each dimension.
func (p Params) PaddedSize(w, h int) (int, int) {
	out := p.OutputSize()
	cols := (w + out - 1) / out
	rows := (h + out - 1) / out
	return cols * out, rows * out
}

// Grid is the tiling of one padded plane.
type Grid struct {
	Params
	W, H       int
	Cols, Rows int
}

// NewGrid builds the tiling for a plane whose dimensions are already
// exact multiples of OutputSize.
func NewGrid(p Params, w, h int) (*Grid, error) {
	out := p.OutputSize()
	if out <= 0 {
		return nil, fmt.Errorf("geometry: output size %d must be positive", out)
	}
	if w%out != 0 || h%out != 0 {
		return nil, fmt.Errorf("geometry: %dx%d is not a multiple of output size %d", w, h, out)
	}
	return &Grid{Params: p, W: w, H: h, Cols: w / out, Rows: h / out}, nil
}

// Tiles is the total block count, row-major order.
func (g *Grid) Tiles() int { return g.Cols * g.Rows }

// Tile describes one block: the clamped source rectangle to read, the
// replication padding to synthesize on each side so the input block
// reaches its fixed size, and the destination origin of the block's
// valid output.  Destination rectangles of distinct tiles never
// overlap.
type Tile struct {
	X, Y, W, H               int // clamped source rectangle
	Top, Bottom, Left, Right int // replication padding
	DstX, DstY               int // destination origin (CropSize square)
}

// Tile computes the geometry of block i.
func (g *Grid) Tile(i int) Tile {
	out := g.OutputSize()
	col := i % g.Cols
	row := i / g.Cols
	dstX := col * out
	dstY := row * out

	inner := g.InnerPadding()
	x := dstX - inner
	y := dstY - inner
	w := g.CropSize + 2*inner
	h := g.CropSize + 2*inner

	t := Tile{
		Top: g.OuterPadding, Bottom: g.OuterPadding,
		Left: g.OuterPadding, Right: g.OuterPadding,
		DstX: dstX, DstY: dstY,
	}

	// Clamp to the canvas; the shortfall becomes extra replication
	// padding so the input block keeps its fixed size at the edges.
	if x < 0 {
		t.Left += -x
		w -= -x
		x = 0
	}
	if x+w > g.W {
		t.Right += x + w - g.W
		w = g.W - x
	}
	if y < 0 {
		t.Top += -y
		h -= -y
		y = 0
	}
	if y+h > g.H {
		t.Bottom += y + h - g.H
		h = g.H - y
	}

	t.X, t.Y, t.W, t.H = x, y, w, h
	return t
}

// PadReplicate grows a plane to nw×nh, anchored top-left, filling the
// new bottom/right margin by edge replication.
func PadReplicate(p []float32, w, h, nw, nh int) []float32 {
	out := make([]float32, nw*nh)
	for y := 0; y < nh; y++ {
		sy := y
		if sy >= h {
			sy = h - 1
		}
		row := out[y*nw : (y+1)*nw]
		copy(row, p[sy*w:sy*w+w])
		edge := p[sy*w+w-1]
		for x := w; x < nw; x++ {
			row[x] = edge
		}
	}
	return out
}
