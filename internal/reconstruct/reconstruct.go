// Package reconstruct drives batched tile inference: it slices a
// padded luma plane into overlapping fixed-size input blocks, runs
// them through a network batch by batch, and scatters the valid
// interior of each output block into a fresh result canvas.
package reconstruct

import (
	"errors"
	"fmt"

	"github.com/AnyUserName/upres/internal/engine"
	"github.com/AnyUserName/upres/internal/geometry"
)

// ErrInference classifies a failed forward pass; the whole
// reconstruction is abandoned, never a partial canvas.
var ErrInference = errors.New("inference failed")

// Reconstructor owns the packed batch buffers.  They are sized once
// for the configured batch capacity and reused for every plane, so a
// long batch run never reallocates.  One Reconstructor serves one
// image at a time; give each concurrent pipeline its own.
type Reconstructor struct {
	par   geometry.Params
	batch int

	input  []float32 // batch × InputBlockSize²
	output []float32 // batch × OutputBlockSize²
}

// New sizes the scratch buffers for the given geometry and batch
// capacity.
func New(par geometry.Params, batchSize int) *Reconstructor {
	if batchSize < 1 {
		batchSize = 1
	}
	ibs := par.InputBlockSize()
	obs := par.OutputBlockSize()
	return &Reconstructor{
		par:    par,
		batch:  batchSize,
		input:  make([]float32, batchSize*ibs*ibs),
		output: make([]float32, batchSize*obs*obs),
	}
}

// Reconstruct runs every tile of the w×h plane through net and returns
// the rebuilt plane.  The plane dimensions must already be exact
// multiples of the output size (use geometry.PadReplicate first).
func (r *Reconstructor) Reconstruct(net engine.Network, plane []float32, w, h int) ([]float32, error) {
	grid, err := geometry.NewGrid(r.par, w, h)
	if err != nil {
		return nil, err
	}
	if net.InputSize() != r.par.InputBlockSize() || net.OutputSize() != r.par.OutputBlockSize() {
		return nil, fmt.Errorf("network block sizes %d/%d do not match geometry %d/%d",
			net.InputSize(), net.OutputSize(), r.par.InputBlockSize(), r.par.OutputBlockSize())
	}

	ibs := r.par.InputBlockSize()
	obs := r.par.OutputBlockSize()
	ips := ibs * ibs
	ops := obs * obs
	crop := r.par.CropSize
	pad := r.par.OutputPadding()

	out := make([]float32, w*h)
	total := grid.Tiles()

	for num := 0; num < total; num += r.batch {
		n := total - num
		if n > r.batch {
			n = r.batch // the tail batch simply shrinks
		}

		for k := 0; k < n; k++ {
			r.packTile(grid.Tile(num+k), plane, w, r.input[k*ips:(k+1)*ips])
		}

		if err := net.Infer(r.output[:n*ops], r.input[:n*ips], n); err != nil {
			return nil, fmt.Errorf("%w: tiles %d-%d: %v", ErrInference, num, num+n-1, err)
		}

		// Only the central crop×crop region of each output block is
		// trusted; the pad-wide rim carries convolution edge artifacts
		// and is discarded.  Destinations never overlap.
		for k := 0; k < n; k++ {
			t := grid.Tile(num + k)
			block := r.output[k*ops : (k+1)*ops]
			for row := 0; row < crop; row++ {
				src := block[(row+pad)*obs+pad : (row+pad)*obs+pad+crop]
				copy(out[(t.DstY+row)*w+t.DstX:], src)
			}
		}
	}

	return out, nil
}

// packTile serializes one padded input block into dst.  The interior
// is a contiguous row copy; the replication margins are synthesized
// around it.
func (r *Reconstructor) packTile(t geometry.Tile, plane []float32, stride int, dst []float32) {
	ibs := r.par.InputBlockSize()
	for j := 0; j < ibs; j++ {
		sy := j - t.Top
		if sy < 0 {
			sy = 0
		} else if sy >= t.H {
			sy = t.H - 1
		}
		src := plane[(t.Y+sy)*stride+t.X : (t.Y+sy)*stride+t.X+t.W]
		row := dst[j*ibs : (j+1)*ibs]

		for x := 0; x < t.Left; x++ {
			row[x] = src[0]
		}
		copy(row[t.Left:t.Left+t.W], src)
		for x := t.Left + t.W; x < ibs; x++ {
			row[x] = src[t.W-1]
		}
	}
}
