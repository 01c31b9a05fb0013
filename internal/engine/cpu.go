package engine

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/AnyUserName/upres/internal/geometry"
	"github.com/AnyUserName/upres/internal/model"
)

// leakySlope is the negative-side gain of the activation applied after
// every convolution except the last.
const leakySlope = 0.1

// cpuNetwork runs the convolution stack in pure Go.  The two plane
// buffers are sized once at load for the widest layer and reused for
// every tile, so steady-state inference does not allocate.
type cpuNetwork struct {
	layers    []model.Layer
	inputSize int
	outSize   int
	capacity  int

	// bufs hands out scratch plane pairs; the parallel backend runs
	// several tiles at once and each needs its own pair.
	bufs    sync.Pool
	workers int
}

type planePair struct {
	a, b []float32
}

func loadCPU(m *model.Model, par geometry.Params, batchCapacity, workers int) (*cpuNetwork, error) {
	if batchCapacity <= 0 {
		return nil, fmt.Errorf("batch capacity %d must be positive", batchCapacity)
	}
	for i, l := range m.Layers {
		if l.KW != 3 || l.KH != 3 {
			return nil, fmt.Errorf("layer %d: %dx%d kernels unsupported, want 3x3", i, l.KW, l.KH)
		}
	}
	if m.Layers[0].InPlanes != 1 || m.Layers[len(m.Layers)-1].OutPlanes != 1 {
		return nil, fmt.Errorf("network must map 1 plane to 1 plane, got %d to %d",
			m.Layers[0].InPlanes, m.Layers[len(m.Layers)-1].OutPlanes)
	}
	if got, want := m.Shrinkage(), par.LayerCount; got != want {
		return nil, fmt.Errorf("model shrinks %d pixels per side, geometry expects %d", got, want)
	}

	ibs := par.InputBlockSize()

	// Widest buffer across the stack, input plane included: the
	// output of each layer is (side−2)² per plane.
	maxFloats := ibs * ibs
	side := ibs
	for _, l := range m.Layers {
		side -= 2
		if n := l.OutPlanes * side * side; n > maxFloats {
			maxFloats = n
		}
	}

	n := &cpuNetwork{
		layers:    m.Layers,
		inputSize: ibs,
		outSize:   par.OutputBlockSize(),
		capacity:  batchCapacity,
		workers:   workers,
	}
	n.bufs.New = func() any {
		return &planePair{a: make([]float32, maxFloats), b: make([]float32, maxFloats)}
	}
	return n, nil
}

func (n *cpuNetwork) InputSize() int  { return n.inputSize }
func (n *cpuNetwork) OutputSize() int { return n.outSize }

func (n *cpuNetwork) Infer(dst, src []float32, count int) error {
	ips := n.inputSize * n.inputSize
	ops := n.outSize * n.outSize
	if count <= 0 || count > n.capacity {
		return fmt.Errorf("batch of %d exceeds capacity %d", count, n.capacity)
	}
	if len(src) < count*ips || len(dst) < count*ops {
		return fmt.Errorf("batch buffers too small for %d blocks", count)
	}

	if n.workers <= 1 || count == 1 {
		pair := n.bufs.Get().(*planePair)
		defer n.bufs.Put(pair)
		for k := 0; k < count; k++ {
			n.forwardBlock(dst[k*ops:(k+1)*ops], src[k*ips:(k+1)*ips], pair)
		}
		return nil
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, n.workers)
	for k := 0; k < count; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			pair := n.bufs.Get().(*planePair)
			defer n.bufs.Put(pair)
			n.forwardBlock(dst[k*ops:(k+1)*ops], src[k*ips:(k+1)*ips], pair)
		}(k)
	}
	wg.Wait()
	return nil
}

// forwardBlock runs one input block through the stack: valid 3×3
// convolutions, leaky activation on every layer but the last.
func (n *cpuNetwork) forwardBlock(dst, src []float32, pair *planePair) {
	cur, next := pair.a, pair.b
	side := n.inputSize
	copy(cur[:side*side], src)

	for li, l := range n.layers {
		outSide := side - 2
		inPS := side * side
		outPS := outSide * outSide
		last := li == len(n.layers)-1

		for op := 0; op < l.OutPlanes; op++ {
			out := next[op*outPS : (op+1)*outPS]
			bias := l.Bias[op]
			for i := range out {
				out[i] = bias
			}
			for ip := 0; ip < l.InPlanes; ip++ {
				k := l.Weights[(op*l.InPlanes+ip)*9 : (op*l.InPlanes+ip)*9+9]
				in := cur[ip*inPS : (ip+1)*inPS]
				for y := 0; y < outSide; y++ {
					r0 := in[y*side:]
					r1 := in[(y+1)*side:]
					r2 := in[(y+2)*side:]
					o := out[y*outSide : (y+1)*outSide]
					for x := range o {
						o[x] += k[0]*r0[x] + k[1]*r0[x+1] + k[2]*r0[x+2] +
							k[3]*r1[x] + k[4]*r1[x+1] + k[5]*r1[x+2] +
							k[6]*r2[x] + k[7]*r2[x+1] + k[8]*r2[x+2]
					}
				}
			}
			if !last {
				out := next[op*outPS : (op+1)*outPS]
				for i, v := range out {
					if v < 0 {
						out[i] = v * leakySlope
					}
				}
			}
		}

		side = outSide
		cur, next = next, cur
	}

	copy(dst, cur[:side*side])
}

// serialBackend is the always-available reference path: one block at a
// time, deterministic, minimal memory.
type serialBackend struct{}

func (*serialBackend) Name() string    { return "serial" }
func (*serialBackend) Available() bool { return true }

func (*serialBackend) Load(m *model.Model, par geometry.Params, batchCapacity int) (Network, error) {
	return loadCPU(m, par, batchCapacity, 1)
}

// parallelBackend fans the blocks of a batch across CPU workers.
// Output ordering is unaffected: every block writes only its own slot.
type parallelBackend struct {
	probe   sync.Once
	workers int
}

func newParallelBackend() *parallelBackend { return &parallelBackend{} }

func (b *parallelBackend) Name() string { return "parallel" }

func (b *parallelBackend) Available() bool {
	b.probe.Do(func() { b.workers = runtime.NumCPU() })
	return b.workers > 1
}

func (b *parallelBackend) Load(m *model.Model, par geometry.Params, batchCapacity int) (Network, error) {
	if !b.Available() {
		return nil, fmt.Errorf("parallel backend needs more than one CPU")
	}
	return loadCPU(m, par, batchCapacity, b.workers)
}
