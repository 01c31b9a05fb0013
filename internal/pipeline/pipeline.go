// Package pipeline orchestrates the multi-pass reconstruction: mode
// and ratio become a pass plan, each pass pads, tiles and crops the
// luma plane, and the color planes rejoin at the very end.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnyUserName/upres/internal/codec"
	"github.com/AnyUserName/upres/internal/engine"
	"github.com/AnyUserName/upres/internal/geometry"
	"github.com/AnyUserName/upres/internal/model"
	"github.com/AnyUserName/upres/internal/pixmap"
	"github.com/AnyUserName/upres/internal/reconstruct"
)

var (
	// ErrInvalidConfig rejects bad construction parameters.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNotInitialized means Process was called on a Pipeline that
	// did not come from New.
	ErrNotInitialized = errors.New("pipeline not initialized")
)

// Config holds everything a Pipeline needs at construction.
type Config struct {
	Mode       Mode
	NoiseLevel int     // 0-3, selects the denoise weights
	ScaleRatio float64 // requested overall ratio, > 0
	ModelDir   string
	Engine     string // backend name, "auto" by default
	CropSize   int    // valid output square per tile
	BatchSize  int    // blocks per inference call
}

// Pipeline is one initialized processing instance.  The network
// handles and the batch scratch are allocated once here and shared by
// every image the instance processes, strictly one at a time.
type Pipeline struct {
	cfg   Config
	par   geometry.Params
	noise engine.Network
	scale engine.Network
	recon *reconstruct.Reconstructor
}

// New validates the configuration, loads the required model weights
// and binds them to an inference backend.
func New(cfg Config) (*Pipeline, error) {
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.ScaleRatio <= 0 {
		return nil, fmt.Errorf("%w: scale ratio %g must be positive", ErrInvalidConfig, cfg.ScaleRatio)
	}
	if cfg.NoiseLevel < 0 || cfg.NoiseLevel > 3 {
		return nil, fmt.Errorf("%w: noise level %d out of range 0-3", ErrInvalidConfig, cfg.NoiseLevel)
	}
	if cfg.CropSize <= 0 {
		cfg.CropSize = 128
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}

	backend, err := engine.NewRegistry().Get(cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var noiseModel, scaleModel *model.Model
	if cfg.Mode.usesNoise() {
		if noiseModel, err = model.Load(cfg.ModelDir, model.Noise, cfg.NoiseLevel); err != nil {
			return nil, err
		}
	}
	if cfg.Mode.usesScale() {
		if scaleModel, err = model.Load(cfg.ModelDir, model.Scale, 0); err != nil {
			return nil, err
		}
	}

	// Both networks share one block geometry, so their receptive
	// fields must agree.
	layers := 0
	if noiseModel != nil {
		layers = noiseModel.Shrinkage()
	}
	if scaleModel != nil {
		if layers != 0 && scaleModel.Shrinkage() != layers {
			return nil, fmt.Errorf("%w: noise and scale models shrink %d vs %d pixels",
				ErrInvalidConfig, layers, scaleModel.Shrinkage())
		}
		layers = scaleModel.Shrinkage()
	}

	p := &Pipeline{
		cfg: cfg,
		par: geometry.Params{CropSize: cfg.CropSize, LayerCount: layers, OuterPadding: 1},
	}
	if noiseModel != nil {
		if p.noise, err = backend.Load(noiseModel, p.par, cfg.BatchSize); err != nil {
			return nil, err
		}
	}
	if scaleModel != nil {
		if p.scale, err = backend.Load(scaleModel, p.par, cfg.BatchSize); err != nil {
			return nil, err
		}
	}
	p.recon = reconstruct.New(p.par, cfg.BatchSize)
	return p, nil
}

// Config returns the effective configuration after defaulting.
func (p *Pipeline) Config() Config { return p.cfg }

// Process runs the full pass sequence on a decoded image and returns
// the reconstructed image at the requested ratio.  lossy feeds the
// auto-mode denoise decision.  Cancellation is polled between coarse
// stages; a cancelled run returns ctx.Err() and no image.
func (p *Pipeline) Process(ctx context.Context, src *pixmap.Image, lossy bool) (*pixmap.Image, error) {
	if p == nil || p.recon == nil {
		return nil, ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The networks expect opaque input: flatten transparency against
	// white first, restore it after reconstruction.
	opaque, alpha := pixmap.CompositeWhite(src)

	yuv, err := pixmap.RGBToYCbCr(opaque)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	lw, lh := src.W, src.H
	luma := make([]float32, lw*lh)
	copy(luma, yuv.Plane(0))

	plan := BuildPlan(p.cfg.Mode, p.cfg.ScaleRatio, lossy)

	if plan.Denoise {
		if luma, err = p.runPass(p.noise, luma, lw, lh); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := 0; i < plan.ZoomSteps; i++ {
		luma = pixmap.ZoomPlane2x(luma, lw, lh)
		lw, lh = lw*2, lh*2
		if luma, err = p.runPass(p.scale, luma, lw, lh); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Chroma never sees the network: resample the opaque original to
	// the post-zoom size and keep only its color planes.
	color := pixmap.Resize(opaque, lw, lh, pixmap.Cubic)
	colorYUV, err := pixmap.RGBToYCbCr(color)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	colorYUV.SetPlane(0, luma)

	out, err := pixmap.YCbCrToRGB(colorYUV)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if alpha != nil {
		a := pixmap.ResizePlane(alpha, src.W, src.H, lw, lh, pixmap.Cubic)
		out = pixmap.UncompositeWhite(out, a)
	}

	// Residual fractional resize landing exactly on the ratio.
	if nw, nh := pixmap.ScaledSize(lw, lh, plan.Shrink); nw != lw || nh != lh {
		out = pixmap.Resize(out, nw, nh, pixmap.Linear)
	}
	return out, nil
}

// runPass is one pad → tile-reconstruct → crop cycle.  Padding never
// survives a pass: the plane comes back at exactly w×h.
func (p *Pipeline) runPass(net engine.Network, luma []float32, w, h int) ([]float32, error) {
	pw, ph := p.par.PaddedSize(w, h)
	padded := luma
	if pw != w || ph != h {
		padded = geometry.PadReplicate(luma, w, h, pw, ph)
	}
	out, err := p.recon.Reconstruct(net, padded, pw, ph)
	if err != nil {
		return nil, err
	}
	if pw != w || ph != h {
		out = pixmap.CropPlane(out, pw, ph, w, h)
	}
	return out, nil
}

// Result summarizes one processed file for reporting.
type Result struct {
	InWidth, InHeight   int
	OutWidth, OutHeight int
}

// ProcessFile decodes inPath, processes it, and encodes the result to
// outPath.  Nothing is written when any stage fails or the context is
// cancelled.
func (p *Pipeline) ProcessFile(ctx context.Context, inPath, outPath string) (Result, error) {
	src, meta, err := codec.Decode(inPath)
	if err != nil {
		return Result{}, err
	}
	res := Result{InWidth: meta.Width, InHeight: meta.Height}
	out, err := p.Process(ctx, src, meta.Lossy)
	if err != nil {
		return res, err
	}
	res.OutWidth, res.OutHeight = out.W, out.H
	return res, codec.Encode(out, outPath)
}
