package pipeline

import (
	"fmt"
	"math"
)

// Mode selects which networks a run applies.
type Mode string

const (
	ModeNoise      Mode = "noise"
	ModeScale      Mode = "scale"
	ModeNoiseScale Mode = "noise_scale"
	ModeAutoScale  Mode = "auto_scale"
)

// ParseMode validates a mode flag value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNoise, ModeScale, ModeNoiseScale, ModeAutoScale:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, s)
}

func (m Mode) usesNoise() bool {
	return m == ModeNoise || m == ModeNoiseScale || m == ModeAutoScale
}

func (m Mode) usesScale() bool {
	return m == ModeScale || m == ModeNoiseScale || m == ModeAutoScale
}

// Plan is the derived pass sequence for one image: an optional denoise
// pass, ZoomSteps doubling passes through the scale network, then one
// residual Shrink resize landing exactly on the requested ratio.
type Plan struct {
	Denoise   bool
	ZoomSteps int
	Shrink    float64
}

// BuildPlan derives the pass sequence.  In auto mode the denoise pass
// runs only for lossy sources; the scale sequence runs whenever the
// mode scales and the ratio is not 1.  Shrink ≤ 1 by construction:
// ceil(log2) doublings always overshoot or match.
func BuildPlan(mode Mode, scaleRatio float64, lossy bool) Plan {
	p := Plan{Shrink: 1}

	switch mode {
	case ModeAutoScale:
		p.Denoise = lossy
	default:
		p.Denoise = mode.usesNoise()
	}

	if mode.usesScale() && scaleRatio != 1 {
		steps := int(math.Ceil(math.Log2(scaleRatio)))
		if steps < 0 {
			steps = 0 // pure downscale, no network pass
		}
		p.ZoomSteps = steps
		p.Shrink = scaleRatio / math.Pow(2, float64(steps))
	}
	return p
}
