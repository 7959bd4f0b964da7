// Package pipeline wires the fingerprinting stages together and exposes the
// analysis, detection, training and evaluation entry points.
package pipeline

import (
	"fmt"
	"math"

	"pulmoprint/internal/cluster"
	"pulmoprint/internal/errs"
	"pulmoprint/internal/image"
	"pulmoprint/internal/model"
	"pulmoprint/internal/spectral"
	"pulmoprint/pkg/geometry"
)

// DefaultDetectThreshold is the score at or above which callers report a
// positive finding. The pipeline itself never applies it.
const DefaultDetectThreshold = 1200

// Params holds the tunable pipeline constants.
// See DefaultParams for the documented defaults.
type Params struct {
	Size      geometry.Size // Working resolution
	BlockSize int           // Block side, power of two
	BinSize   float64       // Energy quantization step
	Bands     int           // 2 = [high, low], 3 = [high, low, mid]
	Extended  bool          // Add the quadrant code to every token

	MinClusterSize  int     // Smallest scoring component
	RatioThreshold  float64 // normal/anomaly ratio above which a cell is normal
	DetectThreshold float64 // Caller-side positive threshold
}

// DefaultParams returns the standard configuration.
func DefaultParams() Params {
	return Params{
		Size:      image.DefaultSize,
		BlockSize: spectral.DefaultBlockSize,
		BinSize:   2,
		Bands:     2,
		Extended:  false,

		MinClusterSize:  cluster.DefaultMinSize,
		RatioThreshold:  model.DefaultRatioThreshold,
		DetectThreshold: DefaultDetectThreshold,
	}
}

// WithBinSize returns a copy of params with a different quantization step.
func (p Params) WithBinSize(bin float64) Params {
	p.BinSize = bin
	return p
}

// WithBands returns a copy of params with a different band count.
func (p Params) WithBands(bands int) Params {
	p.Bands = bands
	return p
}

// WithExtended returns a copy of params with extended tokens switched on or off.
func (p Params) WithExtended(extended bool) Params {
	p.Extended = extended
	return p
}

// WithBlockSize returns a copy of params with a different block side.
func (p Params) WithBlockSize(size int) Params {
	p.BlockSize = size
	return p
}

// WithSize returns a copy of params with a different working resolution.
func (p Params) WithSize(width, height int) Params {
	p.Size = geometry.Size{Width: width, Height: height}
	return p
}

// WithMinClusterSize returns a copy of params with a different cluster threshold.
func (p Params) WithMinClusterSize(n int) Params {
	p.MinClusterSize = n
	return p
}

// WithRatioThreshold returns a copy of params with a different scoring ratio.
func (p Params) WithRatioThreshold(r float64) Params {
	p.RatioThreshold = r
	return p
}

// Validate reports the first invalid parameter as a ConfigError.
func (p Params) Validate() error {
	switch {
	case p.Size.Width <= 0 || p.Size.Height <= 0:
		return &errs.ConfigError{Field: "working size", Value: p.Size, Reason: "must be positive"}
	case !spectral.IsPowerOfTwo(p.BlockSize):
		return &errs.ConfigError{Field: "block size", Value: p.BlockSize, Reason: "must be a power of two"}
	case p.BlockSize > p.Size.Width || p.BlockSize > p.Size.Height:
		return &errs.ConfigError{Field: "block size", Value: p.BlockSize, Reason: "larger than working size " + p.Size.String()}
	case !(p.BinSize > 0) || math.IsInf(p.BinSize, 0):
		return &errs.ConfigError{Field: "bin size", Value: p.BinSize, Reason: "must be a positive number"}
	case p.Bands < 2:
		return &errs.ConfigError{Field: "band count", Value: p.Bands, Reason: "must be at least 2"}
	case p.MinClusterSize < 1:
		return &errs.ConfigError{Field: "minimum cluster size", Value: p.MinClusterSize, Reason: "must be at least 1"}
	case !(p.RatioThreshold >= 0):
		return &errs.ConfigError{Field: "ratio threshold", Value: p.RatioThreshold, Reason: "must not be negative"}
	}
	return nil
}

// String summarises the parameters that shape tokens; two models are only
// comparable when these match.
func (p Params) String() string {
	return fmt.Sprintf("size=%s block=%d bin=%g bands=%d extended=%t",
		p.Size, p.BlockSize, p.BinSize, p.Bands, p.Extended)
}
