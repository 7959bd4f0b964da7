package image

import (
	"fmt"
	"image"

	"pulmoprint/internal/errs"
	"pulmoprint/pkg/geometry"

	"golang.org/x/image/draw"
)

// DefaultSize is the standard working resolution.
var DefaultSize = geometry.Size{Width: 1024, Height: 1024}

// Resampler resizes an intensity matrix to an exact target size.
type Resampler interface {
	Resample(src *Matrix, size geometry.Size) (*Matrix, error)
}

// NewResampler returns the resampler backend by name: "" or "draw" for the
// pure-Go golang.org/x/image/draw backend, "gocv" for OpenCV (requires the
// gocv build tag).
func NewResampler(kind string) (Resampler, error) {
	switch kind {
	case "", "draw":
		return DrawResampler{}, nil
	case "gocv":
		return newCVResampler()
	default:
		return nil, fmt.Errorf("unsupported resampler backend: %s", kind)
	}
}

// Normalize resizes m to size with the default resampler.
func Normalize(m *Matrix, size geometry.Size) (*Matrix, error) {
	return NormalizeWith(DrawResampler{}, m, size)
}

// NormalizeWith validates the input and target size, then resamples with r.
// A matrix already at the target size is returned as a copy.
func NormalizeWith(r Resampler, m *Matrix, size geometry.Size) (*Matrix, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, &errs.ConfigError{Field: "target size", Value: size, Reason: "must be positive"}
	}
	if m.Width == size.Width && m.Height == size.Height {
		return m.Clone(), nil
	}
	return r.Resample(m, size)
}

// enlarging reports whether the target exceeds the source in either dimension.
func enlarging(src *Matrix, size geometry.Size) bool {
	return size.Width > src.Width || size.Height > src.Height
}

// DrawResampler resamples with golang.org/x/image/draw kernels: bilinear when
// enlarging (smooth), Catmull-Rom when shrinking (sharp).
type DrawResampler struct{}

// Resample replicates the channel into opaque RGB, scales it and averages the
// channels back to one.
func (DrawResampler) Resample(src *Matrix, size geometry.Size) (*Matrix, error) {
	var kernel draw.Interpolator = draw.CatmullRom
	if enlarging(src, size) {
		kernel = draw.BiLinear
	}

	rgb := src.RGBA()
	dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	kernel.Scale(dst, dst.Bounds(), rgb, rgb.Bounds(), draw.Src, nil)

	return FromRGBA(dst), nil
}
