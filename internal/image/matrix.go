// Package image provides image loading, grayscale intensity matrices and
// resolution normalization.
package image

import (
	"image"
	"image/color"

	"pulmoprint/internal/errs"
	"pulmoprint/pkg/geometry"
)

// Matrix is a rectangular grid of 8-bit intensities stored row-major.
type Matrix struct {
	Width  int
	Height int
	Pix    []uint8 // len(Pix) == Width*Height
}

// NewMatrix allocates a zeroed matrix.
func NewMatrix(width, height int) *Matrix {
	return &Matrix{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// FromRows builds a matrix from a slice of rows. All rows must have the same
// length and every value must fit in 0-255.
func FromRows(rows [][]int) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errs.Input("empty matrix")
	}
	m := NewMatrix(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != m.Width {
			return nil, errs.Input("row %d has %d columns, expected %d", y, len(row), m.Width)
		}
		for x, v := range row {
			if v < 0 || v > 255 {
				return nil, errs.Input("intensity %d at (%d,%d) out of range", v, y, x)
			}
			m.Pix[y*m.Width+x] = uint8(v)
		}
	}
	return m, nil
}

// FromImage converts any image to a grayscale intensity matrix using the
// standard luma weights of color.GrayModel.
func FromImage(img image.Image) *Matrix {
	bounds := img.Bounds()
	m := NewMatrix(bounds.Dx(), bounds.Dy())

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < m.Height; y++ {
			off := g.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(m.Pix[y*m.Width:(y+1)*m.Width], g.Pix[off:off+m.Width])
		}
		return m
	}

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			m.Pix[y*m.Width+x] = c.Y
		}
	}
	return m
}

// Validate checks the matrix invariants.
func (m *Matrix) Validate() error {
	if m == nil {
		return errs.Input("nil matrix")
	}
	if m.Width <= 0 || m.Height <= 0 {
		return errs.Input("empty matrix %dx%d", m.Width, m.Height)
	}
	if len(m.Pix) != m.Width*m.Height {
		return errs.Input("matrix %dx%d has %d samples", m.Width, m.Height, len(m.Pix))
	}
	return nil
}

// At returns the intensity at column x, row y.
func (m *Matrix) At(x, y int) uint8 {
	return m.Pix[y*m.Width+x]
}

// Set stores an intensity at column x, row y.
func (m *Matrix) Set(x, y int, v uint8) {
	m.Pix[y*m.Width+x] = v
}

// Size returns the matrix dimensions.
func (m *Matrix) Size() geometry.Size {
	return geometry.Size{Width: m.Width, Height: m.Height}
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	c := NewMatrix(m.Width, m.Height)
	copy(c.Pix, m.Pix)
	return c
}

// RGBA replicates the single channel into an opaque RGBA image.
func (m *Matrix) RGBA() *image.RGBA {
	rgba := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		o := i * 4
		rgba.Pix[o] = v
		rgba.Pix[o+1] = v
		rgba.Pix[o+2] = v
		rgba.Pix[o+3] = 255
	}
	return rgba
}

// FromRGBA collapses an RGBA image to one channel by averaging R, G and B
// and rounding to nearest.
func FromRGBA(rgba *image.RGBA) *Matrix {
	bounds := rgba.Bounds()
	m := NewMatrix(bounds.Dx(), bounds.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			o := rgba.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			sum := int(rgba.Pix[o]) + int(rgba.Pix[o+1]) + int(rgba.Pix[o+2])
			m.Pix[y*m.Width+x] = averageOf3(sum)
		}
	}
	return m
}

// averageOf3 returns round(sum/3). The remainder is never exactly half,
// so there is no tie to break.
func averageOf3(sum int) uint8 {
	return uint8((sum + 1) / 3)
}
