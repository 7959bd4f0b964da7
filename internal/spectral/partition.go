// Package spectral slices intensity matrices into blocks and reduces each
// block to a quantized frequency-band energy vector.
package spectral

import (
	"pulmoprint/internal/errs"
	"pulmoprint/internal/image"
	"pulmoprint/pkg/geometry"
)

// DefaultBlockSize is the default block side length.
const DefaultBlockSize = 8

// Block is a square tile cut from a matrix.
type Block struct {
	Index  int              // Row-major position in the partition
	Bounds geometry.RectInt // Source pixels covered by the block
	Size   int              // Side length
	Pix    []float64        // Size*Size intensities, row-major
}

// At returns the intensity at block-local row r, column c.
func (b Block) At(r, c int) float64 {
	return b.Pix[r*b.Size+c]
}

// Trim returns the region of an w×h matrix covered by whole size×size blocks.
func Trim(w, h, size int) geometry.RectInt {
	return geometry.RectInt{Width: w - w%size, Height: h - h%size}
}

// Partition cuts m into non-overlapping size×size blocks, top-to-bottom strips
// and left-to-right within each strip. Rows and columns past the last whole
// block are discarded; nothing is padded.
func Partition(m *image.Matrix, size int) ([]Block, error) {
	if size <= 0 {
		return nil, &errs.ConfigError{Field: "block size", Value: size, Reason: "must be positive"}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	trimmed := Trim(m.Width, m.Height, size)
	cols := trimmed.Width / size
	rows := trimmed.Height / size

	blocks := make([]Block, 0, rows*cols)
	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			b := Block{
				Index: len(blocks),
				Bounds: geometry.RectInt{
					X:      bx * size,
					Y:      by * size,
					Width:  size,
					Height: size,
				},
				Size: size,
				Pix:  make([]float64, size*size),
			}
			for r := 0; r < size; r++ {
				row := m.Pix[(b.Bounds.Y+r)*m.Width+b.Bounds.X:]
				for c := 0; c < size; c++ {
					b.Pix[r*size+c] = float64(row[c])
				}
			}
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}
