package spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	"pulmoprint/internal/errs"
	"pulmoprint/pkg/geometry"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// normEpsilon keeps the block normalization finite for flat blocks.
const normEpsilon = 1e-8

// FeatureVector holds the quantized band energies of one block:
// [high, low] or [high, low, mid].
type FeatureVector []float64

// FeatureGrid arranges feature vectors by block position.
type FeatureGrid struct {
	N     int             // Side length
	Cells []FeatureVector // N*N vectors, row-major
}

// At returns the vector at (row, col).
func (g *FeatureGrid) At(row, col int) FeatureVector {
	return g.Cells[row*g.N+col]
}

// AtCell returns the vector at c.
func (g *FeatureGrid) AtCell(c geometry.Cell) FeatureVector {
	return g.At(c.Row, c.Col)
}

// Extractor reduces blocks to band-energy feature vectors. It is immutable
// after construction and safe for concurrent use.
type Extractor struct {
	BlockSize int
	BinSize   float64
	Bands     int

	low, mid, high []float64 // 0/1 band masks over the shifted spectrum
}

// NewExtractor validates the parameters and precomputes the band masks.
//
// Bands are selected by the distance d of a spectrum cell from the block
// centre: low d <= bs/4, mid bs/4 < d <= bs/2.5, high d > bs/2.5. The mid
// band is only reported when bands > 2.
func NewExtractor(blockSize int, binSize float64, bands int) (*Extractor, error) {
	if !IsPowerOfTwo(blockSize) {
		return nil, &errs.ConfigError{Field: "block size", Value: blockSize, Reason: "must be a power of two"}
	}
	if binSize <= 0 || math.IsNaN(binSize) || math.IsInf(binSize, 0) {
		return nil, &errs.ConfigError{Field: "bin size", Value: binSize, Reason: "must be a positive number"}
	}
	if bands < 2 {
		return nil, &errs.ConfigError{Field: "band count", Value: bands, Reason: "must be at least 2"}
	}

	e := &Extractor{BlockSize: blockSize, BinSize: binSize, Bands: bands}
	n := blockSize
	e.low = make([]float64, n*n)
	e.mid = make([]float64, n*n)
	e.high = make([]float64, n*n)

	centre := geometry.Cell{Row: n / 2, Col: n / 2}
	lowMax := float64(n) / 4
	highMin := float64(n) / 2.5
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			d := geometry.Cell{Row: r, Col: c}.Distance(centre)
			switch {
			case d <= lowMax:
				e.low[r*n+c] = 1
			case d > highMin:
				e.high[r*n+c] = 1
			default:
				e.mid[r*n+c] = 1
			}
		}
	}
	return e, nil
}

// Extract computes a feature vector per block and places it at the block's
// row-major position in a square grid.
func (e *Extractor) Extract(blocks []Block) (*FeatureGrid, error) {
	if len(blocks) == 0 {
		return nil, errs.Input("no blocks to extract")
	}
	n, ok := geometry.ISqrt(len(blocks))
	if !ok {
		return nil, &errs.ShapeError{What: "block count", Count: len(blocks)}
	}

	grid := &FeatureGrid{N: n, Cells: make([]FeatureVector, len(blocks))}
	for i, b := range blocks {
		fv, err := e.BlockFeatures(b)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		grid.Cells[i] = fv
	}
	return grid, nil
}

// BlockFeatures runs normalization, 2-D FFT, shift, log-magnitude and band
// summation for a single block.
func (e *Extractor) BlockFeatures(b Block) (FeatureVector, error) {
	if b.Size != e.BlockSize || len(b.Pix) != e.BlockSize*e.BlockSize {
		return nil, &errs.ConfigError{Field: "block size", Value: b.Size,
			Reason: fmt.Sprintf("extractor expects %d", e.BlockSize)}
	}

	spectrum, err := LogSpectrum(NormalizeBlock(b.Pix), e.BlockSize)
	if err != nil {
		return nil, err
	}

	high := e.quantize(floats.Dot(e.high, spectrum))
	low := e.quantize(floats.Dot(e.low, spectrum))
	if e.Bands > 2 {
		mid := e.quantize(floats.Dot(e.mid, spectrum))
		return FeatureVector{high, low, mid}, nil
	}
	return FeatureVector{high, low}, nil
}

// quantize rounds energy to the nearest multiple of the bin size, ties to even.
func (e *Extractor) quantize(energy float64) float64 {
	return math.RoundToEven(energy/e.BinSize) * e.BinSize
}

// NormalizeBlock returns (x - mean) / (std + eps) using the population
// standard deviation.
func NormalizeBlock(pix []float64) []float64 {
	mean, std := stat.PopMeanStdDev(pix, nil)
	out := make([]float64, len(pix))
	for i, v := range pix {
		out[i] = (v - mean) / (std + normEpsilon)
	}
	return out
}

// LogSpectrum returns log(1+|F|) of the centred 2-D spectrum of an n×n block.
func LogSpectrum(pix []float64, n int) ([]float64, error) {
	in := make([]complex128, len(pix))
	for i, v := range pix {
		in[i] = complex(v, 0)
	}
	freq, err := FFT2(in, n)
	if err != nil {
		return nil, err
	}
	freq = Shift(freq, n)

	out := make([]float64, len(freq))
	for i, v := range freq {
		out[i] = math.Log1p(cmplx.Abs(v))
	}
	return out, nil
}
