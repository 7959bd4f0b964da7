package spectral

import (
	"math"
	"math/cmplx"

	"pulmoprint/internal/errs"
)

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// FFT computes the discrete Fourier transform of x with the recursive
// radix-2 Cooley-Tukey algorithm. len(x) must be a power of two.
func FFT(x []complex128) ([]complex128, error) {
	if !IsPowerOfTwo(len(x)) {
		return nil, &errs.ConfigError{Field: "transform length", Value: len(x), Reason: "must be a power of two"}
	}
	return fft(x), nil
}

func fft(x []complex128) []complex128 {
	n := len(x)
	if n == 1 {
		return []complex128{x[0]}
	}

	half := n / 2
	even := make([]complex128, half)
	odd := make([]complex128, half)
	for i := 0; i < half; i++ {
		even[i] = x[2*i]
		odd[i] = x[2*i+1]
	}
	e := fft(even)
	o := fft(odd)

	out := make([]complex128, n)
	for k := 0; k < half; k++ {
		t := cmplx.Rect(1, -2*math.Pi*float64(k)/float64(n)) * o[k]
		out[k] = e[k] + t
		out[k+half] = e[k] - t
	}
	return out
}

// FFT2 computes the 2-D transform of an n×n row-major grid as 1-D transforms
// over every row, then over every column.
func FFT2(grid []complex128, n int) ([]complex128, error) {
	if len(grid) != n*n {
		return nil, errs.Input("grid has %d samples, expected %d", len(grid), n*n)
	}
	if !IsPowerOfTwo(n) {
		return nil, &errs.ConfigError{Field: "block size", Value: n, Reason: "must be a power of two"}
	}

	out := make([]complex128, n*n)
	for r := 0; r < n; r++ {
		copy(out[r*n:(r+1)*n], fft(grid[r*n:(r+1)*n]))
	}

	col := make([]complex128, n)
	for c := 0; c < n; c++ {
		for r := 0; r < n; r++ {
			col[r] = out[r*n+c]
		}
		transformed := fft(col)
		for r := 0; r < n; r++ {
			out[r*n+c] = transformed[r]
		}
	}
	return out, nil
}

// Shift moves the zero-frequency term of an n×n row-major spectrum to the
// centre by rotating both axes by n/2.
func Shift(grid []complex128, n int) []complex128 {
	out := make([]complex128, len(grid))
	h := n / 2
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			out[((r+h)%n)*n+(c+h)%n] = grid[r*n+c]
		}
	}
	return out
}
