//go:build !gocv

package image

import "fmt"

func newCVResampler() (Resampler, error) {
	return nil, fmt.Errorf("gocv resampler unavailable in this build; rebuild with -tags gocv")
}
