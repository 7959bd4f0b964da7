//go:build gocv

package image

import (
	"fmt"
	"image"

	"pulmoprint/pkg/geometry"

	"gocv.io/x/gocv"
)

// CVResampler resamples with OpenCV: bicubic when enlarging, pixel-area
// averaging when shrinking.
type CVResampler struct{}

func newCVResampler() (Resampler, error) {
	return CVResampler{}, nil
}

// Resample converts the matrix to a 3-channel Mat, resizes it and averages
// the channels back to one.
func (CVResampler) Resample(src *Matrix, size geometry.Size) (*Matrix, error) {
	gray, err := gocv.NewMatFromBytes(src.Height, src.Width, gocv.MatTypeCV8U, src.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to convert matrix: %w", err)
	}
	defer gray.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(gray, &bgr, gocv.ColorGrayToBGR)

	interp := gocv.InterpolationArea
	if enlarging(src, size) {
		interp = gocv.InterpolationCubic
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(bgr, &resized, image.Point{X: size.Width, Y: size.Height}, 0, 0, interp)
	if resized.Empty() {
		return nil, fmt.Errorf("resize to %s produced an empty image", size)
	}

	out := NewMatrix(size.Width, size.Height)
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			v := resized.GetVecbAt(y, x)
			out.Pix[y*size.Width+x] = averageOf3(int(v[0]) + int(v[1]) + int(v[2]))
		}
	}
	return out, nil
}
