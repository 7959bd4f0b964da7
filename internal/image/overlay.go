package image

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
)

// BlendMode specifies how the activation tint is combined with the base image.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendMultiply
	BlendScreen
)

func (m BlendMode) String() string {
	switch m {
	case BlendNormal:
		return "Normal"
	case BlendMultiply:
		return "Multiply"
	case BlendScreen:
		return "Screen"
	default:
		return "Unknown"
	}
}

// ParseBlendMode accepts the mode names case-insensitively.
func ParseBlendMode(s string) (BlendMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return BlendNormal, nil
	case "multiply":
		return BlendMultiply, nil
	case "screen":
		return BlendScreen, nil
	default:
		return 0, fmt.Errorf("unknown blend mode %q", s)
	}
}

// Overlay paints an activation grid over the working-resolution matrix it was
// computed from. Each grid cell covers CellSize×CellSize pixels, starting at
// the top-left corner (the partition trims from the bottom and right).
type Overlay struct {
	Base     *Matrix
	Mask     [][]uint8
	CellSize int
	Tint     color.RGBA
	Mode     BlendMode
	Opacity  float64 // 0.0 - 1.0
}

// NewOverlay creates an overlay with a red screen-blended tint.
func NewOverlay(base *Matrix, mask [][]uint8, cellSize int) *Overlay {
	return &Overlay{
		Base:     base,
		Mask:     mask,
		CellSize: cellSize,
		Tint:     color.RGBA{R: 255, A: 255},
		Mode:     BlendScreen,
		Opacity:  0.45,
	}
}

// Render produces the composited image.
func (o *Overlay) Render() *image.RGBA {
	result := o.Base.RGBA()

	for row, cells := range o.Mask {
		for col, v := range cells {
			if v == 0 {
				continue
			}
			x0, y0 := col*o.CellSize, row*o.CellSize
			for y := y0; y < y0+o.CellSize && y < o.Base.Height; y++ {
				for x := x0; x < x0+o.CellSize && x < o.Base.Width; x++ {
					off := result.PixOffset(x, y)
					dst := color.RGBA{result.Pix[off], result.Pix[off+1], result.Pix[off+2], 255}
					c := o.blend(dst)
					result.Pix[off] = c.R
					result.Pix[off+1] = c.G
					result.Pix[off+2] = c.B
				}
			}
		}
	}

	return result
}

// SavePNG renders the overlay and writes it to path.
func (o *Overlay) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create overlay: %w", err)
	}
	if err := png.Encode(f, o.Render()); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode overlay: %w", err)
	}
	return f.Close()
}

// blend combines the tint with one base pixel.
func (o *Overlay) blend(dst color.RGBA) color.RGBA {
	sf := [3]float64{float64(o.Tint.R) / 255, float64(o.Tint.G) / 255, float64(o.Tint.B) / 255}
	df := [3]float64{float64(dst.R) / 255, float64(dst.G) / 255, float64(dst.B) / 255}

	var rf [3]float64
	for i := 0; i < 3; i++ {
		switch o.Mode {
		case BlendMultiply:
			rf[i] = sf[i] * df[i]
		case BlendScreen:
			rf[i] = 1 - (1-sf[i])*(1-df[i])
		default:
			rf[i] = sf[i]
		}
	}

	alpha := clamp(o.Opacity, 0, 1)
	return color.RGBA{
		R: uint8(clamp(rf[0]*alpha+df[0]*(1-alpha), 0, 1) * 255),
		G: uint8(clamp(rf[1]*alpha+df[1]*(1-alpha), 0, 1) * 255),
		B: uint8(clamp(rf[2]*alpha+df[2]*(1-alpha), 0, 1) * 255),
		A: 255,
	}
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
