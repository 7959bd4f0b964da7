// Package geometry provides the small geometric types shared by the pipeline stages.
package geometry

import (
	"fmt"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Cell addresses one position of a square grid (feature grid, activation grid).
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// String renders the cell as "(row,col)", the key format of a token memo.
func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Add returns the cell shifted by an offset.
func (c Cell) Add(o Offset) Cell {
	return Cell{Row: c.Row + o.DRow, Col: c.Col + o.DCol}
}

// In reports whether the cell lies inside an n×n grid.
func (c Cell) In(n int) bool {
	return c.Row >= 0 && c.Row < n && c.Col >= 0 && c.Col < n
}

// Distance returns the Euclidean distance between two cells.
func (c Cell) Distance(other Cell) float64 {
	return c.ToFloat().Distance(other.ToFloat())
}

// ToFloat converts to Point2D with X=Col, Y=Row.
func (c Cell) ToFloat() Point2D {
	return Point2D{X: float64(c.Col), Y: float64(c.Row)}
}

// ParseCell parses the "(row,col)" form produced by Cell.String.
func ParseCell(s string) (Cell, error) {
	var c Cell
	if _, err := fmt.Sscanf(s, "(%d,%d)", &c.Row, &c.Col); err != nil {
		return Cell{}, fmt.Errorf("parse cell %q: %w", s, err)
	}
	return c, nil
}

// Offset is a relative grid step.
type Offset struct {
	DRow int
	DCol int
}

// Orthogonal holds the 4-connected neighbour offsets: up, down, left, right.
var Orthogonal = []Offset{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// RectInt represents a rectangle with integer coordinates.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Size represents integer pixel dimensions.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String renders the size as "WxH".
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ISqrt returns the integer square root of n and whether n is a perfect square.
func ISqrt(n int) (int, bool) {
	if n < 0 {
		return 0, false
	}
	r := int(math.Sqrt(float64(n)))
	// Correct float rounding at the boundary.
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r, r*r == n
}
