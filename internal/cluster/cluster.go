// Package cluster groups suspicious activation cells into 4-connected
// components and turns them into a distance-weighted anomaly score.
package cluster

import (
	"math"

	"pulmoprint/internal/errs"
	"pulmoprint/internal/model"
	"pulmoprint/pkg/geometry"
)

// DefaultMinSize is the smallest component that contributes to the score.
const DefaultMinSize = 7

// Component is one connected region of suspicious cells.
type Component struct {
	Origin   geometry.Cell `json:"origin"`   // First cell reached in row-major scan
	Size     int           `json:"size"`     // Cell count
	Distance int           `json:"distance"` // Rounded distance of Origin from the grid centre, at least 1
}

// Score returns the component's contribution: round(size*0.4 / (distance*0.6)) * 100.
func (c Component) Score() float64 {
	return math.RoundToEven(float64(c.Size)*0.4/(float64(c.Distance)*0.6)) * 100
}

// Result aggregates the components that reached the minimum size.
type Result struct {
	Count      int         `json:"count"`
	Sizes      []int       `json:"sizes"`
	TotalSize  int         `json:"total_size"`
	Score      float64     `json:"score"`
	Components []Component `json:"components"`
}

// Centre returns the reference cell used for distance weighting.
func Centre(n int) geometry.Cell {
	return geometry.Cell{Row: n / 2, Col: n / 2}
}

// Components finds every 4-connected region of non-zero cells, in the order
// their first cell appears in a row-major scan. The grid is not modified.
func Components(grid *model.ActivationGrid) []Component {
	n := grid.N
	centre := Centre(n)
	visited := make([]bool, len(grid.Cells))

	var comps []Component
	var stack []geometry.Cell
	for i, v := range grid.Cells {
		if v == 0 || visited[i] {
			continue
		}

		origin := geometry.Cell{Row: i / n, Col: i % n}
		visited[i] = true
		stack = append(stack[:0], origin)
		size := 0

		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++

			for _, off := range geometry.Orthogonal {
				next := cur.Add(off)
				if !next.In(n) {
					continue
				}
				j := next.Row*n + next.Col
				if grid.Cells[j] == 0 || visited[j] {
					continue
				}
				visited[j] = true
				stack = append(stack, next)
			}
		}

		dist := int(math.RoundToEven(origin.Distance(centre)))
		if dist < 1 {
			dist = 1
		}
		comps = append(comps, Component{Origin: origin, Size: size, Distance: dist})
	}
	return comps
}

// Analyze scores the components of grid whose size is at least minSize.
// Smaller components are ignored entirely.
func Analyze(grid *model.ActivationGrid, minSize int) (*Result, error) {
	if grid == nil || grid.N < 0 || len(grid.Cells) != grid.N*grid.N {
		return nil, errs.Input("malformed activation grid")
	}
	if minSize < 1 {
		return nil, &errs.ConfigError{Field: "minimum cluster size", Value: minSize, Reason: "must be at least 1"}
	}

	res := &Result{Sizes: []int{}, Components: []Component{}}
	for _, c := range Components(grid) {
		if c.Size < minSize {
			continue
		}
		res.Count++
		res.Sizes = append(res.Sizes, c.Size)
		res.TotalSize += c.Size
		res.Score += c.Score()
		res.Components = append(res.Components, c)
	}
	return res, nil
}
