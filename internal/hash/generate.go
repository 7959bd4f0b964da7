package hash

import (
	"pulmoprint/internal/errs"
	"pulmoprint/internal/spectral"
	"pulmoprint/pkg/geometry"
)

// Direction codes. Diagonal neighbours share the code of the row they sit in.
const (
	DirAbove = 0
	DirBelow = 1
	DirLeft  = 2
	DirRight = 4
)

// neighbour is a scan step and the direction code it encodes.
type neighbour struct {
	geometry.Offset
	Code int
}

// neighbours is the fixed scan order: the row above left to right, then
// left, right, then the row below left to right.
var neighbours = []neighbour{
	{geometry.Offset{DRow: -1, DCol: -1}, DirAbove},
	{geometry.Offset{DRow: -1, DCol: 0}, DirAbove},
	{geometry.Offset{DRow: -1, DCol: 1}, DirAbove},
	{geometry.Offset{DRow: 0, DCol: -1}, DirLeft},
	{geometry.Offset{DRow: 0, DCol: 1}, DirRight},
	{geometry.Offset{DRow: 1, DCol: -1}, DirBelow},
	{geometry.Offset{DRow: 1, DCol: 0}, DirBelow},
	{geometry.Offset{DRow: 1, DCol: 1}, DirBelow},
}

// Result holds the flat token list and the per-cell memo.
type Result struct {
	Hashes []Token `json:"hashes"`
	Memo   *Memo   `json:"memo"`
}

// Quadrant returns the positional code of (i, j) in an n×n grid:
// -1 bottom-right, 0 bottom-left, 1 top-right, 2 top-left.
func Quadrant(i, j, n int) int {
	r := float64(n) / 2
	lower := float64(i) >= r
	right := float64(j) >= r
	switch {
	case lower && right:
		return -1
	case lower:
		return 0
	case right:
		return 1
	default:
		return 2
	}
}

// Generate visits every cell in row-major order and emits one token per
// in-bounds neighbour, in neighbour scan order. Every visited cell gets a
// memo entry, even when it has no neighbours.
func Generate(grid *spectral.FeatureGrid, extended bool) (*Result, error) {
	if grid == nil || grid.N <= 0 || len(grid.Cells) != grid.N*grid.N {
		return nil, errs.Input("empty or malformed feature grid")
	}
	for i, fv := range grid.Cells {
		if len(fv) < 2 {
			return nil, errs.Input("feature vector %d has %d elements", i, len(fv))
		}
	}

	n := grid.N
	res := &Result{
		Hashes: make([]Token, 0, n*n*8),
		Memo:   NewMemo(),
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cell := geometry.Cell{Row: i, Col: j}
			own := grid.AtCell(cell)
			rel := Quadrant(i, j, n)
			res.Memo.Touch(cell)

			for _, nb := range neighbours {
				at := cell.Add(nb.Offset)
				if !at.In(n) {
					continue
				}
				tok := makeToken(own, grid.AtCell(at), rel, extended, nb.Code)
				res.Hashes = append(res.Hashes, tok)
				res.Memo.Append(cell, tok)
			}
		}
	}
	return res, nil
}
