package model

import (
	"pulmoprint/internal/errs"
	"pulmoprint/internal/hash"
	"pulmoprint/pkg/geometry"
)

// DefaultRatioThreshold is the normal/anomaly evidence ratio above which a
// cell is considered normal.
const DefaultRatioThreshold = 0.9

// ActivationGrid is a square grid of 0 (normal) / 1 (suspicious) labels.
type ActivationGrid struct {
	N     int
	Cells []uint8 // N*N labels, row-major
}

// NewActivationGrid allocates an all-normal n×n grid.
func NewActivationGrid(n int) *ActivationGrid {
	return &ActivationGrid{N: n, Cells: make([]uint8, n*n)}
}

// At returns the label at (row, col).
func (g *ActivationGrid) At(row, col int) uint8 {
	return g.Cells[row*g.N+col]
}

// Set stores a label at (row, col).
func (g *ActivationGrid) Set(row, col int, v uint8) {
	g.Cells[row*g.N+col] = v
}

// Active returns the number of suspicious cells.
func (g *ActivationGrid) Active() int {
	n := 0
	for _, v := range g.Cells {
		if v != 0 {
			n++
		}
	}
	return n
}

// Rows returns the grid as a slice of rows.
func (g *ActivationGrid) Rows() [][]uint8 {
	rows := make([][]uint8, g.N)
	for r := range rows {
		rows[r] = append([]uint8(nil), g.Cells[r*g.N:(r+1)*g.N]...)
	}
	return rows
}

// Clone returns a deep copy.
func (g *ActivationGrid) Clone() *ActivationGrid {
	return &ActivationGrid{N: g.N, Cells: append([]uint8(nil), g.Cells...)}
}

// Scorer labels memo cells against a trained model.
type Scorer struct {
	Model *Model
	Ratio float64
}

// NewScorer uses DefaultRatioThreshold.
func NewScorer(m *Model) *Scorer {
	return &Scorer{Model: m, Ratio: DefaultRatioThreshold}
}

// Score labels a memo with the default ratio threshold.
func Score(memo *hash.Memo, m *Model) (*ActivationGrid, error) {
	return NewScorer(m).Score(memo)
}

// Label sums the counters of tokens and returns 1 unless there is no anomaly
// evidence or normal evidence outweighs it by more than the ratio threshold.
func (s *Scorer) Label(tokens []hash.Token) uint8 {
	var total Counts
	for _, tok := range tokens {
		total = total.Add(s.Model.Lookup(tok))
	}
	if total.Anomaly == 0 {
		return 0
	}
	if float64(total.Normal)/float64(total.Anomaly) > s.Ratio {
		return 0
	}
	return 1
}

// Score labels every memo cell in memo order and reshapes the labels into a
// square grid.
func (s *Scorer) Score(memo *hash.Memo) (*ActivationGrid, error) {
	if memo == nil {
		return nil, errs.Input("nil token memo")
	}
	count := memo.Len()
	n, ok := geometry.ISqrt(count)
	if !ok {
		return nil, &errs.ShapeError{What: "coordinate count", Count: count}
	}

	grid := NewActivationGrid(n)
	for i, e := range memo.Entries() {
		grid.Cells[i] = s.Label(e.Tokens)
	}
	return grid, nil
}
