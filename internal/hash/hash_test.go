package hash

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"pulmoprint/internal/errs"
	"pulmoprint/internal/spectral"
	"pulmoprint/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// indexGrid builds an n×n grid whose vector at (i,j) is [i, j].
func indexGrid(n int) *spectral.FeatureGrid {
	g := &spectral.FeatureGrid{N: n, Cells: make([]spectral.FeatureVector, n*n)}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			g.Cells[i*n+j] = spectral.FeatureVector{float64(i), float64(j)}
		}
	}
	return g
}

func TestTokenCountPerCell(t *testing.T) {
	for _, n := range []int{3, 4, 7} {
		res, err := Generate(indexGrid(n), false)
		require.NoError(t, err)
		require.Equal(t, n*n, res.Memo.Len())

		total := 0
		for _, e := range res.Memo.Entries() {
			corner := (e.Cell.Row == 0 || e.Cell.Row == n-1) && (e.Cell.Col == 0 || e.Cell.Col == n-1)
			edge := e.Cell.Row == 0 || e.Cell.Row == n-1 || e.Cell.Col == 0 || e.Cell.Col == n-1
			switch {
			case corner:
				assert.Len(t, e.Tokens, 3, "corner %s", e.Cell)
			case edge:
				assert.Len(t, e.Tokens, 5, "edge %s", e.Cell)
			default:
				assert.Len(t, e.Tokens, 8, "interior %s", e.Cell)
			}
			total += len(e.Tokens)
		}
		assert.Len(t, res.Hashes, total)
		// 4 corners, 4(n-2) edges, (n-2)^2 interior cells.
		assert.Equal(t, 4*3+4*(n-2)*5+(n-2)*(n-2)*8, total)
	}
}

func TestInteriorTokenOrderAndShape(t *testing.T) {
	res, err := Generate(indexGrid(3), false)
	require.NoError(t, err)

	tokens, ok := res.Memo.Get("(1,1)")
	require.True(t, ok)
	assert.Equal(t, []Token{
		"1_1_0_0_0",
		"1_1_0_1_0",
		"1_1_0_2_0",
		"1_1_1_0_2",
		"1_1_1_2_4",
		"1_1_2_0_1",
		"1_1_2_1_1",
		"1_1_2_2_1",
	}, tokens)
}

func TestExtendedTokensCarryQuadrant(t *testing.T) {
	res, err := Generate(indexGrid(4), true)
	require.NoError(t, err)

	tokens, ok := res.Memo.Tokens(geometry.Cell{Row: 0, Col: 0})
	require.True(t, ok)
	assert.Equal(t, []Token{"0_0_0_1_2_4", "0_0_1_0_2_1", "0_0_1_1_2_1"}, tokens)

	tokens, ok = res.Memo.Tokens(geometry.Cell{Row: 3, Col: 3})
	require.True(t, ok)
	assert.Equal(t, Token("3_3_2_2_-1_0"), tokens[0])
	for _, tok := range tokens {
		assert.Len(t, strings.Split(string(tok), "_"), 6)
	}
}

func TestQuadrant(t *testing.T) {
	assert.Equal(t, 2, Quadrant(0, 0, 4))
	assert.Equal(t, 1, Quadrant(1, 2, 4))
	assert.Equal(t, 0, Quadrant(2, 1, 4))
	assert.Equal(t, -1, Quadrant(3, 3, 4))
	// Odd side: r = 2.5, so row 2 is still in the upper half.
	assert.Equal(t, 2, Quadrant(2, 2, 5))
	assert.Equal(t, -1, Quadrant(3, 3, 5))
}

func TestGenerateIsDeterministic(t *testing.T) {
	g := indexGrid(6)
	a, err := Generate(g, true)
	require.NoError(t, err)
	b, err := Generate(g, true)
	require.NoError(t, err)

	assert.Equal(t, a.Hashes, b.Hashes)
	ja, err := json.Marshal(a)
	require.NoError(t, err)
	jb, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, ja, jb)
}

func TestFieldFormatting(t *testing.T) {
	g := &spectral.FeatureGrid{N: 2, Cells: []spectral.FeatureVector{
		{12, 0.5, 4}, {2, 4}, {-6, 1e3}, {8, 8},
	}}
	res, err := Generate(g, false)
	require.NoError(t, err)
	assert.Equal(t, Token("12_0.5_2_4_4"), res.Hashes[0])

	fields, err := res.Hashes[0].Fields()
	require.NoError(t, err)
	assert.Equal(t, []float64{12, 0.5, 2, 4, 4}, fields)

	_, err = Token("1_x_2").Fields()
	assert.Error(t, err)
}

func TestSingleCellGridHasEmptyEntry(t *testing.T) {
	res, err := Generate(indexGrid(1), false)
	require.NoError(t, err)
	assert.Empty(t, res.Hashes)
	assert.Equal(t, 1, res.Memo.Len())

	out, err := json.Marshal(res.Memo)
	require.NoError(t, err)
	assert.JSONEq(t, `{"(0,0)":[]}`, string(out))
}

func TestMemoJSONKeepsScanOrder(t *testing.T) {
	res, err := Generate(indexGrid(3), false)
	require.NoError(t, err)

	out, err := json.Marshal(res.Memo)
	require.NoError(t, err)
	s := string(out)
	keys := res.Memo.Keys()
	last := -1
	for _, k := range keys {
		pos := strings.Index(s, `"`+k+`"`)
		require.Greater(t, pos, last, "key %s out of order", k)
		last = pos
	}
	assert.Equal(t, []string{"(0,0)", "(0,1)", "(0,2)", "(1,0)"}, keys[:4])
}

func TestGenerateRejectsMalformedGrid(t *testing.T) {
	var inputErr *errs.InputError

	_, err := Generate(nil, false)
	assert.True(t, errors.As(err, &inputErr))

	_, err = Generate(&spectral.FeatureGrid{N: 2, Cells: make([]spectral.FeatureVector, 3)}, false)
	assert.True(t, errors.As(err, &inputErr))

	short := &spectral.FeatureGrid{N: 1, Cells: []spectral.FeatureVector{{1}}}
	_, err = Generate(short, false)
	assert.True(t, errors.As(err, &inputErr))
}
