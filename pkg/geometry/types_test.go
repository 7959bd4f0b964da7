package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellStringRoundTrip(t *testing.T) {
	c := Cell{Row: 12, Col: 3}
	assert.Equal(t, "(12,3)", c.String())

	parsed, err := ParseCell(c.String())
	require.NoError(t, err)
	assert.Equal(t, c, parsed)

	_, err = ParseCell("12,3")
	assert.Error(t, err)
}

func TestCellIn(t *testing.T) {
	assert.True(t, Cell{0, 0}.In(1))
	assert.False(t, Cell{-1, 0}.In(4))
	assert.False(t, Cell{0, 4}.In(4))
	assert.True(t, Cell{3, 3}.In(4))
}

func TestISqrt(t *testing.T) {
	tests := []struct {
		n       int
		root    int
		perfect bool
	}{
		{0, 0, true},
		{1, 1, true},
		{2, 1, false},
		{16384, 128, true},
		{16383, 127, false},
		{-4, 0, false},
	}
	for _, tt := range tests {
		root, ok := ISqrt(tt.n)
		assert.Equal(t, tt.root, root, "n=%d", tt.n)
		assert.Equal(t, tt.perfect, ok, "n=%d", tt.n)
	}
}
