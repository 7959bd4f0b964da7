// Package hash walks a feature grid and encodes each cell's relationship to
// its neighbours as directional/positional string tokens.
package hash

import (
	"fmt"
	"strconv"
	"strings"
)

// Token is the atomic comparison unit between an image and the trained model:
// own0_own1_nb0_nb1_dir, or own0_own1_nb0_nb1_rel_dir in extended mode.
type Token string

// Fields parses every underscore-delimited field as a number.
func (t Token) Fields() ([]float64, error) {
	parts := strings.Split(string(t), "_")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("token %q field %d: %w", t, i, err)
		}
		out[i] = v
	}
	return out, nil
}

// formatField renders a feature value in its shortest exact decimal form.
func formatField(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func makeToken(own, nb []float64, rel int, extended bool, dir int) Token {
	var b strings.Builder
	b.WriteString(formatField(own[0]))
	b.WriteByte('_')
	b.WriteString(formatField(own[1]))
	b.WriteByte('_')
	b.WriteString(formatField(nb[0]))
	b.WriteByte('_')
	b.WriteString(formatField(nb[1]))
	b.WriteByte('_')
	if extended {
		b.WriteString(strconv.Itoa(rel))
		b.WriteByte('_')
	}
	b.WriteString(strconv.Itoa(dir))
	return Token(b.String())
}
