package hash

import (
	"bytes"
	"encoding/json"

	"pulmoprint/pkg/geometry"
)

// Entry is the token list recorded while visiting one grid cell.
type Entry struct {
	Cell   geometry.Cell
	Tokens []Token
}

// Memo maps "(row,col)" keys to token lists and remembers insertion order,
// which is the scan order of the generator.
type Memo struct {
	entries []Entry
	index   map[geometry.Cell]int
}

// NewMemo creates an empty memo.
func NewMemo() *Memo {
	return &Memo{index: make(map[geometry.Cell]int)}
}

// Touch registers c, keeping the position of an existing entry.
func (m *Memo) Touch(c geometry.Cell) {
	if _, ok := m.index[c]; ok {
		return
	}
	m.index[c] = len(m.entries)
	m.entries = append(m.entries, Entry{Cell: c})
}

// Append adds a token to c's list, registering c on first use.
func (m *Memo) Append(c geometry.Cell, t Token) {
	m.Touch(c)
	i := m.index[c]
	m.entries[i].Tokens = append(m.entries[i].Tokens, t)
}

// Tokens returns the list recorded for c.
func (m *Memo) Tokens(c geometry.Cell) ([]Token, bool) {
	i, ok := m.index[c]
	if !ok {
		return nil, false
	}
	return m.entries[i].Tokens, true
}

// Get looks up a list by its "(row,col)" key.
func (m *Memo) Get(key string) ([]Token, bool) {
	c, err := geometry.ParseCell(key)
	if err != nil {
		return nil, false
	}
	return m.Tokens(c)
}

// Len returns the number of registered cells.
func (m *Memo) Len() int {
	return len(m.entries)
}

// Keys returns the "(row,col)" keys in insertion order.
func (m *Memo) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.Cell.String()
	}
	return keys
}

// Entries returns the entries in insertion order. The slice must not be modified.
func (m *Memo) Entries() []Entry {
	return m.entries
}

// MarshalJSON encodes the memo as a JSON object whose keys keep insertion order.
func (m *Memo) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Cell.String())
		if err != nil {
			return nil, err
		}
		tokens := e.Tokens
		if tokens == nil {
			tokens = []Token{}
		}
		val, err := json.Marshal(tokens)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
