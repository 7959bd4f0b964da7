// Package model holds the trained token frequency table, the offline builder
// that accumulates it and the scorer that turns a token memo into an
// activation grid.
package model

import (
	"fmt"
	"strings"
	"time"

	"pulmoprint/internal/hash"
)

// Class is the label of a training image.
type Class int

const (
	ClassNormal Class = iota
	ClassAnomaly
)

func (c Class) String() string {
	switch c {
	case ClassNormal:
		return "normal"
	case ClassAnomaly:
		return "anomaly"
	default:
		return "unknown"
	}
}

// ParseClass accepts "normal"/"anomaly" and the numeric labels "0"/"1".
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "0":
		return ClassNormal, nil
	case "anomaly", "abnormal", "1":
		return ClassAnomaly, nil
	default:
		return 0, fmt.Errorf("unknown class label %q", s)
	}
}

// Counts holds the per-class occurrence counters of one token.
type Counts struct {
	Normal  int64 `json:"normal"`
	Anomaly int64 `json:"anomaly"`
}

// Add returns the element-wise sum.
func (c Counts) Add(o Counts) Counts {
	return Counts{Normal: c.Normal + o.Normal, Anomaly: c.Anomaly + o.Anomaly}
}

// Meta describes how a model was built.
type Meta struct {
	RunID         string    `json:"run_id,omitempty"`
	Created       time.Time `json:"created"`
	NormalImages  int       `json:"normal_images"`
	AnomalyImages int       `json:"anomaly_images"`
	Rejected      int64     `json:"rejected_tokens"` // Tokens dropped by the noise filter
	Params        string    `json:"params,omitempty"`
}

// Model maps tokens to class counters. It is never modified after loading, so
// concurrent readers need no locking.
type Model struct {
	Meta   Meta                  `json:"meta"`
	Tokens map[hash.Token]Counts `json:"tokens"`
}

// New creates an empty model.
func New() *Model {
	return &Model{
		Meta:   Meta{Created: time.Now().UTC()},
		Tokens: make(map[hash.Token]Counts),
	}
}

// Lookup returns the counters for t; unknown tokens count zero for both classes.
func (m *Model) Lookup(t hash.Token) Counts {
	return m.Tokens[t]
}

// Len returns the number of distinct tokens.
func (m *Model) Len() int {
	return len(m.Tokens)
}

// Merge folds other's counters and image counts into m.
func (m *Model) Merge(other *Model) {
	for tok, c := range other.Tokens {
		m.Tokens[tok] = m.Tokens[tok].Add(c)
	}
	m.Meta.NormalImages += other.Meta.NormalImages
	m.Meta.AnomalyImages += other.Meta.AnomalyImages
	m.Meta.Rejected += other.Meta.Rejected
}

// Clone returns a deep copy.
func (m *Model) Clone() *Model {
	c := &Model{Meta: m.Meta, Tokens: make(map[hash.Token]Counts, len(m.Tokens))}
	for tok, counts := range m.Tokens {
		c.Tokens[tok] = counts
	}
	return c
}

// Stats summarises a model.
type Stats struct {
	Tokens       int
	NormalTotal  int64
	AnomalyTotal int64
	AnomalyOnly  int // Tokens never seen in a normal image
}

// Stats computes totals over all tokens.
func (m *Model) Stats() Stats {
	s := Stats{Tokens: len(m.Tokens)}
	for _, c := range m.Tokens {
		s.NormalTotal += c.Normal
		s.AnomalyTotal += c.Anomaly
		if c.Normal == 0 && c.Anomaly > 0 {
			s.AnomalyOnly++
		}
	}
	return s
}
