package model

import (
	"pulmoprint/internal/hash"
)

// IsNoise reports whether a token carries too little signal to train on:
// three or more of its first four fields equal 0, or three or more equal 1.
// Malformed tokens are treated as noise.
func IsNoise(t hash.Token) bool {
	fields, err := t.Fields()
	if err != nil || len(fields) < 4 {
		return true
	}
	zeros, ones := 0, 0
	for _, v := range fields[:4] {
		switch v {
		case 0:
			zeros++
		case 1:
			ones++
		}
	}
	return zeros >= 3 || ones >= 3
}

// Builder accumulates class-conditioned token counts. It is not safe for
// concurrent use; training runs sequentially.
type Builder struct {
	model *Model
}

// NewBuilder starts from an empty model.
func NewBuilder() *Builder {
	return &Builder{model: New()}
}

// AddImage counts every non-noise token of one labelled image and returns how
// many tokens were accepted and rejected.
func (b *Builder) AddImage(tokens []hash.Token, class Class) (accepted, rejected int) {
	for _, tok := range tokens {
		if IsNoise(tok) {
			rejected++
			continue
		}
		c := b.model.Tokens[tok]
		switch class {
		case ClassNormal:
			c.Normal++
		case ClassAnomaly:
			c.Anomaly++
		}
		b.model.Tokens[tok] = c
		accepted++
	}

	switch class {
	case ClassNormal:
		b.model.Meta.NormalImages++
	case ClassAnomaly:
		b.model.Meta.AnomalyImages++
	}
	b.model.Meta.Rejected += int64(rejected)
	return accepted, rejected
}

// SetRun records the training run identity in the model metadata.
func (b *Builder) SetRun(runID, params string) {
	b.model.Meta.RunID = runID
	b.model.Meta.Params = params
}

// Model returns a snapshot of the accumulated model.
func (b *Builder) Model() *Model {
	return b.model.Clone()
}
