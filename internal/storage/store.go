// Package storage persists trained models under a name so that training,
// evaluation and detection runs can share them.
package storage

import (
	"context"

	"pulmoprint/internal/model"
)

// Store defines persistence operations for trained models.
type Store interface {
	Init(ctx context.Context) error
	SaveModel(ctx context.Context, name string, m *model.Model) error
	LoadModel(ctx context.Context, name string) (*model.Model, bool, error)
	ListModels(ctx context.Context) ([]string, error)
}
