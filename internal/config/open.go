package config

import (
	"context"
	"fmt"

	"pulmoprint/internal/image"
	"pulmoprint/internal/model"
	"pulmoprint/internal/pipeline"
	"pulmoprint/internal/storage"
)

// OpenStore creates and initialises the configured model store. Callers
// release it with storage.CloseIfSupported.
func (c Config) OpenStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.NewStore(c.Store, c.StorePath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, fmt.Errorf("init %s store: %w", c.Store, err)
	}
	return store, nil
}

// LoadModel opens the store and loads the configured model.
func (c Config) LoadModel(ctx context.Context) (*model.Model, error) {
	store, err := c.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	defer storage.CloseIfSupported(store)

	m, ok, err := store.LoadModel(ctx, c.Model)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", c.Model, err)
	}
	if !ok {
		return nil, fmt.Errorf("model %s not found in %s store %s: %w", c.Model, c.Store, c.StorePath, pipeline.ErrNoModel)
	}
	return m, nil
}

// NewAnalyzer builds a file-backed analyzer with the configured resampler.
func (c Config) NewAnalyzer(m *model.Model) (*pipeline.Analyzer, error) {
	r, err := image.NewResampler(c.Resampler)
	if err != nil {
		return nil, err
	}
	a := pipeline.NewAnalyzer(image.FileDecoder{}, m, c.Params)
	a.Resampler = r
	return a, nil
}
