package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"pulmoprint/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	models      map[string]*model.Model
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.models = make(map[string]*model.Model)
	return nil
}

func (s *MemoryStore) SaveModel(_ context.Context, name string, m *model.Model) error {
	if err := validName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	s.models[name] = m.Clone()
	return nil
}

func (s *MemoryStore) LoadModel(_ context.Context, name string) (*model.Model, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[name]
	if !ok {
		return nil, false, nil
	}
	return m.Clone(), true, nil
}

func (s *MemoryStore) ListModels(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
