package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pulmoprint/internal/model"
)

const modelExt = ".json"

// FileStore keeps one JSON model file per name inside a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Init(_ context.Context) error {
	if s.dir == "" {
		return errors.New("model directory is required")
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	return nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+modelExt)
}

func (s *FileStore) SaveModel(_ context.Context, name string, m *model.Model) error {
	if err := validName(name); err != nil {
		return err
	}
	return m.Save(s.path(name))
}

func (s *FileStore) LoadModel(_ context.Context, name string) (*model.Model, bool, error) {
	if err := validName(name); err != nil {
		return nil, false, err
	}
	m, err := model.Load(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return m, true, nil
}

func (s *FileStore) ListModels(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), modelExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), modelExt))
	}
	sort.Strings(names)
	return names, nil
}
