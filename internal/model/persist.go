package model

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pulmoprint/internal/hash"
)

// Encode writes the model as indented JSON. Token keys are emitted in sorted
// order, so equal models encode to identical bytes.
func (m *Model) Encode(w io.Writer) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// Decode reads a model. Both the wrapped form {"meta":..,"tokens":{..}} and a
// bare token object {"token":{"normal":n,"anomaly":n}} are accepted.
func Decode(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return Unmarshal(data)
}

// Unmarshal parses JSON model data.
func Unmarshal(data []byte) (*Model, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}

	m := New()
	if _, wrapped := probe["tokens"]; wrapped {
		if err := json.Unmarshal(data, m); err != nil {
			return nil, fmt.Errorf("failed to parse model: %w", err)
		}
		if m.Tokens == nil {
			m.Tokens = make(map[hash.Token]Counts)
		}
		return m, nil
	}

	if err := json.Unmarshal(data, &m.Tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token table: %w", err)
	}
	return m, nil
}

// Load reads a model from a JSON file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	m, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Save writes the model to path, creating parent directories.
func (m *Model) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}
