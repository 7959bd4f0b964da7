package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pulmoprint/internal/errs"
	"pulmoprint/internal/model"
	"pulmoprint/internal/pipeline"
	"pulmoprint/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := FromLookup(mapLookup(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, pipeline.DefaultParams(), cfg.Params)
}

func TestOverrides(t *testing.T) {
	cfg, err := FromLookup(mapLookup(map[string]string{
		"PULMO_SIZE":        "512x256",
		"PULMO_BLOCK_SIZE":  "16",
		"PULMO_BIN_SIZE":    "1.5",
		"PULMO_BANDS":       "3",
		"PULMO_EXTENDED":    "true",
		"PULMO_MIN_CLUSTER": "4",
		"PULMO_RATIO":       "0.75",
		"PULMO_THRESHOLD":   "900",
		"PULMO_STORE":       "memory",
		"PULMO_STORE_PATH":  "/tmp/models.db",
		"PULMO_MODEL":       "chest",
		"PULMO_RESAMPLER":   "gocv",
		"PULMO_WORKERS":     "8",
		"PULMO_UNUSED":      "ignored",
	}))
	require.NoError(t, err)

	p := cfg.Params
	assert.Equal(t, geometry.Size{Width: 512, Height: 256}, p.Size)
	assert.Equal(t, 16, p.BlockSize)
	assert.Equal(t, 1.5, p.BinSize)
	assert.Equal(t, 3, p.Bands)
	assert.True(t, p.Extended)
	assert.Equal(t, 4, p.MinClusterSize)
	assert.Equal(t, 0.75, p.RatioThreshold)
	assert.Equal(t, 900.0, p.DetectThreshold)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, "/tmp/models.db", cfg.StorePath)
	assert.Equal(t, "chest", cfg.Model)
	assert.Equal(t, "gocv", cfg.Resampler)
	assert.Equal(t, 8, cfg.Workers)
}

func TestSquareSize(t *testing.T) {
	cfg, err := FromLookup(mapLookup(map[string]string{"PULMO_SIZE": "256"}))
	require.NoError(t, err)
	assert.Equal(t, geometry.Size{Width: 256, Height: 256}, cfg.Params.Size)
}

func TestBlankValuesKeepDefaults(t *testing.T) {
	cfg, err := FromLookup(mapLookup(map[string]string{"PULMO_BANDS": "  ", "PULMO_MODEL": ""}))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Params.Bands)
	assert.Equal(t, "default", cfg.Model)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad integer", map[string]string{"PULMO_BANDS": "two"}},
		{"bad float", map[string]string{"PULMO_BIN_SIZE": "wide"}},
		{"bad bool", map[string]string{"PULMO_EXTENDED": "sometimes"}},
		{"bad size", map[string]string{"PULMO_SIZE": "big"}},
		{"no workers", map[string]string{"PULMO_WORKERS": "0"}},
		{"fails validation", map[string]string{"PULMO_BLOCK_SIZE": "12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromLookup(mapLookup(tt.env))
			var cfgErr *errs.ConfigError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestLoadLayersEnvironmentOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PULMO_MODEL=from-file\nPULMO_BANDS=3\n"), 0644))
	t.Setenv("PULMO_MODEL", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Model)
	assert.Equal(t, 3, cfg.Params.Bands)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Store)
}

func TestOpenStoreAndLoadModel(t *testing.T) {
	ctx := context.Background()
	cfg := Default()
	cfg.StorePath = t.TempDir()
	cfg.Model = "chest"

	_, err := cfg.LoadModel(ctx)
	assert.ErrorIs(t, err, pipeline.ErrNoModel)

	store, err := cfg.OpenStore(ctx)
	require.NoError(t, err)
	m := model.New()
	m.Tokens["12_4_8_6_1"] = model.Counts{Anomaly: 2}
	require.NoError(t, store.SaveModel(ctx, "chest", m))

	loaded, err := cfg.LoadModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, m.Tokens, loaded.Tokens)

	cfg.Store = "unknown"
	_, err = cfg.OpenStore(ctx)
	assert.Error(t, err)
}

func TestNewAnalyzer(t *testing.T) {
	cfg := Default()
	a, err := cfg.NewAnalyzer(nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Params, a.Params)

	cfg.Resampler = "lanczos"
	_, err = cfg.NewAnalyzer(nil)
	assert.Error(t, err)
}
