// Package config resolves runtime settings from an optional .env file and
// PULMO_* environment variables.
//
//	PULMO_SIZE           working resolution, "1024x1024" or "1024"
//	PULMO_BLOCK_SIZE     block side (power of two)
//	PULMO_BIN_SIZE       energy quantization step
//	PULMO_BANDS          2 or 3
//	PULMO_EXTENDED       "true" to add quadrant codes to tokens
//	PULMO_MIN_CLUSTER    smallest scoring component
//	PULMO_RATIO          normal/anomaly ratio threshold
//	PULMO_THRESHOLD      positive detection threshold
//	PULMO_STORE          memory, file or sqlite
//	PULMO_STORE_PATH     model directory or database file
//	PULMO_MODEL          model name inside the store
//	PULMO_RESAMPLER      draw or gocv
//	PULMO_WORKERS        concurrent analyses for evaluation sweeps
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"pulmoprint/internal/errs"
	"pulmoprint/internal/pipeline"
	"pulmoprint/pkg/geometry"

	"github.com/joho/godotenv"
)

const envPrefix = "PULMO_"

// Config is the resolved runtime configuration.
type Config struct {
	Params    pipeline.Params
	Store     string
	StorePath string
	Model     string
	Resampler string
	Workers   int
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Params:    pipeline.DefaultParams(),
		Store:     "file",
		StorePath: "models",
		Model:     "default",
		Resampler: "draw",
		Workers:   4,
	}
}

// Load reads envFile (missing files are ignored) and applies PULMO_*
// variables on top of the defaults. Variables already set in the process
// environment take precedence over the file.
func Load(envFile string) (Config, error) {
	file := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			file = values
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, err
		}
	}

	return FromLookup(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	})
}

// FromLookup builds a configuration from an arbitrary key lookup.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	r := reader{lookup: lookup}

	if v, ok := r.get("SIZE"); ok {
		size, err := parseSize(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Params.Size = size
	}
	cfg.Params.BlockSize = r.integer("BLOCK_SIZE", cfg.Params.BlockSize)
	cfg.Params.BinSize = r.number("BIN_SIZE", cfg.Params.BinSize)
	cfg.Params.Bands = r.integer("BANDS", cfg.Params.Bands)
	cfg.Params.Extended = r.boolean("EXTENDED", cfg.Params.Extended)
	cfg.Params.MinClusterSize = r.integer("MIN_CLUSTER", cfg.Params.MinClusterSize)
	cfg.Params.RatioThreshold = r.number("RATIO", cfg.Params.RatioThreshold)
	cfg.Params.DetectThreshold = r.number("THRESHOLD", cfg.Params.DetectThreshold)

	cfg.Store = r.text("STORE", cfg.Store)
	cfg.StorePath = r.text("STORE_PATH", cfg.StorePath)
	cfg.Model = r.text("MODEL", cfg.Model)
	cfg.Resampler = r.text("RESAMPLER", cfg.Resampler)
	cfg.Workers = r.integer("WORKERS", cfg.Workers)

	if r.err != nil {
		return Config{}, r.err
	}
	if cfg.Workers < 1 {
		return Config{}, &errs.ConfigError{Field: envPrefix + "WORKERS", Value: cfg.Workers, Reason: "must be at least 1"}
	}
	if err := cfg.Params.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// reader keeps the first parse failure so settings can be read in sequence.
type reader struct {
	lookup func(string) (string, bool)
	err    error
}

func (r *reader) get(name string) (string, bool) {
	v, ok := r.lookup(envPrefix + name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) fail(name, value, reason string) {
	if r.err == nil {
		r.err = &errs.ConfigError{Field: envPrefix + name, Value: value, Reason: reason}
	}
}

func (r *reader) text(name, def string) string {
	if v, ok := r.get(name); ok {
		return v
	}
	return def
}

func (r *reader) integer(name string, def int) int {
	v, ok := r.get(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(name, v, "not an integer")
		return def
	}
	return n
}

func (r *reader) number(name string, def float64) float64 {
	v, ok := r.get(name)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(name, v, "not a number")
		return def
	}
	return f
}

func (r *reader) boolean(name string, def bool) bool {
	v, ok := r.get(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(name, v, "not a boolean")
		return def
	}
	return b
}

// parseSize accepts "WxH" or a single side for square images.
func parseSize(s string) (geometry.Size, error) {
	w, h, found := strings.Cut(strings.ToLower(s), "x")
	if !found {
		h = w
	}
	width, err1 := strconv.Atoi(strings.TrimSpace(w))
	height, err2 := strconv.Atoi(strings.TrimSpace(h))
	if err1 != nil || err2 != nil {
		return geometry.Size{}, &errs.ConfigError{Field: envPrefix + "SIZE", Value: s, Reason: `expected "WxH" or a single side`}
	}
	return geometry.Size{Width: width, Height: height}, nil
}
