package pipeline

import (
	"errors"
	"fmt"
	"time"

	"pulmoprint/internal/cluster"
	"pulmoprint/internal/errs"
	"pulmoprint/internal/hash"
	"pulmoprint/internal/image"
	"pulmoprint/internal/model"
	"pulmoprint/internal/spectral"

	"github.com/google/uuid"
)

// ErrNoModel is returned by Detect when the analyzer has no trained model.
var ErrNoModel = errors.New("no trained model loaded")

// Analyzer runs the fingerprinting pipeline for single images. The model is
// injected once and only read, so one Analyzer can serve concurrent calls.
type Analyzer struct {
	Decoder   image.Decoder
	Resampler image.Resampler
	Model     *model.Model
	Params    Params
}

// NewAnalyzer creates an analyzer using the pure-Go resampler.
func NewAnalyzer(dec image.Decoder, m *model.Model, params Params) *Analyzer {
	return &Analyzer{
		Decoder:   dec,
		Resampler: image.DrawResampler{},
		Model:     m,
		Params:    params,
	}
}

// Detection is the outcome of Detect.
type Detection struct {
	ID             string                `json:"id"`
	Locator        string                `json:"locator"`
	Score          float64               `json:"score"`
	Similar        int                   `json:"similar"`         // Qualifying clusters
	ProcessingTime float64               `json:"processing_time"` // Seconds
	Clusters       *cluster.Result       `json:"clusters"`
	Activation     *model.ActivationGrid `json:"-"`
	Working        *image.Matrix         `json:"-"` // Normalized input, for overlays
	Hashes         *hash.Result          `json:"-"` // Tokens the score was computed from
}

// Positive applies a caller-side decision threshold.
func (d *Detection) Positive(threshold float64) bool {
	return d.Score >= threshold
}

// Fingerprint runs normalization, partitioning, spectral extraction and hash
// generation on an already decoded matrix. It also returns the normalized
// working matrix.
func Fingerprint(m *image.Matrix, r image.Resampler, p Params) (*hash.Result, *image.Matrix, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if r == nil {
		r = image.DrawResampler{}
	}

	working, err := image.NormalizeWith(r, m, p.Size)
	if err != nil {
		return nil, nil, fmt.Errorf("normalize: %w", err)
	}

	blocks, err := spectral.Partition(working, p.BlockSize)
	if err != nil {
		return nil, nil, fmt.Errorf("partition: %w", err)
	}

	extractor, err := spectral.NewExtractor(p.BlockSize, p.BinSize, p.Bands)
	if err != nil {
		return nil, nil, err
	}
	grid, err := extractor.Extract(blocks)
	if err != nil {
		return nil, nil, fmt.Errorf("extract features: %w", err)
	}

	res, err := hash.Generate(grid, p.Extended)
	if err != nil {
		return nil, nil, fmt.Errorf("generate hashes: %w", err)
	}
	return res, working, nil
}

// params returns the analyzer parameters with the per-call overrides applied.
func (a *Analyzer) params(binSize float64, bands int, extended bool) Params {
	return a.Params.WithBinSize(binSize).WithBands(bands).WithExtended(extended)
}

func (a *Analyzer) decode(locator string) (*image.Matrix, error) {
	if a.Decoder == nil {
		return nil, &errs.DecodeError{Locator: locator, Err: errors.New("no image decoder configured")}
	}
	m, err := a.Decoder.Decode(locator)
	if err != nil {
		var decodeErr *errs.DecodeError
		if errors.As(err, &decodeErr) {
			return nil, err
		}
		return nil, &errs.DecodeError{Locator: locator, Err: err}
	}
	return m, nil
}

// Analyze decodes an image and returns its token list and memo.
func (a *Analyzer) Analyze(locator string, binSize float64, bands int, extended bool) (*hash.Result, error) {
	m, err := a.decode(locator)
	if err != nil {
		return nil, err
	}
	res, _, err := Fingerprint(m, a.Resampler, a.params(binSize, bands, extended))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", locator, err)
	}
	return res, nil
}

// Detect analyzes an image, scores it against the model and clusters the
// suspicious cells.
func (a *Analyzer) Detect(locator string, binSize float64, bands int, extended bool) (*Detection, error) {
	if a.Model == nil {
		return nil, ErrNoModel
	}
	start := time.Now()

	m, err := a.decode(locator)
	if err != nil {
		return nil, err
	}
	d, err := a.DetectMatrix(m, binSize, bands, extended)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", locator, err)
	}
	d.Locator = locator
	d.ProcessingTime = time.Since(start).Seconds()
	return d, nil
}

// DetectMatrix is Detect for an already decoded matrix.
func (a *Analyzer) DetectMatrix(m *image.Matrix, binSize float64, bands int, extended bool) (*Detection, error) {
	if a.Model == nil {
		return nil, ErrNoModel
	}
	start := time.Now()
	p := a.params(binSize, bands, extended)

	res, working, err := Fingerprint(m, a.Resampler, p)
	if err != nil {
		return nil, err
	}

	scorer := &model.Scorer{Model: a.Model, Ratio: p.RatioThreshold}
	grid, err := scorer.Score(res.Memo)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}

	clusters, err := cluster.Analyze(grid, p.MinClusterSize)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}

	return &Detection{
		ID:             uuid.New().String(),
		Score:          clusters.Score,
		Similar:        clusters.Count,
		ProcessingTime: time.Since(start).Seconds(),
		Clusters:       clusters,
		Activation:     grid,
		Working:        working,
		Hashes:         res,
	}, nil
}
