package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"pulmoprint/internal/cluster"
	"pulmoprint/internal/errs"
	"pulmoprint/internal/hash"
	"pulmoprint/internal/image"
	"pulmoprint/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texture(seed int64, w, h int) *image.Matrix {
	rng := rand.New(rand.NewSource(seed))
	m := image.NewMatrix(w, h)
	for i := range m.Pix {
		m.Pix[i] = uint8(rng.Intn(256))
	}
	return m
}

func flat(w, h int, v uint8) *image.Matrix {
	m := image.NewMatrix(w, h)
	for i := range m.Pix {
		m.Pix[i] = v
	}
	return m
}

// library serves in-memory matrices by name.
func library(images map[string]*image.Matrix) image.Decoder {
	return image.DecoderFunc(func(locator string) (*image.Matrix, error) {
		m, ok := images[locator]
		if !ok {
			return nil, fmt.Errorf("no image named %q", locator)
		}
		return m.Clone(), nil
	})
}

func testParams() Params {
	return DefaultParams().WithSize(64, 64)
}

func testImages() map[string]*image.Matrix {
	return map[string]*image.Matrix{
		"sick":   texture(7, 64, 64),
		"clear":  flat(64, 64, 120),
		"large":  texture(11, 100, 80),
		"sick-2": texture(7, 64, 64),
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	a := NewAnalyzer(library(testImages()), nil, testParams())

	first, err := a.Analyze("sick", 2, 2, false)
	require.NoError(t, err)
	second, err := a.Analyze("sick", 2, 2, false)
	require.NoError(t, err)

	assert.Equal(t, first.Hashes, second.Hashes)
	j1, err := json.Marshal(first)
	require.NoError(t, err)
	j2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, j1, j2)

	// 64/8 = 8 blocks per side.
	assert.Equal(t, 64, first.Memo.Len())
	assert.Len(t, first.Hashes, 4*3+4*6*5+6*6*8)
}

func TestAnalyzeResamplesToWorkingSize(t *testing.T) {
	a := NewAnalyzer(library(testImages()), nil, testParams())

	res, err := a.Analyze("large", 2, 3, true)
	require.NoError(t, err)
	assert.Equal(t, 64, res.Memo.Len())
	for _, tok := range res.Hashes {
		fields, err := tok.Fields()
		require.NoError(t, err)
		// Two features per side, then quadrant and direction codes.
		assert.Len(t, fields, 6)
	}
}

func TestAnalyzeDecodeFailure(t *testing.T) {
	a := NewAnalyzer(library(testImages()), nil, testParams())

	_, err := a.Analyze("missing", 2, 2, false)
	var decodeErr *errs.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "missing", decodeErr.Locator)

	a.Decoder = nil
	_, err = a.Analyze("sick", 2, 2, false)
	assert.True(t, errors.As(err, &decodeErr))
}

func TestAnalyzeRejectsBadParams(t *testing.T) {
	a := NewAnalyzer(library(testImages()), nil, testParams())

	_, err := a.Analyze("sick", 0, 2, false)
	var cfgErr *errs.ConfigError
	assert.True(t, errors.As(err, &cfgErr))

	_, err = a.Analyze("sick", 2, 1, false)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestDetectWithoutModel(t *testing.T) {
	a := NewAnalyzer(library(testImages()), nil, testParams())
	_, err := a.Detect("sick", 2, 2, false)
	assert.ErrorIs(t, err, ErrNoModel)
}

func trainOn(t *testing.T, a *Analyzer, locator string, class model.Class) *model.Model {
	t.Helper()
	res, err := a.Analyze(locator, a.Params.BinSize, a.Params.Bands, a.Params.Extended)
	require.NoError(t, err)
	b := model.NewBuilder()
	b.AddImage(res.Hashes, class)
	return b.Model()
}

func TestDetectMatchesManualScoring(t *testing.T) {
	a := NewAnalyzer(library(testImages()), nil, testParams())
	a.Model = trainOn(t, a, "sick", model.ClassAnomaly)

	d, err := a.Detect("sick-2", 2, 2, false)
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "sick-2", d.Locator)
	assert.GreaterOrEqual(t, d.ProcessingTime, 0.0)

	// A cell is suspicious exactly when one of its tokens was counted.
	res, err := a.Analyze("sick-2", 2, 2, false)
	require.NoError(t, err)
	want := model.NewActivationGrid(8)
	for i, e := range res.Memo.Entries() {
		for _, tok := range e.Tokens {
			if !model.IsNoise(tok) {
				want.Cells[i] = 1
				break
			}
		}
	}
	assert.Equal(t, want.Cells, d.Activation.Cells)

	clusters, err := cluster.Analyze(want, a.Params.MinClusterSize)
	require.NoError(t, err)
	assert.Equal(t, clusters.Score, d.Score)
	assert.Equal(t, clusters.Count, d.Similar)
	assert.Positive(t, d.Score)
	assert.True(t, d.Positive(d.Score))
	assert.False(t, d.Positive(d.Score+1))

	require.NotNil(t, d.Working)
	assert.Equal(t, 64, d.Working.Width)
}

func TestDetectCarriesHashes(t *testing.T) {
	a := NewAnalyzer(library(testImages()), nil, testParams())
	a.Model = trainOn(t, a, "sick", model.ClassAnomaly)

	d, err := a.Detect("sick-2", 2, 2, false)
	require.NoError(t, err)
	require.NotNil(t, d.Hashes)

	res, err := a.Analyze("sick-2", 2, 2, false)
	require.NoError(t, err)
	assert.Equal(t, res.Hashes, d.Hashes.Hashes)
	want, err := json.Marshal(res.Memo)
	require.NoError(t, err)
	got, err := json.Marshal(d.Hashes.Memo)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	out, err := json.Marshal(d)
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &fields))
	assert.NotContains(t, fields, "hashes")
	assert.NotContains(t, fields, "Hashes")
}

func TestDetectNormalEvidenceOnly(t *testing.T) {
	a := NewAnalyzer(library(testImages()), nil, testParams())
	a.Model = trainOn(t, a, "sick", model.ClassNormal)

	d, err := a.Detect("sick", 2, 2, false)
	require.NoError(t, err)
	assert.Zero(t, d.Activation.Active())
	assert.Zero(t, d.Score)
	assert.Zero(t, d.Similar)

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"sizes":[]`)
}

func TestDetectMatrixLeavesInputUntouched(t *testing.T) {
	a := NewAnalyzer(nil, model.New(), testParams())
	m := texture(3, 64, 64)
	before := m.Clone()

	_, err := a.DetectMatrix(m, 2, 2, false)
	require.NoError(t, err)
	assert.Equal(t, before.Pix, m.Pix)
}

func TestTrainSkipsFailingItems(t *testing.T) {
	a := NewAnalyzer(library(testImages()), nil, testParams())
	corpus := Corpus{
		{Path: "sick", Label: "anomaly", Class: model.ClassAnomaly},
		{Path: "missing", Label: "normal", Class: model.ClassNormal},
		{Path: "clear", Label: "normal", Class: model.ClassNormal},
	}

	b := model.NewBuilder()
	report := Train(a, corpus, b)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Processed)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "missing", report.Failed[0].Locator)
	assert.Contains(t, report.Failed[0].Error(), "missing")

	m := b.Model()
	assert.Equal(t, report.RunID, m.Meta.RunID)
	assert.Equal(t, a.Params.String(), m.Meta.Params)
	assert.Equal(t, 1, m.Meta.AnomalyImages)
	assert.Equal(t, 1, m.Meta.NormalImages)
	assert.Equal(t, int64(report.Rejected), m.Meta.Rejected)
	assert.Positive(t, report.Accepted)

	// The flat image only yields zero-energy noise tokens.
	stats := m.Stats()
	assert.Zero(t, stats.NormalTotal)
	assert.Equal(t, stats.Tokens, stats.AnomalyOnly)
}

func TestEvaluateConfusion(t *testing.T) {
	a := NewAnalyzer(library(testImages()), nil, testParams())
	a.Model = trainOn(t, a, "sick", model.ClassAnomaly)

	corpus := Corpus{
		{Path: "sick-2", Class: model.ClassAnomaly},
		{Path: "clear", Class: model.ClassNormal},
		{Path: "missing", Class: model.ClassNormal},
		{Path: "sick", Class: model.ClassNormal},
	}
	report, err := Evaluate(context.Background(), a, corpus, 3, 1)
	require.NoError(t, err)

	assert.Equal(t, Confusion{TP: 1, FP: 1, TN: 1}, report.Confusion)
	assert.Equal(t, 3, report.Confusion.Total())
	assert.InDelta(t, 2.0/3.0, report.Confusion.Accuracy(), 1e-12)
	assert.Equal(t, 1.0, report.Confusion.Sensitivity())
	assert.Equal(t, 0.5, report.Confusion.Specificity())
	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, "sick-2", report.Outcomes[0].Item.Path)
	assert.Equal(t, "clear", report.Outcomes[1].Item.Path)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "missing", report.Failed[0].Locator)
}

func TestEvaluateCancelled(t *testing.T) {
	a := NewAnalyzer(library(testImages()), model.New(), testParams())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Evaluate(ctx, a, Corpus{{Path: "sick"}, {Path: "clear"}}, 2, 1)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.LessOrEqual(t, len(report.Outcomes), 2)
}

func TestEvaluateWithoutModel(t *testing.T) {
	a := NewAnalyzer(library(testImages()), nil, testParams())
	_, err := Evaluate(context.Background(), a, Corpus{{Path: "sick"}}, 1, 1)
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestLoadCorpus(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "corpus.json")
	abs := filepath.Join(dir, "elsewhere", "c.png")
	data := fmt.Sprintf(`[
		{"path": "a.png", "label": "normal"},
		{"path": "scans/b.png", "label": "abnormal"},
		{"path": %q, "label": "1"}
	]`, abs)
	require.NoError(t, os.WriteFile(manifest, []byte(data), 0644))

	corpus, err := LoadCorpus(manifest)
	require.NoError(t, err)
	require.Len(t, corpus, 3)
	assert.Equal(t, filepath.Join(dir, "a.png"), corpus[0].Path)
	assert.Equal(t, filepath.Join(dir, "scans", "b.png"), corpus[1].Path)
	assert.Equal(t, abs, corpus[2].Path)
	assert.Equal(t, model.ClassNormal, corpus[0].Class)
	assert.Equal(t, model.ClassAnomaly, corpus[1].Class)

	normal, anomaly := corpus.Counts()
	assert.Equal(t, 1, normal)
	assert.Equal(t, 2, anomaly)
}

func TestLoadCorpusErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadCorpus(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"path": "a.png", "label": "maybe"}]`), 0644))
	_, err = LoadCorpus(bad)
	assert.Error(t, err)

	nopath := filepath.Join(dir, "nopath.json")
	require.NoError(t, os.WriteFile(nopath, []byte(`[{"label": "normal"}]`), 0644))
	_, err = LoadCorpus(nopath)
	assert.Error(t, err)
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name string
		p    Params
	}{
		{"zero size", DefaultParams().WithSize(0, 64)},
		{"block not power of two", DefaultParams().WithBlockSize(6)},
		{"block larger than image", DefaultParams().WithSize(4, 4)},
		{"zero bin", DefaultParams().WithBinSize(0)},
		{"one band", DefaultParams().WithBands(1)},
		{"zero cluster size", DefaultParams().WithMinClusterSize(0)},
		{"negative ratio", DefaultParams().WithRatioThreshold(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfgErr *errs.ConfigError
			assert.True(t, errors.As(tt.p.Validate(), &cfgErr))
		})
	}
}

func TestParamsStringSeparatesModels(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, "size=1024x1024 block=8 bin=2 bands=2 extended=false", p.String())
	assert.NotEqual(t, p.String(), p.WithExtended(true).String())
	// Scoring knobs do not change token shape.
	assert.Equal(t, p.String(), p.WithRatioThreshold(0.5).String())
}

func TestFingerprintReturnsWorkingMatrix(t *testing.T) {
	res, working, err := Fingerprint(texture(5, 100, 80), nil, testParams())
	require.NoError(t, err)
	assert.Equal(t, 64, working.Width)
	assert.Equal(t, 64, working.Height)
	assert.IsType(t, &hash.Result{}, res)
}
