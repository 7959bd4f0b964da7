// Command pulmotrain builds a token frequency model from a labelled corpus
// manifest and saves it to a model store.
//
// The manifest is a JSON array of {"path": ..., "label": "normal"|"anomaly"}.
//
// Usage: pulmotrain -manifest corpus.json [-model default] [-merge]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"pulmoprint/internal/config"
	"pulmoprint/internal/model"
	"pulmoprint/internal/pipeline"
	"pulmoprint/internal/storage"
	"pulmoprint/internal/version"

	"github.com/dustin/go-humanize"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	manifest := flag.String("manifest", "", "Corpus manifest (JSON)")
	storeKind := flag.String("store", cfg.Store, "Model store: file, memory or sqlite")
	storePath := flag.String("store-path", cfg.StorePath, "Model directory or sqlite database")
	modelName := flag.String("model", cfg.Model, "Model name to write")
	merge := flag.Bool("merge", false, "Add to the existing model instead of replacing it")
	binSize := flag.Float64("bin", cfg.Params.BinSize, "Energy quantization step")
	bands := flag.Int("bands", cfg.Params.Bands, "Frequency bands per block (2 or 3)")
	extended := flag.Bool("extended", cfg.Params.Extended, "Add quadrant codes to tokens")
	resampler := flag.String("resampler", cfg.Resampler, "Resampler backend: draw or gocv")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("pulmotrain"))
		return
	}
	if *manifest == "" {
		fmt.Println("Usage: pulmotrain -manifest corpus.json [-model default] [-merge]")
		os.Exit(1)
	}

	cfg.Store, cfg.StorePath, cfg.Model, cfg.Resampler = *storeKind, *storePath, *modelName, *resampler
	cfg.Params = cfg.Params.WithBinSize(*binSize).WithBands(*bands).WithExtended(*extended)
	if err := cfg.Params.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	corpus, err := pipeline.LoadCorpus(*manifest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}
	normal, anomaly := corpus.Counts()
	fmt.Printf("Corpus: %s images (%s normal, %s anomaly)\n",
		humanize.Comma(int64(len(corpus))), humanize.Comma(int64(normal)), humanize.Comma(int64(anomaly)))
	fmt.Printf("Parameters: %s\n", cfg.Params)

	ctx := context.Background()
	store, err := cfg.OpenStore(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer storage.CloseIfSupported(store)

	var base *model.Model
	if *merge {
		existing, ok, err := store.LoadModel(ctx, cfg.Model)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading model: %v\n", err)
			os.Exit(1)
		}
		if ok {
			if existing.Meta.Params != "" && existing.Meta.Params != cfg.Params.String() {
				fmt.Fprintf(os.Stderr, "Error: model %s was trained with %q, not %q\n", cfg.Model, existing.Meta.Params, cfg.Params)
				os.Exit(1)
			}
			fmt.Printf("Merging into %s (%s tokens)\n", cfg.Model, humanize.Comma(int64(existing.Len())))
			base = existing
		}
	}

	a, err := cfg.NewAnalyzer(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	builder := model.NewBuilder()
	report := pipeline.Train(a, corpus, builder)
	m := builder.Model()
	if base != nil {
		base.Merge(m)
		base.Meta.RunID, base.Meta.Params = m.Meta.RunID, m.Meta.Params
		m = base
	}
	m.Meta.Created = time.Now().UTC()

	if err := store.SaveModel(ctx, cfg.Model, m); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving model: %v\n", err)
		os.Exit(1)
	}

	stats := m.Stats()
	fmt.Printf("\nRun %s finished in %s\n", report.RunID, report.Elapsed.Round(time.Millisecond))
	fmt.Printf("  Images:   %s processed, %d failed\n", humanize.Comma(int64(report.Processed)), len(report.Failed))
	fmt.Printf("  Tokens:   %s counted, %s rejected as noise\n",
		humanize.Comma(int64(report.Accepted)), humanize.Comma(int64(report.Rejected)))
	fmt.Printf("  Model:    %s distinct tokens, %s anomaly-only\n",
		humanize.Comma(int64(stats.Tokens)), humanize.Comma(int64(stats.AnomalyOnly)))
	for _, f := range report.Failed {
		fmt.Printf("  failed: %v\n", f)
	}
	fmt.Printf("\nSaved model %s to %s store %s\n", cfg.Model, cfg.Store, cfg.StorePath)
}
