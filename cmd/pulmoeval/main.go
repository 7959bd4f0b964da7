// Command pulmoeval runs detection over a labelled corpus and reports the
// confusion matrix at a score threshold.
//
// Usage: pulmoeval -manifest corpus.json [-model default] [-threshold 1200] [-workers 4]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"pulmoprint/internal/config"
	"pulmoprint/internal/pipeline"
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
	modelName := flag.String("model", cfg.Model, "Model name")
	threshold := flag.Float64("threshold", cfg.Params.DetectThreshold, "Score at or above which an image is positive")
	workers := flag.Int("workers", cfg.Workers, "Concurrent analyses")
	resampler := flag.String("resampler", cfg.Resampler, "Resampler backend: draw or gocv")
	verbose := flag.Bool("v", false, "Print every item's score")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("pulmoeval"))
		return
	}
	if *manifest == "" {
		fmt.Println("Usage: pulmoeval -manifest corpus.json [-model default] [-threshold 1200] [-workers 4]")
		os.Exit(1)
	}
	cfg.Store, cfg.StorePath, cfg.Model, cfg.Resampler = *storeKind, *storePath, *modelName, *resampler

	corpus, err := pipeline.LoadCorpus(*manifest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m, err := cfg.LoadModel(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading model: %v\n", err)
		os.Exit(1)
	}
	a, err := cfg.NewAnalyzer(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Evaluating %s images against %s (%s tokens) with %d workers\n",
		humanize.Comma(int64(len(corpus))), cfg.Model, humanize.Comma(int64(m.Len())), *workers)

	report, err := pipeline.Evaluate(ctx, a, corpus, *workers, *threshold)
	if report == nil {
		fmt.Fprintf(os.Stderr, "Evaluation failed: %v\n", err)
		os.Exit(1)
	}
	if err != nil {
		log.Printf("evaluation interrupted: %v", err)
	}

	if *verbose {
		fmt.Printf("\n%-8s %-8s %8s %8s  %s\n", "Label", "Result", "Score", "Clusters", "Path")
		for _, o := range report.Outcomes {
			result := "neg"
			if o.Positive {
				result = "POS"
			}
			fmt.Printf("%-8s %-8s %8.0f %8d  %s\n", o.Item.Class, result, o.Score, o.Similar, o.Item.Path)
		}
	}

	c := report.Confusion
	fmt.Printf("\nThreshold %.0f, %s decided, %d failed, %s\n",
		report.Threshold, humanize.Comma(int64(c.Total())), len(report.Failed), report.Elapsed.Round(time.Millisecond))
	fmt.Printf("               pred anomaly  pred normal\n")
	fmt.Printf("  anomaly      %12d %12d\n", c.TP, c.FN)
	fmt.Printf("  normal       %12d %12d\n", c.FP, c.TN)
	fmt.Printf("\n  Accuracy:    %.3f\n", c.Accuracy())
	fmt.Printf("  Sensitivity: %.3f\n", c.Sensitivity())
	fmt.Printf("  Specificity: %.3f\n", c.Specificity())
	for _, f := range report.Failed {
		fmt.Printf("  failed: %v\n", f)
	}

	if err != nil {
		os.Exit(1)
	}
}
