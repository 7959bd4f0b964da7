// Command pulmodetect fingerprints one radiograph, scores it against a trained
// model and reports the anomaly score.
//
// Usage: pulmodetect -image <path> [-model default] [-threshold 1200] [-hashes out.json] [-overlay out.png] [-blend screen]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"pulmoprint/internal/config"
	"pulmoprint/internal/hash"
	"pulmoprint/internal/image"
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

	imagePath := flag.String("image", "", "Path to radiograph ("+fmt.Sprint(image.SupportedFormats())+")")
	storeKind := flag.String("store", cfg.Store, "Model store: file, memory or sqlite")
	storePath := flag.String("store-path", cfg.StorePath, "Model directory or sqlite database")
	modelName := flag.String("model", cfg.Model, "Model name")
	binSize := flag.Float64("bin", cfg.Params.BinSize, "Energy quantization step")
	bands := flag.Int("bands", cfg.Params.Bands, "Frequency bands per block (2 or 3)")
	extended := flag.Bool("extended", cfg.Params.Extended, "Add quadrant codes to tokens")
	threshold := flag.Float64("threshold", cfg.Params.DetectThreshold, "Score at or above which the image is positive")
	resampler := flag.String("resampler", cfg.Resampler, "Resampler backend: draw or gocv")
	hashesPath := flag.String("hashes", "", "Write the token memo as JSON to this path (- for stdout)")
	overlayPath := flag.String("overlay", "", "Write an activation overlay PNG to this path")
	blend := flag.String("blend", "screen", "Overlay blend mode: normal, multiply or screen")
	asJSON := flag.Bool("json", false, "Print the detection as JSON")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("pulmodetect"))
		return
	}
	if *imagePath == "" {
		fmt.Println("Usage: pulmodetect -image <path> [-model default] [-threshold 1200] [-hashes out.json] [-overlay out.png] [-blend screen]")
		os.Exit(1)
	}

	cfg.Store, cfg.StorePath, cfg.Model, cfg.Resampler = *storeKind, *storePath, *modelName, *resampler
	cfg.Params = cfg.Params.WithBinSize(*binSize).WithBands(*bands).WithExtended(*extended)
	if err := cfg.Params.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	blendMode, err := image.ParseBlendMode(*blend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	m, err := cfg.LoadModel(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading model: %v\n", err)
		os.Exit(1)
	}
	stats := m.Stats()
	log.Printf("model %s: %s tokens from %d normal / %d anomaly images",
		cfg.Model, humanize.Comma(int64(stats.Tokens)), m.Meta.NormalImages, m.Meta.AnomalyImages)
	if m.Meta.Params != "" && m.Meta.Params != cfg.Params.String() {
		log.Printf("warning: model was trained with %q, detecting with %q", m.Meta.Params, cfg.Params.String())
	}

	a, err := cfg.NewAnalyzer(m)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if info, err := os.Stat(*imagePath); err == nil {
		fmt.Printf("Image: %s (%s)\n", *imagePath, humanize.Bytes(uint64(info.Size())))
	}

	d, err := a.Detect(*imagePath, cfg.Params.BinSize, cfg.Params.Bands, cfg.Params.Extended)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Detection failed: %v\n", err)
		os.Exit(1)
	}

	if *hashesPath != "" {
		if err := writeHashes(d.Hashes, *hashesPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing hashes: %v\n", err)
			os.Exit(1)
		}
	}

	if *overlayPath != "" {
		ov := image.NewOverlay(d.Working, d.Activation.Rows(), cfg.Params.BlockSize)
		ov.Mode = blendMode
		if err := ov.SavePNG(*overlayPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing overlay: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Overlay: %s\n", *overlayPath)
	}

	if *asJSON {
		out, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error serializing: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	verdict := "negative"
	if d.Positive(*threshold) {
		verdict = "POSITIVE"
	}
	fmt.Printf("Detection %s\n", d.ID)
	fmt.Printf("  Score:      %.0f (threshold %.0f) -> %s\n", d.Score, *threshold, verdict)
	fmt.Printf("  Clusters:   %d scoring, sizes %v\n", d.Similar, d.Clusters.Sizes)
	fmt.Printf("  Suspicious: %s of %s cells\n",
		humanize.Comma(int64(d.Activation.Active())), humanize.Comma(int64(len(d.Activation.Cells))))
	fmt.Printf("  Time:       %.3fs\n", d.ProcessingTime)
}

func writeHashes(res *hash.Result, path string) error {
	out, err := json.MarshalIndent(res.Memo, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		fmt.Println(string(out))
		return nil
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return err
	}
	fmt.Printf("Hashes: %s tokens in %d cells -> %s\n",
		humanize.Comma(int64(len(res.Hashes))), res.Memo.Len(), path)
	return nil
}
