package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"pulmoprint/internal/model"
)

// Confusion counts binary outcomes against the corpus labels, with
// "anomaly" as the positive class.
type Confusion struct {
	TP, FP, TN, FN int
}

// Total returns the number of decided items.
func (c Confusion) Total() int {
	return c.TP + c.FP + c.TN + c.FN
}

// Accuracy returns (TP+TN)/total, or 0 for an empty matrix.
func (c Confusion) Accuracy() float64 {
	return ratio(c.TP+c.TN, c.Total())
}

// Sensitivity returns TP/(TP+FN).
func (c Confusion) Sensitivity() float64 {
	return ratio(c.TP, c.TP+c.FN)
}

// Specificity returns TN/(TN+FP).
func (c Confusion) Specificity() float64 {
	return ratio(c.TN, c.TN+c.FP)
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// Outcome is the detection result of one corpus item.
type Outcome struct {
	Item     Item
	Score    float64
	Similar  int
	Positive bool
}

// EvalReport summarises a validation sweep.
type EvalReport struct {
	Threshold float64
	Confusion Confusion
	Outcomes  []Outcome // Corpus order, failed items omitted
	Failed    []ItemError
	Elapsed   time.Duration
}

// Evaluate runs Detect over the corpus with up to workers concurrent
// analyses sharing the analyzer's read-only model, and classifies each score
// against threshold. Failing items are recorded and skipped. Cancelling ctx
// stops dispatching new items.
func Evaluate(ctx context.Context, a *Analyzer, corpus Corpus, workers int, threshold float64) (*EvalReport, error) {
	if a.Model == nil {
		return nil, ErrNoModel
	}
	if workers < 1 {
		workers = 1
	}
	start := time.Now()
	p := a.Params

	type result struct {
		outcome *Outcome
		err     error
	}
	results := make([]result, len(corpus))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				item := corpus[i]
				d, err := a.Detect(item.Path, p.BinSize, p.Bands, p.Extended)
				if err != nil {
					log.Printf("evaluate: skipping %s: %v", item.Path, err)
					results[i] = result{err: err}
					continue
				}
				results[i] = result{outcome: &Outcome{
					Item:     item,
					Score:    d.Score,
					Similar:  d.Similar,
					Positive: d.Positive(threshold),
				}}
			}
		}()
	}

dispatch:
	for i := range corpus {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	report := &EvalReport{Threshold: threshold}
	for i, r := range results {
		switch {
		case r.err != nil:
			report.Failed = append(report.Failed, ItemError{Locator: corpus[i].Path, Err: r.err})
		case r.outcome != nil:
			report.Outcomes = append(report.Outcomes, *r.outcome)
			report.Confusion.add(r.outcome.Item.Class, r.outcome.Positive)
		}
	}
	report.Elapsed = time.Since(start)
	return report, ctx.Err()
}

func (c *Confusion) add(class model.Class, positive bool) {
	switch {
	case class == model.ClassAnomaly && positive:
		c.TP++
	case class == model.ClassAnomaly:
		c.FN++
	case positive:
		c.FP++
	default:
		c.TN++
	}
}
