package pipeline

import (
	"log"
	"time"

	"pulmoprint/internal/model"

	"github.com/google/uuid"
)

// ItemError records a corpus item that could not be processed.
type ItemError struct {
	Locator string
	Err     error
}

func (e ItemError) Error() string {
	return e.Locator + ": " + e.Err.Error()
}

// TrainReport summarises a training run.
type TrainReport struct {
	RunID     string
	Processed int
	Accepted  int // Tokens counted
	Rejected  int // Tokens dropped by the noise filter
	Failed    []ItemError
	Elapsed   time.Duration
}

// Train fingerprints every corpus item with the analyzer's decoder and
// parameters and feeds the tokens to b. Items that fail are logged, recorded
// in the report and skipped.
func Train(a *Analyzer, corpus Corpus, b *model.Builder) *TrainReport {
	start := time.Now()
	report := &TrainReport{RunID: uuid.New().String()}
	b.SetRun(report.RunID, a.Params.String())

	for i, item := range corpus {
		m, err := a.decode(item.Path)
		if err != nil {
			log.Printf("train: skipping %s: %v", item.Path, err)
			report.Failed = append(report.Failed, ItemError{Locator: item.Path, Err: err})
			continue
		}

		res, _, err := Fingerprint(m, a.Resampler, a.Params)
		if err != nil {
			log.Printf("train: skipping %s: %v", item.Path, err)
			report.Failed = append(report.Failed, ItemError{Locator: item.Path, Err: err})
			continue
		}

		accepted, rejected := b.AddImage(res.Hashes, item.Class)
		report.Processed++
		report.Accepted += accepted
		report.Rejected += rejected

		if (i+1)%50 == 0 {
			log.Printf("train: %d/%d images", i+1, len(corpus))
		}
	}

	report.Elapsed = time.Since(start)
	return report
}
