package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trashposts/post-search/internal/elasticsearch"
)

const (
	DefaultBatchSize         = 500
	DefaultMaxFailureSamples = 5
)

// BulkWriter is the slice of the search backend the loader needs.
type BulkWriter interface {
	Bulk(ctx context.Context, index string, docs []interface{}) (*elasticsearch.BulkResult, error)
}

// BulkError wraps a rejected bulk request. It aborts the whole load.
type BulkError struct {
	Batch int
	Err   error
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("ingest: bulk request %d failed: %v", e.Batch, e.Err)
}

func (e *BulkError) Unwrap() error {
	return e.Err
}

// Report describes the outcome of one load.
type Report struct {
	RowsRead int                `json:"rows_read"`
	Skipped  map[SkipReason]int `json:"skipped"`
	Indexed  int                `json:"indexed_count"`
	Failed   int                `json:"failed_count"`
	Failures []string           `json:"failures,omitempty"`
}

// SkippedTotal sums the skip counters.
func (r *Report) SkippedTotal() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// Loader streams cleaned posts to the backend in fixed-size batches. The
// reader runs one batch ahead of the writer; it blocks until the writer
// catches up, so memory stays bounded by two batches.
type Loader struct {
	w                 BulkWriter
	index             string
	batchSize         int
	maxFailureSamples int
	log               *zap.Logger
}

func NewLoader(w BulkWriter, index string, batchSize int, log *zap.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		w:                 w,
		index:             index,
		batchSize:         batchSize,
		maxFailureSamples: DefaultMaxFailureSamples,
		log:               log,
	}
}

// Load drains src into the index. A rejected bulk request or a malformed
// input file stops the load and returns an error; per-document failures are
// only counted.
func (l *Loader) Load(ctx context.Context, src *Reader) (*Report, error) {
	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan []interface{}, 1)

	g.Go(func() error {
		defer close(batches)
		batch := make([]interface{}, 0, l.batchSize)
		for {
			post, err := src.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			batch = append(batch, post)
			if len(batch) < l.batchSize {
				continue
			}
			select {
			case batches <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
			batch = make([]interface{}, 0, l.batchSize)
		}
		if len(batch) > 0 {
			select {
			case batches <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	report := &Report{}
	g.Go(func() error {
		n := 0
		for batch := range batches {
			n++
			res, err := l.w.Bulk(gctx, l.index, batch)
			if err != nil {
				return &BulkError{Batch: n, Err: err}
			}
			report.Indexed += res.Indexed
			report.Failed += res.Failed
			for _, itemErr := range res.Errors {
				if len(report.Failures) >= l.maxFailureSamples {
					break
				}
				report.Failures = append(report.Failures, itemErr.String())
			}
			l.log.Debug("bulk batch written",
				zap.Int("batch", n),
				zap.Int("size", len(batch)),
				zap.Int("indexed", res.Indexed),
				zap.Int("failed", res.Failed))
		}
		return nil
	})

	err := g.Wait()
	report.RowsRead = src.RowsRead()
	report.Skipped = src.Skipped()
	if err != nil {
		return report, err
	}
	return report, nil
}
