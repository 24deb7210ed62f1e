package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/trashposts/post-search/internal/elasticsearch"
)

// Backend is what Rebuild needs from the search engine.
type Backend interface {
	BulkWriter
	Ping(ctx context.Context) error
	RecreateIndex(ctx context.Context, index string, mapping map[string]interface{}) error
	Refresh(ctx context.Context, index string) error
	Count(ctx context.Context, index string) (int64, error)
}

type RebuildOptions struct {
	Path      string
	Index     string
	BatchSize int
	// Timeout bounds each individual backend call.
	Timeout time.Duration
}

// RebuildResult is the outcome of a full index rebuild.
type RebuildResult struct {
	*Report
	DocCount int64
}

// Rebuild drops and recreates the index, then loads the CSV at opts.Path.
// It is destructive and must not run concurrently with itself or with an
// import into the same index.
func Rebuild(ctx context.Context, es Backend, opts RebuildOptions, log *zap.Logger) (*RebuildResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	call := func(fn func(ctx context.Context) error) error {
		cctx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		return fn(cctx)
	}

	if err := call(es.Ping); err != nil {
		return nil, fmt.Errorf("connect to elasticsearch: %w", err)
	}

	// Open the file before touching the index so a bad path leaves it intact.
	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	src, err := NewReader(f)
	if err != nil {
		return nil, err
	}

	err = call(func(ctx context.Context) error {
		return es.RecreateIndex(ctx, opts.Index, elasticsearch.PostsMapping())
	})
	if err != nil {
		return nil, fmt.Errorf("recreate index %s: %w", opts.Index, err)
	}
	log.Info("index recreated", zap.String("index", opts.Index))

	loader := NewLoader(WithTimeout(es, opts.Timeout), opts.Index, opts.BatchSize, log)
	report, err := loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	if err := call(func(ctx context.Context) error { return es.Refresh(ctx, opts.Index) }); err != nil {
		return nil, fmt.Errorf("refresh index %s: %w", opts.Index, err)
	}
	var count int64
	err = call(func(ctx context.Context) error {
		var err error
		count, err = es.Count(ctx, opts.Index)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("count index %s: %w", opts.Index, err)
	}

	res := &RebuildResult{Report: report, DocCount: count}
	if report.Indexed == 0 && report.Failed > 0 {
		return res, fmt.Errorf("ingest: all %d documents were rejected", report.Failed)
	}
	return res, nil
}

// WithTimeout bounds every Bulk call on w by timeout.
func WithTimeout(w BulkWriter, timeout time.Duration) BulkWriter {
	return timeoutWriter{w: w, timeout: timeout}
}

type timeoutWriter struct {
	w       BulkWriter
	timeout time.Duration
}

func (t timeoutWriter) Bulk(ctx context.Context, index string, docs []interface{}) (*elasticsearch.BulkResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.w.Bulk(ctx, index, docs)
}
