package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/trashposts/post-search/internal/config"
	"github.com/trashposts/post-search/internal/elasticsearch"
	"github.com/trashposts/post-search/internal/errs"
	"github.com/trashposts/post-search/internal/ingest"
	"github.com/trashposts/post-search/internal/model"
)

// PostServicer is what handlers and the Kafka worker depend on.
type PostServicer interface {
	Search(ctx context.Context, req *SearchRequest) (*SearchResult, error)
	Delete(ctx context.Context, id string) error
	FindSimilar(ctx context.Context, id string) (*SearchResult, error)
	Import(ctx context.Context, r io.Reader) (*ingest.Report, error)
	Random(ctx context.Context) (*PostHit, error)
	IndexPost(ctx context.Context, post *model.Post) error
	Ping(ctx context.Context) error
}

var _ PostServicer = (*PostService)(nil)

type SearchRequest struct {
	Query   string
	Mode    TextMode
	Filters []Filter
}

// PostHit keeps the engine's hit field names so existing clients can read it.
type PostHit struct {
	ID        string              `json:"_id"`
	Score     *float64            `json:"_score"`
	Source    model.Post          `json:"_source"`
	Highlight map[string][]string `json:"highlight,omitempty"`
}

type SearchResult struct {
	Total int64     `json:"total"`
	Hits  []PostHit `json:"hits"`
}

type Options struct {
	Index     string
	Timeout   time.Duration
	BatchSize int
	// ImportTimeout bounds a whole Import; 0 leaves it to the caller's context.
	ImportTimeout time.Duration
}

type PostService struct {
	es   elasticsearch.IndexSearcher
	opts Options
	log  *zap.Logger
	// indexReady is set once EnsureIndex has succeeded.
	indexReady atomic.Bool
}

func NewPostService(cfg *config.Config, log *zap.Logger) (*PostService, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Options{
		URL:           cfg.Elasticsearch.URL,
		Username:      cfg.Elasticsearch.Username,
		Password:      cfg.Elasticsearch.Password,
		SkipTLSVerify: cfg.Elasticsearch.SkipTLSVerify,
	})
	if err != nil {
		return nil, err
	}
	return NewPostServiceWithIndexer(es, Options{
		Index:     cfg.Elasticsearch.Index,
		Timeout:       cfg.Elasticsearch.Timeout,
		BatchSize:     cfg.BulkBatchSize,
		ImportTimeout: cfg.ImportTimeout,
	}, log)
}

// NewPostServiceWithIndexer builds PostService with a given IndexSearcher (e.g. for tests).
// An unreachable backend does not fail construction; the index is ensured
// again on the next Ping.
func NewPostServiceWithIndexer(es elasticsearch.IndexSearcher, opts Options, log *zap.Logger) (*PostService, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	svc := &PostService{es: es, opts: opts, log: log}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()
	if err := svc.ensureIndex(ctx); err != nil {
		log.Warn("index not ensured, backend may be down", zap.String("index", opts.Index), zap.Error(err))
	}
	return svc, nil
}

func (s *PostService) ensureIndex(ctx context.Context) error {
	if s.indexReady.Load() {
		return nil
	}
	if err := s.es.EnsureIndex(ctx, s.opts.Index, elasticsearch.PostsMapping()); err != nil {
		return fmt.Errorf("ensure index %s: %w", s.opts.Index, err)
	}
	s.indexReady.Store(true)
	return nil
}

// backendErr classifies an IndexSearcher failure.
func backendErr(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.ErrTimeout, op+" timed out", err)
	case errors.Is(err, elasticsearch.ErrUnavailable):
		return errs.Wrap(errs.ErrUnavailable, "search backend unavailable", err)
	default:
		return errs.Wrap(errs.ErrBackend, op+" failed", err)
	}
}

func (s *PostService) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	if err := s.es.Ping(ctx); err != nil {
		return backendErr("ping", err)
	}
	if err := s.ensureIndex(ctx); err != nil {
		return backendErr("ensure index", err)
	}
	return nil
}

func (s *PostService) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req == nil {
		req = &SearchRequest{}
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	resp, err := s.es.Search(ctx, s.opts.Index, buildSearchBody(req))
	if err != nil {
		return nil, backendErr("search", err)
	}
	return toSearchResult(resp)
}

func (s *PostService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errs.New(errs.ErrValidation, "post id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if err := s.es.Delete(ctx, s.opts.Index, id); err != nil {
		if errors.Is(err, elasticsearch.ErrNotFound) {
			return errs.New(errs.ErrPostNotFound, fmt.Sprintf("post %s not found", id))
		}
		return backendErr("delete", err)
	}
	s.log.Info("post deleted", zap.String("id", id))
	return nil
}

func (s *PostService) FindSimilar(ctx context.Context, id string) (*SearchResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errs.New(errs.ErrValidation, "post id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	exists, err := s.es.Exists(ctx, s.opts.Index, id)
	if err != nil {
		return nil, backendErr("lookup", err)
	}
	if !exists {
		return nil, errs.New(errs.ErrPostNotFound, fmt.Sprintf("post %s not found", id))
	}

	resp, err := s.es.Search(ctx, s.opts.Index, buildSimilarBody(s.opts.Index, id))
	if err != nil {
		return nil, backendErr("similar search", err)
	}
	return toSearchResult(resp)
}

func (s *PostService) Random(ctx context.Context) (*PostHit, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	resp, err := s.es.Search(ctx, s.opts.Index, buildRandomBody())
	if err != nil {
		return nil, backendErr("random search", err)
	}
	result, err := toSearchResult(resp)
	if err != nil {
		return nil, err
	}
	if len(result.Hits) == 0 {
		return nil, errs.New(errs.ErrIndexEmpty, "no posts in the index")
	}
	return &result.Hits[0], nil
}

// Import cleans a CSV upload and bulk-indexes the surviving rows.
func (s *PostService) Import(ctx context.Context, r io.Reader) (*ingest.Report, error) {
	src, err := ingest.NewReader(r)
	if err != nil {
		return nil, importErr(err)
	}

	if s.opts.ImportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ImportTimeout)
		defer cancel()
	}
	// Timeout bounds each bulk call, ImportTimeout the whole load.
	loader := ingest.NewLoader(ingest.WithTimeout(s.es, s.opts.Timeout), s.opts.Index, s.opts.BatchSize, s.log)
	report, err := loader.Load(ctx, src)
	if err != nil {
		return nil, importErr(err)
	}

	refreshCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	if err := s.es.Refresh(refreshCtx, s.opts.Index); err != nil {
		s.log.Warn("refresh after import failed", zap.Error(err))
	}

	s.log.Info("csv import finished",
		zap.Int("rows_read", report.RowsRead),
		zap.Int("skipped", report.SkippedTotal()),
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", report.Failed))
	return report, nil
}

func importErr(err error) error {
	switch {
	case errors.Is(err, ingest.ErrMissingColumn), errors.Is(err, ingest.ErrMalformedCSV):
		return errs.Wrap(errs.ErrValidation, "invalid csv file", err)
	default:
		return backendErr("bulk import", err)
	}
}

// IndexPost writes a single post with a backend-assigned id.
func (s *PostService) IndexPost(ctx context.Context, post *model.Post) error {
	if post == nil || post.StatusPublished == "" {
		return errs.New(errs.ErrValidation, "status_published is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	if err := s.es.IndexDocument(ctx, s.opts.Index, "", post); err != nil {
		return backendErr("index", err)
	}
	return nil
}

func toSearchResult(resp *elasticsearch.SearchResponse) (*SearchResult, error) {
	result := &SearchResult{
		Total: resp.Hits.Total.Value,
		Hits:  make([]PostHit, 0, len(resp.Hits.Hits)),
	}
	for _, h := range resp.Hits.Hits {
		hit := PostHit{ID: h.ID, Score: h.Score, Highlight: h.Highlight}
		if len(h.Source) > 0 {
			if err := json.Unmarshal(h.Source, &hit.Source); err != nil {
				return nil, errs.Wrap(errs.ErrBackend, "decode post "+h.ID, err)
			}
		}
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}
