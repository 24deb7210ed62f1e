package elasticsearch

import "context"

// IndexSearcher abstracts Elasticsearch search/index operations for testing and swapping implementations.
type IndexSearcher interface {
	Ping(ctx context.Context) error
	Search(ctx context.Context, index string, body map[string]interface{}) (*SearchResponse, error)
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
	EnsureIndex(ctx context.Context, index string, mapping map[string]interface{}) error
	RecreateIndex(ctx context.Context, index string, mapping map[string]interface{}) error
	Exists(ctx context.Context, index, id string) (bool, error)
	Delete(ctx context.Context, index, id string) error
	Bulk(ctx context.Context, index string, docs []interface{}) (*BulkResult, error)
	Refresh(ctx context.Context, index string) error
	Count(ctx context.Context, index string) (int64, error)
}

// Ensure *Client implements IndexSearcher at compile time.
var _ IndexSearcher = (*Client)(nil)
