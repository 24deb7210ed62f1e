package elasticsearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/sony/gobreaker"
)

var (
	// ErrNotFound is returned when a document (or its index) does not exist.
	ErrNotFound = errors.New("elasticsearch: not found")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("elasticsearch: unavailable")
)

// ResponseError carries a non-2xx Elasticsearch reply.
type ResponseError struct {
	StatusCode int
	Type       string
	Reason     string
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("elasticsearch error: %d %s: %s", e.StatusCode, e.Type, e.Reason)
	}
	return fmt.Sprintf("elasticsearch error: %d - %s", e.StatusCode, e.Body)
}

type Options struct {
	URL      string
	Username string
	Password string
	// SkipTLSVerify disables TLS cert verification (dev only).
	SkipTLSVerify bool
}

// Client wraps the official Elasticsearch client. Server failures and
// transport errors feed a circuit breaker; nothing is retried.
type Client struct {
	es      *es8.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(opts Options) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	es, err := es8.NewClient(es8.Config{
		Addresses:    []string{strings.TrimSuffix(opts.URL, "/")},
		Username:     opts.Username,
		Password:     opts.Password,
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &Client{
		es: es,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "elasticsearch",
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}, nil
}

// perform runs fn through the breaker. Responses with status >= 500 are
// consumed here and returned as *ResponseError.
func (c *Client) perform(fn func() (*esapi.Response, error)) (*esapi.Response, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		res, err := fn()
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}
		if res.StatusCode >= 500 {
			defer res.Body.Close()
			return nil, decodeError(res)
		}
		return res, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	return out.(*esapi.Response), nil
}

func decodeError(res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	respErr := &ResponseError{StatusCode: res.StatusCode, Body: string(body)}
	var parsed struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && len(parsed.Error) > 0 {
		var detail struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		}
		if json.Unmarshal(parsed.Error, &detail) == nil {
			respErr.Type = detail.Type
			respErr.Reason = detail.Reason
		} else {
			var s string
			if json.Unmarshal(parsed.Error, &s) == nil {
				respErr.Reason = s
			}
		}
	}
	return respErr
}

// Ping checks that the cluster answers.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.perform(func() (*esapi.Response, error) {
		return c.es.Ping(c.es.Ping.WithContext(ctx))
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

// IndexDocument indexes a document; an empty id lets Elasticsearch assign one.
func (c *Client) IndexDocument(ctx context.Context, index, id string, doc interface{}) error {
	opts := []func(*esapi.IndexRequest){c.es.Index.WithContext(ctx)}
	if id != "" {
		opts = append(opts, c.es.Index.WithDocumentID(id))
	}
	res, err := c.perform(func() (*esapi.Response, error) {
		return c.es.Index(index, esutil.NewJSONReader(doc), opts...)
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

// Search runs body (a complete search request: size, query, highlight...) against index.
func (c *Client) Search(ctx context.Context, index string, body map[string]interface{}) (*SearchResponse, error) {
	res, err := c.perform(func() (*esapi.Response, error) {
		return c.es.Search(
			c.es.Search.WithContext(ctx),
			c.es.Search.WithIndex(index),
			c.es.Search.WithBody(esutil.NewJSONReader(body)),
		)
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, decodeError(res)
	}

	var result SearchResponse
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func (c *Client) indexExists(ctx context.Context, index string) (bool, error) {
	res, err := c.perform(func() (*esapi.Response, error) {
		return c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	})
	if err != nil {
		return false, fmt.Errorf("check index: %w", err)
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, decodeError(res)
	}
}

func (c *Client) createIndex(ctx context.Context, index string, mapping map[string]interface{}) error {
	if mapping == nil {
		mapping = make(map[string]interface{})
	}
	res, err := c.perform(func() (*esapi.Response, error) {
		return c.es.Indices.Create(index,
			c.es.Indices.Create.WithContext(ctx),
			c.es.Indices.Create.WithBody(esutil.NewJSONReader(mapping)),
		)
	})
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

// EnsureIndex creates an index if it doesn't exist
func (c *Client) EnsureIndex(ctx context.Context, index string, mapping map[string]interface{}) error {
	exists, err := c.indexExists(ctx, index)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = c.createIndex(ctx, index, mapping)
	var respErr *ResponseError
	if errors.As(err, &respErr) && respErr.Type == "resource_already_exists_exception" {
		return nil
	}
	return err
}

// RecreateIndex drops index (if present) and creates it again with mapping.
// Every document in it is lost.
func (c *Client) RecreateIndex(ctx context.Context, index string, mapping map[string]interface{}) error {
	exists, err := c.indexExists(ctx, index)
	if err != nil {
		return err
	}
	if exists {
		res, err := c.perform(func() (*esapi.Response, error) {
			return c.es.Indices.Delete([]string{index}, c.es.Indices.Delete.WithContext(ctx))
		})
		if err != nil {
			return fmt.Errorf("delete index: %w", err)
		}
		defer res.Body.Close()
		if res.IsError() {
			return decodeError(res)
		}
	}
	return c.createIndex(ctx, index, mapping)
}

// Exists reports whether document id is in index.
func (c *Client) Exists(ctx context.Context, index, id string) (bool, error) {
	res, err := c.perform(func() (*esapi.Response, error) {
		return c.es.Exists(index, id, c.es.Exists.WithContext(ctx))
	})
	if err != nil {
		return false, err
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, decodeError(res)
	}
}

// Delete removes document id and refreshes so the removal is visible at once.
func (c *Client) Delete(ctx context.Context, index, id string) error {
	res, err := c.perform(func() (*esapi.Response, error) {
		return c.es.Delete(index, id,
			c.es.Delete.WithContext(ctx),
			c.es.Delete.WithRefresh("true"),
		)
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

// Bulk indexes docs with backend-assigned ids in a single _bulk request.
// A request-level failure is returned as an error; per-item failures are
// reported in the result.
func (c *Client) Bulk(ctx context.Context, index string, docs []interface{}) (*BulkResult, error) {
	if len(docs) == 0 {
		return &BulkResult{}, nil
	}
	var buf bytes.Buffer
	for _, doc := range docs {
		buf.WriteString(`{"index":{}}` + "\n")
		line, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshal document: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	res, err := c.perform(func() (*esapi.Response, error) {
		return c.es.Bulk(bytes.NewReader(buf.Bytes()),
			c.es.Bulk.WithContext(ctx),
			c.es.Bulk.WithIndex(index),
		)
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, decodeError(res)
	}

	var raw bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}
	result := &BulkResult{}
	for _, item := range raw.Items {
		for _, op := range item {
			if op.Error != nil || op.Status >= 300 {
				result.Failed++
				itemErr := BulkItemError{Status: op.Status}
				if op.Error != nil {
					itemErr.Type = op.Error.Type
					itemErr.Reason = op.Error.Reason
				}
				result.Errors = append(result.Errors, itemErr)
				continue
			}
			result.Indexed++
		}
	}
	return result, nil
}

// Refresh makes recent writes to index searchable.
func (c *Client) Refresh(ctx context.Context, index string) error {
	res, err := c.perform(func() (*esapi.Response, error) {
		return c.es.Indices.Refresh(
			c.es.Indices.Refresh.WithContext(ctx),
			c.es.Indices.Refresh.WithIndex(index),
		)
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return decodeError(res)
	}
	return nil
}

// Count returns the number of documents in index.
func (c *Client) Count(ctx context.Context, index string) (int64, error) {
	res, err := c.perform(func() (*esapi.Response, error) {
		return c.es.Count(
			c.es.Count.WithContext(ctx),
			c.es.Count.WithIndex(index),
		)
	})
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, decodeError(res)
	}
	var body struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	return body.Count, nil
}
