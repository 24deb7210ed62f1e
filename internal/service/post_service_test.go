package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trashposts/post-search/internal/elasticsearch"
	"github.com/trashposts/post-search/internal/errs"
	"github.com/trashposts/post-search/internal/model"
)

// MockIndexSearcher is a testify mock of elasticsearch.IndexSearcher.
type MockIndexSearcher struct {
	mock.Mock
}

func (m *MockIndexSearcher) Ping(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *MockIndexSearcher) Search(ctx context.Context, index string, body map[string]interface{}) (*elasticsearch.SearchResponse, error) {
	args := m.Called(index, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*elasticsearch.SearchResponse), args.Error(1)
}

func (m *MockIndexSearcher) IndexDocument(ctx context.Context, index, id string, doc interface{}) error {
	return m.Called(index, id, doc).Error(0)
}

func (m *MockIndexSearcher) EnsureIndex(ctx context.Context, index string, mapping map[string]interface{}) error {
	return m.Called(index).Error(0)
}

func (m *MockIndexSearcher) RecreateIndex(ctx context.Context, index string, mapping map[string]interface{}) error {
	return m.Called(index).Error(0)
}

func (m *MockIndexSearcher) Exists(ctx context.Context, index, id string) (bool, error) {
	args := m.Called(index, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockIndexSearcher) Delete(ctx context.Context, index, id string) error {
	return m.Called(index, id).Error(0)
}

func (m *MockIndexSearcher) Bulk(ctx context.Context, index string, docs []interface{}) (*elasticsearch.BulkResult, error) {
	args := m.Called(index, docs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*elasticsearch.BulkResult), args.Error(1)
}

func (m *MockIndexSearcher) Refresh(ctx context.Context, index string) error {
	return m.Called(index).Error(0)
}

func (m *MockIndexSearcher) Count(ctx context.Context, index string) (int64, error) {
	args := m.Called(index)
	return args.Get(0).(int64), args.Error(1)
}

var _ elasticsearch.IndexSearcher = (*MockIndexSearcher)(nil)

func newTestService(t *testing.T) (*PostService, *MockIndexSearcher) {
	t.Helper()
	es := new(MockIndexSearcher)
	es.On("EnsureIndex", "posts").Return(nil).Once()
	svc, err := NewPostServiceWithIndexer(es, Options{Index: "posts", Timeout: time.Second, BatchSize: 2}, nil)
	require.NoError(t, err)
	return svc, es
}

func searchResponse(t *testing.T, raw string) *elasticsearch.SearchResponse {
	t.Helper()
	var resp elasticsearch.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	return &resp
}

// dig walks nested maps by key.
func dig(t *testing.T, v interface{}, keys ...string) interface{} {
	t.Helper()
	for _, k := range keys {
		m, ok := v.(map[string]interface{})
		require.True(t, ok, "expected map at %q", k)
		v = m[k]
	}
	return v
}

func TestNewPostServiceStartsWhileBackendIsDown(t *testing.T) {
	es := new(MockIndexSearcher)
	es.On("EnsureIndex", "posts").Return(errors.New("connection refused")).Once()
	svc, err := NewPostServiceWithIndexer(es, Options{Index: "posts"}, nil)
	require.NoError(t, err)
	require.NotNil(t, svc)

	// still down: ping fails before the index is retried
	es.On("Ping").Return(errors.New("connection refused")).Once()
	assert.True(t, errs.Is(svc.Ping(context.Background()), errs.ErrBackend))

	// back up: the next ping creates the index, later pings skip it
	es.On("Ping").Return(nil)
	es.On("EnsureIndex", "posts").Return(nil).Once()
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Ping(context.Background()))
	es.AssertNumberOfCalls(t, "EnsureIndex", 2)
}

func TestSearchWithTextAndFilters(t *testing.T) {
	svc, es := newTestService(t)
	var body map[string]interface{}
	es.On("Search", "posts", mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]interface{})
	}).Return(searchResponse(t, `{"hits":{"total":{"value":1},"hits":[
		{"_id":"a1","_score":2.5,"_source":{"status_message":"Iowa rally","status_published":"2016-02-01 10:00:00","num_likes":40},
		 "highlight":{"status_message":["<mark>Iowa</mark> rally"]}}
	]}}`), nil)

	filters, err := ParseFilters(map[string]FilterSpec{
		"num_likes":   {Min: json.RawMessage(`"10"`), Max: json.RawMessage(`100`)},
		"status_type": {Is: json.RawMessage(`"video"`)},
	})
	require.NoError(t, err)

	res, err := svc.Search(context.Background(), &SearchRequest{Query: "iowa", Filters: filters})
	require.NoError(t, err)

	assert.EqualValues(t, 20, body["size"])
	must := dig(t, body, "query", "bool", "must").([]map[string]interface{})
	require.Len(t, must, 1)
	mm := must[0]["multi_match"].(map[string]interface{})
	assert.Equal(t, "iowa", mm["query"])
	assert.Equal(t, []string{"status_message^2", "link_name"}, mm["fields"])

	filter := dig(t, body, "query", "bool", "filter").([]map[string]interface{})
	require.Len(t, filter, 2)
	assert.Equal(t, map[string]interface{}{"gte": int64(10), "lte": int64(100)},
		filter[0]["range"].(map[string]interface{})["num_likes"])
	assert.Equal(t, map[string]interface{}{"status_type": "video"}, filter[1]["term"])

	assert.Contains(t, dig(t, body, "highlight", "fields"), "status_message")

	require.Len(t, res.Hits, 1)
	hit := res.Hits[0]
	assert.Equal(t, "a1", hit.ID)
	assert.EqualValues(t, 40, hit.Source.NumLikes)
	assert.Equal(t, []string{"<mark>Iowa</mark> rally"}, hit.Highlight["status_message"])
}

func TestSearchEmptyQueryMatchesEverything(t *testing.T) {
	svc, es := newTestService(t)
	var body map[string]interface{}
	es.On("Search", "posts", mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]interface{})
	}).Return(searchResponse(t, `{"hits":{"total":{"value":0},"hits":[]}}`), nil)

	res, err := svc.Search(context.Background(), &SearchRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	must := dig(t, body, "query", "bool", "must").([]map[string]interface{})
	assert.Contains(t, must[0], "match_all")
	assert.NotContains(t, dig(t, body, "query", "bool"), "filter")
}

func TestSearchBlankQueryMatchesEverything(t *testing.T) {
	for _, mode := range []TextMode{ModeMultiMatch, ModeSimpleQueryString} {
		body := buildSearchBody(&SearchRequest{Query: " \t ", Mode: mode})
		must := dig(t, body, "query", "bool", "must").([]map[string]interface{})
		require.Len(t, must, 1)
		assert.Contains(t, must[0], "match_all")
	}

	body := buildSearchBody(&SearchRequest{Query: "  iowa "})
	must := dig(t, body, "query", "bool", "must").([]map[string]interface{})
	assert.Equal(t, "iowa", must[0]["multi_match"].(map[string]interface{})["query"])
}

func TestSearchSimpleQueryStringMode(t *testing.T) {
	svc, es := newTestService(t)
	var body map[string]interface{}
	es.On("Search", "posts", mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]interface{})
	}).Return(searchResponse(t, `{"hits":{"total":{"value":0},"hits":[]}}`), nil)

	_, err := svc.Search(context.Background(), &SearchRequest{Query: `"fake news" -cnn`, Mode: ModeSimpleQueryString})
	require.NoError(t, err)
	must := dig(t, body, "query", "bool", "must").([]map[string]interface{})
	sqs := must[0]["simple_query_string"].(map[string]interface{})
	assert.Equal(t, `"fake news" -cnn`, sqs["query"])
}

func TestSearchBackendErrors(t *testing.T) {
	cases := []struct {
		err  error
		code errs.ErrorCode
	}{
		{&elasticsearch.ResponseError{StatusCode: 400, Type: "parsing_exception", Reason: "bad"}, errs.ErrBackend},
		{context.DeadlineExceeded, errs.ErrTimeout},
		{elasticsearch.ErrUnavailable, errs.ErrUnavailable},
	}
	for _, tc := range cases {
		svc, es := newTestService(t)
		es.On("Search", "posts", mock.Anything).Return(nil, tc.err)
		_, err := svc.Search(context.Background(), &SearchRequest{Query: "x"})
		assert.Equal(t, tc.code, errs.CodeOf(err), tc.err.Error())
	}
}

func TestDelete(t *testing.T) {
	svc, es := newTestService(t)
	es.On("Delete", "posts", "a1").Return(nil)
	es.On("Delete", "posts", "gone").Return(elasticsearch.ErrNotFound)
	es.On("Delete", "posts", "boom").Return(errors.New("socket closed"))

	assert.NoError(t, svc.Delete(context.Background(), "a1"))
	assert.True(t, errs.Is(svc.Delete(context.Background(), "gone"), errs.ErrPostNotFound))
	assert.True(t, errs.Is(svc.Delete(context.Background(), "boom"), errs.ErrBackend))
	assert.True(t, errs.Is(svc.Delete(context.Background(), " "), errs.ErrValidation))
}

func TestFindSimilar(t *testing.T) {
	svc, es := newTestService(t)
	var body map[string]interface{}
	es.On("Exists", "posts", "a1").Return(true, nil)
	es.On("Search", "posts", mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]interface{})
	}).Return(searchResponse(t, `{"hits":{"total":{"value":1},"hits":[{"_id":"b2","_source":{"link_name":"x"}}]}}`), nil)

	res, err := svc.FindSimilar(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "b2", res.Hits[0].ID)

	assert.EqualValues(t, 10, body["size"])
	mlt := dig(t, body, "query", "more_like_this").(map[string]interface{})
	assert.Equal(t, []string{"status_message", "link_name"}, mlt["fields"])
	assert.Equal(t, []map[string]interface{}{{"_index": "posts", "_id": "a1"}}, mlt["like"])
	assert.Equal(t, 25, mlt["max_query_terms"])
	assert.Equal(t, 2, mlt["min_doc_freq"])
}

func TestFindSimilarUnknownPost(t *testing.T) {
	svc, es := newTestService(t)
	es.On("Exists", "posts", "nope").Return(false, nil)

	_, err := svc.FindSimilar(context.Background(), "nope")
	assert.True(t, errs.Is(err, errs.ErrPostNotFound))
	es.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestRandom(t *testing.T) {
	svc, es := newTestService(t)
	var body map[string]interface{}
	es.On("Search", "posts", mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]interface{})
	}).Return(searchResponse(t, `{"hits":{"total":{"value":3},"hits":[{"_id":"r1","_source":{"status_type":"photo"}}]}}`), nil).Once()

	hit, err := svc.Random(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r1", hit.ID)
	require.NotNil(t, hit.Source.StatusType)
	assert.Equal(t, "photo", *hit.Source.StatusType)

	assert.EqualValues(t, 1, body["size"])
	fs := dig(t, body, "query", "function_score").(map[string]interface{})
	assert.Contains(t, fs, "random_score")
	assert.Equal(t, "replace", fs["boost_mode"])
}

func TestRandomOnEmptyIndex(t *testing.T) {
	svc, es := newTestService(t)
	es.On("Search", "posts", mock.Anything).Return(searchResponse(t, `{"hits":{"total":{"value":0},"hits":[]}}`), nil)

	_, err := svc.Random(context.Background())
	assert.True(t, errs.Is(err, errs.ErrIndexEmpty))
}

const importCSV = "status_message,link_name,status_type,status_link,status_published," +
	"num_reactions,num_comments,num_shares,num_likes,num_loves,num_wows,num_hahas,num_sads,num_angrys\n" +
	"one,,status,,2016-01-01,1,1,1,1,1,1,1,1,1\n" +
	"two,,status,,2016-01-02,1,1,1,1,1,1,1,1,1\n" +
	"three,,status,,,1,1,1,1,1,1,1,1,1\n" +
	"four,,status,,2016-01-04,x,1,1,1,1,1,1,1,1\n" +
	"five,,status,,2016-01-05,1,1,1,1,1,1,1,1,1\n"

func TestImport(t *testing.T) {
	svc, es := newTestService(t)
	es.On("Bulk", "posts", mock.MatchedBy(func(docs []interface{}) bool { return len(docs) == 2 })).
		Return(&elasticsearch.BulkResult{Indexed: 2}, nil).Once()
	es.On("Bulk", "posts", mock.MatchedBy(func(docs []interface{}) bool { return len(docs) == 1 })).
		Return(&elasticsearch.BulkResult{Failed: 1, Errors: []elasticsearch.BulkItemError{{Status: 400, Type: "mapper_parsing_exception", Reason: "bad"}}}, nil).Once()
	es.On("Refresh", "posts").Return(nil)

	report, err := svc.Import(context.Background(), strings.NewReader(importCSV))
	require.NoError(t, err)

	assert.Equal(t, 5, report.RowsRead)
	assert.Equal(t, 2, report.Indexed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.SkippedTotal())
	es.AssertExpectations(t)
}

func TestImportRejectedBulkIsSingleError(t *testing.T) {
	svc, es := newTestService(t)
	es.On("Bulk", "posts", mock.Anything).Return(nil, &elasticsearch.ResponseError{StatusCode: 403, Type: "cluster_block_exception", Reason: "read-only"})

	report, err := svc.Import(context.Background(), strings.NewReader(importCSV))
	assert.Nil(t, report)
	assert.True(t, errs.Is(err, errs.ErrBackend))
	assert.ErrorContains(t, err, "read-only")
	es.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestImportInvalidHeader(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Import(context.Background(), strings.NewReader("a,b\n1,2\n"))
	assert.True(t, errs.Is(err, errs.ErrValidation))
}

func TestIndexPost(t *testing.T) {
	svc, es := newTestService(t)
	post := &model.Post{StatusPublished: "2016-01-01 00:00:00"}
	es.On("IndexDocument", "posts", "", post).Return(nil)

	assert.NoError(t, svc.IndexPost(context.Background(), post))
	assert.True(t, errs.Is(svc.IndexPost(context.Background(), &model.Post{}), errs.ErrValidation))
}

func TestPing(t *testing.T) {
	svc, es := newTestService(t)
	es.On("Ping").Return(errors.New("dial tcp: connection refused")).Once()
	assert.True(t, errs.Is(svc.Ping(context.Background()), errs.ErrBackend))
}
