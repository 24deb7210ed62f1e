package elasticsearch

import (
	"encoding/json"
	"strconv"
)

// SearchResponse represents Elasticsearch search response
type SearchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []Hit `json:"hits"`
	} `json:"hits"`
}

type Hit struct {
	ID        string              `json:"_id"`
	Score     *float64            `json:"_score"`
	Source    json.RawMessage     `json:"_source"`
	Highlight map[string][]string `json:"highlight,omitempty"`
}

// BulkResult summarises one _bulk request.
type BulkResult struct {
	Indexed int
	Failed  int
	Errors  []BulkItemError
}

type BulkItemError struct {
	Status int
	Type   string
	Reason string
}

func (e BulkItemError) String() string {
	if e.Type == "" && e.Reason == "" {
		return "status " + strconv.Itoa(e.Status)
	}
	return e.Type + ": " + e.Reason
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}
