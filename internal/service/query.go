package service

import (
	"strings"

	"github.com/trashposts/post-search/internal/model"
)

const (
	searchPageSize  = 20
	similarPageSize = 10

	// more_like_this tuning: ignore terms seen in fewer than two posts and
	// cap the number of terms pulled from the reference post.
	mltMinTermFreq   = 1
	mltMinDocFreq    = 2
	mltMaxQueryTerms = 25
)

// TextMode selects how a free-text query is interpreted.
type TextMode int

const (
	// ModeMultiMatch analyzes the query as plain words (GET /api/search).
	ModeMultiMatch TextMode = iota
	// ModeSimpleQueryString accepts + - | "phrase" operators (POST /api/search).
	ModeSimpleQueryString
)

// weightedTextFields boosts the message over the link name.
var weightedTextFields = []string{model.FieldStatusMessage + "^2", model.FieldLinkName}

func textClause(q string, mode TextMode) map[string]interface{} {
	q = strings.TrimSpace(q)
	if q == "" {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	if mode == ModeSimpleQueryString {
		return map[string]interface{}{
			"simple_query_string": map[string]interface{}{
				"query":            q,
				"fields":           weightedTextFields,
				"default_operator": "or",
			},
		}
	}
	return map[string]interface{}{
		"multi_match": map[string]interface{}{
			"query":  q,
			"fields": weightedTextFields,
		},
	}
}

func buildSearchBody(req *SearchRequest) map[string]interface{} {
	filter := make([]map[string]interface{}, 0, len(req.Filters))
	for _, f := range req.Filters {
		filter = append(filter, f.Clause())
	}
	boolQuery := map[string]interface{}{
		"must": []map[string]interface{}{textClause(req.Query, req.Mode)},
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	highlightFields := map[string]interface{}{}
	for _, f := range model.TextFields {
		highlightFields[f] = map[string]interface{}{}
	}
	return map[string]interface{}{
		"size":  searchPageSize,
		"query": map[string]interface{}{"bool": boolQuery},
		"highlight": map[string]interface{}{
			"pre_tags":  []string{"<mark>"},
			"post_tags": []string{"</mark>"},
			"fields":    highlightFields,
		},
	}
}

func buildSimilarBody(index, id string) map[string]interface{} {
	return map[string]interface{}{
		"size": similarPageSize,
		"query": map[string]interface{}{
			"more_like_this": map[string]interface{}{
				"fields": model.TextFields,
				"like": []map[string]interface{}{
					{"_index": index, "_id": id},
				},
				"min_term_freq":   mltMinTermFreq,
				"min_doc_freq":    mltMinDocFreq,
				"max_query_terms": mltMaxQueryTerms,
			},
		},
	}
}

func buildRandomBody() map[string]interface{} {
	return map[string]interface{}{
		"size": 1,
		"query": map[string]interface{}{
			"function_score": map[string]interface{}{
				"query":        map[string]interface{}{"match_all": map[string]interface{}{}},
				"random_score": map[string]interface{}{},
				"boost_mode":   "replace",
			},
		},
	}
}
