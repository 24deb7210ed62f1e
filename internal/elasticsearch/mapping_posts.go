package elasticsearch

// PublishedFormats lists every status_published format the index accepts.
const PublishedFormats = "yyyy-MM-dd HH:mm:ss||MM-dd-yyyy HH:mm:ss||yyyy-MM-dd||strict_date_optional_time||epoch_millis"

// PostsMapping returns the posts index mapping.
// Fields: status_message/link_name (english text), status_type/status_link (keyword),
// status_published (date), num_* counters (integer).
func PostsMapping() map[string]interface{} {
	properties := map[string]interface{}{
		"status_message":   map[string]interface{}{"type": "text", "analyzer": "english"},
		"link_name":        map[string]interface{}{"type": "text", "analyzer": "english"},
		"status_type":      map[string]interface{}{"type": "keyword"},
		"status_link":      map[string]interface{}{"type": "keyword"},
		"status_published": map[string]interface{}{"type": "date", "format": PublishedFormats},
	}
	for _, f := range []string{
		"num_reactions", "num_comments", "num_shares", "num_likes", "num_loves",
		"num_wows", "num_hahas", "num_sads", "num_angrys",
	} {
		properties[f] = map[string]interface{}{"type": "integer"}
	}
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": properties,
		},
	}
}
