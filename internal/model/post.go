package model

import "fmt"

// Post is a social-media post as stored in the index. Text and keyword
// fields are nil when the source had no value.
type Post struct {
	StatusMessage   *string `json:"status_message"`
	LinkName        *string `json:"link_name"`
	StatusType      *string `json:"status_type"`
	StatusLink      *string `json:"status_link"`
	StatusPublished string  `json:"status_published"`
	NumReactions    int64   `json:"num_reactions"`
	NumComments     int64   `json:"num_comments"`
	NumShares       int64   `json:"num_shares"`
	NumLikes        int64   `json:"num_likes"`
	NumLoves        int64   `json:"num_loves"`
	NumWows         int64   `json:"num_wows"`
	NumHahas        int64   `json:"num_hahas"`
	NumSads         int64   `json:"num_sads"`
	NumAngrys       int64   `json:"num_angrys"`
}

// FieldKind says how a field is mapped and therefore which filters apply.
type FieldKind int

const (
	KindText FieldKind = iota
	KindKeyword
	KindDate
	KindInteger
)

const (
	FieldStatusMessage   = "status_message"
	FieldLinkName        = "link_name"
	FieldStatusType      = "status_type"
	FieldStatusLink      = "status_link"
	FieldStatusPublished = "status_published"
)

// CountFields lists the integer counters in CSV column order.
var CountFields = []string{
	"num_reactions",
	"num_comments",
	"num_shares",
	"num_likes",
	"num_loves",
	"num_wows",
	"num_hahas",
	"num_sads",
	"num_angrys",
}

// TextFields are the full-text analyzed fields used for search and similarity.
var TextFields = []string{FieldStatusMessage, FieldLinkName}

// StringFields are the nullable string columns copied verbatim from the source.
var StringFields = []string{FieldStatusMessage, FieldLinkName, FieldStatusType, FieldStatusLink}

var Fields = func() map[string]FieldKind {
	m := map[string]FieldKind{
		FieldStatusMessage:   KindText,
		FieldLinkName:        KindText,
		FieldStatusType:      KindKeyword,
		FieldStatusLink:      KindKeyword,
		FieldStatusPublished: KindDate,
	}
	for _, f := range CountFields {
		m[f] = KindInteger
	}
	return m
}()

// SetText assigns one of StringFields.
func (p *Post) SetText(field string, v *string) error {
	switch field {
	case FieldStatusMessage:
		p.StatusMessage = v
	case FieldLinkName:
		p.LinkName = v
	case FieldStatusType:
		p.StatusType = v
	case FieldStatusLink:
		p.StatusLink = v
	default:
		return fmt.Errorf("model: %q is not a string field", field)
	}
	return nil
}

// SetCount assigns one of CountFields.
func (p *Post) SetCount(field string, v int64) error {
	switch field {
	case "num_reactions":
		p.NumReactions = v
	case "num_comments":
		p.NumComments = v
	case "num_shares":
		p.NumShares = v
	case "num_likes":
		p.NumLikes = v
	case "num_loves":
		p.NumLoves = v
	case "num_wows":
		p.NumWows = v
	case "num_hahas":
		p.NumHahas = v
	case "num_sads":
		p.NumSads = v
	case "num_angrys":
		p.NumAngrys = v
	default:
		return fmt.Errorf("model: %q is not a count field", field)
	}
	return nil
}
