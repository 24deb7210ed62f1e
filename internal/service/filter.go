package service

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/trashposts/post-search/internal/errs"
	"github.com/trashposts/post-search/internal/model"
)

// Filter is one constraint of the search bool filter: ExactFilter or RangeFilter.
type Filter interface {
	FieldName() string
	Clause() map[string]interface{}
}

// ExactFilter matches documents whose field equals Value. Text fields are
// matched as a phrase, everything else as a term.
type ExactFilter struct {
	Field string
	Value interface{}
}

func (f ExactFilter) FieldName() string { return f.Field }

func (f ExactFilter) Clause() map[string]interface{} {
	if model.Fields[f.Field] == model.KindText {
		return map[string]interface{}{
			"match_phrase": map[string]interface{}{f.Field: f.Value},
		}
	}
	return map[string]interface{}{
		"term": map[string]interface{}{f.Field: f.Value},
	}
}

// RangeFilter bounds a field inclusively; a nil bound is open.
type RangeFilter struct {
	Field string
	Min   interface{}
	Max   interface{}
}

func (f RangeFilter) FieldName() string { return f.Field }

func (f RangeFilter) Clause() map[string]interface{} {
	bounds := map[string]interface{}{}
	if f.Min != nil {
		bounds["gte"] = f.Min
	}
	if f.Max != nil {
		bounds["lte"] = f.Max
	}
	return map[string]interface{}{
		"range": map[string]interface{}{f.Field: bounds},
	}
}

// FilterSpec is the wire form of a filter: {"min": .., "max": .., "is": ..}.
// Values may be JSON numbers or strings.
type FilterSpec struct {
	Min json.RawMessage `json:"min,omitempty"`
	Max json.RawMessage `json:"max,omitempty"`
	Is  json.RawMessage `json:"is,omitempty"`
}

// ParseFilters validates wire filters against the post fields. A spec with
// no usable min, max or is is dropped. Output is ordered by field name.
func ParseFilters(specs map[string]FilterSpec) ([]Filter, error) {
	fields := make([]string, 0, len(specs))
	for field := range specs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var filters []Filter
	for _, field := range fields {
		kind, ok := model.Fields[field]
		if !ok {
			return nil, errs.New(errs.ErrValidation, fmt.Sprintf("unknown filter field %q", field))
		}
		spec := specs[field]

		is, err := filterValue(field, kind, spec.Is, boundIs)
		if err != nil {
			return nil, err
		}
		switch v := is.(type) {
		case nil:
		case dayRange:
			filters = append(filters, RangeFilter{Field: field, Min: v.start, Max: v.end})
		default:
			filters = append(filters, ExactFilter{Field: field, Value: v})
		}

		lo, err := filterValue(field, kind, spec.Min, boundMin)
		if err != nil {
			return nil, err
		}
		hi, err := filterValue(field, kind, spec.Max, boundMax)
		if err != nil {
			return nil, err
		}
		if lo == nil && hi == nil {
			continue
		}
		if kind != model.KindInteger && kind != model.KindDate {
			return nil, errs.New(errs.ErrValidation, fmt.Sprintf("field %q does not support min/max", field))
		}
		if lo != nil && hi != nil && greater(lo, hi) {
			return nil, errs.New(errs.ErrValidation, fmt.Sprintf("filter %q: min is greater than max", field))
		}
		filters = append(filters, RangeFilter{Field: field, Min: lo, Max: hi})
	}
	return filters, nil
}

type boundKind int

const (
	boundIs boundKind = iota
	boundMin
	boundMax
)

// dayRange is a date-only `is` value: it matches the whole day.
type dayRange struct {
	start, end string
}

// greater compares two decoded bounds of the same field. Dates are in
// PublishedLayout, which sorts lexically.
func greater(a, b interface{}) bool {
	switch x := a.(type) {
	case int64:
		return x > b.(int64)
	case string:
		return x > b.(string)
	}
	return false
}

// filterValue decodes one bound. Absent, null and blank values yield nil.
// A date without a time covers its whole day: a min starts at midnight, a
// max ends at 23:59:59 and an is becomes a dayRange.
func filterValue(field string, kind model.FieldKind, raw json.RawMessage, b boundKind) (interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errs.Wrap(errs.ErrValidation, fmt.Sprintf("filter %q: invalid value", field), err)
	}

	var s string
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		s = strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	default:
		return nil, errs.New(errs.ErrValidation, fmt.Sprintf("filter %q: value must be a string or number", field))
	}

	switch kind {
	case model.KindInteger:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, errs.New(errs.ErrValidation, fmt.Sprintf("filter %q: %q is not an integer", field, s))
		}
		// counts are 32-bit integers in the index
		if f > math.MaxInt32 || f < math.MinInt32 {
			return nil, errs.New(errs.ErrValidation, fmt.Sprintf("filter %q: %q is out of range", field, s))
		}
		return int64(f), nil
	case model.KindDate:
		if start, end, ok := model.DayBounds(s); ok {
			switch b {
			case boundIs:
				return dayRange{start: start, end: end}, nil
			case boundMax:
				return end, nil
			default:
				return start, nil
			}
		}
		ts, err := model.NormalizeTimestamp(s)
		if err != nil {
			return nil, errs.New(errs.ErrValidation, fmt.Sprintf("filter %q: %q is not a date", field, s))
		}
		return ts, nil
	default:
		return s, nil
	}
}
