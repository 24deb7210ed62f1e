package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/trashposts/post-search/internal/model"
)

// SkipReason categorises a row dropped during cleaning.
type SkipReason string

const (
	SkipEmptyRow         SkipReason = "empty_row"
	SkipMissingPublished SkipReason = "missing_published"
	SkipInvalidPublished SkipReason = "invalid_published"
	SkipInvalidNumber    SkipReason = "invalid_number"
)

var (
	ErrMissingColumn = errors.New("ingest: missing required column")
	ErrMalformedCSV  = errors.New("ingest: malformed csv")
)

// nullMarkers are spellings of "no value" found in exported spreadsheets.
var nullMarkers = map[string]bool{
	"":     true,
	"nan":  true,
	"null": true,
	"none": true,
	"n/a":  true,
}

// Reader turns CSV rows into cleaned posts, dropping rows that cannot be
// indexed. It is not safe for concurrent use.
type Reader struct {
	csv      *csv.Reader
	columns  map[string]int
	rowsRead int
	skipped  map[SkipReason]int
}

// NewReader reads the header row and checks the required columns.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: file is empty", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	required := append([]string{model.FieldStatusPublished}, model.CountFields...)
	var missing []string
	for _, col := range required {
		if _, ok := columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	return &Reader{
		csv:     cr,
		columns: columns,
		skipped: make(map[SkipReason]int),
	}, nil
}

// Next returns the next indexable post, or io.EOF when input is exhausted.
func (r *Reader) Next() (*model.Post, error) {
	for {
		record, err := r.csv.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		r.rowsRead++

		post, reason := r.clean(record)
		if reason != "" {
			r.skipped[reason]++
			continue
		}
		return post, nil
	}
}

func (r *Reader) clean(record []string) (*model.Post, SkipReason) {
	if isEmptyRecord(record) {
		return nil, SkipEmptyRow
	}

	published := r.value(record, model.FieldStatusPublished)
	if published == nil {
		return nil, SkipMissingPublished
	}
	normalized, err := model.NormalizeTimestamp(*published)
	if err != nil {
		return nil, SkipInvalidPublished
	}

	post := &model.Post{StatusPublished: normalized}
	for _, field := range model.CountFields {
		raw := r.value(record, field)
		if raw == nil {
			return nil, SkipInvalidNumber
		}
		n, ok := parseCount(*raw)
		if !ok {
			return nil, SkipInvalidNumber
		}
		_ = post.SetCount(field, n)
	}
	for _, field := range model.StringFields {
		_ = post.SetText(field, r.value(record, field))
	}
	return post, ""
}

// value returns the trimmed cell for column, or nil for absent and null cells.
func (r *Reader) value(record []string, column string) *string {
	i, ok := r.columns[column]
	if !ok || i >= len(record) {
		return nil
	}
	v := strings.TrimSpace(record[i])
	if nullMarkers[strings.ToLower(v)] {
		return nil
	}
	return &v
}

// RowsRead is the number of data rows consumed so far, skipped ones included.
func (r *Reader) RowsRead() int {
	return r.rowsRead
}

// Skipped returns a copy of the per-reason skip counters.
func (r *Reader) Skipped() map[SkipReason]int {
	out := make(map[SkipReason]int, len(r.skipped))
	for k, v := range r.skipped {
		out[k] = v
	}
	return out
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseCount accepts integers and integral floats ("12", "12.0", "1e3")
// that fit the index's 32-bit integer fields.
func parseCount(s string) (int64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int64(f), true
}
