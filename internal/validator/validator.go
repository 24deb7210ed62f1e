package validator

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxQueryLength = 1024
	maxPostIDLen   = 512
)

// Validator validates request input for the post search API.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// ValidateSearchQuery checks the free-text part of a search.
func (v *Validator) ValidateSearchQuery(q string) error {
	if !utf8.ValidString(q) {
		return errors.New("validation: query must be valid UTF-8")
	}
	if len(q) > MaxQueryLength {
		return errors.New("validation: query is too long")
	}
	return nil
}

// ValidatePostID checks a path id. Backend ids are opaque, so only shape is checked.
func (v *Validator) ValidatePostID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("validation: post id is required")
	}
	if len(id) > maxPostIDLen {
		return errors.New("validation: post id is too long")
	}
	if strings.ContainsAny(id, "/\\") {
		return errors.New("validation: post id must not contain slashes")
	}
	return nil
}

// ValidateImportFile accepts only .csv uploads, case-insensitively.
func (v *Validator) ValidateImportFile(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return errors.New("validation: no file selected")
	}
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return errors.New("validation: only .csv files are accepted")
	}
	return nil
}

// ValidateRequestID accepts a caller supplied X-Request-ID only when it is a UUID.
func (v *Validator) ValidateRequestID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("validation: request id must be a valid UUID")
	}
	return nil
}
