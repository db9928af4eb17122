package filter

import (
	"errors"
	"fmt"
	"strings"
)

// Errors reported for malformed key=value lists.
var (
	ErrMissingKey   = errors.New("missing key")
	ErrMissingValue = errors.New("missing value")
)

// ParseError describes the field of a key=value list that could not be parsed.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid pair %q: %v (expected key=value)", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Pair is a single key=value constraint.
type Pair struct {
	Key   string
	Value string
}

// ParseNameList splits a comma-separated list of names.
// An empty input yields no names. Empty fields are kept as empty names.
func ParseNameList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// ParseAttributeConstraint parses a comma-separated list of key=value pairs.
// Each field is split on its first '=', so any further '=' belongs to the
// value. A field without '=', or with an empty key or value, is an error.
func ParseAttributeConstraint(s string) ([]Pair, error) {
	if s == "" {
		return nil, nil
	}

	fields := strings.Split(s, ",")
	pairs := make([]Pair, 0, len(fields))
	for _, field := range fields {
		key, value, found := strings.Cut(field, "=")
		if key == "" {
			return nil, &ParseError{Field: field, Err: ErrMissingKey}
		}
		if !found || value == "" {
			return nil, &ParseError{Field: field, Err: ErrMissingValue}
		}
		pairs = append(pairs, Pair{Key: key, Value: value})
	}
	return pairs, nil
}
