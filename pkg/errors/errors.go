package errors

import (
	"errors"
	"fmt"
)

var (
	ErrMissingInput         = errors.New("required input file not found")
	ErrInvalidFileFormat    = errors.New("invalid file format")
	ErrSchemaValidation     = errors.New("schema validation failed")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrPatronNotFound       = errors.New("patron not found")
	ErrDataInconsistency    = errors.New("data inconsistency")
	ErrRunNotFound          = errors.New("run not found")
)

// FormatError reports a badge report whose preamble matches no known layout.
type FormatError struct {
	File      string
	FirstLine string
}

func (e FormatError) Error() string {
	return fmt.Sprintf("badge report %q is in an unexpected format (first line %q): expected an access-system export, unmodified or with only the header row kept",
		e.File, e.FirstLine)
}

func (e FormatError) Unwrap() error {
	return ErrInvalidFileFormat
}

func NewFormatError(file, firstLine string) error {
	return FormatError{File: file, FirstLine: firstLine}
}

type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s",
		e.Field, e.Value, e.Message)
}

func (e ValidationError) Unwrap() error {
	return ErrSchemaValidation
}

// HTTPError is a non-2xx response from the library API.
type HTTPError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

func NewHTTPError(method, url string, status int, body []byte) error {
	return &HTTPError{
		Method: method,
		URL:    url,
		Status: status,
		Body:   string(body),
	}
}

// DataInconsistencyError means an exact username query matched more than one patron.
type DataInconsistencyError struct {
	Username string
	Matches  int
}

func (e *DataInconsistencyError) Error() string {
	return fmt.Sprintf("exact username query for %q returned %d patrons, expected at most one",
		e.Username, e.Matches)
}

func (e *DataInconsistencyError) Unwrap() error {
	return ErrDataInconsistency
}

// MappingGap is a lookup-table miss. It is a warning, never fatal.
type MappingGap struct {
	Table    string
	Username string
	Value    string
	Message  string
}

func (g MappingGap) Error() string {
	if g.Value == "" {
		return fmt.Sprintf("%s: %s (patron %s)", g.Table, g.Message, g.Username)
	}
	return fmt.Sprintf("%s: %s %q (patron %s)", g.Table, g.Message, g.Value, g.Username)
}

func IsHTTPStatus(err error, status int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == status
	}
	return false
}

// Is and As forward to the standard library so callers need one import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
