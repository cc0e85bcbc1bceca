package crawlerapi

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

var (
	// ErrUnauthorized is matched by errors.Is for 401 responses.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidJobID is returned before any request when a job id is not a UUID.
	ErrInvalidJobID = errors.New("invalid job id")
)

// Error is a non-2xx or success:false response from the crawler API.
type Error struct {
	StatusCode int
	Message    string
	Fields     map[string][]string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("crawler api: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("crawler api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *Error) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// FieldMessages flattens the field-level validation payload of err into
// "field: message" lines, sorted by field. It returns nil when err carries no
// field errors.
func FieldMessages(err error) []string {
	var apiErr *Error
	if !errors.As(err, &apiErr) || len(apiErr.Fields) == 0 {
		return nil
	}

	fields := make([]string, 0, len(apiErr.Fields))
	for f := range apiErr.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var out []string
	for _, f := range fields {
		for _, msg := range apiErr.Fields[f] {
			out = append(out, fmt.Sprintf("%s: %s", f, msg))
		}
	}
	return out
}

// StatusCode returns the HTTP status carried by err, or 0 for transport errors.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
