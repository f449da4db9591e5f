package postgrest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTableMissing signals that a queried table has not been provisioned yet.
// Supabase projects start empty; a missing table is a setup gap, not a
// connectivity failure.
var ErrTableMissing = errors.New("table not provisioned")

const bodyExcerptLen = 200

// StatusError carries a non-2xx response that is not a missing-table case.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supabase returned %d: %s", e.Status, e.Body)
}

// ClassifyResponse converts a non-2xx table response into a typed error.
// A 404, or any body containing "does not exist" (PostgREST's wording when a
// relation is absent, regardless of status code), maps to ErrTableMissing.
func ClassifyResponse(table string, status int, body []byte) error {
	if status == 404 || strings.Contains(string(body), "does not exist") {
		return fmt.Errorf("table %q: %w", table, ErrTableMissing)
	}
	return &StatusError{Status: status, Body: excerpt(body)}
}

// IsTableMissing reports whether err classifies as a missing table.
func IsTableMissing(err error) bool {
	return errors.Is(err, ErrTableMissing)
}

func excerpt(body []byte) string {
	s := string(body)
	if len(s) > bodyExcerptLen {
		return s[:bodyExcerptLen] + "..."
	}
	return s
}
