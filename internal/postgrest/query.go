package postgrest

import (
	"fmt"
	"net/url"
	"strings"
)

// Query builds a PostgREST filter string for a single table.
// Filters are emitted in the order they were added, followed by the
// projection and limit, so the encoded form is stable and comparable.
type Query struct {
	table     string
	filters   []string
	selectAll bool
	limit     int
}

// NewQuery starts a query against the given table.
func NewQuery(table string) *Query {
	return &Query{table: table}
}

// Table returns the table this query targets.
func (q *Query) Table() string {
	return q.table
}

// Eq adds an equality filter (field=eq.value).
func (q *Query) Eq(field, value string) *Query {
	return q.filter(field, "eq", value)
}

// Gte adds a greater-than-or-equal filter (field=gte.value).
func (q *Query) Gte(field, value string) *Query {
	return q.filter(field, "gte", value)
}

// Lte adds a less-than-or-equal filter (field=lte.value).
func (q *Query) Lte(field, value string) *Query {
	return q.filter(field, "lte", value)
}

// Lt adds a less-than filter (field=lt.value).
func (q *Query) Lt(field, value string) *Query {
	return q.filter(field, "lt", value)
}

// SelectAll appends select=* to the query.
func (q *Query) SelectAll() *Query {
	q.selectAll = true
	return q
}

// Limit caps the number of rows returned.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

func (q *Query) filter(field, op, value string) *Query {
	q.filters = append(q.filters, fmt.Sprintf("%s=%s.%s", field, op, url.QueryEscape(value)))
	return q
}

// Encode renders the query as "table?filter&...&select=*&limit=N".
func (q *Query) Encode() string {
	parts := make([]string, 0, len(q.filters)+2)
	parts = append(parts, q.filters...)
	if q.selectAll {
		parts = append(parts, "select=*")
	}
	if q.limit > 0 {
		parts = append(parts, fmt.Sprintf("limit=%d", q.limit))
	}
	if len(parts) == 0 {
		return q.table
	}
	return q.table + "?" + strings.Join(parts, "&")
}
