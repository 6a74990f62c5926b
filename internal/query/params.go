package query

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultPageSize matches the page size the remote listing was designed around.
const DefaultPageSize = 2

// timestampLayout renders startDate as a UTC timestamp with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Paging is the pagination cursor sent with list requests.
type Paging struct {
	PageNumber int
	PageSize   int
}

// NewPaging returns page 1 with the given size, falling back to DefaultPageSize.
func NewPaging(pageSize int) Paging {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Paging{PageNumber: 1, PageSize: pageSize}
}

// Normalize clamps the cursor to valid values.
func (p Paging) Normalize() Paging {
	if p.PageNumber < 1 {
		p.PageNumber = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	return p
}

// Next returns the cursor for the following page.
func (p Paging) Next() Paging {
	p = p.Normalize()
	p.PageNumber++
	return p
}

// Param is a single query entry.
type Param struct {
	Key   string
	Value string
}

// Params is the ordered query descriptor handed to the remote.
type Params []Param

// Build produces the descriptor for predicate and paging: pageNumber, pageSize,
// then one entry per predicate key in canonical order.
func Build(predicate Predicate, paging Paging) Params {
	paging = paging.Normalize()
	params := Params{
		{Key: "pageNumber", Value: strconv.Itoa(paging.PageNumber)},
		{Key: "pageSize", Value: strconv.Itoa(paging.PageSize)},
	}
	for _, key := range predicate.Keys() {
		if key == KeyStartDate {
			params = append(params, Param{Key: string(key), Value: FormatTimestamp(predicate.startDate)})
			continue
		}
		params = append(params, Param{Key: string(key), Value: "true"})
	}
	return params
}

// FormatTimestamp renders t in the absolute form used for startDate.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Get returns the first value stored under key.
func (p Params) Get(key string) (string, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return "", false
}

// Values converts the descriptor to url.Values.
func (p Params) Values() url.Values {
	values := make(url.Values, len(p))
	for _, param := range p {
		values.Add(param.Key, param.Value)
	}
	return values
}

// Encode renders the descriptor as a query string, keeping descriptor order.
func (p Params) Encode() string {
	var b strings.Builder
	for i, param := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(param.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(param.Value))
	}
	return b.String()
}
