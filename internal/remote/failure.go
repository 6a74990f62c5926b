package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// Category classifies a failed remote call.
type Category string

const (
	CategoryValidation   Category = "validation"
	CategoryUnauthorized Category = "unauthorized"
	CategoryNotFound     Category = "not_found"
	CategoryServer       Category = "server_error"
	CategoryGeneric      Category = "generic"
)

// Sentinels matched by errors.Is against a *Failure of the same category.
var (
	ErrValidation   = errors.New("remote validation failed")
	ErrUnauthorized = errors.New("remote unauthorized")
	ErrNotFound     = errors.New("remote resource not found")
	ErrServer       = errors.New("remote server error")
)

// Failure is a classified error from the remote collaborator.
type Failure struct {
	Category Category
	Status   int
	Detail   string
	// FieldErrors holds validation messages keyed by field name.
	FieldErrors map[string][]string
	Err         error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString("remote ")
	b.WriteString(string(f.Category))
	if f.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", f.Status)
	}
	if f.Detail != "" {
		b.WriteString(": ")
		b.WriteString(f.Detail)
	} else if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches the category sentinels.
func (f *Failure) Is(target error) bool {
	switch target {
	case ErrValidation:
		return f.Category == CategoryValidation
	case ErrUnauthorized:
		return f.Category == CategoryUnauthorized
	case ErrNotFound:
		return f.Category == CategoryNotFound
	case ErrServer:
		return f.Category == CategoryServer
	}
	return false
}

// Messages flattens the field errors in field order.
func (f *Failure) Messages() []string {
	fields := make([]string, 0, len(f.FieldErrors))
	for field := range f.FieldErrors {
		fields = append(fields, field)
	}
	slices.Sort(fields)
	var out []string
	for _, field := range fields {
		out = append(out, f.FieldErrors[field]...)
	}
	return out
}

// CategoryOf returns the category of err, or CategoryGeneric when err carries no Failure.
func CategoryOf(err error) Category {
	var f *Failure
	if errors.As(err, &f) {
		return f.Category
	}
	return CategoryGeneric
}

// Transport wraps a network-level error that produced no response.
func Transport(err error) *Failure {
	return &Failure{Category: CategoryGeneric, Err: err}
}

// Problem is the error body shape returned by the API.
type Problem struct {
	Type   string              `json:"type"`
	Title  string              `json:"title,omitempty"`
	Detail string              `json:"detail"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// Classify builds a Failure from an error status and response body.
func Classify(status int, body []byte) *Failure {
	f := &Failure{Status: status, Category: categoryFor(status)}

	var p Problem
	if len(body) > 0 && json.Unmarshal(body, &p) == nil {
		f.FieldErrors = p.Errors
		f.Detail = p.Detail
		if f.Detail == "" {
			f.Detail = p.Title
		}
	} else {
		var text string
		if json.Unmarshal(body, &text) != nil {
			text = string(body)
		}
		f.Detail = strings.TrimSpace(text)
	}
	if f.Detail == "" {
		f.Detail = http.StatusText(status)
	}
	return f
}

func categoryFor(status int) Category {
	switch {
	case status == http.StatusBadRequest:
		return CategoryValidation
	case status == http.StatusUnauthorized:
		return CategoryUnauthorized
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status >= http.StatusInternalServerError:
		return CategoryServer
	}
	return CategoryGeneric
}
