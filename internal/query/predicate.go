// Package query builds the remote list query from the active filter and page.
package query

import (
	"errors"
	"fmt"
	"time"
)

// Key names a recognised filter.
type Key string

// Recognised filter keys. At most one of KeyAll, KeyIsGoing and KeyIsHost is
// active at a time; KeyStartDate combines with any of them.
const (
	KeyAll       Key = "all"
	KeyIsGoing   Key = "isGoing"
	KeyIsHost    Key = "isHost"
	KeyStartDate Key = "startDate"
)

// ErrUnknownKey is returned for filter names outside the recognised set.
var ErrUnknownKey = errors.New("unknown predicate key")

// Predicate is the active filter set.
type Predicate struct {
	filter    Key
	startDate time.Time
	hasStart  bool
}

// DefaultPredicate returns the initial {all: true} filter.
func DefaultPredicate() Predicate {
	return Predicate{filter: KeyAll}
}

// Set returns a copy with key applied. value is only read for KeyStartDate.
func (p Predicate) Set(key Key, value time.Time) (Predicate, error) {
	switch key {
	case KeyAll, KeyIsGoing, KeyIsHost:
		p.filter = key
	case KeyStartDate:
		p.startDate = value
		p.hasStart = true
	default:
		return p, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return p, nil
}

// WithoutStartDate drops the startDate key.
func (p Predicate) WithoutStartDate() Predicate {
	p.startDate = time.Time{}
	p.hasStart = false
	return p
}

// Filter returns the exclusive filter key, or "" when none is set.
func (p Predicate) Filter() Key {
	return p.filter
}

// StartDate returns the lower date bound when present.
func (p Predicate) StartDate() (time.Time, bool) {
	return p.startDate, p.hasStart
}

// Keys lists the present keys in their canonical order.
func (p Predicate) Keys() []Key {
	keys := make([]Key, 0, 2)
	if p.filter != "" {
		keys = append(keys, p.filter)
	}
	if p.hasStart {
		keys = append(keys, KeyStartDate)
	}
	return keys
}

// Equal reports whether both predicates hold the same keys and values.
func (p Predicate) Equal(other Predicate) bool {
	return p.filter == other.filter &&
		p.hasStart == other.hasStart &&
		p.startDate.Equal(other.startDate)
}
