package query

import "time"

// Effect is the follow-up work a state transition asks its owner to perform.
type Effect int

const (
	// EffectNone means nothing further is required.
	EffectNone Effect = iota
	// EffectReload means the owner must clear cached entries and list page 1 again.
	EffectReload
)

// State is the filter and page cursor owned by the activity store.
type State struct {
	Predicate Predicate
	Paging    Paging
}

// NewState returns the initial state: {all: true} on page 1.
func NewState(pageSize int) State {
	return State{Predicate: DefaultPredicate(), Paging: NewPaging(pageSize)}
}

// WithPredicate applies a filter change. Any observable change to the predicate
// resets paging to page 1 and yields EffectReload; setting a key to the value it
// already holds is a no-op.
func (s State) WithPredicate(key Key, value time.Time) (State, Effect, error) {
	next, err := s.Predicate.Set(key, value)
	if err != nil {
		return s, EffectNone, err
	}
	return s.withPredicate(next)
}

// WithoutStartDate removes the date bound, reloading when one was present.
func (s State) WithoutStartDate() (State, Effect) {
	next, effect, _ := s.withPredicate(s.Predicate.WithoutStartDate())
	return next, effect
}

func (s State) withPredicate(next Predicate) (State, Effect, error) {
	if next.Equal(s.Predicate) {
		return s, EffectNone, nil
	}
	s.Predicate = next
	s.Paging = NewPaging(s.Paging.PageSize)
	return s, EffectReload, nil
}

// WithPaging replaces the cursor without touching the predicate.
func (s State) WithPaging(p Paging) State {
	s.Paging = p.Normalize()
	return s
}

// Params builds the remote query for the current state.
func (s State) Params() Params {
	return Build(s.Predicate, s.Paging)
}
