package cache

import (
	"slices"
	"time"
)

// ChangeKind describes what happened to the registry.
type ChangeKind string

const (
	ChangeUpserted  ChangeKind = "upserted"
	ChangeUpdated   ChangeKind = "updated"
	ChangeRemoved   ChangeKind = "removed"
	ChangeCleared   ChangeKind = "cleared"
	ChangeRederived ChangeKind = "rederived"
)

// Change is published after every registry mutation. ActivityID is empty for
// whole-registry changes.
type Change struct {
	Kind       ChangeKind
	ActivityID string
	At         time.Time
}

// Subscribe registers fn to run after every mutation, on the mutating goroutine
// and outside the registry lock. The returned func removes the subscription.
func (r *Registry) Subscribe(fn func(Change)) (cancel func()) {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subscribers[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subscribers, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) publish(c Change) {
	c.At = r.now()

	r.subMu.Lock()
	ids := make([]int, 0, len(r.subscribers))
	for id := range r.subscribers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.subscribers[id])
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
