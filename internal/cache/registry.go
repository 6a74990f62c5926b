// Package cache holds the normalized activity registry and its derived views.
package cache

import (
	"errors"
	"iter"
	"slices"
	"sync"
	"time"

	"example.com/activitysync/internal/domain"
)

var (
	// ErrMissingID is returned when an activity without an ID is written.
	ErrMissingID = errors.New("activity id is required")
	// ErrStaleEpoch is returned when a write is tagged with an epoch that a Clear has superseded.
	ErrStaleEpoch = errors.New("registry cleared since epoch")
)

// IdentitySource reports the current user used to derive per-user fields.
type IdentitySource interface {
	CurrentUser() (domain.Identity, bool)
}

type anonymous struct{}

func (anonymous) CurrentUser() (domain.Identity, bool) { return domain.Identity{}, false }

// Option configures a Registry.
type Option func(*Registry)

// WithLocation sets the time zone used to bucket activities by calendar day.
func WithLocation(loc *time.Location) Option {
	return func(r *Registry) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithClock overrides the clock stamped on published changes.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

type entry struct {
	activity domain.Activity
	seq      uint64
}

// Registry is the keyed activity store. Values are copied on the way in and out,
// so the only way to change cached state is through Registry methods.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]entry
	seq      uint64
	epoch    uint64
	identity IdentitySource
	location *time.Location
	now      func() time.Time

	subMu       sync.Mutex
	subscribers map[int]func(Change)
	nextSub     int
}

// NewRegistry builds an empty registry. A nil identity source behaves as signed out.
func NewRegistry(identity IdentitySource, opts ...Option) *Registry {
	if identity == nil {
		identity = anonymous{}
	}
	r := &Registry{
		entries:     make(map[string]entry),
		identity:    identity,
		location:    time.Local,
		now:         time.Now,
		subscribers: make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Epoch identifies the current generation of the registry. Clear advances it.
func (r *Registry) Epoch() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.epoch
}

// Upsert derives per-user fields, normalizes the date and stores activity under its ID.
func (r *Registry) Upsert(activity domain.Activity) error {
	if activity.ID == "" {
		return ErrMissingID
	}
	r.mu.Lock()
	r.put(activity)
	r.mu.Unlock()

	r.publish(Change{Kind: ChangeUpserted, ActivityID: activity.ID})
	return nil
}

// UpsertAt stores every activity only if no Clear happened since epoch was read.
// Either all activities are written or none are.
func (r *Registry) UpsertAt(epoch uint64, activities ...domain.Activity) error {
	for _, a := range activities {
		if a.ID == "" {
			return ErrMissingID
		}
	}

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		return ErrStaleEpoch
	}
	for _, a := range activities {
		r.put(a)
	}
	r.mu.Unlock()

	for _, a := range activities {
		r.publish(Change{Kind: ChangeUpserted, ActivityID: a.ID})
	}
	return nil
}

func (r *Registry) put(activity domain.Activity) {
	stored := r.derive(activity.Clone())
	stored.Date = stored.Date.Round(0)

	seq := r.seq
	if existing, ok := r.entries[stored.ID]; ok {
		seq = existing.seq
	} else {
		r.seq++
	}
	r.entries[stored.ID] = entry{activity: stored, seq: seq}
}

func (r *Registry) derive(a domain.Activity) domain.Activity {
	user, ok := r.identity.CurrentUser()
	return domain.Derive(a, user, ok)
}

// Get returns a copy of the cached activity with per-user fields derived for the
// current identity.
func (r *Registry) Get(id string) (domain.Activity, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Activity{}, false
	}
	return r.derive(e.activity.Clone()), true
}

// Update applies fn to the cached activity and stores the result. It reports
// false when id is not cached. fn must not change the ID.
func (r *Registry) Update(id string, fn func(*domain.Activity)) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	a := e.activity.Clone()
	fn(&a)
	a.ID = id
	r.put(a)
	r.mu.Unlock()

	r.publish(Change{Kind: ChangeUpdated, ActivityID: id})
	return true
}

// UpdateEach calls fn for every cached activity and stores those for which fn
// reports a change. It returns the number of changed activities.
func (r *Registry) UpdateEach(fn func(*domain.Activity) bool) int {
	var changed []string

	r.mu.Lock()
	for id, e := range r.entries {
		a := e.activity.Clone()
		if !fn(&a) {
			continue
		}
		a.ID = id
		r.put(a)
		changed = append(changed, id)
	}
	r.mu.Unlock()

	slices.Sort(changed)
	for _, id := range changed {
		r.publish(Change{Kind: ChangeUpdated, ActivityID: id})
	}
	return len(changed)
}

// Rederive recomputes per-user fields of every entry for the current identity.
func (r *Registry) Rederive() {
	r.mu.Lock()
	for id, e := range r.entries {
		e.activity = r.derive(e.activity)
		r.entries[id] = e
	}
	r.mu.Unlock()

	r.publish(Change{Kind: ChangeRederived})
}

// Remove deletes id. It reports whether an entry was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if ok {
		r.publish(Change{Kind: ChangeRemoved, ActivityID: id})
	}
	return ok
}

// Clear empties the registry and advances the epoch.
func (r *Registry) Clear() {
	r.mu.Lock()
	clear(r.entries)
	r.seq = 0
	r.epoch++
	r.mu.Unlock()

	r.publish(Change{Kind: ChangeCleared})
}

// Len returns the number of cached activities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ListSorted yields every cached activity ascending by date, ties in insertion
// order. Each iteration takes a fresh snapshot, so the sequence can be restarted.
func (r *Registry) ListSorted() iter.Seq[domain.Activity] {
	return func(yield func(domain.Activity) bool) {
		for _, a := range r.snapshot() {
			if !yield(a) {
				return
			}
		}
	}
}

func (r *Registry) snapshot() []domain.Activity {
	r.mu.RLock()
	entries := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, entry{activity: e.activity.Clone(), seq: e.seq})
	}
	r.mu.RUnlock()

	slices.SortFunc(entries, func(a, b entry) int {
		if c := a.activity.Date.Compare(b.activity.Date); c != 0 {
			return c
		}
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	out := make([]domain.Activity, len(entries))
	for i, e := range entries {
		out[i] = r.derive(e.activity)
	}
	return out
}
