// Package activities implements the sync engine that keeps the activity cache
// consistent with the remote collection.
//
// Store operations never return remote failures: they log them, count them,
// and reset the loading or submitting flag they own. Callers notice a failure
// only through the flags returning to idle without the expected cache change.
package activities

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/activitysync/internal/cache"
	"example.com/activitysync/internal/domain"
	"example.com/activitysync/internal/identity"
	"example.com/activitysync/internal/observability"
	"example.com/activitysync/internal/query"
	"example.com/activitysync/internal/remote"
)

const (
	opList   = "list"
	opLoad   = "load"
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
	opAttend = "attend"
	opCancel = "cancel"
)

const resultCached = "cached"

// Option configures a Store.
type Option func(*Store)

// WithLogger overrides the logger used to report failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPageSize sets the page size requested from the remote.
func WithPageSize(size int) Option {
	return func(s *Store) {
		s.pageSize = size
	}
}

// WithIDGenerator replaces the generator of client-side activity IDs.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithRegistryOptions passes options to the underlying cache registry.
func WithRegistryOptions(opts ...cache.Option) Option {
	return func(s *Store) {
		s.registryOpts = append(s.registryOpts, opts...)
	}
}

// Store owns the activity cache, the selected activity, the filter and page
// cursor, and the loading and submitting flags.
type Store struct {
	remote       remote.Activities
	identity     identity.Provider
	registry     *cache.Registry
	logger       *slog.Logger
	newID        func() string
	pageSize     int
	registryOpts []cache.Option

	mu          sync.Mutex
	state       query.State
	selected    domain.Activity
	hasSelected bool
	pagination  *domain.Pagination
	loads       int
	submitting  bool
	editMode    bool
}

// NewStore constructs a Store. A nil provider behaves as signed out.
func NewStore(r remote.Activities, provider identity.Provider, opts ...Option) *Store {
	s := &Store{
		remote:   r,
		identity: provider,
		logger:   slog.Default(),
		newID:    uuid.NewString,
		pageSize: query.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.identity == nil {
		s.identity = identity.NewStatic(domain.Identity{})
	}
	s.registry = cache.NewRegistry(s.identity, s.registryOpts...)
	s.state = query.NewState(s.pageSize)
	s.registry.Subscribe(func(cache.Change) {
		observability.SetCacheEntries(s.registry.Len())
	})
	return s
}

// List requests the current page and writes every returned activity into the
// cache. Results are dropped if the cache was invalidated while the request
// was in flight.
func (s *Store) List(ctx context.Context) {
	s.mu.Lock()
	s.loads++
	params := s.state.Params()
	epoch := s.registry.Epoch()
	s.mu.Unlock()
	defer s.doneLoading()

	page, err := s.remote.List(ctx, params)
	if err != nil {
		s.fail(ctx, opList, err)
		return
	}

	if err := s.registry.UpsertAt(epoch, page.Activities...); err != nil {
		if errors.Is(err, cache.ErrStaleEpoch) {
			s.discardStale(ctx, opList, len(page.Activities))
			return
		}
		s.fail(ctx, opList, err)
		return
	}

	s.mu.Lock()
	if s.registry.Epoch() == epoch {
		p := page.Pagination
		s.pagination = &p
	}
	s.mu.Unlock()

	observability.RecordOperation(opList, observability.ResultApplied)
	observability.RecordListApplied(time.Now())
}

// LoadNextPage lists the page after the last one the remote returned, keeping
// the activities already cached. It reports false when the last page is loaded.
func (s *Store) LoadNextPage(ctx context.Context) bool {
	s.mu.Lock()
	if s.pagination != nil {
		if !s.pagination.HasNext() {
			s.mu.Unlock()
			return false
		}
		// A failed load leaves pagination behind the cursor, so the retry
		// asks for the same page again.
		next := s.state.Paging.Normalize()
		next.PageNumber = s.pagination.CurrentPage + 1
		s.state = s.state.WithPaging(next)
	}
	s.mu.Unlock()

	s.List(ctx)
	return true
}

// LoadOne selects the activity with id, fetching it only when it is not cached.
func (s *Store) LoadOne(ctx context.Context, id string) (domain.Activity, bool) {
	if a, ok := s.registry.Get(id); ok {
		s.setSelected(a)
		observability.RecordOperation(opLoad, resultCached)
		return a, true
	}

	s.mu.Lock()
	s.loads++
	epoch := s.registry.Epoch()
	s.mu.Unlock()
	defer s.doneLoading()

	fetched, err := s.remote.Get(ctx, id)
	if err != nil {
		s.fail(ctx, opLoad, err, "activity_id", id)
		return domain.Activity{}, false
	}

	if err := s.registry.UpsertAt(epoch, fetched); err != nil {
		if !errors.Is(err, cache.ErrStaleEpoch) {
			s.fail(ctx, opLoad, err, "activity_id", id)
			return domain.Activity{}, false
		}
		s.discardStale(ctx, opLoad, 1)
	}

	a, ok := s.registry.Get(fetched.ID)
	if !ok {
		a = s.derive(fetched)
	}
	s.setSelected(a)
	observability.RecordOperation(opLoad, observability.ResultApplied)
	return a, true
}

// Create assigns a fresh client-side ID to draft, sends it, and on success
// caches an activity hosted and attended by the current user only.
func (s *Store) Create(ctx context.Context, draft domain.ActivityDraft) (domain.Activity, bool) {
	user, ok := s.identity.CurrentUser()
	if !ok {
		s.logger.WarnContext(ctx, "create skipped: no signed-in user", "operation", opCreate)
		observability.RecordOperation(opCreate, observability.ResultSkipped)
		return domain.Activity{}, false
	}

	draft.ID = s.newID()
	s.beginSubmit()
	defer s.endSubmit()

	if err := s.remote.Create(ctx, draft); err != nil {
		s.fail(ctx, opCreate, err, "activity_id", draft.ID)
		return domain.Activity{}, false
	}

	if err := s.registry.Upsert(domain.NewActivity(draft, user)); err != nil {
		s.fail(ctx, opCreate, err, "activity_id", draft.ID)
		return domain.Activity{}, false
	}
	a, _ := s.registry.Get(draft.ID)
	s.setSelected(a)
	observability.RecordOperation(opCreate, observability.ResultApplied)
	return a, true
}

// Update sends patch and, on success, merges its present fields over the
// cached activity, writing the result to both the cache and the selection.
func (s *Store) Update(ctx context.Context, patch domain.ActivityPatch) bool {
	if patch.ID == "" {
		s.logger.WarnContext(ctx, "update skipped: missing activity id", "operation", opUpdate)
		observability.RecordOperation(opUpdate, observability.ResultSkipped)
		return false
	}

	s.beginSubmit()
	defer s.endSubmit()

	if err := s.remote.Update(ctx, patch); err != nil {
		s.fail(ctx, opUpdate, err, "activity_id", patch.ID)
		return false
	}

	base, ok := s.registry.Get(patch.ID)
	if !ok {
		base, _ = s.selectedWithID(patch.ID)
	}
	if err := s.registry.Upsert(patch.Apply(base)); err != nil {
		s.fail(ctx, opUpdate, err, "activity_id", patch.ID)
		return false
	}
	merged, _ := s.registry.Get(patch.ID)
	s.setSelected(merged)
	observability.RecordOperation(opUpdate, observability.ResultApplied)
	return true
}

// Delete removes id remotely and then from the cache. Deleting an activity
// that is no longer cached leaves the cache untouched.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.beginSubmit()
	defer s.endSubmit()

	if err := s.remote.Delete(ctx, id); err != nil {
		s.fail(ctx, opDelete, err, "activity_id", id)
		return false
	}

	s.registry.Remove(id)
	s.mu.Lock()
	if s.hasSelected && s.selected.ID == id {
		s.selected = domain.Activity{}
		s.hasSelected = false
	}
	s.mu.Unlock()
	observability.RecordOperation(opDelete, observability.ResultApplied)
	return true
}

// ToggleAttendance joins or leaves the selected activity as the current user.
// The attendee list changes only after the remote call succeeds.
func (s *Store) ToggleAttendance(ctx context.Context) bool {
	user, ok := s.identity.CurrentUser()
	if !ok {
		s.logger.WarnContext(ctx, "attendance skipped: no signed-in user", "operation", opAttend)
		observability.RecordOperation(opAttend, observability.ResultSkipped)
		return false
	}

	return s.toggleSelected(ctx, opAttend, func(a *domain.Activity) {
		if a.HasAttendee(user.Username) {
			a.RemoveAttendee(user.Username)
			a.IsGoing = false
			return
		}
		a.Attendees = append(a.Attendees, user.Profile())
		a.IsGoing = true
	})
}

// ToggleCancellation flips the cancelled state of the selected activity. The
// remote exposes this through the same attend endpoint, answered for the host.
func (s *Store) ToggleCancellation(ctx context.Context) bool {
	return s.toggleSelected(ctx, opCancel, func(a *domain.Activity) {
		a.IsCancelled = !a.IsCancelled
	})
}

func (s *Store) toggleSelected(ctx context.Context, op string, apply func(*domain.Activity)) bool {
	s.mu.Lock()
	if !s.hasSelected {
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "toggle skipped: no selected activity", "operation", op)
		observability.RecordOperation(op, observability.ResultSkipped)
		return false
	}
	id := s.selected.ID
	s.submitting = true
	s.mu.Unlock()
	defer s.endSubmit()

	if err := s.remote.Attend(ctx, id); err != nil {
		s.fail(ctx, op, err, "activity_id", id)
		return false
	}

	if !s.registry.Update(id, apply) {
		a, _ := s.selectedWithID(id)
		apply(&a)
		if err := s.registry.Upsert(a); err != nil {
			s.fail(ctx, op, err, "activity_id", id)
			return false
		}
	}
	a, _ := s.registry.Get(id)
	s.setSelected(a)
	observability.RecordOperation(op, observability.ResultApplied)
	return true
}

// OnFollowingChanged flips the following flag of every cached attendee named
// username and moves their follower count by one. It makes no remote call and
// returns the number of activities touched.
func (s *Store) OnFollowingChanged(username string) int {
	toggle := func(a *domain.Activity) bool {
		changed := false
		for i := range a.Attendees {
			if a.Attendees[i].Username == username {
				a.Attendees[i].ToggleFollowing()
				changed = true
			}
		}
		return changed
	}

	n := s.registry.UpdateEach(toggle)

	s.mu.Lock()
	if s.hasSelected {
		if a, ok := s.registry.Get(s.selected.ID); ok {
			s.selected = a
		} else {
			toggle(&s.selected)
		}
	}
	s.mu.Unlock()
	return n
}

// SetPredicate changes the filter. Any change resets paging to page 1, clears
// the cache and reloads; setting a key to its current value does nothing.
func (s *Store) SetPredicate(ctx context.Context, key query.Key, value time.Time) error {
	s.mu.Lock()
	next, effect, err := s.state.WithPredicate(key, value)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.apply(next, effect)
	s.mu.Unlock()

	s.perform(ctx, effect)
	return nil
}

// ClearStartDate drops the date bound of the filter, reloading when one was set.
func (s *Store) ClearStartDate(ctx context.Context) {
	s.mu.Lock()
	next, effect := s.state.WithoutStartDate()
	s.apply(next, effect)
	s.mu.Unlock()

	s.perform(ctx, effect)
}

// apply must be called with s.mu held.
func (s *Store) apply(next query.State, effect query.Effect) {
	s.state = next
	if effect == query.EffectReload {
		s.pagination = nil
	}
}

func (s *Store) perform(ctx context.Context, effect query.Effect) {
	if effect != query.EffectReload {
		return
	}
	s.registry.Clear()
	s.List(ctx)
}

// SetPagingParams replaces the page cursor used by the next List.
func (s *Store) SetPagingParams(p query.Paging) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.state.WithPaging(p)
}

// IdentityChanged recomputes per-user fields after a session switch.
func (s *Store) IdentityChanged() {
	s.registry.Rederive()
}

// ClearSelected drops the selection.
func (s *Store) ClearSelected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = domain.Activity{}
	s.hasSelected = false
}

// SetEditMode toggles the edit form state.
func (s *Store) SetEditMode(edit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editMode = edit
}

// Activities yields the cached activities ascending by date.
func (s *Store) Activities() iter.Seq[domain.Activity] {
	return s.registry.ListSorted()
}

// Grouped returns the cached activities bucketed by calendar day.
func (s *Store) Grouped() []cache.DayGroup {
	return s.registry.GroupedByDay()
}

// Subscribe registers fn for every cache change.
func (s *Store) Subscribe(fn func(cache.Change)) (cancel func()) {
	return s.registry.Subscribe(fn)
}

// Registry exposes the underlying cache for read-only consumers such as the change feed.
func (s *Store) Registry() *cache.Registry {
	return s.registry
}

// Selected returns the selected activity with per-user fields derived now.
func (s *Store) Selected() (domain.Activity, bool) {
	s.mu.Lock()
	a, ok := s.selected.Clone(), s.hasSelected
	s.mu.Unlock()
	if !ok {
		return domain.Activity{}, false
	}
	return s.derive(a), true
}

// Pagination returns the metadata of the last applied list response.
func (s *Store) Pagination() (domain.Pagination, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pagination == nil {
		return domain.Pagination{}, false
	}
	return *s.pagination, true
}

// Predicate returns the active filter.
func (s *Store) Predicate() query.Predicate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Predicate
}

// Paging returns the page cursor.
func (s *Store) Paging() query.Paging {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Paging
}

// Loading reports whether a list or single fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads > 0
}

// Submitting reports whether a mutation is in flight.
func (s *Store) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// EditMode reports the edit form state.
func (s *Store) EditMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editMode
}

func (s *Store) derive(a domain.Activity) domain.Activity {
	user, ok := s.identity.CurrentUser()
	return domain.Derive(a, user, ok)
}

func (s *Store) setSelected(a domain.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = a.Clone()
	s.hasSelected = true
}

// selectedWithID returns the selection when it has id, or a bare activity with that id.
func (s *Store) selectedWithID(id string) (domain.Activity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSelected && s.selected.ID == id {
		return s.selected.Clone(), true
	}
	return domain.Activity{ID: id}, false
}

func (s *Store) beginSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = true
}

func (s *Store) endSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
}

func (s *Store) doneLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loads > 0 {
		s.loads--
	}
}

func (s *Store) discardStale(ctx context.Context, op string, count int) {
	observability.RecordStaleResult()
	observability.RecordOperation(op, observability.ResultSkipped)
	s.logger.InfoContext(ctx, "discarded results fetched before cache invalidation", "operation", op, "count", count)
}

func (s *Store) fail(ctx context.Context, op string, err error, args ...any) {
	category := remote.CategoryOf(err)
	observability.RecordFailure(op, string(category))
	attrs := append([]any{"operation", op, "category", string(category), "error", err}, args...)
	s.logger.ErrorContext(ctx, "activity sync failed", attrs...)
}
