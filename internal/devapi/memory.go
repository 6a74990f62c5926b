package devapi

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"example.com/activitysync/internal/domain"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrUserNotFound is returned when a profile cannot be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotHost is returned when a non-host edits or deletes an activity.
	ErrNotHost = errors.New("only the host may change this activity")
	// ErrDuplicateID is returned when a create reuses an existing activity ID.
	ErrDuplicateID = errors.New("activity id already exists")
	// ErrSelfFollow is returned when a user tries to follow themselves.
	ErrSelfFollow = errors.New("cannot follow yourself")
)

// MaxPageSize caps the page size a client may request.
const MaxPageSize = 50

// ValidationError lists invalid fields of a request.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ListFilter narrows a list request. Zero StartDate means no lower bound.
type ListFilter struct {
	IsGoing    bool
	IsHost     bool
	StartDate  time.Time
	PageNumber int
	PageSize   int
}

type activityRecord struct {
	id          string
	title       string
	description string
	category    string
	city        string
	venue       string
	date        time.Time
	host        string
	cancelled   bool
	attendees   []string
}

type userRecord struct {
	identity  domain.Identity
	followers map[string]struct{}
	following map[string]struct{}
}

// InMemoryRepository stores activities and profiles in memory for local
// development and end-to-end tests.
type InMemoryRepository struct {
	mu         sync.RWMutex
	activities map[string]*activityRecord
	users      map[string]*userRecord
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		activities: make(map[string]*activityRecord),
		users:      make(map[string]*userRecord),
	}
}

// EnsureUser registers id on first sight and refreshes its display fields.
func (r *InMemoryRepository) EnsureUser(id domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureUser(id)
}

func (r *InMemoryRepository) ensureUser(id domain.Identity) *userRecord {
	u, ok := r.users[id.Username]
	if !ok {
		u = &userRecord{followers: map[string]struct{}{}, following: map[string]struct{}{}}
		r.users[id.Username] = u
	}
	if id.DisplayName == "" {
		id.DisplayName = cmp.Or(u.identity.DisplayName, id.Username)
	}
	u.identity = id
	return u
}

// List returns one page of activities visible to caller, ascending by date.
func (r *InMemoryRepository) List(caller string, f ListFilter) ([]domain.Activity, domain.Pagination) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*activityRecord, 0, len(r.activities))
	for _, rec := range r.activities {
		if !f.StartDate.IsZero() && rec.date.Before(f.StartDate) {
			continue
		}
		if f.IsGoing && !slices.Contains(rec.attendees, caller) {
			continue
		}
		if f.IsHost && rec.host != caller {
			continue
		}
		matched = append(matched, rec)
	}
	slices.SortFunc(matched, func(a, b *activityRecord) int {
		return cmp.Or(a.date.Compare(b.date), cmp.Compare(a.id, b.id))
	})

	size := f.PageSize
	if size <= 0 {
		size = 10
	}
	size = min(size, MaxPageSize)
	page := max(f.PageNumber, 1)

	p := domain.Pagination{
		CurrentPage:  page,
		ItemsPerPage: size,
		TotalItems:   len(matched),
		TotalPages:   (len(matched) + size - 1) / size,
	}

	start := min((page-1)*size, len(matched))
	end := min(start+size, len(matched))
	out := make([]domain.Activity, 0, end-start)
	for _, rec := range matched[start:end] {
		out = append(out, r.render(rec, caller))
	}
	return out, p
}

// Get returns the activity with id as seen by caller.
func (r *InMemoryRepository) Get(caller, id string) (domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.activities[id]
	if !ok {
		return domain.Activity{}, ErrActivityNotFound
	}
	return r.render(rec, caller), nil
}

// Create stores draft hosted by host, honouring the client-supplied ID.
func (r *InMemoryRepository) Create(host domain.Identity, draft domain.ActivityDraft) error {
	var verr ValidationError
	if strings.TrimSpace(draft.ID) == "" {
		verr.add("id", "Id is required")
	}
	validateDraft(&verr, draft)
	if err := verr.orNil(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.activities[draft.ID]; ok {
		return ErrDuplicateID
	}
	r.ensureUser(host)
	r.activities[draft.ID] = &activityRecord{
		id:          draft.ID,
		title:       draft.Title,
		description: draft.Description,
		category:    draft.Category,
		city:        draft.City,
		venue:       draft.Venue,
		date:        draft.Date.UTC(),
		host:        host.Username,
		attendees:   []string{host.Username},
	}
	return nil
}

// Update merges patch into the activity. Only the host may edit.
func (r *InMemoryRepository) Update(caller string, patch domain.ActivityPatch) error {
	var verr ValidationError
	present := []struct {
		field, label string
		value        *string
	}{
		{"title", "Title", patch.Title},
		{"category", "Category", patch.Category},
		{"city", "City", patch.City},
		{"venue", "Venue", patch.Venue},
	}
	for _, p := range present {
		if p.value != nil && strings.TrimSpace(*p.value) == "" {
			verr.add(p.field, p.label+" must not be empty")
		}
	}
	if err := verr.orNil(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.activities[patch.ID]
	if !ok {
		return ErrActivityNotFound
	}
	if rec.host != caller {
		return ErrNotHost
	}
	if patch.Title != nil {
		rec.title = *patch.Title
	}
	if patch.Description != nil {
		rec.description = *patch.Description
	}
	if patch.Category != nil {
		rec.category = *patch.Category
	}
	if patch.City != nil {
		rec.city = *patch.City
	}
	if patch.Venue != nil {
		rec.venue = *patch.Venue
	}
	if patch.Date != nil {
		rec.date = patch.Date.UTC()
	}
	return nil
}

// Delete removes the activity. Only the host may delete.
func (r *InMemoryRepository) Delete(caller, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.activities[id]
	if !ok {
		return ErrActivityNotFound
	}
	if rec.host != caller {
		return ErrNotHost
	}
	delete(r.activities, id)
	return nil
}

// Attend toggles cancellation when caller hosts the activity and attendance otherwise.
func (r *InMemoryRepository) Attend(caller domain.Identity, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.activities[id]
	if !ok {
		return ErrActivityNotFound
	}
	r.ensureUser(caller)

	if rec.host == caller.Username {
		rec.cancelled = !rec.cancelled
		return nil
	}
	if i := slices.Index(rec.attendees, caller.Username); i >= 0 {
		rec.attendees = slices.Delete(rec.attendees, i, i+1)
		return nil
	}
	rec.attendees = append(rec.attendees, caller.Username)
	return nil
}

// ToggleFollowing flips whether caller follows target.
func (r *InMemoryRepository) ToggleFollowing(caller domain.Identity, target string) error {
	if caller.Username == target {
		return ErrSelfFollow
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.users[target]
	if !ok {
		return ErrUserNotFound
	}
	c := r.ensureUser(caller)

	if _, following := c.following[target]; following {
		delete(c.following, target)
		delete(t.followers, caller.Username)
		return nil
	}
	c.following[target] = struct{}{}
	t.followers[caller.Username] = struct{}{}
	return nil
}

// render must be called with r.mu held.
func (r *InMemoryRepository) render(rec *activityRecord, caller string) domain.Activity {
	a := domain.Activity{
		ID:           rec.id,
		Title:        rec.title,
		Description:  rec.description,
		Category:     rec.category,
		City:         rec.city,
		Venue:        rec.venue,
		Date:         rec.date,
		HostUsername: rec.host,
		IsCancelled:  rec.cancelled,
		Attendees:    make([]domain.Profile, 0, len(rec.attendees)),
	}
	for _, username := range rec.attendees {
		a.Attendees = append(a.Attendees, r.profile(username, caller))
	}
	return a
}

func (r *InMemoryRepository) profile(username, caller string) domain.Profile {
	u, ok := r.users[username]
	if !ok {
		return domain.Profile{Username: username, DisplayName: username}
	}
	_, following := u.followers[caller]
	return domain.Profile{
		Username:       username,
		DisplayName:    u.identity.DisplayName,
		Image:          u.identity.Image,
		FollowersCount: len(u.followers),
		FollowingCount: len(u.following),
		Following:      following,
	}
}

func validateDraft(verr *ValidationError, d domain.ActivityDraft) {
	required := []struct {
		field, label, value string
	}{
		{"title", "Title", d.Title},
		{"category", "Category", d.Category},
		{"city", "City", d.City},
		{"venue", "Venue", d.Venue},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			verr.add(r.field, r.label+" is required")
		}
	}
	if d.Date.IsZero() {
		verr.add("date", "Date is required")
	}
}
