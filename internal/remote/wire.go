package remote

import (
	"fmt"
	"time"

	"example.com/activitysync/internal/domain"
)

// PaginationHeader carries the JSON page metadata on list responses.
const PaginationHeader = "Pagination"

// ProfileView is the wire form of an attendee.
type ProfileView struct {
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	Bio            string `json:"bio,omitempty"`
	Image          string `json:"image,omitempty"`
	FollowersCount int    `json:"followersCount"`
	FollowingCount int    `json:"followingCount"`
	Following      bool   `json:"following"`
}

// ActivityView is the wire form of an activity. Date travels as RFC 3339 text.
type ActivityView struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Category     string        `json:"category"`
	City         string        `json:"city"`
	Venue        string        `json:"venue"`
	Date         string        `json:"date"`
	HostUsername string        `json:"hostUsername"`
	IsCancelled  bool          `json:"isCancelled"`
	Attendees    []ProfileView `json:"attendees"`
}

// ActivityForm is the create payload.
type ActivityForm struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	City        string `json:"city"`
	Venue       string `json:"venue"`
	Date        string `json:"date"`
}

// ActivityPatchForm is the update payload; absent fields are omitted.
type ActivityPatchForm struct {
	ID          string  `json:"id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	City        *string `json:"city,omitempty"`
	Venue       *string `json:"venue,omitempty"`
	Date        *string `json:"date,omitempty"`
}

// PaginationView is the JSON carried in PaginationHeader.
type PaginationView struct {
	CurrentPage  int `json:"currentPage"`
	ItemsPerPage int `json:"itemsPerPage"`
	TotalItems   int `json:"totalItems"`
	TotalPages   int `json:"totalPages"`
}

// ParseDate reads a wire date. RFC 3339 with or without fractional seconds is
// accepted, as is a zone-less timestamp which is taken as UTC.
func ParseDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid activity date %q", raw)
}

// FormatDate renders a date for the wire.
func FormatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ToDomain materializes the view, parsing the date into an instant.
func (v ActivityView) ToDomain() (domain.Activity, error) {
	date, err := ParseDate(v.Date)
	if err != nil {
		return domain.Activity{}, err
	}
	a := domain.Activity{
		ID:           v.ID,
		Title:        v.Title,
		Description:  v.Description,
		Category:     v.Category,
		City:         v.City,
		Venue:        v.Venue,
		Date:         date,
		HostUsername: v.HostUsername,
		IsCancelled:  v.IsCancelled,
		Attendees:    make([]domain.Profile, 0, len(v.Attendees)),
	}
	for _, p := range v.Attendees {
		a.Attendees = append(a.Attendees, p.ToDomain())
	}
	return a, nil
}

// ToDomain converts the attendee view.
func (v ProfileView) ToDomain() domain.Profile {
	return domain.Profile{
		Username:       v.Username,
		DisplayName:    v.DisplayName,
		Bio:            v.Bio,
		Image:          v.Image,
		FollowersCount: v.FollowersCount,
		FollowingCount: v.FollowingCount,
		Following:      v.Following,
	}
}

// NewProfileView converts a domain attendee to its wire form.
func NewProfileView(p domain.Profile) ProfileView {
	return ProfileView{
		Username:       p.Username,
		DisplayName:    p.DisplayName,
		Bio:            p.Bio,
		Image:          p.Image,
		FollowersCount: p.FollowersCount,
		FollowingCount: p.FollowingCount,
		Following:      p.Following,
	}
}

// NewActivityView converts a domain activity to its wire form. Derived fields are dropped.
func NewActivityView(a domain.Activity) ActivityView {
	v := ActivityView{
		ID:           a.ID,
		Title:        a.Title,
		Description:  a.Description,
		Category:     a.Category,
		City:         a.City,
		Venue:        a.Venue,
		Date:         FormatDate(a.Date),
		HostUsername: a.HostUsername,
		IsCancelled:  a.IsCancelled,
		Attendees:    make([]ProfileView, 0, len(a.Attendees)),
	}
	for _, p := range a.Attendees {
		v.Attendees = append(v.Attendees, NewProfileView(p))
	}
	return v
}

// NewActivityForm converts a draft to the create payload.
func NewActivityForm(d domain.ActivityDraft) ActivityForm {
	return ActivityForm{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		City:        d.City,
		Venue:       d.Venue,
		Date:        FormatDate(d.Date),
	}
}

// NewActivityPatchForm converts a patch to the update payload.
func NewActivityPatchForm(p domain.ActivityPatch) ActivityPatchForm {
	form := ActivityPatchForm{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		City:        p.City,
		Venue:       p.Venue,
	}
	if p.Date != nil {
		date := FormatDate(*p.Date)
		form.Date = &date
	}
	return form
}

// ToDomain converts the pagination metadata.
func (v PaginationView) ToDomain() domain.Pagination {
	return domain.Pagination{
		CurrentPage:  v.CurrentPage,
		ItemsPerPage: v.ItemsPerPage,
		TotalItems:   v.TotalItems,
		TotalPages:   v.TotalPages,
	}
}
