package domain

import "time"

// ActivityDraft carries the form values used to create an activity.
type ActivityDraft struct {
	ID          string
	Title       string
	Description string
	Category    string
	City        string
	Venue       string
	Date        time.Time
}

// NewActivity synthesizes a cached activity from a confirmed draft, with host as
// the sole attendee.
func NewActivity(draft ActivityDraft, host Identity) Activity {
	return Activity{
		ID:           draft.ID,
		Title:        draft.Title,
		Description:  draft.Description,
		Category:     draft.Category,
		City:         draft.City,
		Venue:        draft.Venue,
		Date:         draft.Date,
		HostUsername: host.Username,
		Attendees:    []Profile{host.Profile()},
	}
}

// ActivityPatch is a partial update. Nil fields are left untouched.
type ActivityPatch struct {
	ID          string
	Title       *string
	Description *string
	Category    *string
	City        *string
	Venue       *string
	Date        *time.Time
}

// Apply merges the present fields over base.
func (p ActivityPatch) Apply(base Activity) Activity {
	out := base.Clone()
	out.ID = p.ID
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.City != nil {
		out.City = *p.City
	}
	if p.Venue != nil {
		out.Venue = *p.Venue
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	return out
}
