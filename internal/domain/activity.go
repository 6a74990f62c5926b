// Package domain defines the activity and attendee model held by the client cache.
package domain

import (
	"slices"
	"time"
)

// Profile is an attendee embedded in an activity. It is never cached on its own.
type Profile struct {
	Username       string
	DisplayName    string
	Bio            string
	Image          string
	FollowersCount int
	FollowingCount int
	// Following reports whether the current user follows this attendee.
	Following bool
}

// ToggleFollowing flips Following and moves FollowersCount by one in the matching direction.
func (p *Profile) ToggleFollowing() {
	if p.Following {
		p.FollowersCount--
	} else {
		p.FollowersCount++
	}
	p.Following = !p.Following
}

// Identity is the authenticated user as reported by the identity provider.
type Identity struct {
	Username    string
	DisplayName string
	Image       string
}

// Profile converts the identity into an attendee entry.
func (i Identity) Profile() Profile {
	return Profile{
		Username:    i.Username,
		DisplayName: i.DisplayName,
		Image:       i.Image,
	}
}

// Activity is the normalized, remotely-owned record kept in the cache.
type Activity struct {
	ID           string
	Title        string
	Description  string
	Category     string
	City         string
	Venue        string
	Date         time.Time
	HostUsername string
	IsCancelled  bool
	Attendees    []Profile

	// Derived locally against the current identity; never sent to the remote.
	IsGoing bool
	IsHost  bool
	Host    *Profile
}

// Clone returns a deep copy so callers cannot reach into cached state.
func (a Activity) Clone() Activity {
	out := a
	out.Attendees = slices.Clone(a.Attendees)
	if a.Host != nil {
		host := *a.Host
		out.Host = &host
	}
	return out
}

// HasAttendee reports whether username is among the attendees.
func (a Activity) HasAttendee(username string) bool {
	return slices.ContainsFunc(a.Attendees, func(p Profile) bool { return p.Username == username })
}

// RemoveAttendee drops every attendee entry matching username.
func (a *Activity) RemoveAttendee(username string) {
	a.Attendees = slices.DeleteFunc(a.Attendees, func(p Profile) bool { return p.Username == username })
}

// Derive recomputes IsGoing, IsHost and Host. Without a current user IsGoing and
// IsHost are false; Host only depends on the attendee list.
func Derive(a Activity, user Identity, ok bool) Activity {
	a.Host = nil
	for i := range a.Attendees {
		if a.Attendees[i].Username == a.HostUsername {
			host := a.Attendees[i]
			a.Host = &host
			break
		}
	}
	if !ok || user.Username == "" {
		a.IsGoing = false
		a.IsHost = false
		return a
	}
	a.IsGoing = a.HasAttendee(user.Username)
	a.IsHost = a.HostUsername == user.Username
	return a
}

// Pagination is the page metadata reported by the remote alongside a list response.
type Pagination struct {
	CurrentPage  int
	ItemsPerPage int
	TotalItems   int
	TotalPages   int
}

// HasNext reports whether a page after CurrentPage exists.
func (p Pagination) HasNext() bool {
	return p.CurrentPage < p.TotalPages
}
