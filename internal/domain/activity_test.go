package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeriveWithIdentity(t *testing.T) {
	a := Activity{
		ID:           "act-1",
		HostUsername: "bob",
		Attendees: []Profile{
			{Username: "bob", DisplayName: "Bob"},
			{Username: "jane"},
		},
	}

	got := Derive(a, Identity{Username: "jane"}, true)
	require.True(t, got.IsGoing)
	require.False(t, got.IsHost)
	require.NotNil(t, got.Host)
	require.Equal(t, "Bob", got.Host.DisplayName)

	got = Derive(a, Identity{Username: "bob"}, true)
	require.True(t, got.IsGoing)
	require.True(t, got.IsHost)

	got = Derive(a, Identity{Username: "tom"}, true)
	require.False(t, got.IsGoing)
	require.False(t, got.IsHost)
}

func TestDeriveWithoutIdentity(t *testing.T) {
	a := Activity{
		HostUsername: "bob",
		Attendees:    []Profile{{Username: "bob"}},
		IsGoing:      true,
		IsHost:       true,
	}

	got := Derive(a, Identity{}, false)
	require.False(t, got.IsGoing)
	require.False(t, got.IsHost)
	require.NotNil(t, got.Host)
}

func TestCloneDetachesAttendees(t *testing.T) {
	a := Derive(Activity{HostUsername: "bob", Attendees: []Profile{{Username: "bob"}}}, Identity{}, false)
	c := a.Clone()
	c.Attendees[0].FollowersCount = 7
	c.Host.FollowersCount = 7

	require.Zero(t, a.Attendees[0].FollowersCount)
	require.Zero(t, a.Host.FollowersCount)
}

func TestToggleFollowingIsInvolution(t *testing.T) {
	p := Profile{Username: "jane", FollowersCount: 10}

	p.ToggleFollowing()
	require.True(t, p.Following)
	require.Equal(t, 11, p.FollowersCount)

	p.ToggleFollowing()
	require.False(t, p.Following)
	require.Equal(t, 10, p.FollowersCount)
}

func TestToggleFollowingRoundTripsFromZero(t *testing.T) {
	p := Profile{Username: "jane", Following: true}

	p.ToggleFollowing()
	require.False(t, p.Following)
	require.Equal(t, -1, p.FollowersCount)

	p.ToggleFollowing()
	require.True(t, p.Following)
	require.Zero(t, p.FollowersCount)
}

func TestPatchApplyIsShallowMerge(t *testing.T) {
	date := time.Date(2026, time.March, 3, 18, 0, 0, 0, time.UTC)
	base := Activity{ID: "act-1", Title: "Old", City: "London", Date: date, Attendees: []Profile{{Username: "bob"}}}

	title := "New"
	got := ActivityPatch{ID: "act-1", Title: &title}.Apply(base)

	require.Equal(t, "New", got.Title)
	require.Equal(t, "London", got.City)
	require.Equal(t, date, got.Date)
	require.Len(t, got.Attendees, 1)
	require.Equal(t, "Old", base.Title)
}

func TestNewActivityMakesHostSoleAttendee(t *testing.T) {
	draft := ActivityDraft{ID: "act-9", Title: "Drinks"}
	got := NewActivity(draft, Identity{Username: "bob", DisplayName: "Bob"})

	require.Equal(t, "bob", got.HostUsername)
	require.Equal(t, []Profile{{Username: "bob", DisplayName: "Bob"}}, got.Attendees)
}
