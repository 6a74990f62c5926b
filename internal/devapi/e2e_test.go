package devapi_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/activitysync/internal/activities"
	"example.com/activitysync/internal/devapi"
	"example.com/activitysync/internal/domain"
	"example.com/activitysync/internal/follow"
	"example.com/activitysync/internal/identity"
	"example.com/activitysync/internal/query"
	"example.com/activitysync/internal/remote"
)

var auth = devapi.AuthConfig{Secret: "e2e-secret", Issuer: "activitysync.e2e"}

type session struct {
	store  *activities.Store
	follow *follow.Service
	tokens *identity.TokenProvider
}

func newSession(t *testing.T, srv *httptest.Server, username string) session {
	t.Helper()
	tok, err := devapi.IssueToken(auth, domain.Identity{Username: username, DisplayName: username}, time.Hour)
	require.NoError(t, err)
	tokens, err := identity.NewTokenProvider(tok)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := remote.NewHTTPClient(srv.URL, 5*time.Second, remote.WithTokenSource(tokens))
	store := activities.NewStore(client, tokens, activities.WithLogger(logger), activities.WithPageSize(2))
	return session{
		store:  store,
		follow: follow.NewService(client, store, follow.WithLogger(logger)),
		tokens: tokens,
	}
}

func newServer(t *testing.T) (*httptest.Server, *devapi.InMemoryRepository) {
	t.Helper()
	repo := devapi.NewInMemoryRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(devapi.NewRouter(devapi.NewHandler(repo, logger), devapi.NewMiddleware(auth), nil))
	t.Cleanup(srv.Close)
	return srv, repo
}

func idsOf(s *activities.Store) []string {
	var out []string
	for a := range s.Activities() {
		out = append(out, a.ID)
	}
	return out
}

func TestStoreAgainstDevAPI(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	bob := newSession(t, srv, "bob")
	jane := newSession(t, srv, "jane")

	base := time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)
	var created []string
	for i, title := range []string{"Climb", "Swim", "Cycle"} {
		a, ok := jane.store.Create(ctx, domain.ActivityDraft{
			Title: title, Category: "sport", City: "Oslo", Venue: "Park",
			Date: base.Add(time.Duration(i) * 24 * time.Hour),
		})
		require.True(t, ok)
		created = append(created, a.ID)
	}

	bob.store.List(ctx)
	require.Equal(t, created[:2], idsOf(bob.store))
	p, ok := bob.store.Pagination()
	require.True(t, ok)
	require.Equal(t, 3, p.TotalItems)

	require.True(t, bob.store.LoadNextPage(ctx))
	require.Equal(t, created, idsOf(bob.store))
	require.False(t, bob.store.LoadNextPage(ctx))

	selected, ok := bob.store.LoadOne(ctx, created[0])
	require.True(t, ok)
	require.False(t, selected.IsGoing)
	require.Equal(t, "jane", selected.Host.Username)

	require.True(t, bob.store.ToggleAttendance(ctx))
	selected, _ = bob.store.Selected()
	require.True(t, selected.IsGoing)

	require.NoError(t, bob.store.SetPredicate(ctx, query.KeyIsGoing, time.Time{}))
	require.Equal(t, []string{created[0]}, idsOf(bob.store))
	going, _ := bob.store.Registry().Get(created[0])
	require.True(t, going.IsGoing)

	n, err := bob.follow.ToggleFollowing(ctx, "jane")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	cached, _ := bob.store.Registry().Get(created[0])
	require.True(t, cached.Host.Following)

	// A fresh fetch agrees with the locally propagated follow state.
	fresh := newSession(t, srv, "bob")
	remoteView, ok := fresh.store.LoadOne(ctx, created[0])
	require.True(t, ok)
	require.Equal(t, cached.Host.Following, remoteView.Host.Following)
	require.Equal(t, cached.Host.FollowersCount, remoteView.Host.FollowersCount)
}

func TestHostEditsCancelsAndDeletes(t *testing.T) {
	srv, repo := newServer(t)
	ctx := context.Background()
	jane := newSession(t, srv, "jane")

	a, ok := jane.store.Create(ctx, domain.ActivityDraft{
		Title: "Climb", Category: "sport", City: "Oslo", Venue: "Wall",
		Date: time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC),
	})
	require.True(t, ok)
	require.True(t, a.IsHost)

	venue := "Crag"
	require.True(t, jane.store.Update(ctx, domain.ActivityPatch{ID: a.ID, Venue: &venue}))
	stored, err := repo.Get("jane", a.ID)
	require.NoError(t, err)
	require.Equal(t, "Crag", stored.Venue)
	require.Equal(t, "Climb", stored.Title)

	require.True(t, jane.store.ToggleCancellation(ctx))
	stored, _ = repo.Get("jane", a.ID)
	require.True(t, stored.IsCancelled)
	cached, _ := jane.store.Registry().Get(a.ID)
	require.True(t, cached.IsCancelled)

	require.True(t, jane.store.Delete(ctx, a.ID))
	_, err = repo.Get("jane", a.ID)
	require.ErrorIs(t, err, devapi.ErrActivityNotFound)

	require.False(t, jane.store.Delete(ctx, a.ID))
	require.Zero(t, jane.store.Registry().Len())
}

func TestNonHostUpdateLeavesCache(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()
	jane := newSession(t, srv, "jane")
	bob := newSession(t, srv, "bob")

	a, ok := jane.store.Create(ctx, domain.ActivityDraft{
		Title: "Climb", Category: "sport", City: "Oslo", Venue: "Wall",
		Date: time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC),
	})
	require.True(t, ok)

	_, ok = bob.store.LoadOne(ctx, a.ID)
	require.True(t, ok)
	title := "Hijacked"
	require.False(t, bob.store.Update(ctx, domain.ActivityPatch{ID: a.ID, Title: &title}))

	cached, _ := bob.store.Registry().Get(a.ID)
	require.Equal(t, "Climb", cached.Title)
	require.False(t, bob.store.Submitting())
}
