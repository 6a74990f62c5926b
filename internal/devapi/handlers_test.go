package devapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/activitysync/internal/domain"
	"example.com/activitysync/internal/remote"
)

var testAuth = AuthConfig{Secret: "test-secret", Issuer: "activitysync.test"}

func newTestServer(t *testing.T) (*httptest.Server, *InMemoryRepository) {
	t.Helper()
	repo := NewInMemoryRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(NewHandler(repo, logger), NewMiddleware(testAuth), nil))
	t.Cleanup(srv.Close)
	return srv, repo
}

func token(t *testing.T, username string) string {
	t.Helper()
	tok, err := IssueToken(testAuth, domain.Identity{Username: username, DisplayName: username}, time.Hour)
	require.NoError(t, err)
	return tok
}

func call(t *testing.T, srv *httptest.Server, method, path, user string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, user))
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func seedActivity(t *testing.T, repo *InMemoryRepository, id, host string, date time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(domain.Identity{Username: host}, domain.ActivityDraft{
		ID: id, Title: "t-" + id, Category: "drinks", City: "London", Venue: "Pub", Date: date,
	}))
}

func TestHealthzSkipsAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := call(t, srv, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := call(t, srv, http.MethodGet, "/activities", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var p remote.Problem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	require.Equal(t, "unauthorized", p.Type)
}

func TestWrongIssuerIsRejected(t *testing.T) {
	_, err := ParseToken(func() string {
		tok, err := IssueToken(AuthConfig{Secret: testAuth.Secret, Issuer: "other"}, domain.Identity{Username: "bob"}, time.Hour)
		require.NoError(t, err)
		return tok
	}(), testAuth)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestListPaginatesAndFilters(t *testing.T) {
	srv, repo := newTestServer(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	seedActivity(t, repo, "c", "jane", base.Add(48*time.Hour))
	seedActivity(t, repo, "a", "bob", base)
	seedActivity(t, repo, "b", "jane", base.Add(24*time.Hour))

	resp := call(t, srv, http.MethodGet, "/activities?pageNumber=1&pageSize=2&all=true", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []remote.ActivityView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 2)
	require.Equal(t, "a", views[0].ID)
	require.Equal(t, "b", views[1].ID)

	var page remote.PaginationView
	require.NoError(t, json.Unmarshal([]byte(resp.Header.Get(remote.PaginationHeader)), &page))
	require.Equal(t, remote.PaginationView{CurrentPage: 1, ItemsPerPage: 2, TotalItems: 3, TotalPages: 2}, page)

	resp = call(t, srv, http.MethodGet, "/activities?pageNumber=1&pageSize=10&isHost=true", "jane", nil)
	views = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 2)

	resp = call(t, srv, http.MethodGet, "/activities?pageNumber=1&pageSize=10&startDate=2026-05-02T00:00:00.000Z", "bob", nil)
	views = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Equal(t, []string{"b", "c"}, []string{views[0].ID, views[1].ID})
}

func TestListRejectsBadPaging(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := call(t, srv, http.MethodGet, "/activities?pageNumber=zero", "bob", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var p remote.Problem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	require.Contains(t, p.Errors, "pageNumber")
}

func TestCreateHonoursClientID(t *testing.T) {
	srv, repo := newTestServer(t)
	form := remote.ActivityForm{
		ID: "client-id", Title: "Run", Category: "sport", City: "Oslo", Venue: "Park",
		Date: "2026-06-01T08:00:00Z",
	}
	resp := call(t, srv, http.MethodPost, "/activities", "bob", form)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	a, err := repo.Get("bob", "client-id")
	require.NoError(t, err)
	require.Equal(t, "bob", a.HostUsername)
	require.Len(t, a.Attendees, 1)

	resp = call(t, srv, http.MethodPost, "/activities", "bob", form)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateValidationListsFields(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := call(t, srv, http.MethodPost, "/activities", "bob", remote.ActivityForm{ID: "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	failure := remote.Classify(resp.StatusCode, raw)
	require.Equal(t, remote.CategoryValidation, failure.Category)
	require.Contains(t, failure.FieldErrors, "title")
	require.Contains(t, failure.FieldErrors, "date")
}

func TestUpdateAndDeleteRequireHost(t *testing.T) {
	srv, repo := newTestServer(t)
	seedActivity(t, repo, "a", "jane", time.Now())

	title := "Renamed"
	resp := call(t, srv, http.MethodPut, "/activities/a", "bob", remote.ActivityPatchForm{ID: "a", Title: &title})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = call(t, srv, http.MethodPut, "/activities/a", "jane", remote.ActivityPatchForm{ID: "a", Title: &title})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	a, _ := repo.Get("jane", "a")
	require.Equal(t, "Renamed", a.Title)
	require.Equal(t, "Pub", a.Venue)

	resp = call(t, srv, http.MethodDelete, "/activities/a", "bob", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = call(t, srv, http.MethodDelete, "/activities/a", "jane", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = call(t, srv, http.MethodGet, "/activities/a", "jane", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAttendTogglesAttendanceOrCancellation(t *testing.T) {
	srv, repo := newTestServer(t)
	seedActivity(t, repo, "a", "jane", time.Now())

	call(t, srv, http.MethodPost, "/activities/a/attend", "bob", struct{}{})
	a, _ := repo.Get("bob", "a")
	require.True(t, a.HasAttendee("bob"))

	call(t, srv, http.MethodPost, "/activities/a/attend", "bob", struct{}{})
	a, _ = repo.Get("bob", "a")
	require.False(t, a.HasAttendee("bob"))

	call(t, srv, http.MethodPost, "/activities/a/attend", "jane", struct{}{})
	a, _ = repo.Get("jane", "a")
	require.True(t, a.IsCancelled)
	require.True(t, a.HasAttendee("jane"))
}

func TestFollowIsRelativeToCaller(t *testing.T) {
	srv, repo := newTestServer(t)
	seedActivity(t, repo, "a", "jane", time.Now())

	resp := call(t, srv, http.MethodPost, "/follow/jane", "bob", struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	a, _ := repo.Get("bob", "a")
	require.True(t, a.Attendees[0].Following)
	require.Equal(t, 1, a.Attendees[0].FollowersCount)

	a, _ = repo.Get("tom", "a")
	require.False(t, a.Attendees[0].Following)

	resp = call(t, srv, http.MethodPost, "/follow/jane", "jane", struct{}{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = call(t, srv, http.MethodPost, "/follow/ghost", "bob", struct{}{})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSeed(t *testing.T) {
	repo := NewInMemoryRepository()
	require.NoError(t, Seed(repo, time.Now()))

	items, page := repo.List("bob", ListFilter{PageSize: MaxPageSize})
	require.Len(t, items, len(seedActivities))
	require.Equal(t, len(seedActivities), page.TotalItems)

	tokens, err := SeedTokens(testAuth)
	require.NoError(t, err)
	caller, err := ParseToken(tokens["jane"], testAuth)
	require.NoError(t, err)
	require.Equal(t, "jane", caller.Username)
}
