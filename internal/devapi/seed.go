package devapi

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/activitysync/internal/domain"
)

// tokenTTL is how long tokens issued for seeded users stay valid.
const tokenTTL = 24 * time.Hour

// SeedUsers are the demo accounts created by Seed.
var SeedUsers = []domain.Identity{
	{Username: "bob", DisplayName: "Bob"},
	{Username: "jane", DisplayName: "Jane"},
	{Username: "tom", DisplayName: "Tom"},
}

var seedActivities = []struct {
	title, category, city, venue string
	offset                       time.Duration
	host                         int
	attendees                    []int
}{
	{"Past Activity 1", "drinks", "London", "Pub", -60 * 24 * time.Hour, 0, []int{1}},
	{"Past Activity 2", "culture", "Paris", "Louvre", -30 * 24 * time.Hour, 1, []int{0, 2}},
	{"Future Activity 1", "music", "London", "O2 Arena", 7 * 24 * time.Hour, 2, []int{1}},
	{"Future Activity 2", "food", "London", "Borough Market", 14 * 24 * time.Hour, 0, []int{1, 2}},
	{"Future Activity 3", "drinks", "London", "Another pub", 14*24*time.Hour + 3*time.Hour, 1, nil},
	{"Future Activity 4", "travel", "Berlin", "Brandenburg Gate", 30 * 24 * time.Hour, 2, []int{0}},
}

// Seed fills repo with demo users and activities dated around now.
func Seed(repo *InMemoryRepository, now time.Time) error {
	for _, u := range SeedUsers {
		repo.EnsureUser(u)
	}
	for _, s := range seedActivities {
		draft := domain.ActivityDraft{
			ID:          uuid.NewString(),
			Title:       s.title,
			Description: "Activity " + s.offset.String() + " from now",
			Category:    s.category,
			City:        s.city,
			Venue:       s.venue,
			Date:        now.Add(s.offset).Truncate(time.Minute),
		}
		if err := repo.Create(SeedUsers[s.host], draft); err != nil {
			return fmt.Errorf("seed %q: %w", s.title, err)
		}
		for _, i := range s.attendees {
			if err := repo.Attend(SeedUsers[i], draft.ID); err != nil {
				return fmt.Errorf("seed attendee %s: %w", SeedUsers[i].Username, err)
			}
		}
	}
	return nil
}

// SeedTokens issues a bearer token for every seeded user.
func SeedTokens(cfg AuthConfig) (map[string]string, error) {
	tokens := make(map[string]string, len(SeedUsers))
	for _, u := range SeedUsers {
		token, err := IssueToken(cfg, u, tokenTTL)
		if err != nil {
			return nil, err
		}
		tokens[u.Username] = token
	}
	return tokens, nil
}
