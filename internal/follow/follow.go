// Package follow toggles the follow relation with an attendee and propagates
// the change into cached activities.
package follow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"example.com/activitysync/internal/observability"
	"example.com/activitysync/internal/remote"
)

const opFollow = "follow"

// ErrEmptyUsername is returned when no attendee is named.
var ErrEmptyUsername = errors.New("follow: username is required")

// Propagator applies a confirmed follow toggle to locally cached data.
type Propagator interface {
	OnFollowingChanged(username string) int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger overrides the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service flips the follow relation remotely, then locally.
type Service struct {
	profiles   remote.Profiles
	propagator Propagator
	logger     *slog.Logger
}

// NewService constructs a Service.
func NewService(profiles remote.Profiles, propagator Propagator, opts ...Option) *Service {
	s := &Service{profiles: profiles, propagator: propagator, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ToggleFollowing follows or unfollows username. Cached attendees change only
// after the remote confirms; the number of touched activities is returned.
func (s *Service) ToggleFollowing(ctx context.Context, username string) (int, error) {
	if username == "" {
		return 0, ErrEmptyUsername
	}
	if err := s.profiles.UpdateFollowing(ctx, username); err != nil {
		category := remote.CategoryOf(err)
		observability.RecordFailure(opFollow, string(category))
		s.logger.ErrorContext(ctx, "toggle following failed", "username", username, "category", string(category), "error", err)
		return 0, fmt.Errorf("toggle following %s: %w", username, err)
	}

	n := s.propagator.OnFollowingChanged(username)
	observability.RecordOperation(opFollow, observability.ResultApplied)
	s.logger.DebugContext(ctx, "following toggled", "username", username, "activities", n)
	return n, nil
}
