// Package identity exposes the signed-in user to the activity cache.
package identity

import (
	"sync"

	"example.com/activitysync/internal/domain"
)

// Provider reports the current user, if any.
type Provider interface {
	CurrentUser() (domain.Identity, bool)
}

// Static is a Provider holding an explicitly set user.
type Static struct {
	mu   sync.RWMutex
	user domain.Identity
	ok   bool
}

// NewStatic returns a Static signed in as user.
func NewStatic(user domain.Identity) *Static {
	return &Static{user: user, ok: user.Username != ""}
}

// CurrentUser implements Provider.
func (s *Static) CurrentUser() (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.ok
}

// Set signs in as user.
func (s *Static) Set(user domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.ok = user.Username != ""
}

// Clear signs out.
func (s *Static) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = domain.Identity{}
	s.ok = false
}
