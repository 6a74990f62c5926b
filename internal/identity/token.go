package identity

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"example.com/activitysync/internal/domain"
)

// ErrInvalidToken wraps token parsing failures.
var ErrInvalidToken = errors.New("invalid session token")

// Claim names read from the session token.
const (
	ClaimUsername    = "username"
	ClaimDisplayName = "display_name"
	ClaimImage       = "image"
)

// TokenProvider derives the current user from a session JWT. The signature is
// not checked here: the API verifies every request, the client only reads claims.
type TokenProvider struct {
	mu    sync.RWMutex
	token string
	user  domain.Identity
	exp   time.Time
	now   func() time.Time
}

// NewTokenProvider returns a provider holding token. An empty token means signed out.
func NewTokenProvider(token string) (*TokenProvider, error) {
	p := &TokenProvider{now: time.Now}
	if err := p.SetToken(token); err != nil {
		return nil, err
	}
	return p, nil
}

// SetToken swaps the session. An empty token signs out.
func (p *TokenProvider) SetToken(token string) error {
	token = strings.TrimSpace(token)
	var (
		user domain.Identity
		exp  time.Time
	)
	if token != "" {
		var err error
		user, exp, err = parseClaims(token)
		if err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
	p.user = user
	p.exp = exp
	return nil
}

// Token returns the raw bearer token.
func (p *TokenProvider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// CurrentUser implements Provider. An expired token reports no user.
func (p *TokenProvider) CurrentUser() (domain.Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.token == "" {
		return domain.Identity{}, false
	}
	if !p.exp.IsZero() && !p.now().Before(p.exp) {
		return domain.Identity{}, false
	}
	return p.user, true
}

func parseClaims(token string) (domain.Identity, time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return domain.Identity{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	username, _ := claims[ClaimUsername].(string)
	if username == "" {
		username, _ = claims.GetSubject()
	}
	if username == "" {
		return domain.Identity{}, time.Time{}, fmt.Errorf("%w: missing username claim", ErrInvalidToken)
	}
	displayName, _ := claims[ClaimDisplayName].(string)
	image, _ := claims[ClaimImage].(string)

	var exp time.Time
	if e, err := claims.GetExpirationTime(); err != nil {
		return domain.Identity{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	} else if e != nil {
		exp = e.Time
	}

	return domain.Identity{Username: username, DisplayName: displayName, Image: image}, exp, nil
}
