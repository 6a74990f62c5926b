package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"example.com/activitysync/internal/domain"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestStaticProvider(t *testing.T) {
	s := NewStatic(domain.Identity{Username: "bob"})
	user, ok := s.CurrentUser()
	require.True(t, ok)
	require.Equal(t, "bob", user.Username)

	s.Clear()
	_, ok = s.CurrentUser()
	require.False(t, ok)

	s.Set(domain.Identity{Username: "jane"})
	user, ok = s.CurrentUser()
	require.True(t, ok)
	require.Equal(t, "jane", user.Username)
}

func TestTokenProviderReadsClaims(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":          "user-1",
		"username":     "bob",
		"display_name": "Bob",
		"exp":          time.Now().Add(time.Hour).Unix(),
	})

	p, err := NewTokenProvider(token)
	require.NoError(t, err)
	require.Equal(t, token, p.Token())

	user, ok := p.CurrentUser()
	require.True(t, ok)
	require.Equal(t, domain.Identity{Username: "bob", DisplayName: "Bob"}, user)
}

func TestTokenProviderFallsBackToSubject(t *testing.T) {
	p, err := NewTokenProvider(signToken(t, jwt.MapClaims{"sub": "jane"}))
	require.NoError(t, err)

	user, ok := p.CurrentUser()
	require.True(t, ok)
	require.Equal(t, "jane", user.Username)
}

func TestTokenProviderExpiry(t *testing.T) {
	exp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p, err := NewTokenProvider(signToken(t, jwt.MapClaims{"username": "bob", "exp": exp.Unix()}))
	require.NoError(t, err)

	p.now = func() time.Time { return exp.Add(-time.Minute) }
	_, ok := p.CurrentUser()
	require.True(t, ok)

	p.now = func() time.Time { return exp }
	_, ok = p.CurrentUser()
	require.False(t, ok)
}

func TestTokenProviderSignedOut(t *testing.T) {
	p, err := NewTokenProvider("")
	require.NoError(t, err)
	_, ok := p.CurrentUser()
	require.False(t, ok)
	require.Empty(t, p.Token())
}

func TestTokenProviderRejectsGarbage(t *testing.T) {
	_, err := NewTokenProvider("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenProvider(signToken(t, jwt.MapClaims{"display_name": "nobody"}))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestSetTokenSwapsSession(t *testing.T) {
	p, err := NewTokenProvider(signToken(t, jwt.MapClaims{"username": "bob"}))
	require.NoError(t, err)

	require.NoError(t, p.SetToken(signToken(t, jwt.MapClaims{"username": "jane"})))
	user, _ := p.CurrentUser()
	require.Equal(t, "jane", user.Username)

	require.Error(t, p.SetToken("garbage"))
	user, _ = p.CurrentUser()
	require.Equal(t, "jane", user.Username)
}
