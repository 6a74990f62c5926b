package devapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"example.com/activitysync/internal/domain"
	"example.com/activitysync/internal/identity"
)

// AuthConfig holds the bearer token verification parameters.
type AuthConfig struct {
	Secret string
	Issuer string
}

var (
	// ErrMissingToken is returned when the Authorization header is absent.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken wraps parsing and validation errors.
	ErrInvalidToken = errors.New("invalid bearer token")
)

type contextKey string

const callerKey contextKey = "devapi-caller"

// WithCaller stores the authenticated user on the context.
func WithCaller(ctx context.Context, caller domain.Identity) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext retrieves the user stored by WithCaller.
func CallerFromContext(ctx context.Context) (domain.Identity, bool) {
	caller, ok := ctx.Value(callerKey).(domain.Identity)
	return caller, ok
}

// ParseToken validates an HS256 token and returns the user it names.
func ParseToken(token string, cfg AuthConfig) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return domain.Identity{}, ErrInvalidToken
	}

	username, _ := claims[identity.ClaimUsername].(string)
	if username == "" {
		username, _ = claims.GetSubject()
	}
	if username == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing username claim", ErrInvalidToken)
	}
	displayName, _ := claims[identity.ClaimDisplayName].(string)
	image, _ := claims[identity.ClaimImage].(string)
	return domain.Identity{Username: username, DisplayName: displayName, Image: image}, nil
}

// IssueToken signs a development token for user valid for ttl.
func IssueToken(cfg AuthConfig, user domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":                     user.Username,
		identity.ClaimUsername:    user.Username,
		identity.ClaimDisplayName: user.DisplayName,
		"iat":                     now.Unix(),
		"exp":                     now.Add(ttl).Unix(),
	}
	if user.Image != "" {
		claims[identity.ClaimImage] = user.Image
	}
	if cfg.Issuer != "" {
		claims["iss"] = cfg.Issuer
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Skipper allows callers to bypass authentication for specific requests.
type Skipper func(r *http.Request) bool

// Middleware enforces bearer-token authentication on incoming requests.
type Middleware struct {
	Config  AuthConfig
	Skipper Skipper
}

// NewMiddleware constructs a middleware that lets health and metrics probes through.
func NewMiddleware(cfg AuthConfig) Middleware {
	skipper := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}
	return Middleware{Config: cfg, Skipper: skipper}
}

// Wrap attaches authentication handling to an http.Handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		caller, err := m.parseRequest(r)
		if err != nil {
			writeProblem(w, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func (m Middleware) parseRequest(r *http.Request) (domain.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return domain.Identity{}, ErrMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return domain.Identity{}, ErrInvalidToken
	}
	return ParseToken(header[len("Bearer "):], m.Config)
}
