// Package auth issues and verifies the HS256 access tokens accepted by the
// migration endpoints.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lherron/hmp/internal/domain"
)

// Issuer is the "iss" claim of every token.
const Issuer = "hmp"

// CookieName is the cookie that carries the access token for browser clients.
const CookieName = "access_token"

var (
	ErrMissingToken = errors.New("missing access token")
	ErrInvalidToken = errors.New("invalid access token")
)

// Claims identifies the caller of a request.
type Claims struct {
	UserID         string      `json:"userId"`
	OrganizationID string      `json:"organizationId"`
	Role           domain.Role `json:"role"`
	Email          string      `json:"email"`
	HotelScopeID   *string     `json:"hotelScopeId,omitempty"`
	jwt.RegisteredClaims
}

// CanImport reports whether the caller may run an import.
func (c *Claims) CanImport() bool {
	return c.Role.CanImport()
}

// Signer issues and parses access tokens with a shared secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner returns a signer. A zero ttl issues tokens valid for one hour.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// SetClock replaces the time source. Intended for tests.
func (s *Signer) SetClock(now func() time.Time) {
	s.now = now
}

// Issue signs a token for the user.
func (s *Signer) Issue(u *domain.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:         u.ID,
		OrganizationID: u.OrganizationID,
		Role:           u.Role,
		Email:          u.Email,
		HotelScopeID:   u.HotelScopeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns its claims. Every failure wraps
// ErrInvalidToken.
func (s *Signer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.OrganizationID == "" {
		return nil, fmt.Errorf("%w: missing identity claims", ErrInvalidToken)
	}
	return claims, nil
}

// ExtractToken reads the access token from the Authorization header, falling
// back to the access token cookie.
func ExtractToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", ErrMissingToken
		}
		return strings.TrimSpace(token), nil
	}
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", ErrMissingToken
}

type contextKey struct{}

// WithClaims attaches claims to a context.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the claims attached by Middleware.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(*Claims)
	return c, ok
}

// Middleware authenticates every request. Failures are reported through
// onError with ErrMissingToken or an error wrapping ErrInvalidToken.
func (s *Signer) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := ExtractToken(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			claims, err := s.Parse(token)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
