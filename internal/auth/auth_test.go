package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/hmp/internal/domain"
)

func testUser() *domain.User {
	scope := "hotel-1"
	return &domain.User{
		ID:             "user-1",
		OrganizationID: "org-1",
		Email:          "manager@example.com",
		Role:           domain.RoleManager,
		HotelScopeID:   &scope,
	}
}

func TestSigner_IssueAndParse(t *testing.T) {
	s := NewSigner("secret", time.Minute)
	token, err := s.Issue(testUser())
	require.NoError(t, err)

	claims, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.Equal(t, domain.RoleManager, claims.Role)
	require.NotNil(t, claims.HotelScopeID)
	assert.Equal(t, "hotel-1", *claims.HotelScopeID)
	assert.True(t, claims.CanImport())
}

func TestSigner_RejectsBadTokens(t *testing.T) {
	s := NewSigner("secret", time.Minute)
	token, err := s.Issue(testUser())
	require.NoError(t, err)

	_, err = NewSigner("other", time.Minute).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	_, err = s.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewSigner("secret", time.Minute)
	expired.SetClock(func() time.Time { return time.Now().Add(-time.Hour) })
	old, err := expired.Issue(testUser())
	require.NoError(t, err)
	_, err = s.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(r *http.Request)
		want    string
		wantErr error
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "abc", nil},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer abc") }, "abc", nil},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: "xyz"}) }, "xyz", nil},
		{"basic auth", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, "", ErrMissingToken},
		{"none", func(r *http.Request) {}, "", ErrMissingToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			got, err := ExtractToken(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMiddleware(t *testing.T) {
	s := NewSigner("secret", time.Minute)
	var failure error
	handler := s.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
		failure = err
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(claims.UserID))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, errors.Is(failure, ErrMissingToken))

	token, err := s.Issue(testUser())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}
