package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/honesta/lostfound-api/internal/auth"
	"github.com/honesta/lostfound-api/internal/config"
	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret:          "test-secret",
		Issuer:             "honesta-test",
		TokenTTL:           60,
		StudentEmailDomain: "cmrithyderabad.edu.in",
		FacultyEmailDomain: "cmritonline.ac.in",
		MinPhoneLength:     10,
	}
}

func testUser() *domain.User {
	return &domain.User{
		BaseModel:   domain.BaseModel{ID: uuid.New()},
		CampusID:    "22R01A0501",
		FullName:    "Asha Rao",
		PhoneNumber: "9876543210",
		Email:       "22r01a0501@cmrithyderabad.edu.in",
		Role:        domain.RoleStudent,
	}
}

func TestTokenManager_IssueAndValidate(t *testing.T) {
	tm := auth.NewTokenManager(testAuthConfig())
	user := testUser()

	token, expiresAt, err := tm.Issue(user)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	userCtx, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userCtx.UserID)
	assert.Equal(t, user.CampusID, userCtx.CampusID)
	assert.Equal(t, user.FullName, userCtx.FullName)
	assert.Equal(t, user.Email, userCtx.Email)
	assert.Equal(t, domain.RoleStudent, userCtx.Role)
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	other := testAuthConfig()
	other.JWTSecret = "another-secret"

	token, _, err := auth.NewTokenManager(other).Issue(testUser())
	require.NoError(t, err)

	_, err = auth.NewTokenManager(testAuthConfig()).ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	cfg := testAuthConfig()
	user := testUser()

	claims := auth.Claims{
		CampusID: user.CampusID,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	_, err = auth.NewTokenManager(cfg).ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestTokenManager_RejectsWrongIssuer(t *testing.T) {
	other := testAuthConfig()
	other.Issuer = "someone-else"

	token, _, err := auth.NewTokenManager(other).Issue(testUser())
	require.NoError(t, err)

	_, err = auth.NewTokenManager(testAuthConfig()).ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestMiddleware_Authenticate(t *testing.T) {
	tm := auth.NewTokenManager(testAuthConfig())
	mw := auth.NewMiddleware(tm, zap.NewNop())
	user := testUser()
	token, _, err := tm.Issue(user)
	require.NoError(t, err)

	var seen *auth.UserContext
	protected := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusNoContent},
		{"case-insensitive scheme", "bearer " + token, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			protected.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, user.ID, seen.UserID)
			} else {
				assert.Nil(t, seen)
				assert.Contains(t, rr.Body.String(), domain.ErrorTypeUnauthorized)
			}
		})
	}
}

func TestMiddleware_OptionalAuthenticate(t *testing.T) {
	tm := auth.NewTokenManager(testAuthConfig())
	mw := auth.NewMiddleware(tm, zap.NewNop())

	var authenticated bool
	h := mw.OptionalAuthenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, authenticated = auth.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer broken")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, authenticated)

	token, _, err := tm.Issue(testUser())
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, authenticated)
}

func TestMiddleware_RequireRole(t *testing.T) {
	mw := auth.NewMiddleware(auth.NewTokenManager(testAuthConfig()), zap.NewNop())
	h := mw.RequireRole(domain.RoleFaculty)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	student := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleStudent}
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(auth.WithUserContext(t.Context(), student))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	faculty := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleFaculty}
	req = httptest.NewRequest(http.MethodGet, "/", nil).WithContext(auth.WithUserContext(t.Context(), faculty))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
