package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/honesta/lostfound-api/internal/auth"
	"github.com/honesta/lostfound-api/internal/config"
	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/honesta/lostfound-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(addr, path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = addr
	return req
}

func asUser(req *http.Request, id uuid.UUID) *http.Request {
	return req.WithContext(auth.WithUserContext(req.Context(), &auth.UserContext{
		UserID: id,
		Role:   domain.RoleStudent,
	}))
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{Enabled: false, RequestsPerMinute: 5}, zap.NewNop())
	calls := 0
	h := rl.LimitByIP(okHandler(&calls))

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestFrom("192.168.1.1:12345", "/test"))
		assert.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 50, calls)
}

func TestRateLimiter_Whitelists(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 2,
		WhitelistIPs:      []string{"127.0.0.1"},
		WhitelistPaths:    []string{"/health", "/status/*"},
	}, zap.NewNop())

	tests := []struct {
		name string
		addr string
		path string
	}{
		{"whitelisted ip", "127.0.0.1:5555", "/api/v1/items"},
		{"exact path", "10.0.0.1:5555", "/health"},
		{"path prefix", "10.0.0.2:5555", "/status/deep"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			h := rl.LimitByIP(okHandler(&calls))
			for i := 0; i < 10; i++ {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, requestFrom(tt.addr, tt.path))
				assert.Equal(t, http.StatusOK, w.Code)
			}
			assert.Equal(t, 10, calls)
		})
	}
}

func TestRateLimiter_LimitExceeded(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 3}, zap.NewNop())
	calls := 0
	h := rl.LimitByIP(okHandler(&calls))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestFrom("192.168.1.1:12345", "/test"))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("192.168.1.1:12345", "/test"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body domain.APIError
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, domain.ErrorTypeTooManyRequests, body.Type)
	assert.Positive(t, body.RetryAfterSeconds)

	// A different client has its own budget
	w = httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("192.168.1.2:12345", "/test"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, calls)
}

func TestRateLimiter_ForwardedHeaders(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1}, zap.NewNop())
	calls := 0
	h := rl.LimitByIP(okHandler(&calls))

	first := requestFrom("10.0.0.1:1", "/test")
	first.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, first)
	require.Equal(t, http.StatusOK, w.Code)

	// Same client behind a different proxy hop
	second := requestFrom("10.0.0.9:1", "/test")
	second.Header.Set("X-Forwarded-For", "203.0.113.7")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, second)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	other := requestFrom("10.0.0.1:1", "/test")
	other.Header.Set("X-Real-IP", "198.51.100.4")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, other)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_AuthenticatedUsersKeyedByID(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:               true,
		RequestsPerMinute:     1,
		RequestsPerMinuteAuth: 2,
	}, zap.NewNop())
	calls := 0
	h := rl.Limit(okHandler(&calls))

	alice, bob := uuid.New(), uuid.New()
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, asUser(requestFrom("10.1.1.1:1", "/test"), alice))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, asUser(requestFrom("10.1.1.1:1", "/test"), alice))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Shared campus NAT does not throttle another account
	w = httptest.NewRecorder()
	h.ServeHTTP(w, asUser(requestFrom("10.1.1.1:1", "/test"), bob))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_LimitClaims(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:               true,
		RequestsPerMinute:     100,
		RequestsPerMinuteAuth: 100,
		ClaimsPerMinute:       2,
	}, zap.NewNop())
	calls := 0
	h := rl.LimitClaims(okHandler(&calls))

	user := uuid.New()
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, asUser(requestFrom("10.2.2.2:1", "/api/v1/items/x/claims"), user))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	t.Run("zero disables the claim budget", func(t *testing.T) {
		unlimited := middleware.NewRateLimiter(&config.RateLimitConfig{Enabled: true, ClaimsPerMinute: 0}, zap.NewNop())
		n := 0
		h := unlimited.LimitClaims(okHandler(&n))
		for i := 0; i < 10; i++ {
			h.ServeHTTP(httptest.NewRecorder(), asUser(requestFrom("10.2.2.2:1", "/claims"), user))
		}
		assert.Equal(t, 10, n)
	})
}
