package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{
		JWTSecret: "testservlet",
	}
	mw := NewMiddleware(cfg, zerolog.Nop())
	caller := domain.Caller{UserID: uuid.New(), Email: "test@example.com"}

	tests := []struct {
		name           string
		cookieValue    string
		authorization  string
		expectedStatus int
	}{
		{
			name:           "No Token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Cookie",
			cookieValue:    "invalid",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Valid Cookie",
			cookieValue:    generateTestToken(t, cfg.JWTSecret, caller, time.Now().Add(5*time.Minute)),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Valid Bearer",
			authorization:  "Bearer " + generateTestToken(t, cfg.JWTSecret, caller, time.Now().Add(5*time.Minute)),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Expired Bearer",
			authorization:  "Bearer " + generateTestToken(t, cfg.JWTSecret, caller, time.Now().Add(-time.Minute)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Secret",
			authorization:  "Bearer " + generateTestToken(t, "other", caller, time.Now().Add(5*time.Minute)),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/links/search", nil)
			if tt.cookieValue != "" {
				req.AddCookie(&http.Cookie{Name: authCookieName, Value: tt.cookieValue})
			}
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}

			var got domain.Caller
			rr := httptest.NewRecorder()
			handler := mw.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = CallerFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, caller.UserID, got.UserID)
				assert.Equal(t, caller.Email, got.Email)
			}
		})
	}
}

func TestRequireSuperuser(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret"}
	mw := NewMiddleware(cfg, zerolog.Nop())
	handler := mw.AuthMiddleware(mw.RequireSuperuser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	for _, superuser := range []bool{false, true} {
		caller := domain.Caller{UserID: uuid.New(), Email: "ops@example.com", IsSuperuser: superuser}
		req := httptest.NewRequest("POST", "/api/v1/admin/sweep", nil)
		req.Header.Set("Authorization", "Bearer "+generateTestToken(t, cfg.JWTSecret, caller, time.Now().Add(time.Minute)))
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		if superuser {
			assert.Equal(t, http.StatusOK, rr.Code)
		} else {
			assert.Equal(t, http.StatusForbidden, rr.Code)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("secret")
	caller := domain.Caller{UserID: UserIDForEmail("Admin@Example.com"), Email: "Admin@Example.com", IsSuperuser: true}

	token, err := IssueToken(secret, caller, time.Now().Add(time.Hour))
	require.NoError(t, err)

	got, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, caller, got)

	assert.Equal(t, UserIDForEmail("admin@example.com"), caller.UserID)
	assert.NotEqual(t, UserIDForEmail("someone@example.com"), caller.UserID)
}

func generateTestToken(t *testing.T, secret string, caller domain.Caller, expiresAt time.Time) string {
	t.Helper()
	token, err := IssueToken([]byte(secret), caller, expiresAt)
	require.NoError(t, err)
	return token
}
