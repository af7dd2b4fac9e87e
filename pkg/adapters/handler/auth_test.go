package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/wadjakorntonsri/shortlink/pkg/config"
)

func newFakeGoogle(t *testing.T, email string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","email":"` + email + `","verified_email":true}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestAuthHandler(cfg *config.Config, google *httptest.Server) *AuthHandler {
	h := NewAuthHandler(cfg, zerolog.Nop())
	h.oauthConfig.Endpoint = oauth2.Endpoint{
		AuthURL:  google.URL + "/auth",
		TokenURL: google.URL + "/token",
	}
	h.userInfoURL = google.URL + "/userinfo"
	return h
}

func callback(h *AuthHandler, state, cookieState string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/auth/google/callback?state="+state+"&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: cookieState})
	rr := httptest.NewRecorder()
	h.Callback(rr, req)
	return rr
}

func authCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == authCookieName {
			return c
		}
	}
	return nil
}

func TestAuthCallback_IssuesToken(t *testing.T) {
	google := newFakeGoogle(t, "boss@example.com")
	cfg := &config.Config{
		JWTSecret:   "secret",
		FrontendURL: "http://localhost/dashboard",
		AdminEmails: []string{"Boss@example.com"},
	}
	h := newTestAuthHandler(cfg, google)

	rr := callback(h, "xyz", "xyz")
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code, rr.Body.String())
	assert.Equal(t, "http://localhost/dashboard", rr.Header().Get("Location"))

	cookie := authCookie(rr)
	require.NotNil(t, cookie)
	caller, err := ParseToken([]byte("secret"), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "boss@example.com", caller.Email)
	assert.Equal(t, UserIDForEmail("boss@example.com"), caller.UserID)
	assert.True(t, caller.IsSuperuser)
}

func TestAuthCallback_Rejections(t *testing.T) {
	google := newFakeGoogle(t, "stranger@example.com")
	cfg := &config.Config{
		JWTSecret:     "secret",
		AllowedEmails: []string{"friend@example.com"},
	}
	h := newTestAuthHandler(cfg, google)

	rr := callback(h, "xyz", "other")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, authCookie(rr))

	rr = callback(h, "xyz", "xyz")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Nil(t, authCookie(rr))
}

func TestLoginSetsState(t *testing.T) {
	h := NewAuthHandler(&config.Config{GoogleClientID: "client"}, zerolog.Nop())
	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest("GET", "/auth/google/login", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	var state string
	for _, c := range rr.Result().Cookies() {
		if c.Name == "oauthstate" {
			state = c.Value
		}
	}
	require.NotEmpty(t, state)
	assert.Contains(t, rr.Header().Get("Location"), "state=")
}
