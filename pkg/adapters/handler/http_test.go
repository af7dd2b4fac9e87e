package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/shortlink/pkg/adapters/cache"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/core/services"
)

type apiTest struct {
	t      *testing.T
	cfg    *config.Config
	router http.Handler
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()
	repo, err := sqlite.NewSQLiteRepository("file:" + filepath.Join(t.TempDir(), "links.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	cfg := &config.Config{
		JWTSecret:   "handler-test",
		BaseURL:     "http://sho.rt",
		FrontendURL: "http://sho.rt/dashboard",
	}
	mem := cache.NewMemoryCache(time.Minute)
	logger := zerolog.Nop()
	svc := services.NewLinkService(repo, mem, logger, services.LinkOptions{})
	sweeper := services.NewSweeper(repo, mem, logger, services.SweepOptions{})

	return &apiTest{t: t, cfg: cfg, router: NewRouter(cfg, svc, sweeper, logger)}
}

func (a *apiTest) token(caller domain.Caller) string {
	return generateTestToken(a.t, a.cfg.JWTSecret, caller, time.Now().Add(time.Hour))
}

func (a *apiTest) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

type linkBody struct {
	ShortCode   string `json:"short_code"`
	OriginalURL string `json:"original_url"`
	ShortURL    string `json:"short_url"`
	Clicks      int64  `json:"clicks"`
	IsCustom    bool   `json:"is_custom"`
	IsActive    bool   `json:"is_active"`
}

func TestLinkLifecycle(t *testing.T) {
	api := newAPITest(t)
	alice := domain.Caller{UserID: uuid.New(), Email: "alice@example.com"}
	bob := domain.Caller{UserID: uuid.New(), Email: "bob@example.com"}

	rr := api.do("POST", "/api/v1/links", map[string]string{
		"original_url": "https://example.com",
		"custom_alias": "custom",
		"project":      "launch",
	}, api.token(alice))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody[linkBody](t, rr)
	assert.Equal(t, "custom", created.ShortCode)
	assert.True(t, created.IsCustom)
	assert.Equal(t, "http://sho.rt/open/custom", created.ShortURL)

	rr = api.do("POST", "/api/v1/links", map[string]string{
		"original_url": "https://example.com",
		"custom_alias": "custom",
	}, api.token(alice))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), domain.ErrAliasTaken.Error())

	rr = api.do("GET", "/open/custom", nil, "")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://example.com", rr.Header().Get("Location"))

	rr = api.do("GET", "/api/v1/links/custom/stats", nil, api.token(alice))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decodeBody[linkBody](t, rr).Clicks)

	rr = api.do("GET", "/api/v1/links/custom/stats", nil, api.token(bob))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do("GET", "/api/v1/links/custom/stats", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = api.do("GET", "/api/v1/projects/launch/links", nil, api.token(alice))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]linkBody](t, rr), 1)

	rr = api.do("GET", "/api/v1/links", nil, api.token(alice))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]linkBody](t, rr), 1)

	rr = api.do("GET", "/api/v1/links", nil, api.token(bob))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())

	rr = api.do("PUT", "/api/v1/links/custom", map[string]interface{}{
		"short_code": "renamed",
		"is_active":  false,
	}, api.token(alice))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decodeBody[linkBody](t, rr)
	assert.Equal(t, "renamed", updated.ShortCode)
	assert.False(t, updated.IsActive)

	rr = api.do("GET", "/open/renamed", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do("DELETE", "/api/v1/links/renamed", nil, api.token(bob))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do("DELETE", "/api/v1/links/renamed", nil, api.token(alice))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = api.do("DELETE", "/api/v1/links/renamed", nil, api.token(alice))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateLink_RequestValidation(t *testing.T) {
	api := newAPITest(t)
	token := api.token(domain.Caller{UserID: uuid.New()})

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing url", map[string]string{}},
		{"bad url", map[string]string{"original_url": "example"}},
		{"alias too long", map[string]string{"original_url": "https://example.com", "custom_alias": strings.Repeat("a", 51)}},
		{"alias bad chars", map[string]string{"original_url": "https://example.com", "custom_alias": "no spaces"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do("POST", "/api/v1/links", tt.body, token)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), `"error"`)
		})
	}

	req := httptest.NewRequest("POST", "/api/v1/links", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	api.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPublicLinks(t *testing.T) {
	api := newAPITest(t)

	rr := api.do("POST", "/api/v1/public/links", map[string]string{
		"original_url": "https://example.com",
		"custom_alias": "mine",
	}, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do("POST", "/api/v1/public/links", map[string]string{"original_url": "https://example.com"}, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decodeBody[linkBody](t, rr)
	assert.Len(t, created.ShortCode, 6)

	rr = api.do("GET", "/open/"+created.ShortCode, nil, "")
	assert.Equal(t, http.StatusFound, rr.Code)
}

func TestSearch(t *testing.T) {
	api := newAPITest(t)
	alice := domain.Caller{UserID: uuid.New()}
	token := api.token(alice)

	rr := api.do("POST", "/api/v1/links", map[string]string{"original_url": "https://docs.example.com/guide"}, token)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = api.do("GET", "/api/v1/links/search?original_url=DOCS.example", nil, token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]linkBody](t, rr), 1)

	rr = api.do("GET", "/api/v1/links/search?original_url=nothing", nil, token)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do("GET", "/api/v1/links/search", nil, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminSweep(t *testing.T) {
	api := newAPITest(t)
	user := domain.Caller{UserID: uuid.New()}
	admin := domain.Caller{UserID: uuid.New(), IsSuperuser: true}

	rr := api.do("POST", "/api/v1/admin/sweep", nil, api.token(user))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do("POST", "/api/v1/admin/sweep", nil, api.token(admin))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]int{"archived": 0}, decodeBody[map[string]int](t, rr))

	rr = api.do("GET", "/api/v1/links/expired", nil, api.token(user))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	api := newAPITest(t)

	rr := api.do("GET", "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"ok"}`, rr.Body.String())

	rr = api.do("GET", "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_requests_total")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrAliasTaken, http.StatusBadRequest},
		{fmt.Errorf("%w: bad url", domain.ErrInvalidArgument), http.StatusBadRequest},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrQuotaExceeded, http.StatusForbidden},
		{domain.ErrExhaustedRetries, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: disk full", domain.ErrStorage), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
