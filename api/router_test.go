package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shopee-scraper/config"
	"github.com/use-agent/shopee-scraper/models"
)

type fakeScraper struct {
	mu    sync.Mutex
	resp  *models.ScrapeResponse
	stats models.SessionStats
	urls  []string
}

func (f *fakeScraper) Scrape(_ context.Context, req *models.ScrapeRequest) *models.ScrapeResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, req.URL)
	return f.resp
}

func (f *fakeScraper) Stats() models.SessionStats { return f.stats }

func (f *fakeScraper) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

func successResponse() *models.ScrapeResponse {
	return &models.ScrapeResponse{
		Success: true,
		Data:    &models.Product{Title: models.StringPtr("Product A")},
		Message: models.MessageScraped,
	}
}

func failure(code, msg string) *models.ScrapeResponse {
	return models.NewErrorResponse(models.NewScrapeError(code, msg, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
}

func newTestRouter(t *testing.T, sc *fakeScraper, cfg *config.Config) *gin.Engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewRouter(ctx, sc, cfg, time.Now())
}

func post(r http.Handler, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) models.ScrapeResponse {
	t.Helper()
	var resp models.ScrapeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestScrapeSuccess(t *testing.T) {
	sc := &fakeScraper{resp: successResponse()}
	r := newTestRouter(t, sc, testConfig())

	w := post(r, "/api/v1/scrape", `{"url":"https://shopee.tw/a-i.1.2"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "Product A", *resp.Data.Title)
	assert.Equal(t, []string{"https://shopee.tw/a-i.1.2"}, sc.urls)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestLegacyScrapeRoute(t *testing.T) {
	sc := &fakeScraper{resp: successResponse()}
	r := newTestRouter(t, sc, testConfig())

	w := post(r, "/scrape", `{"url":"https://shopee.tw/a-i.1.2"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, sc.calls())
}

func TestScrapeBadBody(t *testing.T) {
	sc := &fakeScraper{resp: successResponse()}
	r := newTestRouter(t, sc, testConfig())

	for _, body := range []string{``, `not json`, `{"url": 5}`} {
		w := post(r, "/api/v1/scrape", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		resp := decode(t, w)
		assert.False(t, resp.Success)
		assert.Nil(t, resp.Data)
		assert.Equal(t, models.ErrCodeInvalidInput, resp.Error.Code)
		assert.True(t, strings.HasPrefix(resp.Message, "Invalid input:"), resp.Message)
	}
	assert.Zero(t, sc.calls())
}

func TestScrapeEmptyURLIsClassifiedByScraper(t *testing.T) {
	sc := &fakeScraper{resp: failure(models.ErrCodeInvalidURL, "url is empty")}
	r := newTestRouter(t, sc, testConfig())

	for _, body := range []string{`{}`, `{"url":""}`} {
		w := post(r, "/api/v1/scrape", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, models.ErrCodeInvalidURL, decode(t, w).Error.Code)
	}
	assert.Equal(t, []string{"", ""}, sc.urls)
}

func TestScrapeFailureStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{models.ErrCodeInvalidURL, http.StatusBadRequest},
		{models.ErrCodeCapacityExceeded, http.StatusServiceUnavailable},
		{models.ErrCodeProxy, http.StatusBadGateway},
		{models.ErrCodeNetwork, http.StatusBadGateway},
		{models.ErrCodeCaptchaFailed, http.StatusBadGateway},
		{models.ErrCodeExtraction, http.StatusBadGateway},
		{models.ErrCodeNavigationTimeout, http.StatusGatewayTimeout},
		{models.ErrCodeCaptchaTimeout, http.StatusGatewayTimeout},
		{models.ErrCodeCanceled, 499},
		{models.ErrCodeBrowserLaunch, http.StatusInternalServerError},
		{models.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			sc := &fakeScraper{resp: failure(tt.code, "detail")}
			r := newTestRouter(t, sc, testConfig())

			w := post(r, "/api/v1/scrape", `{"url":"https://shopee.tw/a"}`)

			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Data)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, models.Label(tt.code)+": detail", resp.Message)

			if tt.code == models.ErrCodeCapacityExceeded {
				assert.Equal(t, "30", w.Header().Get("Retry-After"))
			} else {
				assert.Empty(t, w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"k1", "k2"}}
	sc := &fakeScraper{resp: successResponse()}
	r := newTestRouter(t, sc, cfg)
	body := `{"url":"https://shopee.tw/a"}`

	w := post(r, "/api/v1/scrape", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrCodeUnauthorized, decode(t, w).Error.Code)

	w = post(r, "/api/v1/scrape", body, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/scrape", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "legacy route is protected too")

	w = post(r, "/api/v1/scrape", body, "X-API-Key", "k2")
	assert.Equal(t, http.StatusOK, w.Code)

	w = post(r, "/api/v1/scrape", body, "Authorization", "Bearer k1")
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 2, sc.calls())
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
	sc := &fakeScraper{resp: successResponse()}
	r := newTestRouter(t, sc, cfg)
	body := `{"url":"https://shopee.tw/a"}`

	assert.Equal(t, http.StatusOK, post(r, "/api/v1/scrape", body).Code)
	assert.Equal(t, http.StatusOK, post(r, "/scrape", body).Code)

	w := post(r, "/api/v1/scrape", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, models.ErrCodeRateLimited, decode(t, w).Error.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, 2, sc.calls())
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		stats  models.SessionStats
		status string
	}{
		{"idle", models.SessionStats{MaxSessions: 5}, "healthy"},
		{"at threshold", models.SessionStats{MaxSessions: 5, ActiveSessions: 4}, "healthy"},
		{"above threshold", models.SessionStats{MaxSessions: 5, ActiveSessions: 5}, "degraded"},
		{"single session busy", models.SessionStats{MaxSessions: 1, ActiveSessions: 1}, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"k"}}
			r := newTestRouter(t, &fakeScraper{stats: tt.stats}, cfg)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code, "health needs no API key")
			var resp models.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.stats, resp.SessionStats)
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := newTestRouter(t, &fakeScraper{resp: successResponse()}, testConfig())

	w := post(r, "/api/v1/scrape", `{"url":"https://shopee.tw/a"}`, "X-Request-ID", "abc-123")

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}
