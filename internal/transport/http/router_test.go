package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domaindescribe "caption-server-go/internal/domain/describe"
	"caption-server-go/internal/platform/observability"
	testhelpers "caption-server-go/internal/platform/testing"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testhelpers.SetupTestConfig(t)
	router, err := Build(Options{Config: cfg, Logger: testhelpers.SetupTestLogger(t)})
	require.NoError(t, err)
	return router
}

func TestBuildRequiresConfig(t *testing.T) {
	_, err := Build(Options{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDPropagation(t *testing.T) {
	router := newTestRouter(t)
	var seen string
	router.API.GET("/echo-id", func(c *gin.Context) {
		seen = domaindescribe.RequestIDFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	t.Run("incoming id is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/echo-id", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		router.Engine.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
		assert.Equal(t, "abc-123", seen)
	})

	t.Run("garbage id is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/echo-id", nil)
		req.Header.Set(RequestIDHeader, "has space")
		rec := httptest.NewRecorder()
		router.Engine.ServeHTTP(rec, req)

		got := rec.Header().Get(RequestIDHeader)
		assert.NotEqual(t, "has space", got)
		assert.Len(t, got, 36)
		assert.Equal(t, got, seen)
	})
}

func TestUnknownRouteAndMethod(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not Found"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"detail":"Method Not Allowed"}`, rec.Body.String())
}

func TestPanicRecovery(t *testing.T) {
	router := newTestRouter(t)
	router.API.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Internal server error"}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	router := newTestRouter(t)

	t.Run("allowed origin preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/health", nil)
		req.Header.Set("Origin", "https://yourfrontend.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		router.Engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://yourfrontend.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("foreign origin rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		router.Engine.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestCORSConfigWildcard(t *testing.T) {
	cfg := testhelpers.SetupTestConfig(t)
	cfg.HTTP.CORS.AllowOrigins = []string{"*"}

	out := corsConfig(cfg.HTTP.CORS)
	assert.True(t, out.AllowAllOrigins)
	assert.Empty(t, out.AllowOrigins)
	assert.False(t, out.AllowCredentials)
}

func TestMetricsAndDocsRoutes(t *testing.T) {
	shutdown, err := observability.Setup(context.Background(), observability.Config{Enabled: true, Metrics: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	rec = httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "caption_http_requests_total")

	rec = httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/describe-url")

	rec = httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/openapi.json")
}

func TestMetricsRouteDisabled(t *testing.T) {
	cfg := testhelpers.SetupTestConfig(t)
	cfg.Observability.Metrics = false
	cfg.Web.Docs = false
	router, err := Build(Options{Config: cfg})
	require.NoError(t, err)

	for _, path := range []string{"/metrics", "/openapi.json"} {
		rec := httptest.NewRecorder()
		router.Engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}
