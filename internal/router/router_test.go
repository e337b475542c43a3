package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/chairside/internal/handler/catalog"
	"github.com/jwalitptl/chairside/internal/handler/health"
	"github.com/jwalitptl/chairside/internal/middleware"
	"github.com/jwalitptl/chairside/pkg/auth"
)

func setupRouter(t *testing.T) (*gin.Engine, *auth.JWTVerifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	verifier := auth.NewJWTVerifier("test-secret", "chairside")
	reg := prometheus.NewRegistry()
	r := NewRouter(
		middleware.NewAuthMiddleware(verifier),
		[]Handler{health.NewHandler(nil, reg)},
		[]Handler{catalog.NewHandler(catalog.Catalog{Services: []string{"Cleaning"}})},
		RouterConfig{Registerer: reg},
	)
	r.Setup()
	return r.Engine(), verifier
}

func TestRouter_PublicRoutes(t *testing.T) {
	engine, _ := setupRouter(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "1.0", w.Header().Get("X-API-Version"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestRouter_ProtectedRoutes(t *testing.T) {
	engine, verifier := setupRouter(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/services", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := verifier.Issue(auth.Identity{TenantID: "t1"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","data":["Cleaning"]}`, w.Body.String())
}

func TestRouter_UnknownRoute(t *testing.T) {
	engine, _ := setupRouter(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
