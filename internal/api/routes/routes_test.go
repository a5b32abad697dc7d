package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/config"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

func setupRouter(t *testing.T) (*gin.Engine, *App) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	router := gin.New()
	cfg := config.Config{
		Environment:       "development",
		JWTSecret:         "test-secret",
		TokenTTL:          time.Hour,
		QuoteValidityDays: 30,
	}
	app, err := Register(router, db, cfg, Dependencies{Gatherer: prometheus.NewRegistry()})
	require.NoError(t, err)
	return router, app
}

func login(t *testing.T, router *gin.Engine, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func do(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRegister_RoutesPresent(t *testing.T) {
	router, _ := setupRouter(t)

	paths := map[string]bool{}
	for _, r := range router.Routes() {
		paths[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /api/health",
		"GET /metrics",
		"GET /ws",
		"POST /api/auth/login",
		"GET /api/notifications",
		"PATCH /api/notifications/:id/read",
		"GET /api/notifications/rules",
		"POST /api/notifications/providers/test",
		"POST /api/templates/:id/preview",
		"GET /api/quotations/:id/print",
		"PUT /api/settings/smtp",
	} {
		assert.True(t, paths[want], "missing route %s", want)
	}
}

func TestRegister_Health(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}

func TestRegister_AuthAndRoles(t *testing.T) {
	router, app := setupRouter(t)

	_, err := app.Auth.Register("admin@crane.test", "password123", "Admin", "")
	require.NoError(t, err)
	_, err = app.Auth.Register("sales@crane.test", "password123", "Sales", models.RoleSales)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/api/notifications", "").Code)

	adminToken := login(t, router, "admin@crane.test", "password123")
	salesToken := login(t, router, "sales@crane.test", "password123")

	w := do(router, http.MethodGet, "/api/notifications", salesToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)

	assert.Equal(t, http.StatusForbidden, do(router, http.MethodGet, "/api/settings", salesToken).Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/settings", adminToken).Code)

	w = do(router, http.MethodGet, "/api/notifications/rules", adminToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lead_assigned")
}

func TestRegister_Metrics(t *testing.T) {
	router, _ := setupRouter(t)

	w := do(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
