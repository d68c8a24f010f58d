package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"library-lending/internal/config"
	"library-lending/pkg/cache"
	"library-lending/pkg/container"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHealthCheck_ReportsDegraded_WhenDatabaseIsMissing(t *testing.T) {
	// arrange
	gin.SetMode(gin.TestMode)
	appCtx := &container.Container{
		Config: &config.Config{App: config.AppConfig{Version: "test"}},
		Cache:  cache.NewMemoryCache(),
	}
	r := gin.New()
	r.GET("/health", healthCheckHandler(appCtx))

	// act
	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	})

	// assert
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"disconnected"`)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}
