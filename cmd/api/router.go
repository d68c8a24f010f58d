package main

import (
	"context"
	"net/http"
	"time"

	"library-lending/internal/shared/middleware"
	"library-lending/pkg/container"

	"github.com/gin-gonic/gin"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.ClientIPMiddleware(),
		middleware.Logger(),
		middleware.CORS(c.Config.App.CORSOrigins),
	)

	var mutating []gin.HandlerFunc
	if c.Config.RateLimit.Enabled {
		mutating = append(mutating, middleware.RateLimit(c.RateLimiter))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c))

		setupInventoryRoutes(v1, c)
		c.LoanHandler.RegisterRoutes(v1, mutating...)
	}

	return router
}

// ========================================
// INVENTORY ROUTES
// ========================================
func setupInventoryRoutes(v1 *gin.RouterGroup, c *container.Container) {
	titles := v1.Group("/titles")
	{
		titles.GET("/:id/availability", c.InventoryHandler.GetAvailability)
	}
}

// ========================================
// HEALTH CHECK HANDLER
// ========================================
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "ok"

		dbStatus := "ok"
		if appCtx.DB == nil || appCtx.DB.Pool == nil {
			dbStatus = "disconnected"
			status = "degraded"
		} else if err := appCtx.DB.HealthCheck(ctx); err != nil {
			dbStatus = "error: " + err.Error()
			status = "degraded"
		}

		// The cache only serves availability snapshots, so it never degrades the service.
		cacheStatus := "ok"
		if err := appCtx.Cache.Ping(ctx); err != nil {
			cacheStatus = "error: " + err.Error()
		}

		dbStats := gin.H{}
		if appCtx.DB != nil {
			if stats, err := appCtx.DB.Stats(); err == nil {
				dbStats = gin.H{
					"acquired":        stats.AcquiredConns,
					"idle":            stats.IdleConns,
					"max":             stats.MaxConns,
					"utilization_pct": stats.Utilization(),
				}
			}
		}

		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
			"services": gin.H{
				"database": dbStatus,
				"cache":    cacheStatus,
				"pool":     dbStats,
			},
		})
	}
}
