package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"library-lending/pkg/container"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HealthChecker performs startup health checks
type HealthChecker struct {
	c *container.Container
}

// startServices runs the startup checks and exposes /health and /ready.
func startServices(c *container.Container, cfg *Config) (*http.Server, error) {
	log.Info().Msg("library lending worker starting")

	checker := &HealthChecker{c: c}
	if err := checker.checkAll(); err != nil {
		return nil, err
	}

	return startHealthCheckServer(cfg.HealthAddr, checker), nil
}

func (h *HealthChecker) checkAll() error {
	checks := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"Redis Connection", h.c.Redis.HealthCheck},
		{"PostgreSQL", h.c.DB.HealthCheck},
	}

	for _, check := range checks {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := check.fn(ctx)
		cancel()

		if err != nil {
			log.Error().Err(err).Str("check", check.name).Msg("health check failed")
			return fmt.Errorf("%s failed: %w", check.name, err)
		}
		log.Info().Str("check", check.name).Msg("health check ok")
	}

	return nil
}

func startHealthCheckServer(addr string, checker *HealthChecker) *http.Server {
	router := gin.New()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "service": "library-lending-worker"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if err := checker.checkAll(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "NOT_READY", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "READY"})
	})

	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("[Health] starting health check server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("[Health] failed to start")
		}
	}()
	return srv
}
