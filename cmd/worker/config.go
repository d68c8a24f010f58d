package main

import (
	"library-lending/internal/shared/utils"

	"github.com/rs/zerolog/log"
)

// Config holds the worker-only settings. Everything shared with the API comes from the container.
type Config struct {
	HealthAddr string
}

func loadConfig() *Config {
	cfg := &Config{
		HealthAddr: utils.GetEnvVariable("WORKER_HEALTH_ADDR", ":9999"),
	}

	log.Info().Str("health_addr", cfg.HealthAddr).Msg("[Config] worker loaded")
	return cfg
}
