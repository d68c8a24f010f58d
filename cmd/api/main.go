package main

import (
	"library-lending/internal/shared/utils"
	"library-lending/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// ========================================
	// LOAD ENVIRONMENT VARIABLES
	// ========================================
	// .env is for local development; deployments use real environment variables.
	envErr := godotenv.Load()

	env := utils.GetEnvVariable("APP_ENV", "development")
	logger.Init(env)

	if envErr != nil {
		log.Info().Msg("no .env file found, using system environment variables")
	}

	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	Serve()
}
