package main

import (
	"library-lending/internal/config"
	"library-lending/internal/infrastructure/queue"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

type asynqScheduler struct {
	*queue.Scheduler
}

func setupScheduler(redis asynq.RedisClientOpt, cfg *config.Config) *asynqScheduler {
	scheduler := queue.NewScheduler(redis, cfg.Worker, cfg.Lending)

	if err := scheduler.RegisterJobs(); err != nil {
		log.Fatal().Err(err).Msg("[Scheduler] failed to register jobs")
	}

	go func() {
		log.Info().Msg("[Scheduler] starting")
		if err := scheduler.Start(); err != nil {
			log.Fatal().Err(err).Msg("[Scheduler] failed")
		}
	}()

	return &asynqScheduler{Scheduler: scheduler}
}

func (s *asynqScheduler) Shutdown() {
	log.Info().Msg("[Scheduler] shutting down")
	s.Scheduler.Shutdown()
	log.Info().Msg("[Scheduler] stopped")
}
