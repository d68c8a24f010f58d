package main

import (
	"context"
	"time"

	"library-lending/internal/config"
	"library-lending/internal/shared"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// maxReconcileDelay caps the backoff between reconcile attempts.
const maxReconcileDelay = time.Hour

type asynqServer struct {
	*asynq.Server
}

func setupAsynqServer(redis asynq.RedisClientOpt, cfg *config.Config, handlers *HandlerRegistry) *asynqServer {
	mux := asynq.NewServeMux()
	handlers.RegisterHandlers(mux)

	srv := asynq.NewServer(
		redis,
		asynq.Config{
			Queues: map[string]int{
				shared.QueueCritical: 6,
				shared.QueueDefault:  3,
				shared.QueueLow:      1,
			},
			Concurrency:    cfg.Worker.Concurrency,
			RetryDelayFunc: retryDelay(cfg.Lending.ReconcileRetryBase),
			ErrorHandler:   asynq.ErrorHandlerFunc(reportTaskError),
		},
	)

	go func() {
		log.Info().Int("concurrency", cfg.Worker.Concurrency).Msg("[Worker] starting")
		if err := srv.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("[Worker] failed")
		}
	}()

	return &asynqServer{Server: srv}
}

// retryDelay backs reconcile tasks off exponentially from base; other tasks keep asynq's default.
func retryDelay(base time.Duration) asynq.RetryDelayFunc {
	return func(n int, err error, task *asynq.Task) time.Duration {
		if task.Type() != shared.TypeReconcileReservation || base <= 0 {
			return asynq.DefaultRetryDelayFunc(n, err, task)
		}
		delay := base
		for i := 0; i < n && delay < maxReconcileDelay; i++ {
			delay *= 2
		}
		return min(delay, maxReconcileDelay)
	}
}

func reportTaskError(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	event := log.Warn()
	if retried >= maxRetry {
		event = log.Error()
	}
	event.Err(err).Str("type", task.Type()).Int("retried", retried).Int("max_retry", maxRetry).Msg("[Asynq] task failed")

	if task.Type() == shared.TypeReconcileReservation && retried >= maxRetry {
		log.Error().
			Str("event", "reservation_leak_unresolved").
			RawJSON("payload", task.Payload()).
			Msg("reconcile retries exhausted, copy must be restored by an operator")
	}
}

func (s *asynqServer) Shutdown() {
	log.Info().Msg("[Worker] shutting down")
	s.Server.Shutdown()
	log.Info().Msg("[Worker] stopped")
}
