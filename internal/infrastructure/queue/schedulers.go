package queue

import (
	"time"

	"library-lending/internal/config"
	"library-lending/internal/shared"
	"library-lending/pkg/logger"

	"github.com/hibiken/asynq"
)

type Scheduler struct {
	scheduler *asynq.Scheduler
	worker    config.WorkerConfig
	lending   config.LendingConfig
}

func NewScheduler(redis asynq.RedisClientOpt, worker config.WorkerConfig, lending config.LendingConfig) *Scheduler {
	scheduler := asynq.NewScheduler(
		redis,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
		},
	)

	return &Scheduler{
		scheduler: scheduler,
		worker:    worker,
		lending:   lending,
	}
}

func (s *Scheduler) RegisterJobs() error {
	if err := s.registerOverdueSweepJob(); err != nil {
		return err
	}

	if err := s.registerStockSnapshotJob(); err != nil {
		return err
	}

	return nil
}

// ================================================
// JOB 1: Overdue sweep (daily by default)
// ================================================
func (s *Scheduler) registerOverdueSweepJob() error {
	task, err := NewTask(shared.TypeOverdueSweep, shared.OverdueSweepPayload{
		DailyFine: s.lending.DailyFine.StringFixed(2),
	})
	if err != nil {
		return err
	}

	_, err = s.scheduler.Register(
		s.worker.OverdueSweepCron,
		task,
		asynq.Queue(shared.QueueDefault),
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
	)
	if err != nil {
		logger.Error("Failed to register OverdueSweep job", err)
		return err
	}

	logger.Info("Registered OverdueSweep", map[string]interface{}{"cron": s.worker.OverdueSweepCron})
	return nil
}

// ================================================
// JOB 2: Full stock snapshot refresh
// ================================================
// Per-title refreshes follow each reserve/release; this catches titles whose
// counters were edited outside the lending flow.
func (s *Scheduler) registerStockSnapshotJob() error {
	task, err := NewTask(shared.TypeSyncStockSnapshot, shared.StockSnapshotPayload{})
	if err != nil {
		return err
	}

	_, err = s.scheduler.Register(
		s.worker.StockSnapshotCron,
		task,
		asynq.Queue(shared.QueueLow),
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
	)
	if err != nil {
		logger.Error("Failed to register StockSnapshot job", err)
		return err
	}

	logger.Info("Registered StockSnapshot", map[string]interface{}{"cron": s.worker.StockSnapshotCron})
	return nil
}

func (s *Scheduler) Start() error {
	return s.scheduler.Run()
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
}
