package service

import (
	"context"
	"errors"
	"time"

	"library-lending/internal/domains/inventory/model"
	"library-lending/internal/domains/inventory/repository"
	"library-lending/internal/infrastructure/queue"
	"library-lending/internal/shared"
	"library-lending/pkg/cache"
	"library-lending/pkg/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Controller guards the stock counter. The counter is only ever changed through
// the repository's atomic Reserve/Release; the cache is a read-side convenience.
type Controller struct {
	repo        repository.RepositoryInterface
	cache       cache.Cache
	queue       queue.Enqueuer
	snapshotTTL time.Duration
	now         shared.Clock
}

func NewController(
	repo repository.RepositoryInterface,
	cache cache.Cache,
	enqueuer queue.Enqueuer,
	snapshotTTL time.Duration,
	clock shared.Clock,
) *Controller {
	if enqueuer == nil {
		enqueuer = queue.NopEnqueuer{}
	}
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Controller{
		repo:        repo,
		cache:       cache,
		queue:       enqueuer,
		snapshotTTL: snapshotTTL,
		now:         clock,
	}
}

func (c *Controller) Reserve(ctx context.Context, titleID, loanID uuid.UUID) (*model.StockChange, error) {
	change, err := c.repo.Reserve(ctx, titleID, loanID)
	if err != nil {
		return nil, err
	}
	c.afterChange(ctx, change)
	return change, nil
}

func (c *Controller) Release(ctx context.Context, titleID, loanID uuid.UUID) (*model.StockChange, error) {
	change, err := c.repo.Release(ctx, titleID, loanID)
	if err != nil {
		return nil, err
	}
	c.afterChange(ctx, change)
	return change, nil
}

func (c *Controller) Movements(ctx context.Context, loanID uuid.UUID) ([]model.Movement, error) {
	return c.repo.ListMovements(ctx, loanID)
}

func (c *Controller) Available(ctx context.Context, titleID uuid.UUID) (*model.StockSnapshot, error) {
	key := model.SnapshotKey(titleID)

	if c.cache != nil {
		var snap model.StockSnapshot
		found, err := c.cache.Get(ctx, key, &snap)
		if err != nil {
			logger.Error("inventory: snapshot cache read failed", err)
		} else if found {
			return &snap, nil
		}
	}

	stock, err := c.repo.GetStock(ctx, titleID)
	if err != nil {
		return nil, err
	}

	snap := &model.StockSnapshot{TitleID: titleID, Stock: stock, SyncedAt: c.now()}
	if c.cache != nil {
		if err := c.cache.Set(ctx, key, snap, c.snapshotTTL); err != nil {
			logger.Error("inventory: snapshot cache write failed", err)
		}
	}
	return snap, nil
}

// afterChange drops the cached snapshot and asks the worker to rebuild it.
// Both are best effort, the database stays the source of truth.
func (c *Controller) afterChange(ctx context.Context, change *model.StockChange) {
	if change.AlreadyApplied {
		return
	}

	if c.cache != nil {
		if err := c.cache.Delete(ctx, model.SnapshotKey(change.TitleID)); err != nil {
			logger.Error("inventory: snapshot invalidation failed", err)
		}
	}

	task, err := queue.NewTask(shared.TypeSyncStockSnapshot, shared.StockSnapshotPayload{TitleID: change.TitleID.String()})
	if err != nil {
		logger.Error("inventory: build sync task failed", err)
		return
	}
	if _, err := c.queue.EnqueueContext(ctx, task,
		asynq.Queue(shared.QueueLow),
		asynq.MaxRetry(3),
		asynq.Unique(30*time.Second),
	); err != nil && !isDuplicateTask(err) {
		logger.Error("inventory: enqueue sync task failed", err)
	}
}

func isDuplicateTask(err error) bool {
	return errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict)
}
