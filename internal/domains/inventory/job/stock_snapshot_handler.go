package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	catalogRepo "library-lending/internal/domains/catalog/repository"
	"library-lending/internal/domains/inventory/model"
	repo "library-lending/internal/domains/inventory/repository"
	"library-lending/internal/infrastructure/queue"
	"library-lending/internal/shared"
	"library-lending/pkg/cache"
	"library-lending/pkg/logger"
)

// StockSnapshotHandler copies stock counters into Redis for availability reads.
type StockSnapshotHandler struct {
	repo    repo.RepositoryInterface
	catalog catalogRepo.RepositoryInterface
	cache   cache.Cache
	ttl     time.Duration
	now     shared.Clock
}

func NewStockSnapshotHandler(
	repo repo.RepositoryInterface,
	catalog catalogRepo.RepositoryInterface,
	cache cache.Cache,
	ttl time.Duration,
	clock shared.Clock,
) *StockSnapshotHandler {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &StockSnapshotHandler{repo: repo, catalog: catalog, cache: cache, ttl: ttl, now: clock}
}

// ProcessTask refreshes one title, or every title when the payload has no id.
// Storage errors are returned so asynq retries; a bad payload is skipped.
func (h *StockSnapshotHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload shared.StockSnapshotPayload
	if err := queue.UnmarshalTask(t, &payload); err != nil {
		logger.Error("StockSnapshot: invalid payload", err)
		return err
	}

	if payload.TitleID == "" {
		return h.syncAll(ctx)
	}

	titleID, err := uuid.Parse(payload.TitleID)
	if err != nil {
		return fmt.Errorf("StockSnapshot: bad title id %q: %v: %w", payload.TitleID, err, asynq.SkipRetry)
	}

	stock, err := h.repo.GetStock(ctx, titleID)
	if err != nil {
		if model.IsTitleNotFoundError(err) {
			return fmt.Errorf("StockSnapshot: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("StockSnapshot: read stock: %w", err)
	}

	return h.write(ctx, titleID, stock)
}

func (h *StockSnapshotHandler) syncAll(ctx context.Context) error {
	levels, err := h.catalog.ListStockLevels(ctx)
	if err != nil {
		return fmt.Errorf("StockSnapshot: list stock levels: %w", err)
	}

	// Drops snapshots of titles that no longer exist; readers fall back to storage on a miss.
	if err := h.cache.DeletePattern(ctx, model.SnapshotKeyPattern); err != nil {
		return fmt.Errorf("StockSnapshot: clear snapshots: %w", err)
	}

	for _, level := range levels {
		if err := h.write(ctx, level.TitleID, level.Stock); err != nil {
			return err
		}
	}

	logger.Info("StockSnapshot: full sync done", map[string]interface{}{
		"titles": len(levels),
	})
	return nil
}

func (h *StockSnapshotHandler) write(ctx context.Context, titleID uuid.UUID, stock int) error {
	snap := model.StockSnapshot{TitleID: titleID, Stock: stock, SyncedAt: h.now()}
	if err := h.cache.Set(ctx, model.SnapshotKey(titleID), snap, h.ttl); err != nil {
		return fmt.Errorf("StockSnapshot: cache write: %w", err)
	}

	logger.Debug("StockSnapshot: cache updated for " + titleID.String())
	return nil
}
