package job

import (
	"context"
	"fmt"
	"time"

	inventory "library-lending/internal/domains/inventory/service"
	invModel "library-lending/internal/domains/inventory/model"
	"library-lending/internal/domains/lending/model"
	"library-lending/internal/domains/lending/repository"
	"library-lending/internal/infrastructure/queue"
	"library-lending/internal/shared"
	"library-lending/pkg/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ReconcileHandler settles the copy behind a loan whose stock movement may be missing.
// A returned loan gets its release. A loan that was never created gets its orphaned
// reservation released. An active loan keeps its copy.
// Release is idempotent per loan, so a task that runs twice moves stock once.
type ReconcileHandler struct {
	loans     repository.RepositoryInterface
	inventory inventory.ServiceInterface
}

func NewReconcileHandler(loans repository.RepositoryInterface, inventory inventory.ServiceInterface) *ReconcileHandler {
	return &ReconcileHandler{loans: loans, inventory: inventory}
}

func (h *ReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload shared.ReconcileReservationPayload
	if err := queue.UnmarshalTask(t, &payload); err != nil {
		logger.Error("Reconcile: invalid payload", err)
		return err
	}

	loanID, err := uuid.Parse(payload.LoanID)
	if err != nil {
		return fmt.Errorf("Reconcile: bad loan id %q: %v: %w", payload.LoanID, err, asynq.SkipRetry)
	}

	loan, err := h.loans.GetByID(ctx, loanID)
	if err != nil {
		if model.IsNotFoundError(err) {
			return h.releaseOrphan(ctx, loanID, payload.DetectedAt)
		}
		return fmt.Errorf("Reconcile: load loan: %w", err)
	}

	// Only a returned loan owes the shelf a copy.
	if loan.IsActive() {
		logger.Warn("Reconcile: loan is still active, nothing to release", map[string]interface{}{
			"loan_id": loan.ID.String(),
		})
		return nil
	}

	return h.release(ctx, loan.TitleID, loan.ID, payload.DetectedAt)
}

// releaseOrphan handles a borrow that reserved a copy but never stored its loan.
func (h *ReconcileHandler) releaseOrphan(ctx context.Context, loanID uuid.UUID, detectedAt time.Time) error {
	movements, err := h.inventory.Movements(ctx, loanID)
	if err != nil {
		return fmt.Errorf("Reconcile: load movements: %w", err)
	}

	titleID, held := invModel.OutstandingReservation(movements)
	if !held {
		logger.Info("Reconcile: no loan and no outstanding reservation", map[string]interface{}{
			"loan_id":   loanID.String(),
			"movements": len(movements),
		})
		return nil
	}

	return h.release(ctx, titleID, loanID, detectedAt)
}

func (h *ReconcileHandler) release(ctx context.Context, titleID, loanID uuid.UUID, detectedAt time.Time) error {
	change, err := h.inventory.Release(ctx, titleID, loanID)
	if err != nil {
		if invModel.IsTitleNotFoundError(err) {
			return fmt.Errorf("Reconcile: %v: %w", err, asynq.SkipRetry)
		}
		logger.ErrorWith("Reconcile: release failed, will retry", err, map[string]interface{}{
			"loan_id":  loanID.String(),
			"title_id": titleID.String(),
		})
		return err
	}

	logger.Info("Reconcile: reservation released", map[string]interface{}{
		"event":           "reservation_reconciled",
		"loan_id":         loanID.String(),
		"title_id":        titleID.String(),
		"stock_after":     change.StockAfter,
		"already_applied": change.AlreadyApplied,
		"detected_at":     detectedAt,
	})
	return nil
}
