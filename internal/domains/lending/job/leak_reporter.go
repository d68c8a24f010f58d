package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library-lending/internal/domains/lending/model"
	"library-lending/internal/infrastructure/queue"
	"library-lending/internal/shared"
	"library-lending/pkg/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// QueueLeakReporter turns a suspected reservation leak into a reconcile task on the critical queue.
// The task id is derived from the loan, so a leak is queued at most once.
type QueueLeakReporter struct {
	queue    queue.Enqueuer
	maxRetry int
	now      shared.Clock
}

func NewLeakReporter(enqueuer queue.Enqueuer, maxRetry int, clock shared.Clock) *QueueLeakReporter {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &QueueLeakReporter{queue: enqueuer, maxRetry: maxRetry, now: clock}
}

// reconcileDelay leaves time for an in-flight commit to land before the loan is inspected.
const reconcileDelay = 30 * time.Second

func reconcileTaskID(loanID uuid.UUID) string {
	return "reconcile:" + loanID.String()
}

func (r *QueueLeakReporter) ReportLeak(ctx context.Context, leak *model.ReservationLeakError, borrowerID uuid.UUID) error {
	payload := shared.ReconcileReservationPayload{
		LoanID:     leak.LoanID.String(),
		TitleID:    leak.TitleID.String(),
		BorrowerID: borrowerID.String(),
		DetectedAt: r.now(),
	}
	if leak.Cause != nil {
		payload.Reason = leak.Cause.Error()
	}

	task, err := queue.NewTask(shared.TypeReconcileReservation, payload)
	if err != nil {
		return err
	}

	info, err := r.queue.EnqueueContext(ctx, task,
		asynq.Queue(shared.QueueCritical),
		asynq.MaxRetry(r.maxRetry),
		asynq.TaskID(reconcileTaskID(leak.LoanID)),
		asynq.ProcessIn(reconcileDelay),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("enqueue reconcile task: %w", err)
	}

	logger.Info("reservation leak queued for reconciliation", map[string]interface{}{
		"event":   "reservation_leak_queued",
		"loan_id": payload.LoanID,
		"task_id": info.ID,
		"queue":   info.Queue,
	})
	return nil
}
