package job

import (
	"context"
	"fmt"
	"time"

	"library-lending/internal/domains/lending/model"
	"library-lending/internal/infrastructure/queue"
	"library-lending/internal/shared"
	"library-lending/pkg/logger"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// OverdueLister is the part of the lending service the sweep reads from.
type OverdueLister interface {
	ListOverdue(ctx context.Context, ref time.Time, limit, offset int) ([]model.Loan, int, error)
}

// SweepResult summarises one overdue sweep.
type SweepResult struct {
	Overdue    int
	TotalFines decimal.Decimal
}

// OverdueSweepHandler logs every overdue loan with its fine as of the run time.
// Overdue is derived at read time, so the sweep reports and never writes.
type OverdueSweepHandler struct {
	loans       OverdueLister
	defaultFine decimal.Decimal
	now         shared.Clock
}

func NewOverdueSweepHandler(loans OverdueLister, defaultFine decimal.Decimal, clock shared.Clock) *OverdueSweepHandler {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &OverdueSweepHandler{loans: loans, defaultFine: defaultFine, now: clock}
}

func (h *OverdueSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload shared.OverdueSweepPayload
	if len(t.Payload()) > 0 {
		if err := queue.UnmarshalTask(t, &payload); err != nil {
			logger.Error("OverdueSweep: invalid payload", err)
			return err
		}
	}

	rate := h.defaultFine
	if payload.DailyFine != "" {
		parsed, err := decimal.NewFromString(payload.DailyFine)
		if err != nil || parsed.IsNegative() {
			return fmt.Errorf("OverdueSweep: bad daily fine %q: %w", payload.DailyFine, asynq.SkipRetry)
		}
		rate = parsed
	}

	_, err := h.Sweep(ctx, rate)
	return err
}

// Sweep pages through overdue loans at a single reference time.
func (h *OverdueSweepHandler) Sweep(ctx context.Context, dailyRate decimal.Decimal) (*SweepResult, error) {
	ref := h.now()
	result := &SweepResult{TotalFines: decimal.Zero}

	for offset := 0; ; {
		loans, total, err := h.loans.ListOverdue(ctx, ref, model.MaxListLimit, offset)
		if err != nil {
			return nil, fmt.Errorf("OverdueSweep: list overdue loans: %w", err)
		}

		for i := range loans {
			loan := &loans[i]
			fine, err := model.Fine(loan, ref, dailyRate)
			if err != nil {
				return nil, fmt.Errorf("OverdueSweep: %v: %w", err, asynq.SkipRetry)
			}
			result.Overdue++
			result.TotalFines = result.TotalFines.Add(fine)

			logger.Warn("loan overdue", map[string]interface{}{
				"event":        "loan_overdue",
				"loan_id":      loan.ID.String(),
				"borrower_id":  loan.BorrowerID.String(),
				"title_id":     loan.TitleID.String(),
				"due_at":       loan.DueAt,
				"days_overdue": model.DaysOverdue(loan, ref),
				"fine":         fine.StringFixed(2),
			})
		}

		offset += len(loans)
		if len(loans) == 0 || offset >= total {
			break
		}
	}

	logger.Info("OverdueSweep: done", map[string]interface{}{
		"overdue":     result.Overdue,
		"total_fines": result.TotalFines.StringFixed(2),
		"ref":         ref,
	})
	return result, nil
}
