package service

import (
	"context"
	"fmt"
	"time"

	"library-lending/internal/domains/lending/model"
	memberModel "library-lending/internal/domains/member/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ListLoans pages loans matching filter and returns the total match count.
// The filter is validated, then normalized to default paging.
func (e *Engine) ListLoans(ctx context.Context, filter model.LoanFilter) ([]model.Loan, int, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}
	loans, total, err := e.loans.List(ctx, filter.Normalize())
	if err != nil {
		return nil, 0, storageError("list loans", err)
	}
	return loans, total, nil
}

// ListActive pages ACTIVE loans, newest first.
func (e *Engine) ListActive(ctx context.Context, limit, offset int) ([]model.Loan, int, error) {
	return e.ListLoans(ctx, model.LoanFilter{
		State:  model.StateActive,
		Limit:  limit,
		Offset: offset,
	})
}

// ListOverdue returns active loans whose due date is before ref, most overdue first.
func (e *Engine) ListOverdue(ctx context.Context, ref time.Time, limit, offset int) ([]model.Loan, int, error) {
	return e.ListLoans(ctx, model.LoanFilter{
		State:  model.StateOverdue,
		Ref:    ref,
		Sort:   model.SortDueAsc,
		Limit:  limit,
		Offset: offset,
	})
}

// ListDueBetween returns active loans due in [from, to].
func (e *Engine) ListDueBetween(ctx context.Context, from, to time.Time, limit, offset int) ([]model.Loan, int, error) {
	return e.ListLoans(ctx, model.LoanFilter{
		State:   model.StateActive,
		DueFrom: &from,
		DueTo:   &to,
		Sort:    model.SortDueAsc,
		Limit:   limit,
		Offset:  offset,
	})
}

// ListDueSoon returns active loans due in (ref, ref+window].
func (e *Engine) ListDueSoon(ctx context.Context, ref time.Time, window time.Duration, limit, offset int) ([]model.Loan, int, error) {
	if window <= 0 {
		return nil, 0, fmt.Errorf("%w: due-soon window must be positive", model.ErrInvalidInput)
	}
	until := ref.Add(window)
	return e.ListLoans(ctx, model.LoanFilter{
		State:    model.StateActive,
		DueAfter: &ref,
		DueTo:    &until,
		Sort:     model.SortDueAsc,
		Limit:    limit,
		Offset:   offset,
	})
}

// Stats aggregates loan counts at ref.
func (e *Engine) Stats(ctx context.Context, ref time.Time) (*model.LoanStats, error) {
	stats, err := e.loans.Stats(ctx, ref)
	if err != nil {
		return nil, storageError("loan stats", err)
	}
	return stats, nil
}

// LoanReport evaluates one loan at ref: state, overdue days, fine.
func (e *Engine) LoanReport(
	ctx context.Context,
	loanID uuid.UUID,
	ref time.Time,
	dailyRate decimal.Decimal,
	dueSoonWindow time.Duration,
) (*model.LoanView, error) {
	loan, err := e.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if _, err := model.Fine(loan, ref, dailyRate); err != nil {
		return nil, err
	}

	view := model.NewLoanView(loan, ref, dailyRate, dueSoonWindow)
	return &view, nil
}

// BorrowerSummary reports the borrower's active loans against the cap.
// maxActiveLoans <= 0 means the default; unknown borrowers get ErrUnknownBorrower.
func (e *Engine) BorrowerSummary(ctx context.Context, borrowerID uuid.UUID, maxActiveLoans int) (*model.BorrowerSummary, error) {
	member, err := e.borrowers.GetByID(ctx, borrowerID)
	if err != nil {
		if memberModel.IsNotFoundError(err) {
			return nil, model.ErrUnknownBorrower
		}
		return nil, storageError("get borrower", err)
	}

	active, err := e.ActiveLoanCount(ctx, borrowerID)
	if err != nil {
		return nil, err
	}

	limit := (model.BorrowRequest{MaxActiveLoans: maxActiveLoans}).Cap()
	return &model.BorrowerSummary{
		BorrowerID:     borrowerID,
		ActiveLoans:    active,
		MaxActiveLoans: limit,
		CanBorrow:      member.CanBorrow() && active < limit,
	}, nil
}
