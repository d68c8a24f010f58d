package service

import (
	"context"
	"time"

	"library-lending/internal/domains/lending/model"
	memberModel "library-lending/internal/domains/member/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceInterface is the lending engine plus its read side.
type ServiceInterface interface {
	Borrow(ctx context.Context, req model.BorrowRequest) (*model.Loan, error)
	// ReturnLoan may return a non-nil loan together with a *model.ReservationLeakError:
	// the return is committed, only the stock release is pending reconciliation.
	ReturnLoan(ctx context.Context, loanID uuid.UUID) (*model.Loan, error)
	Extend(ctx context.Context, loanID uuid.UUID, additionalDays int) (*model.Loan, error)

	GetLoan(ctx context.Context, loanID uuid.UUID) (*model.Loan, error)
	ActiveLoanCount(ctx context.Context, borrowerID uuid.UUID) (int, error)
	CanBorrowMore(ctx context.Context, borrowerID uuid.UUID, maxActiveLoans int) (bool, error)
	IsTitleCurrentlyLent(ctx context.Context, titleID uuid.UUID) (bool, error)

	ListLoans(ctx context.Context, filter model.LoanFilter) ([]model.Loan, int, error)
	ListActive(ctx context.Context, limit, offset int) ([]model.Loan, int, error)
	ListOverdue(ctx context.Context, ref time.Time, limit, offset int) ([]model.Loan, int, error)
	ListDueBetween(ctx context.Context, from, to time.Time, limit, offset int) ([]model.Loan, int, error)
	ListDueSoon(ctx context.Context, ref time.Time, window time.Duration, limit, offset int) ([]model.Loan, int, error)
	Stats(ctx context.Context, ref time.Time) (*model.LoanStats, error)
	LoanReport(ctx context.Context, loanID uuid.UUID, ref time.Time, dailyRate decimal.Decimal, dueSoonWindow time.Duration) (*model.LoanView, error)
	BorrowerSummary(ctx context.Context, borrowerID uuid.UUID, maxActiveLoans int) (*model.BorrowerSummary, error)
}

// BorrowerDirectory resolves members. Satisfied by the member repository.
type BorrowerDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*memberModel.Member, error)
}

// TitleDirectory answers whether a title exists. Satisfied by the catalog repository.
type TitleDirectory interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// LeakReporter hands a committed return with an unreleased copy to reconciliation.
type LeakReporter interface {
	ReportLeak(ctx context.Context, leak *model.ReservationLeakError, borrowerID uuid.UUID) error
}
