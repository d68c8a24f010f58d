package repository

import (
	"context"
	"time"

	"library-lending/internal/domains/lending/model"

	"github.com/google/uuid"
)

// RepositoryInterface is the loan store. Loans are never deleted.
type RepositoryInterface interface {
	// CreateWithinCap inserts an ACTIVE loan unless the borrower already holds maxActive
	// active loans. The count and the insert are atomic per borrower.
	// Returns ErrBorrowingCapExceeded when the cap is reached.
	CreateWithinCap(ctx context.Context, loan *model.Loan, maxActive int) error

	// GetByID returns ErrLoanNotFound for unknown ids.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Loan, error)

	// MarkReturned sets returned_at only while the loan is active, so of two
	// concurrent returns exactly one wins. ErrAlreadyReturned / ErrLoanNotFound otherwise.
	MarkReturned(ctx context.Context, id uuid.UUID, returnedAt time.Time) (*model.Loan, error)

	// ExtendDue pushes due_at forward on an active loan.
	ExtendDue(ctx context.Context, id uuid.UUID, by time.Duration, now time.Time) (*model.Loan, error)

	CountActiveByBorrower(ctx context.Context, borrowerID uuid.UUID) (int, error)
	ExistsActiveForTitle(ctx context.Context, titleID uuid.UUID) (bool, error)

	// List returns one page of matching loans and the total match count.
	List(ctx context.Context, filter model.LoanFilter) ([]model.Loan, int, error)

	Stats(ctx context.Context, ref time.Time) (*model.LoanStats, error)
}
