package repository

import (
	"context"

	"library-lending/internal/domains/inventory/model"

	"github.com/google/uuid"
)

// RepositoryInterface owns the stock counter mutations that back loans.
type RepositoryInterface interface {
	// Reserve atomically takes one copy of the title for loanID.
	// Returns ErrStockUnavailable (nothing changed) when stock is 0
	// and ErrTitleNotFound for unknown titles.
	// A repeated Reserve for the same loan is reported as AlreadyApplied.
	Reserve(ctx context.Context, titleID, loanID uuid.UUID) (*model.StockChange, error)

	// Release atomically puts one copy back for loanID.
	// Idempotent per loan: only the first call changes stock.
	Release(ctx context.Context, titleID, loanID uuid.UUID) (*model.StockChange, error)

	// GetStock reads the current counter. ErrTitleNotFound for unknown titles.
	GetStock(ctx context.Context, titleID uuid.UUID) (int, error)

	// ListMovements returns the audit trail of one loan, oldest first.
	ListMovements(ctx context.Context, loanID uuid.UUID) ([]model.Movement, error)
}
