package service

import (
	"context"

	"library-lending/internal/domains/inventory/model"

	"github.com/google/uuid"
)

// ServiceInterface is the inventory controller used by the lending engine.
type ServiceInterface interface {
	// Reserve takes one copy for loanID or fails with ErrStockUnavailable / ErrTitleNotFound.
	Reserve(ctx context.Context, titleID, loanID uuid.UUID) (*model.StockChange, error)

	// Release returns one copy for loanID. Idempotent per loan.
	Release(ctx context.Context, titleID, loanID uuid.UUID) (*model.StockChange, error)

	// Movements returns the stock audit trail of one loan, oldest first.
	Movements(ctx context.Context, loanID uuid.UUID) ([]model.Movement, error)

	// Available reports the current stock, from the cached snapshot when present.
	Available(ctx context.Context, titleID uuid.UUID) (*model.StockSnapshot, error)
}
