package repository

import (
	"context"

	"library-lending/internal/domains/catalog/model"

	"github.com/google/uuid"
)

// RepositoryInterface is the title directory plus its administrative stock edits.
// Reservation-driven stock changes go through the inventory domain, never SetStock.
type RepositoryInterface interface {
	Create(ctx context.Context, title *model.Title) error

	// GetByID returns ErrTitleNotFound when the title does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Title, error)
	GetByISBN(ctx context.Context, isbn string) (*model.Title, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// SetStock overwrites the counter (inventory count corrections).
	SetStock(ctx context.Context, id uuid.UUID, stock int) error

	ListStockLevels(ctx context.Context) ([]model.StockLevel, error)
}
