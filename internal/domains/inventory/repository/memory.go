package repository

import (
	"context"
	"sync"
	"time"

	catalogModel "library-lending/internal/domains/catalog/model"
	"library-lending/internal/domains/inventory/model"

	"github.com/google/uuid"
)

// StockStore is the catalog side the memory inventory writes through.
// catalog/repository.MemoryRepository satisfies it.
type StockStore interface {
	ApplyStock(id uuid.UUID, fn func(current int) (int, error)) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*catalogModel.Title, error)
}

type movementKey struct {
	loanID uuid.UUID
	kind   model.MovementKind
}

// MemoryRepository keeps movements in memory and changes stock through StockStore.
type MemoryRepository struct {
	mu        sync.Mutex
	stock     StockStore
	movements map[movementKey]model.Movement
}

func NewMemoryRepository(stock StockStore) *MemoryRepository {
	return &MemoryRepository{
		stock:     stock,
		movements: make(map[movementKey]model.Movement),
	}
}

func (r *MemoryRepository) Reserve(_ context.Context, titleID, loanID uuid.UUID) (*model.StockChange, error) {
	return r.apply(titleID, loanID, model.MovementReserve, func(current int) (int, error) {
		if current <= 0 {
			return current, model.NewStockUnavailableError(titleID)
		}
		return current - 1, nil
	})
}

func (r *MemoryRepository) Release(_ context.Context, titleID, loanID uuid.UUID) (*model.StockChange, error) {
	return r.apply(titleID, loanID, model.MovementRelease, func(current int) (int, error) {
		return current + 1, nil
	})
}

func (r *MemoryRepository) apply(
	titleID, loanID uuid.UUID,
	kind model.MovementKind,
	fn func(int) (int, error),
) (*model.StockChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := movementKey{loanID: loanID, kind: kind}
	if existing, ok := r.movements[key]; ok {
		return &model.StockChange{
			TitleID:        existing.TitleID,
			LoanID:         loanID,
			Kind:           kind,
			StockAfter:     existing.StockAfter,
			AlreadyApplied: true,
		}, nil
	}

	after, err := r.stock.ApplyStock(titleID, fn)
	if err != nil {
		return nil, err
	}

	r.movements[key] = model.Movement{
		ID:         uuid.New(),
		TitleID:    titleID,
		LoanID:     loanID,
		Kind:       kind,
		StockAfter: after,
		CreatedAt:  time.Now().UTC(),
	}

	return &model.StockChange{TitleID: titleID, LoanID: loanID, Kind: kind, StockAfter: after}, nil
}

func (r *MemoryRepository) GetStock(ctx context.Context, titleID uuid.UUID) (int, error) {
	t, err := r.stock.GetByID(ctx, titleID)
	if err != nil {
		return 0, err
	}
	return t.Stock, nil
}

func (r *MemoryRepository) ListMovements(_ context.Context, loanID uuid.UUID) ([]model.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Movement
	for _, kind := range []model.MovementKind{model.MovementReserve, model.MovementRelease} {
		if m, ok := r.movements[movementKey{loanID: loanID, kind: kind}]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}
