package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	catalogModel "library-lending/internal/domains/catalog/model"
	catalogRepo "library-lending/internal/domains/catalog/repository"
	"library-lending/internal/domains/inventory/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func givenStockedTitle(t *testing.T, stock int) (*MemoryRepository, *catalogRepo.MemoryRepository, uuid.UUID) {
	t.Helper()

	catalog := catalogRepo.NewMemoryRepository()
	title := &catalogModel.Title{ISBN: "9780134190440", Title: "The Go Programming Language", Stock: stock}
	require.NoError(t, catalog.Create(context.Background(), title))

	return NewMemoryRepository(catalog), catalog, title.ID
}

func TestReserve_DecrementsStock(t *testing.T) {
	// arrange
	repo, _, titleID := givenStockedTitle(t, 2)

	// act
	change, err := repo.Reserve(context.Background(), titleID, uuid.New())

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, change.StockAfter)
	assert.False(t, change.AlreadyApplied)
}

func TestReserve_Fails_WhenStockIsZero(t *testing.T) {
	// arrange
	repo, _, titleID := givenStockedTitle(t, 0)
	loanID := uuid.New()

	// act
	_, err := repo.Reserve(context.Background(), titleID, loanID)

	// assert
	assert.True(t, model.IsStockUnavailableError(err))
	stock, _ := repo.GetStock(context.Background(), titleID)
	assert.Equal(t, 0, stock)
	movements, _ := repo.ListMovements(context.Background(), loanID)
	assert.Empty(t, movements)
}

func TestReserve_Fails_ForUnknownTitle(t *testing.T) {
	repo, _, _ := givenStockedTitle(t, 1)

	_, err := repo.Reserve(context.Background(), uuid.New(), uuid.New())

	assert.True(t, model.IsTitleNotFoundError(err))
}

func TestRelease_IsIdempotentPerLoan(t *testing.T) {
	// arrange
	repo, _, titleID := givenStockedTitle(t, 1)
	loanID := uuid.New()
	_, err := repo.Reserve(context.Background(), titleID, loanID)
	require.NoError(t, err)

	// act
	first, err1 := repo.Release(context.Background(), titleID, loanID)
	second, err2 := repo.Release(context.Background(), titleID, loanID)

	// assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.False(t, first.AlreadyApplied)
	assert.True(t, second.AlreadyApplied)
	assert.Equal(t, 1, second.StockAfter)

	stock, _ := repo.GetStock(context.Background(), titleID)
	assert.Equal(t, 1, stock)

	movements, _ := repo.ListMovements(context.Background(), loanID)
	require.Len(t, movements, 2)
	assert.Equal(t, model.MovementReserve, movements[0].Kind)
	assert.Equal(t, model.MovementRelease, movements[1].Kind)
}

func TestReserve_NeverOversells_UnderConcurrency(t *testing.T) {
	// arrange
	const stock = 5
	const borrowers = 20
	repo, _, titleID := givenStockedTitle(t, stock)

	var wg sync.WaitGroup
	var ok, unavailable atomic.Int32

	// act
	for i := 0; i < borrowers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Reserve(context.Background(), titleID, uuid.New())
			switch {
			case err == nil:
				ok.Add(1)
			case model.IsStockUnavailableError(err):
				unavailable.Add(1)
			}
		}()
	}
	wg.Wait()

	// assert
	assert.Equal(t, int32(stock), ok.Load())
	assert.Equal(t, int32(borrowers-stock), unavailable.Load())
	left, _ := repo.GetStock(context.Background(), titleID)
	assert.Equal(t, 0, left)
}
