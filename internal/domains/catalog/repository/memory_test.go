package repository

import (
	"context"
	"errors"
	"testing"

	"library-lending/internal/domains/catalog/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func givenTitle(t *testing.T, repo *MemoryRepository, isbn string, stock int) *model.Title {
	t.Helper()

	title := &model.Title{ISBN: isbn, Title: "The Go Programming Language", Author: "Donovan", Stock: stock}
	require.NoError(t, repo.Create(context.Background(), title))
	return title
}

func TestMemoryRepository_Create_RejectsDuplicateISBN(t *testing.T) {
	// arrange
	repo := NewMemoryRepository()
	givenTitle(t, repo, "9780134190440", 2)

	// act
	err := repo.Create(context.Background(), &model.Title{ISBN: "9780134190440", Title: "Copy"})

	// assert
	assert.ErrorIs(t, err, model.ErrTitleAlreadyExists)
}

func TestMemoryRepository_Create_RejectsInvalidTitle(t *testing.T) {
	repo := NewMemoryRepository()

	err := repo.Create(context.Background(), &model.Title{ISBN: "12-34", Title: "Bad", Stock: -1})

	assert.ErrorIs(t, err, model.ErrInvalidTitle)
}

func TestMemoryRepository_GetByID_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.GetByID(context.Background(), uuid.New())

	assert.True(t, model.IsNotFoundError(err))
}

func TestMemoryRepository_GetByID_ReturnsCopy(t *testing.T) {
	repo := NewMemoryRepository()
	title := givenTitle(t, repo, "9780134190440", 2)

	got, err := repo.GetByID(context.Background(), title.ID)
	require.NoError(t, err)
	got.Stock = 99

	again, _ := repo.GetByID(context.Background(), title.ID)
	assert.Equal(t, 2, again.Stock)
}

func TestMemoryRepository_ApplyStock_LeavesStockOnError(t *testing.T) {
	// arrange
	repo := NewMemoryRepository()
	title := givenTitle(t, repo, "9780134190440", 1)
	boom := errors.New("boom")

	// act
	_, err := repo.ApplyStock(title.ID, func(int) (int, error) { return 0, boom })

	// assert
	assert.ErrorIs(t, err, boom)
	got, _ := repo.GetByID(context.Background(), title.ID)
	assert.Equal(t, 1, got.Stock)
	assert.Equal(t, 1, got.Version)
}

func TestMemoryRepository_SetStock(t *testing.T) {
	repo := NewMemoryRepository()
	title := givenTitle(t, repo, "9780134190440", 1)

	require.NoError(t, repo.SetStock(context.Background(), title.ID, 7))
	assert.ErrorIs(t, repo.SetStock(context.Background(), title.ID, -1), model.ErrInvalidStock)

	levels, err := repo.ListStockLevels(context.Background())
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, 7, levels[0].Stock)
	assert.Equal(t, 2, levels[0].Version)
}
