package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"library-lending/internal/domains/lending/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func givenLoan(t *testing.T, repo *MemoryRepository, borrower uuid.UUID, startedAt time.Time, days int) *model.Loan {
	t.Helper()
	loan := model.NewLoan(uuid.New(), borrower, uuid.New(), startedAt, days)
	require.NoError(t, repo.CreateWithinCap(context.Background(), loan, 100))
	return loan
}

func TestCreateWithinCap_RejectsAtCap(t *testing.T) {
	// arrange
	repo := NewMemoryRepository()
	borrower := uuid.New()
	givenLoan(t, repo, borrower, t0, 14)
	givenLoan(t, repo, borrower, t0, 14)

	// act
	err := repo.CreateWithinCap(context.Background(), model.NewLoan(uuid.New(), borrower, uuid.New(), t0, 14), 2)

	// assert
	assert.ErrorIs(t, err, model.ErrBorrowingCapExceeded)
	n, _ := repo.CountActiveByBorrower(context.Background(), borrower)
	assert.Equal(t, 2, n)
}

func TestCreateWithinCap_ConcurrentBorrowsNeverExceedCap(t *testing.T) {
	repo := NewMemoryRepository()
	borrower := uuid.New()
	var created atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loan := model.NewLoan(uuid.New(), borrower, uuid.New(), t0, 14)
			if err := repo.CreateWithinCap(context.Background(), loan, 3); err == nil {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), created.Load())
	n, _ := repo.CountActiveByBorrower(context.Background(), borrower)
	assert.Equal(t, 3, n)
}

func TestMarkReturned_OnlyOnce(t *testing.T) {
	// arrange
	repo := NewMemoryRepository()
	loan := givenLoan(t, repo, uuid.New(), t0, 14)
	returnedAt := t0.Add(48 * time.Hour)

	// act
	returned, err := repo.MarkReturned(context.Background(), loan.ID, returnedAt)
	_, again := repo.MarkReturned(context.Background(), loan.ID, returnedAt)

	// assert
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnedAt)
	assert.True(t, returnedAt.Equal(*returned.ReturnedAt))
	assert.Equal(t, 2, returned.Version)
	assert.ErrorIs(t, again, model.ErrAlreadyReturned)
}

func TestMarkReturned_UnknownLoan(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.MarkReturned(context.Background(), uuid.New(), t0)

	assert.True(t, model.IsNotFoundError(err))
}

func TestExtendDue_MovesDueDate(t *testing.T) {
	repo := NewMemoryRepository()
	loan := givenLoan(t, repo, uuid.New(), t0, 14)

	extended, err := repo.ExtendDue(context.Background(), loan.ID, 7*model.Day, t0.Add(time.Hour))

	require.NoError(t, err)
	assert.True(t, loan.DueAt.Add(7*model.Day).Equal(extended.DueAt))
}

func TestExtendDue_RejectsReturnedLoan(t *testing.T) {
	repo := NewMemoryRepository()
	loan := givenLoan(t, repo, uuid.New(), t0, 14)
	_, err := repo.MarkReturned(context.Background(), loan.ID, t0)
	require.NoError(t, err)

	_, err = repo.ExtendDue(context.Background(), loan.ID, model.Day, t0)

	assert.ErrorIs(t, err, model.ErrAlreadyReturned)
}

func TestGetByID_ReturnsCopy(t *testing.T) {
	repo := NewMemoryRepository()
	loan := givenLoan(t, repo, uuid.New(), t0, 14)

	got, err := repo.GetByID(context.Background(), loan.ID)
	require.NoError(t, err)
	got.DueAt = got.DueAt.Add(time.Hour)

	again, _ := repo.GetByID(context.Background(), loan.ID)
	assert.True(t, loan.DueAt.Equal(again.DueAt))
}

func TestList_FiltersSortsAndPages(t *testing.T) {
	// arrange
	repo := NewMemoryRepository()
	borrower := uuid.New()
	first := givenLoan(t, repo, borrower, t0, 30)
	second := givenLoan(t, repo, borrower, t0.Add(time.Hour), 5)
	third := givenLoan(t, repo, borrower, t0.Add(2*time.Hour), 10)
	givenLoan(t, repo, uuid.New(), t0, 14)

	// act
	page, total, err := repo.List(context.Background(), model.LoanFilter{
		BorrowerID: &borrower,
		Sort:       model.SortDueAsc,
		Limit:      2,
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, second.ID, page[0].ID)
	assert.Equal(t, third.ID, page[1].ID)

	rest, _, err := repo.List(context.Background(), model.LoanFilter{
		BorrowerID: &borrower,
		Sort:       model.SortDueAsc,
		Limit:      2,
		Offset:     2,
	})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, first.ID, rest[0].ID)
}

func TestList_OffsetPastEnd(t *testing.T) {
	repo := NewMemoryRepository()
	givenLoan(t, repo, uuid.New(), t0, 14)

	page, total, err := repo.List(context.Background(), model.LoanFilter{Offset: 5})

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Empty(t, page)
}

func TestStats_CountsByState(t *testing.T) {
	// arrange
	repo := NewMemoryRepository()
	borrower := uuid.New()
	overdue := givenLoan(t, repo, borrower, t0, 1)
	givenLoan(t, repo, borrower, t0, 30)
	returned := givenLoan(t, repo, borrower, t0, 1)
	_, err := repo.MarkReturned(context.Background(), returned.ID, t0.Add(time.Hour))
	require.NoError(t, err)

	// act
	stats, err := repo.Stats(context.Background(), overdue.DueAt.Add(time.Minute))

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Overdue)
	assert.Equal(t, 1, stats.Returned)
}

func TestExistsActiveForTitle(t *testing.T) {
	repo := NewMemoryRepository()
	loan := givenLoan(t, repo, uuid.New(), t0, 14)

	exists, _ := repo.ExistsActiveForTitle(context.Background(), loan.TitleID)
	assert.True(t, exists)

	_, err := repo.MarkReturned(context.Background(), loan.ID, t0)
	require.NoError(t, err)

	exists, _ = repo.ExistsActiveForTitle(context.Background(), loan.TitleID)
	assert.False(t, exists)
}
