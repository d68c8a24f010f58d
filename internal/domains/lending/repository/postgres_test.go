package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"library-lending/internal/domains/lending/model"
	"library-lending/pkg/database/dbtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Postgres_CreateWithinCap_ConcurrentBorrowsNeverExceedCap(t *testing.T) {
	// setup
	pool := dbtest.Open(t)
	repo := NewRepository(pool)

	// arrange
	const maxActive = 3
	borrowerID := dbtest.GivenMember(t, pool)
	titleID := dbtest.GivenTitle(t, pool, 10)

	var wg sync.WaitGroup
	var created, capped, other atomic.Int32

	// act
	for i := 0; i < maxActive+2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loan := model.NewLoan(uuid.New(), borrowerID, titleID, t0, 14)
			err := repo.CreateWithinCap(context.Background(), loan, maxActive)
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, model.ErrBorrowingCapExceeded):
				capped.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	// assert
	assert.Equal(t, int32(maxActive), created.Load())
	assert.Equal(t, int32(2), capped.Load())
	assert.Zero(t, other.Load())

	n, err := repo.CountActiveByBorrower(context.Background(), borrowerID)
	require.NoError(t, err)
	assert.Equal(t, maxActive, n)
}

func Test_Postgres_CreateWithinCap_RejectsUnknownBorrowerAndTitle(t *testing.T) {
	// setup
	pool := dbtest.Open(t)
	repo := NewRepository(pool)

	// arrange
	borrowerID := dbtest.GivenMember(t, pool)
	titleID := dbtest.GivenTitle(t, pool, 1)

	// act
	errBorrower := repo.CreateWithinCap(context.Background(), model.NewLoan(uuid.New(), uuid.New(), titleID, t0, 14), 3)
	errTitle := repo.CreateWithinCap(context.Background(), model.NewLoan(uuid.New(), borrowerID, uuid.New(), t0, 14), 3)

	// assert
	assert.ErrorIs(t, errBorrower, model.ErrUnknownBorrower)
	assert.ErrorIs(t, errTitle, model.ErrUnknownTitle)
}

func Test_Postgres_MarkReturned_OnlyOnce(t *testing.T) {
	// setup
	pool := dbtest.Open(t)
	repo := NewRepository(pool)

	// arrange
	borrowerID := dbtest.GivenMember(t, pool)
	titleID := dbtest.GivenTitle(t, pool, 1)
	loan := model.NewLoan(uuid.New(), borrowerID, titleID, t0, 14)
	require.NoError(t, repo.CreateWithinCap(context.Background(), loan, 3))
	returnedAt := t0.Add(3 * 24 * time.Hour)

	// act
	returned, err := repo.MarkReturned(context.Background(), loan.ID, returnedAt)
	_, errAgain := repo.MarkReturned(context.Background(), loan.ID, returnedAt.Add(time.Hour))
	_, errMissing := repo.MarkReturned(context.Background(), uuid.New(), returnedAt)

	// assert
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnedAt)
	assert.True(t, returned.ReturnedAt.Equal(returnedAt))
	assert.ErrorIs(t, errAgain, model.ErrAlreadyReturned)
	assert.ErrorIs(t, errMissing, model.ErrLoanNotFound)

	stored, err := repo.GetByID(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive())
}
