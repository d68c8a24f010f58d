package service

import (
	"context"
	"testing"
	"time"

	"library-lending/internal/domains/lending/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListDueSoon_UsesHalfOpenWindow(t *testing.T) {
	// arrange
	f := newFixture(t)
	titleID := f.givenTitle(t, 5)
	ctx := context.Background()

	dueIn2 := f.borrowFor(t, titleID, 2)
	dueIn3 := f.borrowFor(t, titleID, 3)
	f.borrowFor(t, titleID, 10)

	// act
	loans, total, err := f.engine.ListDueSoon(ctx, startOfTerm, model.DefaultDueSoonWindow, 0, 0)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, loans, 2)
	assert.Equal(t, dueIn2.ID, loans[0].ID)
	assert.Equal(t, dueIn3.ID, loans[1].ID)
}

func TestListDueSoon_RejectsEmptyWindow(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.engine.ListDueSoon(context.Background(), startOfTerm, 0, 0, 0)

	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestListDueBetween_IsInclusive(t *testing.T) {
	f := newFixture(t)
	titleID := f.givenTitle(t, 5)
	f.borrowFor(t, titleID, 1)
	week := f.borrowFor(t, titleID, 7)
	f.borrowFor(t, titleID, 8)

	from := startOfTerm.Add(7 * model.Day)
	loans, total, err := f.engine.ListDueBetween(context.Background(), from, from, 0, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, week.ID, loans[0].ID)
}

func TestListLoans_ByBorrowerAndState(t *testing.T) {
	// arrange
	f := newFixture(t)
	titleID := f.givenTitle(t, 5)
	borrowerID := f.givenMember(t)
	ctx := context.Background()

	kept, err := f.borrow(borrowerID, titleID)
	require.NoError(t, err)
	back, err := f.borrow(borrowerID, titleID)
	require.NoError(t, err)
	_, err = f.engine.ReturnLoan(ctx, back.ID)
	require.NoError(t, err)
	f.borrowFor(t, titleID, 14)

	// act
	active, activeTotal, err := f.engine.ListLoans(ctx, model.LoanFilter{BorrowerID: &borrowerID, State: model.StateActive})
	require.NoError(t, err)
	_, allTotal, err := f.engine.ListLoans(ctx, model.LoanFilter{BorrowerID: &borrowerID})
	require.NoError(t, err)
	_, everyone, err := f.engine.ListActive(ctx, 0, 0)
	require.NoError(t, err)

	// assert
	assert.Equal(t, 1, activeTotal)
	assert.Equal(t, kept.ID, active[0].ID)
	assert.Equal(t, 2, allTotal)
	assert.Equal(t, 2, everyone)
}

func TestListLoans_RejectsInvalidFilter(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.engine.ListLoans(context.Background(), model.LoanFilter{State: "lost"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, _, err = f.engine.ListLoans(context.Background(), model.LoanFilter{Limit: model.MaxListLimit + 1})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestStats_CountsLoansAtReference(t *testing.T) {
	f := newFixture(t)
	titleID := f.givenTitle(t, 5)
	late := f.borrowFor(t, titleID, 1)
	f.borrowFor(t, titleID, 30)
	back := f.borrowFor(t, titleID, 1)
	_, err := f.engine.ReturnLoan(context.Background(), back.ID)
	require.NoError(t, err)

	stats, err := f.engine.Stats(context.Background(), late.DueAt.Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Overdue)
	assert.Equal(t, 1, stats.Returned)
}

func TestLoanReport_RejectsNegativeRate(t *testing.T) {
	f := newFixture(t)
	loan := f.borrowFor(t, f.givenTitle(t, 1), 14)

	_, err := f.engine.LoanReport(context.Background(), loan.ID, startOfTerm, decimal.NewFromInt(-1), model.DefaultDueSoonWindow)

	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestLoanReport_NotOverdueAnHourBeforeDue(t *testing.T) {
	f := newFixture(t)
	loan := f.borrowFor(t, f.givenTitle(t, 1), 14)

	report, err := f.engine.LoanReport(context.Background(), loan.ID, loan.DueAt.Add(-time.Hour), model.DefaultDailyFine, model.DefaultDueSoonWindow)

	require.NoError(t, err)
	assert.False(t, report.Overdue)
	assert.True(t, report.DueSoon)
	assert.True(t, report.Fine.IsZero())
}

func TestBorrowerSummary(t *testing.T) {
	f := newFixture(t)
	titleID := f.givenTitle(t, 5)
	borrowerID := f.givenMember(t)
	_, err := f.borrow(borrowerID, titleID)
	require.NoError(t, err)

	summary, err := f.engine.BorrowerSummary(context.Background(), borrowerID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ActiveLoans)
	assert.Equal(t, 2, summary.MaxActiveLoans)
	assert.True(t, summary.CanBorrow)

	require.NoError(t, f.members.SetActive(context.Background(), borrowerID, false))
	summary, err = f.engine.BorrowerSummary(context.Background(), borrowerID, 2)
	require.NoError(t, err)
	assert.False(t, summary.CanBorrow)

	_, err = f.engine.BorrowerSummary(context.Background(), uuid.New(), 2)
	assert.ErrorIs(t, err, model.ErrUnknownBorrower)
}

// borrowFor lends one copy to a fresh member for the given number of days.
func (f *fixture) borrowFor(t *testing.T, titleID uuid.UUID, days int) *model.Loan {
	t.Helper()
	loan, err := f.engine.Borrow(context.Background(), model.BorrowRequest{
		BorrowerID:   f.givenMember(t),
		TitleID:      titleID,
		DurationDays: days,
	})
	require.NoError(t, err)
	return loan
}
