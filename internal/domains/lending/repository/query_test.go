package repository

import (
	"testing"
	"time"

	"library-lending/internal/domains/lending/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildListQuery_NoFilter(t *testing.T) {
	query, args, err := buildListQuery(model.LoanFilter{}.Normalize())

	require.NoError(t, err)
	assert.NotContains(t, query, "WHERE")
	assert.Contains(t, query, `FROM "loans"`)
	assert.Contains(t, query, `ORDER BY "started_at" DESC, "id" ASC`)
	assert.Contains(t, query, "LIMIT $1")
	assert.Len(t, args, 1)
}

func TestBuildListQuery_OverdueForBorrower(t *testing.T) {
	// arrange
	borrower := uuid.New()
	ref := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	filter := model.LoanFilter{
		BorrowerID: &borrower,
		State:      model.StateOverdue,
		Ref:        ref,
		Sort:       model.SortDueAsc,
		Limit:      10,
		Offset:     20,
	}

	// act
	query, args, err := buildListQuery(filter)

	// assert
	require.NoError(t, err)
	assert.Contains(t, query, `"borrower_id" = $1`)
	assert.Contains(t, query, `"returned_at" IS NULL`)
	assert.Contains(t, query, `"due_at" < $2`)
	assert.Contains(t, query, `ORDER BY "due_at" ASC, "id" ASC`)
	assert.Contains(t, query, "OFFSET")
	assert.Len(t, args, 4)
}

func TestBuildListQuery_DueWindow(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(72 * time.Hour)

	query, args, err := buildListQuery(model.LoanFilter{DueAfter: &from, DueTo: &to}.Normalize())

	require.NoError(t, err)
	assert.Contains(t, query, `"due_at" > $1`)
	assert.Contains(t, query, `"due_at" <= $2`)
	assert.Len(t, args, 3)
}

func TestBuildCountQuery_ReturnedLoans(t *testing.T) {
	query, args, err := buildCountQuery(model.LoanFilter{State: model.StateReturned})

	require.NoError(t, err)
	assert.Contains(t, query, "COUNT(*)")
	assert.Contains(t, query, `"returned_at" IS NOT NULL`)
	assert.NotContains(t, query, "LIMIT")
	assert.Empty(t, args)
}
