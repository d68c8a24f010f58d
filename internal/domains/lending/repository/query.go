package repository

import (
	"fmt"

	"library-lending/internal/domains/lending/model"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
)

const (
	dialectPostgres = "postgres"
	tableLoans      = "loans"

	colID         = "id"
	colBorrowerID = "borrower_id"
	colTitleID    = "title_id"
	colStartedAt  = "started_at"
	colDueAt      = "due_at"
	colReturnedAt = "returned_at"
	colVersion    = "version"
	colCreatedAt  = "created_at"
	colUpdatedAt  = "updated_at"
)

var loanColumns = []interface{}{
	colID, colBorrowerID, colTitleID, colStartedAt, colDueAt, colReturnedAt,
	colVersion, colCreatedAt, colUpdatedAt,
}

func whereClause(f model.LoanFilter) []exp.Expression {
	where := make([]exp.Expression, 0, 6)

	if f.BorrowerID != nil {
		where = append(where, goqu.C(colBorrowerID).Eq(*f.BorrowerID))
	}
	if f.TitleID != nil {
		where = append(where, goqu.C(colTitleID).Eq(*f.TitleID))
	}

	switch f.State {
	case model.StateActive:
		where = append(where, goqu.C(colReturnedAt).IsNull())
	case model.StateReturned:
		where = append(where, goqu.C(colReturnedAt).IsNotNull())
	case model.StateOverdue:
		where = append(where, goqu.C(colReturnedAt).IsNull(), goqu.C(colDueAt).Lt(f.Ref))
	}

	if f.DueFrom != nil {
		where = append(where, goqu.C(colDueAt).Gte(*f.DueFrom))
	}
	if f.DueAfter != nil {
		where = append(where, goqu.C(colDueAt).Gt(*f.DueAfter))
	}
	if f.DueTo != nil {
		where = append(where, goqu.C(colDueAt).Lte(*f.DueTo))
	}

	return where
}

// buildListQuery renders the page query for f. f must be normalized.
func buildListQuery(f model.LoanFilter) (string, []interface{}, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(tableLoans).
		Prepared(true).
		Select(loanColumns...)

	if where := whereClause(f); len(where) > 0 {
		stmt = stmt.Where(where...)
	}

	switch f.Sort {
	case model.SortDueAsc:
		stmt = stmt.Order(goqu.I(colDueAt).Asc(), goqu.I(colID).Asc())
	default:
		stmt = stmt.Order(goqu.I(colStartedAt).Desc(), goqu.I(colID).Asc())
	}

	stmt = stmt.Limit(uint(f.Limit)).Offset(uint(f.Offset))

	query, args, err := stmt.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build loan list query: %w", err)
	}
	return query, args, nil
}

func buildCountQuery(f model.LoanFilter) (string, []interface{}, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From(tableLoans).
		Prepared(true).
		Select(goqu.COUNT(goqu.Star()))

	if where := whereClause(f); len(where) > 0 {
		stmt = stmt.Where(where...)
	}

	query, args, err := stmt.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build loan count query: %w", err)
	}
	return query, args, nil
}
