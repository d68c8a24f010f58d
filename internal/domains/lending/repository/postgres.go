package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"library-lending/internal/domains/lending/model"
	"library-lending/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) RepositoryInterface {
	return &postgresRepository{pool: pool}
}

const selectLoan = `
	SELECT id, borrower_id, title_id, started_at, due_at, returned_at, version, created_at, updated_at
	FROM loans
`

const returningLoan = `
	RETURNING id, borrower_id, title_id, started_at, due_at, returned_at, version, created_at, updated_at
`

func scanLoan(row pgx.Row) (*model.Loan, error) {
	var l model.Loan
	err := row.Scan(
		&l.ID, &l.BorrowerID, &l.TitleID, &l.StartedAt, &l.DueAt, &l.ReturnedAt,
		&l.Version, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateWithinCap locks the borrower row so concurrent borrows by the same member
// serialize on the count; borrows by different members do not contend.
func (r *postgresRepository) CreateWithinCap(ctx context.Context, loan *model.Loan, maxActive int) error {
	return database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		var borrowerID uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM members WHERE id = $1 FOR UPDATE`, loan.BorrowerID).Scan(&borrowerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrUnknownBorrower
			}
			return fmt.Errorf("failed to lock borrower: %w", err)
		}

		var active int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM loans WHERE borrower_id = $1 AND returned_at IS NULL`,
			loan.BorrowerID,
		).Scan(&active); err != nil {
			return fmt.Errorf("failed to count active loans: %w", err)
		}
		if active >= maxActive {
			return model.NewCapExceededError(active, maxActive)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO loans (id, borrower_id, title_id, started_at, due_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $4, $4)
			RETURNING version, created_at, updated_at
		`, loan.ID, loan.BorrowerID, loan.TitleID, loan.StartedAt, loan.DueAt,
		).Scan(&loan.Version, &loan.CreatedAt, &loan.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
				return model.ErrUnknownTitle
			}
			return fmt.Errorf("failed to insert loan: %w", err)
		}

		return nil
	})
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Loan, error) {
	loan, err := scanLoan(r.pool.QueryRow(ctx, selectLoan+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewLoanNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

func (r *postgresRepository) MarkReturned(ctx context.Context, id uuid.UUID, returnedAt time.Time) (*model.Loan, error) {
	loan, err := scanLoan(r.pool.QueryRow(ctx, `
		UPDATE loans
		SET returned_at = $2, version = version + 1, updated_at = $2
		WHERE id = $1 AND returned_at IS NULL
	`+returningLoan, id, returnedAt))
	if err == nil {
		return loan, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to mark loan returned: %w", err)
	}
	return nil, r.whyNotActive(ctx, id)
}

func (r *postgresRepository) ExtendDue(ctx context.Context, id uuid.UUID, by time.Duration, now time.Time) (*model.Loan, error) {
	loan, err := scanLoan(r.pool.QueryRow(ctx, `
		UPDATE loans
		SET due_at = due_at + make_interval(secs => $2), version = version + 1, updated_at = $3
		WHERE id = $1 AND returned_at IS NULL
	`+returningLoan, id, by.Seconds(), now))
	if err == nil {
		return loan, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to extend loan: %w", err)
	}
	return nil, r.whyNotActive(ctx, id)
}

// whyNotActive distinguishes a missing loan from a returned one after a conditional update matched nothing.
func (r *postgresRepository) whyNotActive(ctx context.Context, id uuid.UUID) error {
	loan, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !loan.IsActive() {
		return model.ErrAlreadyReturned
	}
	return fmt.Errorf("loan %s changed concurrently", id)
}

func (r *postgresRepository) CountActiveByBorrower(ctx context.Context, borrowerID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM loans WHERE borrower_id = $1 AND returned_at IS NULL`, borrowerID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active loans: %w", err)
	}
	return n, nil
}

func (r *postgresRepository) ExistsActiveForTitle(ctx context.Context, titleID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM loans WHERE title_id = $1 AND returned_at IS NULL)`, titleID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active loans for title: %w", err)
	}
	return exists, nil
}

func (r *postgresRepository) List(ctx context.Context, filter model.LoanFilter) ([]model.Loan, int, error) {
	filter = filter.Normalize()

	countSQL, countArgs, err := buildCountQuery(filter)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count loans: %w", err)
	}
	if total == 0 {
		return []model.Loan{}, 0, nil
	}

	listSQL, listArgs, err := buildListQuery(filter)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list loans: %w", err)
	}

	loans, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Loan, error) {
		l, err := scanLoan(row)
		if err != nil {
			return model.Loan{}, err
		}
		return *l, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan loans: %w", err)
	}
	return loans, total, nil
}

func (r *postgresRepository) Stats(ctx context.Context, ref time.Time) (*model.LoanStats, error) {
	stats := &model.LoanStats{Ref: ref}
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE returned_at IS NULL),
			COUNT(*) FILTER (WHERE returned_at IS NULL AND due_at < $1),
			COUNT(*) FILTER (WHERE returned_at IS NOT NULL)
		FROM loans
	`, ref).Scan(&stats.Total, &stats.Active, &stats.Overdue, &stats.Returned)
	if err != nil {
		return nil, fmt.Errorf("failed to compute loan stats: %w", err)
	}
	return stats, nil
}
