package repository

import (
	"context"
	"errors"
	"fmt"

	"library-lending/internal/domains/inventory/model"
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

// stockDelta is the conditional counter update for each movement kind.
// Reserve only succeeds while stock > 0, so concurrent borrowers cannot oversell.
var stockDelta = map[model.MovementKind]string{
	model.MovementReserve: `
		UPDATE titles
		SET stock = stock - 1, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND stock > 0
		RETURNING stock
	`,
	model.MovementRelease: `
		UPDATE titles
		SET stock = stock + 1, version = version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING stock
	`,
}

func (r *postgresRepository) Reserve(ctx context.Context, titleID, loanID uuid.UUID) (*model.StockChange, error) {
	return r.apply(ctx, titleID, loanID, model.MovementReserve)
}

func (r *postgresRepository) Release(ctx context.Context, titleID, loanID uuid.UUID) (*model.StockChange, error) {
	return r.apply(ctx, titleID, loanID, model.MovementRelease)
}

// apply records the movement and changes stock in one transaction.
// The movement row is inserted first: the unique (loan_id, kind) index makes a replay a no-op,
// and a failed stock update rolls the movement back with it.
func (r *postgresRepository) apply(ctx context.Context, titleID, loanID uuid.UUID, kind model.MovementKind) (*model.StockChange, error) {
	return database.WithTransactionResult(ctx, r.pool, func(tx pgx.Tx) (*model.StockChange, error) {
		change := &model.StockChange{TitleID: titleID, LoanID: loanID, Kind: kind}

		var movementID uuid.UUID
		err := tx.QueryRow(ctx, `
			INSERT INTO stock_movements (id, title_id, loan_id, kind)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (loan_id, kind) DO NOTHING
			RETURNING id
		`, uuid.New(), titleID, loanID, kind).Scan(&movementID)

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// Already applied for this loan.
			if err := tx.QueryRow(ctx,
				`SELECT stock_after FROM stock_movements WHERE loan_id = $1 AND kind = $2`,
				loanID, kind,
			).Scan(&change.StockAfter); err != nil {
				return nil, fmt.Errorf("failed to read existing movement: %w", err)
			}
			change.AlreadyApplied = true
			return change, nil
		case err != nil:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
				return nil, fmt.Errorf("%w: id=%s", model.ErrTitleNotFound, titleID)
			}
			return nil, fmt.Errorf("failed to insert stock movement: %w", err)
		}

		err = tx.QueryRow(ctx, stockDelta[kind], titleID).Scan(&change.StockAfter)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// The movement insert proved the title exists, so no row means stock was 0.
				return nil, model.NewStockUnavailableError(titleID)
			}
			return nil, fmt.Errorf("failed to %s stock: %w", kind, err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE stock_movements SET stock_after = $2 WHERE id = $1`,
			movementID, change.StockAfter,
		); err != nil {
			return nil, fmt.Errorf("failed to finalize stock movement: %w", err)
		}

		return change, nil
	})
}

func (r *postgresRepository) GetStock(ctx context.Context, titleID uuid.UUID) (int, error) {
	var stock int
	err := r.pool.QueryRow(ctx, `SELECT stock FROM titles WHERE id = $1`, titleID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: id=%s", model.ErrTitleNotFound, titleID)
		}
		return 0, fmt.Errorf("failed to read stock: %w", err)
	}
	return stock, nil
}

func (r *postgresRepository) ListMovements(ctx context.Context, loanID uuid.UUID) ([]model.Movement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title_id, loan_id, kind, stock_after, created_at
		FROM stock_movements
		WHERE loan_id = $1
		ORDER BY created_at, kind DESC
	`, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}

	movements, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Movement, error) {
		var m model.Movement
		err := row.Scan(&m.ID, &m.TitleID, &m.LoanID, &m.Kind, &m.StockAfter, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan movements: %w", err)
	}
	return movements, nil
}
