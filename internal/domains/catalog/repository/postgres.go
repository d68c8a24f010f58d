package repository

import (
	"context"
	"errors"
	"fmt"

	"library-lending/internal/domains/catalog/model"

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

const titleColumns = `id, isbn, title, author, subjects, stock, version, created_at, updated_at`

func scanTitle(row pgx.Row) (*model.Title, error) {
	var t model.Title
	err := row.Scan(
		&t.ID, &t.ISBN, &t.Title, &t.Author, &t.Subjects,
		&t.Stock, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *postgresRepository) Create(ctx context.Context, title *model.Title) error {
	if err := title.Validate(); err != nil {
		return err
	}
	if title.ID == uuid.Nil {
		title.ID = uuid.New()
	}

	query := `
		INSERT INTO titles (id, isbn, title, author, subjects, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING version, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		title.ID, title.ISBN, title.Title, title.Author, title.Subjects, title.Stock,
	).Scan(&title.Version, &title.CreatedAt, &title.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.ErrTitleAlreadyExists
		}
		return fmt.Errorf("failed to insert title: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Title, error) {
	query := `SELECT ` + titleColumns + ` FROM titles WHERE id = $1`

	title, err := scanTitle(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewTitleNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	return title, nil
}

func (r *postgresRepository) GetByISBN(ctx context.Context, isbn string) (*model.Title, error) {
	query := `SELECT ` + titleColumns + ` FROM titles WHERE isbn = $1`

	title, err := scanTitle(r.pool.QueryRow(ctx, query, isbn))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: isbn=%s", model.ErrTitleNotFound, isbn)
		}
		return nil, fmt.Errorf("failed to get title by isbn: %w", err)
	}
	return title, nil
}

func (r *postgresRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM titles WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check title existence: %w", err)
	}
	return exists, nil
}

func (r *postgresRepository) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	if stock < 0 {
		return model.ErrInvalidStock
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE titles
		SET stock = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1
	`, id, stock)
	if err != nil {
		return fmt.Errorf("failed to set stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewTitleNotFoundError(id)
	}
	return nil
}

func (r *postgresRepository) ListStockLevels(ctx context.Context) ([]model.StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, stock, version FROM titles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock levels: %w", err)
	}

	levels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.StockLevel, error) {
		var l model.StockLevel
		err := row.Scan(&l.TitleID, &l.Stock, &l.Version)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan stock levels: %w", err)
	}
	return levels, nil
}
