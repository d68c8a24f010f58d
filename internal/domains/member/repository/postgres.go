package repository

import (
	"context"
	"errors"
	"fmt"

	"library-lending/internal/domains/member/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) RepositoryInterface {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, member *model.Member) error {
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	if member.Role == "" {
		member.Role = model.RoleMember
	}
	if err := member.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO members (id, name, email, role, access_level, active, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		member.ID, member.Name, member.Email, member.Role, member.AccessLevel, member.Active, member.Deleted,
	).Scan(&member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Member, error) {
	query := `
		SELECT id, name, email, role, access_level, active, deleted, created_at, updated_at
		FROM members
		WHERE id = $1
	`

	var m model.Member
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.Email, &m.Role, &m.AccessLevel, &m.Active, &m.Deleted, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewMemberNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &m, nil
}

func (r *postgresRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE members SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewMemberNotFoundError(id)
	}
	return nil
}

func (r *postgresRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE members SET deleted = TRUE, active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewMemberNotFoundError(id)
	}
	return nil
}
