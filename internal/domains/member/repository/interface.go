package repository

import (
	"context"

	"library-lending/internal/domains/member/model"

	"github.com/google/uuid"
)

type RepositoryInterface interface {
	Create(ctx context.Context, member *model.Member) error
	// GetByID returns ErrMemberNotFound for unknown ids. Deleted members are still returned.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Member, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}
