package repository

import (
	"context"
	"sync"
	"time"

	"library-lending/internal/domains/member/model"

	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu      sync.RWMutex
	members map[uuid.UUID]model.Member
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{members: make(map[uuid.UUID]model.Member)}
}

func (r *MemoryRepository) Create(_ context.Context, member *model.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	if member.Role == "" {
		member.Role = model.RoleMember
	}
	if err := member.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	member.CreatedAt, member.UpdatedAt = now, now

	r.members[member.ID] = *member
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[id]
	if !ok {
		return nil, model.NewMemberNotFoundError(id)
	}
	return &m, nil
}

func (r *MemoryRepository) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	return r.update(id, func(m *model.Member) { m.Active = active })
}

func (r *MemoryRepository) SoftDelete(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(m *model.Member) {
		m.Deleted = true
		m.Active = false
	})
}

func (r *MemoryRepository) update(id uuid.UUID, fn func(*model.Member)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if !ok {
		return model.NewMemberNotFoundError(id)
	}
	fn(&m)
	m.UpdatedAt = time.Now().UTC()
	r.members[id] = m
	return nil
}
