package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"library-lending/internal/domains/catalog/model"

	"github.com/google/uuid"
)

// MemoryRepository keeps titles in a map guarded by one mutex.
// ApplyStock gives the inventory memory store the same check-and-write atomicity
// the postgres store gets from a conditional UPDATE.
type MemoryRepository struct {
	mu     sync.Mutex
	titles map[uuid.UUID]*model.Title
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		titles: make(map[uuid.UUID]*model.Title),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Create(_ context.Context, title *model.Title) error {
	if err := title.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.titles {
		if existing.ISBN == title.ISBN {
			return model.ErrTitleAlreadyExists
		}
	}
	if title.ID == uuid.Nil {
		title.ID = uuid.New()
	}

	now := r.now()
	title.Version = 1
	title.CreatedAt = now
	title.UpdatedAt = now

	stored := *title
	r.titles[title.ID] = &stored
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Title, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.titles[id]
	if !ok {
		return nil, model.NewTitleNotFoundError(id)
	}
	out := *t
	return &out, nil
}

func (r *MemoryRepository) GetByISBN(_ context.Context, isbn string) (*model.Title, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.titles {
		if t.ISBN == isbn {
			out := *t
			return &out, nil
		}
	}
	return nil, model.ErrTitleNotFound
}

func (r *MemoryRepository) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.titles[id]
	return ok, nil
}

func (r *MemoryRepository) SetStock(_ context.Context, id uuid.UUID, stock int) error {
	if stock < 0 {
		return model.ErrInvalidStock
	}
	_, err := r.ApplyStock(id, func(int) (int, error) { return stock, nil })
	return err
}

func (r *MemoryRepository) ListStockLevels(_ context.Context) ([]model.StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	levels := make([]model.StockLevel, 0, len(r.titles))
	for _, t := range r.titles {
		levels = append(levels, t.StockLevel())
	}
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].TitleID.String() < levels[j].TitleID.String()
	})
	return levels, nil
}

// ApplyStock runs fn against the current stock under the store lock and stores its result.
// An error from fn leaves the title untouched.
func (r *MemoryRepository) ApplyStock(id uuid.UUID, fn func(current int) (int, error)) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.titles[id]
	if !ok {
		return 0, model.NewTitleNotFoundError(id)
	}

	next, err := fn(t.Stock)
	if err != nil {
		return t.Stock, err
	}
	if next < 0 {
		return t.Stock, model.ErrInvalidStock
	}

	t.Stock = next
	t.Version++
	t.UpdatedAt = r.now()
	return next, nil
}
