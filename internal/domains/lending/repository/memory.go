package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"library-lending/internal/domains/lending/model"

	"github.com/google/uuid"
)

// MemoryRepository keeps loans in process. Borrower existence is not checked here;
// the engine validates borrowers before it reaches the store.
type MemoryRepository struct {
	mu    sync.RWMutex
	loans map[uuid.UUID]*model.Loan
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{loans: make(map[uuid.UUID]*model.Loan)}
}

func (r *MemoryRepository) CreateWithinCap(_ context.Context, loan *model.Loan, maxActive int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := r.countActiveLocked(loan.BorrowerID)
	if active >= maxActive {
		return model.NewCapExceededError(active, maxActive)
	}

	if loan.Version == 0 {
		loan.Version = 1
	}
	loan.CreatedAt = loan.StartedAt
	loan.UpdatedAt = loan.StartedAt

	stored := *loan
	r.loans[loan.ID] = &stored
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Loan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.loans[id]
	if !ok {
		return nil, model.NewLoanNotFoundError(id)
	}
	return cloneLoan(l), nil
}

func (r *MemoryRepository) MarkReturned(_ context.Context, id uuid.UUID, returnedAt time.Time) (*model.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.loans[id]
	if !ok {
		return nil, model.NewLoanNotFoundError(id)
	}
	if !l.IsActive() {
		return nil, model.ErrAlreadyReturned
	}

	at := returnedAt
	l.ReturnedAt = &at
	l.Version++
	l.UpdatedAt = returnedAt
	return cloneLoan(l), nil
}

func (r *MemoryRepository) ExtendDue(_ context.Context, id uuid.UUID, by time.Duration, now time.Time) (*model.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.loans[id]
	if !ok {
		return nil, model.NewLoanNotFoundError(id)
	}
	if !l.IsActive() {
		return nil, model.ErrAlreadyReturned
	}

	l.DueAt = l.DueAt.Add(by)
	l.Version++
	l.UpdatedAt = now
	return cloneLoan(l), nil
}

func (r *MemoryRepository) CountActiveByBorrower(_ context.Context, borrowerID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countActiveLocked(borrowerID), nil
}

func (r *MemoryRepository) ExistsActiveForTitle(_ context.Context, titleID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.loans {
		if l.TitleID == titleID && l.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) List(_ context.Context, filter model.LoanFilter) ([]model.Loan, int, error) {
	filter = filter.Normalize()

	r.mu.RLock()
	matched := make([]model.Loan, 0)
	for _, l := range r.loans {
		if filter.Matches(l) {
			matched = append(matched, *cloneLoan(l))
		}
	}
	r.mu.RUnlock()

	sortLoans(matched, filter.Sort)

	total := len(matched)
	if filter.Offset >= total {
		return []model.Loan{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (r *MemoryRepository) Stats(_ context.Context, ref time.Time) (*model.LoanStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &model.LoanStats{Ref: ref, Total: len(r.loans)}
	for _, l := range r.loans {
		if l.IsActive() {
			stats.Active++
			if model.IsOverdue(l, ref) {
				stats.Overdue++
			}
		} else {
			stats.Returned++
		}
	}
	return stats, nil
}

func (r *MemoryRepository) countActiveLocked(borrowerID uuid.UUID) int {
	n := 0
	for _, l := range r.loans {
		if l.BorrowerID == borrowerID && l.IsActive() {
			n++
		}
	}
	return n
}

// sortLoans mirrors the ORDER BY of buildListQuery.
func sortLoans(loans []model.Loan, order model.SortOrder) {
	sort.Slice(loans, func(i, j int) bool {
		a, b := loans[i], loans[j]
		switch order {
		case model.SortDueAsc:
			if !a.DueAt.Equal(b.DueAt) {
				return a.DueAt.Before(b.DueAt)
			}
		default:
			if !a.StartedAt.Equal(b.StartedAt) {
				return a.StartedAt.After(b.StartedAt)
			}
		}
		return a.ID.String() < b.ID.String()
	})
}

func cloneLoan(l *model.Loan) *model.Loan {
	c := *l
	if l.ReturnedAt != nil {
		at := *l.ReturnedAt
		c.ReturnedAt = &at
	}
	return &c
}
