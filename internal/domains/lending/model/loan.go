package model

import (
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateActive   State = "active"
	StateReturned State = "returned"
	// StateOverdue is a query-time view of an active loan past its due date, never stored.
	StateOverdue State = "overdue"
)

// Loan is one borrow-to-return transaction for one copy of a title.
// The state is derived from ReturnedAt: ACTIVE while nil, RETURNED afterwards (terminal).
type Loan struct {
	ID         uuid.UUID  `json:"id"`
	BorrowerID uuid.UUID  `json:"borrower_id"`
	TitleID    uuid.UUID  `json:"title_id"`
	StartedAt  time.Time  `json:"started_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const Day = 24 * time.Hour

// NewLoan starts an ACTIVE loan at now, due durationDays later.
func NewLoan(id, borrowerID, titleID uuid.UUID, now time.Time, durationDays int) *Loan {
	return &Loan{
		ID:         id,
		BorrowerID: borrowerID,
		TitleID:    titleID,
		StartedAt:  now,
		DueAt:      now.Add(time.Duration(durationDays) * Day),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (l *Loan) IsActive() bool {
	return l.ReturnedAt == nil
}

func (l *Loan) State() State {
	if l.IsActive() {
		return StateActive
	}
	return StateReturned
}
