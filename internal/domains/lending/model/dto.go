package model

import (
	"fmt"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Borrowing policy defaults
const (
	DefaultMaxActiveLoans = 3
	DefaultLoanDays       = 14
	MaxListLimit          = 200
	DefaultListLimit      = 20
)

// MaxLoanDays is the longest span, in days, a time.Duration can represent.
// Any positive duration up to it is accepted for borrowing and extending.
const MaxLoanDays = int(math.MaxInt64 / Day)

// BorrowRequest asks the engine to lend one copy of TitleID to BorrowerID.
// MaxActiveLoans is the cap for this call, 0 means DefaultMaxActiveLoans.
type BorrowRequest struct {
	BorrowerID     uuid.UUID
	TitleID        uuid.UUID
	DurationDays   int
	MaxActiveLoans int
}

func (r BorrowRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.BorrowerID, validation.By(notNilUUID("borrower_id"))),
		validation.Field(&r.TitleID, validation.By(notNilUUID("title_id"))),
		validation.Field(&r.DurationDays,
			validation.Required.Error("duration_days must be positive"),
			validation.Min(1).Error("duration_days must be positive"),
			validation.Max(MaxLoanDays).Error(fmt.Sprintf("duration_days must not exceed %d", MaxLoanDays)),
		),
		validation.Field(&r.MaxActiveLoans, validation.Min(0).Error("max_active_loans must not be negative")),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Cap returns the effective cap for the request.
func (r BorrowRequest) Cap() int {
	if r.MaxActiveLoans <= 0 {
		return DefaultMaxActiveLoans
	}
	return r.MaxActiveLoans
}

func notNilUUID(field string) validation.RuleFunc {
	return func(value interface{}) error {
		id, _ := value.(uuid.UUID)
		if id == uuid.Nil {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// CreateLoanRequest is the HTTP body of POST /loans.
type CreateLoanRequest struct {
	BorrowerID   string `json:"borrower_id"`
	TitleID      string `json:"title_id"`
	DurationDays *int   `json:"duration_days,omitempty"`
}

func (r CreateLoanRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.BorrowerID, validation.Required.Error("borrower_id is required"), validation.By(parsableUUID)),
		validation.Field(&r.TitleID, validation.Required.Error("title_id is required"), validation.By(parsableUUID)),
		validation.Field(&r.DurationDays, validation.NilOrNotEmpty.Error("duration_days must be positive"), validation.Min(1).Error("duration_days must be positive")),
	)
}

func parsableUUID(value interface{}) error {
	s, _ := value.(string)
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("must be a valid UUID")
	}
	return nil
}

// ExtendLoanRequest is the HTTP body of POST /loans/:id/extend.
type ExtendLoanRequest struct {
	AdditionalDays int `json:"additional_days"`
}

func (r ExtendLoanRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AdditionalDays,
			validation.Required.Error("additional_days must be positive"),
			validation.Min(1).Error("additional_days must be positive"),
			validation.Max(MaxLoanDays).Error(fmt.Sprintf("additional_days must not exceed %d", MaxLoanDays)),
		),
	)
}

type SortOrder string

const (
	SortStartedDesc SortOrder = "started_desc"
	SortDueAsc      SortOrder = "due_asc"
)

// LoanFilter selects loans for listings. Zero values mean "no constraint".
// State "overdue" needs Ref, the instant the due date is compared against.
type LoanFilter struct {
	BorrowerID *uuid.UUID
	TitleID    *uuid.UUID
	State      State

	DueFrom  *time.Time // inclusive
	DueAfter *time.Time // exclusive
	DueTo    *time.Time // inclusive

	Ref    time.Time
	Sort   SortOrder
	Limit  int
	Offset int
}

func (f LoanFilter) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.State, validation.In(StateActive, StateReturned, StateOverdue).Error("state must be active, returned or overdue")),
		validation.Field(&f.Sort, validation.In(SortStartedDesc, SortDueAsc)),
		validation.Field(&f.Limit, validation.Min(0), validation.Max(MaxListLimit)),
		validation.Field(&f.Offset, validation.Min(0)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if f.DueFrom != nil && f.DueTo != nil && f.DueTo.Before(*f.DueFrom) {
		return fmt.Errorf("%w: due_to is before due_from", ErrInvalidInput)
	}
	if f.State == StateOverdue && f.Ref.IsZero() {
		return fmt.Errorf("%w: overdue filter needs a reference time", ErrInvalidInput)
	}
	return nil
}

// Normalize fills in defaults for Limit and Sort.
func (f LoanFilter) Normalize() LoanFilter {
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	if f.Sort == "" {
		f.Sort = SortStartedDesc
	}
	return f
}

// Matches applies the filter to one loan. Used by the memory store.
func (f LoanFilter) Matches(l *Loan) bool {
	if f.BorrowerID != nil && l.BorrowerID != *f.BorrowerID {
		return false
	}
	if f.TitleID != nil && l.TitleID != *f.TitleID {
		return false
	}
	switch f.State {
	case StateActive:
		if !l.IsActive() {
			return false
		}
	case StateReturned:
		if l.IsActive() {
			return false
		}
	case StateOverdue:
		if !IsOverdue(l, f.Ref) {
			return false
		}
	}
	if f.DueFrom != nil && l.DueAt.Before(*f.DueFrom) {
		return false
	}
	if f.DueAfter != nil && !l.DueAt.After(*f.DueAfter) {
		return false
	}
	if f.DueTo != nil && l.DueAt.After(*f.DueTo) {
		return false
	}
	return true
}

// LoanView is a loan plus the state derived at Ref.
type LoanView struct {
	Loan
	State        State           `json:"state"`
	Overdue      bool            `json:"overdue"`
	DaysOverdue  int             `json:"days_overdue"`
	DaysUntilDue int             `json:"days_until_due"`
	DueSoon      bool            `json:"due_soon"`
	Fine         decimal.Decimal `json:"fine"`
	Ref          time.Time       `json:"evaluated_at"`
}

// NewLoanView evaluates l at ref. dailyRate must already be validated as non-negative.
func NewLoanView(l *Loan, ref time.Time, dailyRate decimal.Decimal, dueSoonWindow time.Duration) LoanView {
	fine, err := Fine(l, ref, dailyRate)
	if err != nil {
		fine = decimal.Zero
	}
	return LoanView{
		Loan:         *l,
		State:        l.State(),
		Overdue:      IsOverdue(l, ref),
		DaysOverdue:  DaysOverdue(l, ref),
		DaysUntilDue: DaysUntilDue(l, ref),
		DueSoon:      IsDueSoon(l, ref, dueSoonWindow),
		Fine:         fine,
		Ref:          ref,
	}
}

// LoanStats are library-wide counters at a reference time.
type LoanStats struct {
	Total    int       `json:"total"`
	Active   int       `json:"active"`
	Overdue  int       `json:"overdue"`
	Returned int       `json:"returned"`
	Ref      time.Time `json:"evaluated_at"`
}

// BorrowerSummary answers "how many loans does this member hold and may they borrow more".
type BorrowerSummary struct {
	BorrowerID     uuid.UUID `json:"borrower_id"`
	ActiveLoans    int       `json:"active_loans"`
	MaxActiveLoans int       `json:"max_active_loans"`
	CanBorrow      bool      `json:"can_borrow"`
}
