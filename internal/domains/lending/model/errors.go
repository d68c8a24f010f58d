package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidInput covers malformed arguments and unknown or ineligible borrowers/titles.
	ErrInvalidInput = errors.New("invalid input")

	ErrUnknownBorrower     = fmt.Errorf("%w: unknown borrower", ErrInvalidInput)
	ErrBorrowerNotEligible = fmt.Errorf("%w: borrower is not eligible to borrow", ErrInvalidInput)
	ErrUnknownTitle        = fmt.Errorf("%w: unknown title", ErrInvalidInput)

	ErrStockUnavailable     = errors.New("no copies of this title are available")
	ErrBorrowingCapExceeded = errors.New("borrowing cap exceeded")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrAlreadyReturned      = errors.New("loan already returned")

	// ErrReservationLeak marks a committed return whose stock release did not happen.
	ErrReservationLeak = errors.New("loan returned but stock was not released")

	// ErrInconsistentState means a failed borrow could not be compensated.
	// Stock is short by one copy until an operator reconciles it.
	ErrInconsistentState = errors.New("inconsistent lending state")

	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrOutcomeUnknown means storage failed in a way that hides whether a borrow committed.
	// The copy stays reserved until reconciliation settles it.
	ErrOutcomeUnknown = errors.New("borrow outcome unknown")
)

func NewLoanNotFoundError(id uuid.UUID) error {
	return fmt.Errorf("%w: id=%s", ErrLoanNotFound, id)
}

func NewCapExceededError(active, limit int) error {
	return fmt.Errorf("%w: %d active loans, limit %d", ErrBorrowingCapExceeded, active, limit)
}

// ReservationLeakError carries what reconciliation needs to restore the copy.
type ReservationLeakError struct {
	LoanID  uuid.UUID
	TitleID uuid.UUID
	Cause   error
}

func (e *ReservationLeakError) Error() string {
	return fmt.Sprintf("%s: loan=%s title=%s: %v", ErrReservationLeak, e.LoanID, e.TitleID, e.Cause)
}

func (e *ReservationLeakError) Is(target error) bool {
	return target == ErrReservationLeak
}

func (e *ReservationLeakError) Unwrap() error {
	return e.Cause
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrLoanNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsReservationLeak(err error) bool {
	return errors.Is(err, ErrReservationLeak)
}

// Error codes exposed by the HTTP layer
const (
	ErrCodeInvalidRequest      = "LND_001"
	ErrCodeUnknownBorrower     = "LND_002"
	ErrCodeBorrowerNotEligible = "LND_003"
	ErrCodeUnknownTitle        = "LND_004"
	ErrCodeStockUnavailable    = "LND_005"
	ErrCodeCapExceeded         = "LND_006"
	ErrCodeLoanNotFound        = "LND_007"
	ErrCodeAlreadyReturned     = "LND_008"
	ErrCodeReservationLeak     = "LND_009"
	ErrCodeInconsistentState   = "LND_010"
	ErrCodeStorageUnavailable  = "LND_011"
	ErrCodeOutcomeUnknown      = "LND_012"
	ErrCodeInternal            = "LND_500"
)
