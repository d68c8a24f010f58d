package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	invModel "library-lending/internal/domains/inventory/model"
	inventory "library-lending/internal/domains/inventory/service"
	"library-lending/internal/domains/lending/model"
	"library-lending/internal/domains/lending/repository"
	memberModel "library-lending/internal/domains/member/model"
	"library-lending/internal/shared"
	"library-lending/pkg/logger"

	"github.com/google/uuid"
)

// compensationTimeout bounds the stock release that runs after the caller's context is gone.
const compensationTimeout = 5 * time.Second

// =====================================================
// LENDING ENGINE
// =====================================================

// Engine runs the loan lifecycle ACTIVE -> RETURNED. It holds no locks of its own:
// stock atomicity lives in the inventory store and the borrowing cap in the loan store.
type Engine struct {
	loans     repository.RepositoryInterface
	inventory inventory.ServiceInterface
	borrowers BorrowerDirectory
	titles    TitleDirectory
	leaks     LeakReporter
	now       shared.Clock
}

// NewEngine wires the engine. A nil clock falls back to the system clock.
func NewEngine(
	loans repository.RepositoryInterface,
	inventory inventory.ServiceInterface,
	borrowers BorrowerDirectory,
	titles TitleDirectory,
	leaks LeakReporter,
	clock shared.Clock,
) *Engine {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Engine{
		loans:     loans,
		inventory: inventory,
		borrowers: borrowers,
		titles:    titles,
		leaks:     leaks,
		now:       clock,
	}
}

// Borrow reserves a copy and opens an ACTIVE loan. Either both happen or neither does.
func (e *Engine) Borrow(ctx context.Context, req model.BorrowRequest) (*model.Loan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	limit := req.Cap()

	if err := e.checkBorrower(ctx, req.BorrowerID); err != nil {
		return nil, err
	}

	exists, err := e.titles.Exists(ctx, req.TitleID)
	if err != nil {
		return nil, storageError("check title", err)
	}
	if !exists {
		return nil, model.ErrUnknownTitle
	}

	// Fast path only. CreateWithinCap re-checks atomically.
	active, err := e.loans.CountActiveByBorrower(ctx, req.BorrowerID)
	if err != nil {
		return nil, storageError("count active loans", err)
	}
	if active >= limit {
		return nil, model.NewCapExceededError(active, limit)
	}

	loan := model.NewLoan(uuid.New(), req.BorrowerID, req.TitleID, e.now(), req.DurationDays)
	if _, err := e.inventory.Reserve(ctx, req.TitleID, loan.ID); err != nil {
		err = translateInventoryError("reserve stock", req.TitleID, err)
		if errors.Is(err, model.ErrStorageUnavailable) {
			// The reserve may have committed without the reply reaching us.
			e.reportLeak(ctx, &model.ReservationLeakError{LoanID: loan.ID, TitleID: loan.TitleID, Cause: err}, loan.BorrowerID)
		}
		return nil, err
	}

	if err := e.loans.CreateWithinCap(ctx, loan, limit); err != nil {
		return e.settleFailedCreate(ctx, loan, err)
	}

	logger.Info("loan created", map[string]interface{}{
		"event":       "loan_borrowed",
		"loan_id":     loan.ID.String(),
		"borrower_id": loan.BorrowerID.String(),
		"title_id":    loan.TitleID.String(),
		"due_at":      loan.DueAt,
	})
	return loan, nil
}

func (e *Engine) checkBorrower(ctx context.Context, borrowerID uuid.UUID) error {
	member, err := e.borrowers.GetByID(ctx, borrowerID)
	if err != nil {
		if memberModel.IsNotFoundError(err) {
			return model.ErrUnknownBorrower
		}
		return storageError("get borrower", err)
	}
	if !member.CanBorrow() {
		return model.ErrBorrowerNotEligible
	}
	return nil
}

// settleFailedCreate decides what a failed CreateWithinCap left behind. A rejection by the
// store never wrote the loan. Any other error can hide a commit, so the loan is looked up
// before its copy is given back.
func (e *Engine) settleFailedCreate(ctx context.Context, loan *model.Loan, cause error) (*model.Loan, error) {
	if errors.Is(cause, model.ErrBorrowingCapExceeded) || errors.Is(cause, model.ErrInvalidInput) {
		return nil, e.compensateReservation(ctx, loan, cause)
	}

	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	stored, err := e.loans.GetByID(lookupCtx, loan.ID)
	switch {
	case err == nil:
		logger.Warn("loan committed although the create call failed", map[string]interface{}{
			"event":       "borrow_commit_recovered",
			"loan_id":     stored.ID.String(),
			"borrower_id": stored.BorrowerID.String(),
			"title_id":    stored.TitleID.String(),
			"cause":       cause.Error(),
		})
		return stored, nil
	case model.IsNotFoundError(err):
		return nil, e.compensateReservation(ctx, loan, cause)
	default:
		unknown := fmt.Errorf("%w: %w: loan %s: %w", model.ErrStorageUnavailable, model.ErrOutcomeUnknown, loan.ID, cause)
		e.reportLeak(ctx, &model.ReservationLeakError{LoanID: loan.ID, TitleID: loan.TitleID, Cause: unknown}, loan.BorrowerID)
		return nil, unknown
	}
}

// compensateReservation gives back the copy reserved for a loan that was never persisted.
// The original failure is returned unless the release fails too.
func (e *Engine) compensateReservation(ctx context.Context, loan *model.Loan, cause error) error {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if _, err := e.inventory.Release(releaseCtx, loan.TitleID, loan.ID); err != nil {
		logger.ErrorWith("borrow compensation failed, stock is short by one copy", err, map[string]interface{}{
			"event":       "inconsistent_state",
			"loan_id":     loan.ID.String(),
			"borrower_id": loan.BorrowerID.String(),
			"title_id":    loan.TitleID.String(),
			"cause":       cause.Error(),
		})
		return fmt.Errorf("%w: loan %s not persisted (%v) and reservation not released: %w",
			model.ErrInconsistentState, loan.ID, cause, err)
	}

	logger.Info("borrow rolled back", map[string]interface{}{
		"event":    "borrow_compensated",
		"loan_id":  loan.ID.String(),
		"title_id": loan.TitleID.String(),
		"cause":    cause.Error(),
	})

	switch {
	case errors.Is(cause, model.ErrBorrowingCapExceeded),
		errors.Is(cause, model.ErrInvalidInput):
		return cause
	default:
		return storageError("create loan", cause)
	}
}

// ReturnLoan closes an ACTIVE loan and gives its copy back to the shelf.
//
// The loan update is committed first. When the release afterwards fails the returned loan
// is still handed back, along with a *model.ReservationLeakError.
func (e *Engine) ReturnLoan(ctx context.Context, loanID uuid.UUID) (*model.Loan, error) {
	current, err := e.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, loanLookupError("get loan", err)
	}
	if !current.IsActive() {
		return nil, model.ErrAlreadyReturned
	}

	loan, err := e.loans.MarkReturned(ctx, loanID, e.now())
	if err != nil {
		err = loanLookupError("mark loan returned", err)
		if errors.Is(err, model.ErrStorageUnavailable) {
			// The return may have committed; reconciliation releases the copy only if it did.
			e.reportLeak(ctx, &model.ReservationLeakError{LoanID: current.ID, TitleID: current.TitleID, Cause: err}, current.BorrowerID)
		}
		return nil, err
	}

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if _, err := e.inventory.Release(releaseCtx, loan.TitleID, loan.ID); err != nil {
		leak := &model.ReservationLeakError{LoanID: loan.ID, TitleID: loan.TitleID, Cause: err}
		logger.ErrorWith("loan returned but stock release failed", err, map[string]interface{}{
			"event":       "reservation_leak",
			"loan_id":     loan.ID.String(),
			"borrower_id": loan.BorrowerID.String(),
			"title_id":    loan.TitleID.String(),
		})
		e.reportLeak(ctx, leak, loan.BorrowerID)
		return loan, leak
	}

	logger.Info("loan returned", map[string]interface{}{
		"event":       "loan_returned",
		"loan_id":     loan.ID.String(),
		"borrower_id": loan.BorrowerID.String(),
		"title_id":    loan.TitleID.String(),
	})
	return loan, nil
}

// reportLeak queues reconciliation for a copy whose reservation may not match a loan.
// The reconciler looks at the loan and the movements before it touches stock.
func (e *Engine) reportLeak(ctx context.Context, leak *model.ReservationLeakError, borrowerID uuid.UUID) {
	if e.leaks == nil {
		return
	}
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := e.leaks.ReportLeak(reportCtx, leak, borrowerID); err != nil {
		logger.ErrorWith("reservation leak not queued for reconciliation", err, map[string]interface{}{
			"event":    "reservation_leak_unreported",
			"loan_id":  leak.LoanID.String(),
			"title_id": leak.TitleID.String(),
		})
	}
}

// Extend moves the due date of an ACTIVE loan. Stock is not touched.
func (e *Engine) Extend(ctx context.Context, loanID uuid.UUID, additionalDays int) (*model.Loan, error) {
	if err := (model.ExtendLoanRequest{AdditionalDays: additionalDays}).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}

	loan, err := e.loans.ExtendDue(ctx, loanID, time.Duration(additionalDays)*model.Day, e.now())
	if err != nil {
		return nil, loanLookupError("extend loan", err)
	}

	logger.Info("loan extended", map[string]interface{}{
		"event":   "loan_extended",
		"loan_id": loan.ID.String(),
		"days":    additionalDays,
		"due_at":  loan.DueAt,
	})
	return loan, nil
}

// GetLoan returns the loan or ErrLoanNotFound.
func (e *Engine) GetLoan(ctx context.Context, loanID uuid.UUID) (*model.Loan, error) {
	loan, err := e.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, loanLookupError("get loan", err)
	}
	return loan, nil
}

// ActiveLoanCount counts the borrower's loans that are not yet returned.
func (e *Engine) ActiveLoanCount(ctx context.Context, borrowerID uuid.UUID) (int, error) {
	n, err := e.loans.CountActiveByBorrower(ctx, borrowerID)
	if err != nil {
		return 0, storageError("count active loans", err)
	}
	return n, nil
}

// CanBorrowMore reports whether the borrower is under the cap. maxActiveLoans <= 0 means the default.
func (e *Engine) CanBorrowMore(ctx context.Context, borrowerID uuid.UUID, maxActiveLoans int) (bool, error) {
	n, err := e.ActiveLoanCount(ctx, borrowerID)
	if err != nil {
		return false, err
	}
	return n < (model.BorrowRequest{MaxActiveLoans: maxActiveLoans}).Cap(), nil
}

// IsTitleCurrentlyLent reports whether any ACTIVE loan holds a copy of the title.
func (e *Engine) IsTitleCurrentlyLent(ctx context.Context, titleID uuid.UUID) (bool, error) {
	lent, err := e.loans.ExistsActiveForTitle(ctx, titleID)
	if err != nil {
		return false, storageError("check active loans for title", err)
	}
	return lent, nil
}

// =====================================================
// ERROR TRANSLATION
// =====================================================

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrStorageUnavailable, op, err)
}

// loanLookupError keeps the loan store's domain errors and wraps everything else.
func loanLookupError(op string, err error) error {
	if errors.Is(err, model.ErrLoanNotFound) || errors.Is(err, model.ErrAlreadyReturned) {
		return err
	}
	return storageError(op, err)
}

func translateInventoryError(op string, titleID uuid.UUID, err error) error {
	switch {
	case invModel.IsStockUnavailableError(err):
		return fmt.Errorf("%w: title_id=%s", model.ErrStockUnavailable, titleID)
	case invModel.IsTitleNotFoundError(err):
		return model.ErrUnknownTitle
	default:
		return storageError(op, err)
	}
}
