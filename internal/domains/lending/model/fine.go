package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Calculator defaults
var (
	DefaultDailyFine     = decimal.RequireFromString("1.00")
	DefaultDueSoonWindow = 3 * Day
)

// fineScale is the smallest currency unit, cents.
const fineScale = 2

// IsOverdue reports an active loan whose due date lies strictly before ref.
func IsOverdue(l *Loan, ref time.Time) bool {
	return l.IsActive() && ref.After(l.DueAt)
}

// DaysOverdue counts whole days past due. Returned loans are never overdue.
func DaysOverdue(l *Loan, ref time.Time) int {
	if !IsOverdue(l, ref) {
		return 0
	}
	return int(ref.Sub(l.DueAt) / Day)
}

// Fine is DaysOverdue * dailyRate rounded to cents.
func Fine(l *Loan, ref time.Time, dailyRate decimal.Decimal) (decimal.Decimal, error) {
	if dailyRate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: daily fine rate must not be negative", ErrInvalidInput)
	}
	days := decimal.NewFromInt(int64(DaysOverdue(l, ref)))
	return days.Mul(dailyRate).Round(fineScale), nil
}

// IsDueSoon reports an active loan due within (ref, ref+window].
func IsDueSoon(l *Loan, ref time.Time, window time.Duration) bool {
	if !l.IsActive() || !l.DueAt.After(ref) {
		return false
	}
	return !l.DueAt.After(ref.Add(window))
}

// DaysUntilDue counts whole days left; negative once overdue, 0 for returned loans.
func DaysUntilDue(l *Loan, ref time.Time) int {
	if !l.IsActive() {
		return 0
	}
	if IsOverdue(l, ref) {
		return -DaysOverdue(l, ref)
	}
	return int(l.DueAt.Sub(ref) / Day)
}
