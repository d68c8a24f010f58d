package shared

import "time"

// Clock returns the current time. Services take one so time-derived state is testable.
type Clock func() time.Time

// SystemClock is the production clock, always UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// Queue names, highest priority first.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Task types
const (
	TypeReconcileReservation = "lending:reconcile_reservation"
	TypeOverdueSweep         = "lending:overdue_sweep"
	TypeSyncStockSnapshot    = "inventory:sync_stock_snapshot"
)

// ReconcileReservationPayload describes a return whose stock release did not complete.
type ReconcileReservationPayload struct {
	LoanID     string    `json:"loanId"`
	TitleID    string    `json:"titleId"`
	BorrowerID string    `json:"borrowerId"`
	DetectedAt time.Time `json:"detectedAt"`
	Reason     string    `json:"reason"`
}

// StockSnapshotPayload refreshes one title, or all titles when TitleID is empty.
type StockSnapshotPayload struct {
	TitleID string `json:"titleId,omitempty"`
}

// OverdueSweepPayload carries the fine rate used for the sweep report. Empty means configured default.
type OverdueSweepPayload struct {
	DailyFine string `json:"dailyFine,omitempty"`
}
