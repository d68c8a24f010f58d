package model

import (
	"time"

	"github.com/google/uuid"
)

type MovementKind string

const (
	MovementReserve MovementKind = "reserve"
	MovementRelease MovementKind = "release"
)

// Movement is the audit record of one stock change caused by a loan.
// There is at most one movement per (LoanID, Kind).
type Movement struct {
	ID         uuid.UUID    `json:"id"`
	TitleID    uuid.UUID    `json:"title_id"`
	LoanID     uuid.UUID    `json:"loan_id"`
	Kind       MovementKind `json:"kind"`
	StockAfter int          `json:"stock_after"`
	CreatedAt  time.Time    `json:"created_at"`
}

// OutstandingReservation reports the title a loan still holds a copy of according to its
// movements: reserved and never released.
func OutstandingReservation(movements []Movement) (uuid.UUID, bool) {
	var titleID uuid.UUID
	reserved, released := false, false
	for _, m := range movements {
		switch m.Kind {
		case MovementReserve:
			reserved, titleID = true, m.TitleID
		case MovementRelease:
			released = true
		}
	}
	return titleID, reserved && !released
}

// StockChange is the outcome of Reserve or Release.
// AlreadyApplied means the movement for this loan was recorded earlier and stock was left alone.
type StockChange struct {
	TitleID        uuid.UUID    `json:"title_id"`
	LoanID         uuid.UUID    `json:"loan_id"`
	Kind           MovementKind `json:"kind"`
	StockAfter     int          `json:"stock_after"`
	AlreadyApplied bool         `json:"already_applied"`
}

// StockSnapshot is what gets cached in Redis for availability reads.
type StockSnapshot struct {
	TitleID  uuid.UUID `json:"title_id"`
	Stock    int       `json:"stock"`
	SyncedAt time.Time `json:"synced_at"`
}

func (s StockSnapshot) Available() bool {
	return s.Stock > 0
}

func SnapshotKey(titleID uuid.UUID) string {
	return "inventory:title:" + titleID.String() + ":stock"
}

const SnapshotKeyPattern = "inventory:title:*:stock"
