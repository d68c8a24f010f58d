package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Title is one catalog entry. Stock counts the copies currently on the shelf.
type Title struct {
	ID       uuid.UUID      `json:"id" db:"id"`
	ISBN     string         `json:"isbn" db:"isbn"`
	Title    string         `json:"title" db:"title"`
	Author   string         `json:"author" db:"author"`
	Subjects pq.StringArray `json:"subjects" db:"subjects"`

	Stock int `json:"stock" db:"stock"`

	// Optimistic locking, bumped on every stock change
	Version int `json:"version" db:"version"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// StockLevel is the projection used by stock snapshots.
type StockLevel struct {
	TitleID uuid.UUID `json:"title_id"`
	Stock   int       `json:"stock"`
	Version int       `json:"version"`
}

func (t *Title) StockLevel() StockLevel {
	return StockLevel{TitleID: t.ID, Stock: t.Stock, Version: t.Version}
}
