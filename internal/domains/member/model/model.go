package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleMember    Role = "member"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

// Member is a borrower known to the library.
type Member struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Email       string    `json:"email" db:"email"`
	Role        Role      `json:"role" db:"role"`
	AccessLevel int       `json:"access_level" db:"access_level"`
	Active      bool      `json:"active" db:"active"`
	Deleted     bool      `json:"deleted" db:"deleted"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// CanBorrow reports whether the member may start new loans.
func (m *Member) CanBorrow() bool {
	return m.Active && !m.Deleted
}

var ErrMemberNotFound = errors.New("member not found")

func NewMemberNotFoundError(id uuid.UUID) error {
	return fmt.Errorf("%w: id=%s", ErrMemberNotFound, id)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrMemberNotFound)
}
