package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrTitleNotFound      = errors.New("title not found")
	ErrTitleAlreadyExists = errors.New("title with this isbn already exists")
	ErrInvalidStock       = errors.New("stock cannot be negative")
	ErrInvalidTitle       = errors.New("invalid title")
)

func NewTitleNotFoundError(id uuid.UUID) error {
	return fmt.Errorf("%w: id=%s", ErrTitleNotFound, id)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrTitleNotFound)
}
