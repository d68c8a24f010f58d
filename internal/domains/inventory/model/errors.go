package model

import (
	"errors"
	"fmt"

	catalogModel "library-lending/internal/domains/catalog/model"

	"github.com/google/uuid"
)

var (
	// ErrStockUnavailable is returned by Reserve when the title has no copy on the shelf.
	ErrStockUnavailable = errors.New("no copies available")

	// ErrTitleNotFound is the catalog sentinel, re-exported so callers need one import.
	ErrTitleNotFound = catalogModel.ErrTitleNotFound
)

func NewStockUnavailableError(titleID uuid.UUID) error {
	return fmt.Errorf("%w: title_id=%s", ErrStockUnavailable, titleID)
}

func IsStockUnavailableError(err error) bool {
	return errors.Is(err, ErrStockUnavailable)
}

func IsTitleNotFoundError(err error) bool {
	return errors.Is(err, ErrTitleNotFound)
}
