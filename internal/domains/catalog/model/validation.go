package model

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var isbnPattern = regexp.MustCompile(`^(97[89])?\d{9}[\dX]$`)

// Validate checks a title before it is written to the catalog.
func (t Title) Validate() error {
	err := validation.ValidateStruct(&t,
		validation.Field(&t.ISBN,
			validation.Required.Error("isbn is required"),
			validation.Match(isbnPattern).Error("isbn must be 10 or 13 digits without dashes"),
		),
		validation.Field(&t.Title,
			validation.Required.Error("title is required"),
			validation.Length(1, 500),
		),
		validation.Field(&t.Author, validation.Length(0, 255)),
		validation.Field(&t.Stock, validation.Min(0).Error("stock cannot be negative")),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTitle, err)
	}
	return nil
}
