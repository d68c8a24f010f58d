package model

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var ErrInvalidMember = errors.New("invalid member")

func (m Member) Validate() error {
	err := validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&m.Email, validation.Required, is.EmailFormat),
		validation.Field(&m.Role, validation.In(RoleMember, RoleLibrarian, RoleAdmin)),
		validation.Field(&m.AccessLevel, validation.Min(0)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMember, err)
	}
	return nil
}
