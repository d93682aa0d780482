package api

import (
	"github.com/go-playground/validator/v10"

	"github.com/Spok95/campus-attendance/internal/attendance"
)

// echoValidator reports the same field errors as the service.
type echoValidator struct {
	v *validator.Validate
}

func newValidator(v *validator.Validate) echoValidator { return echoValidator{v: v} }

func (ev echoValidator) Validate(i any) error {
	if err := ev.v.Struct(i); err != nil {
		return attendance.ValidationError(err)
	}
	return nil
}
