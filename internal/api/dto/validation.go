package dto

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/auth-service/pkg/util/errorutil"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// bcrypt limits passwords by byte length; "max" counts runes.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	return v
}

// Validate checks struct tags and converts failures into a VALIDATION_FAILED error
// keyed by field name.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperrors.NewInternalError(err)
	}

	fields := make(map[string]any, len(validationErrors))
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = fmt.Sprintf("%s is required", fe.Field())
		case "min":
			fields[fe.Field()] = fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		case "max":
			fields[fe.Field()] = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		case "maxbytes":
			fields[fe.Field()] = fmt.Sprintf("%s must be at most %s bytes", fe.Field(), fe.Param())
		default:
			fields[fe.Field()] = fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag())
		}
	}
	return apperrors.NewValidationError("invalid payload", fields)
}
