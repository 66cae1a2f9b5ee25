package validation

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Error represents a single field validation failure.
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func FormatValidationError(err error) []Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]Error, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, Error{
			Field:   e.Field(),
			Message: e.Error(),
		})
	}
	return out
}
