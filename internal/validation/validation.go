package validation

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/sobhagya/callcore/internal/errors"
)

const ErrInvalidPayload errors.Code = "invalid payload"

var validate = validator.New()

// Bind unmarshals raw JSON into v and runs struct validation.
func Bind(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New(ErrInvalidPayload, "payload required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(ErrInvalidPayload, err, "unmarshal payload")
	}
	return Struct(v)
}

// Struct validates an already-decoded value.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return errors.Wrap(ErrInvalidPayload, err, "validate payload")
	}
	return nil
}
