package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError describes one failed validation rule on a request payload.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// DecodeJSON decodes the request body into dst and validates its struct tags.
// The returned error is always an *AppError suitable for WriteError.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return BadRequest("invalid request payload", nil)
	}
	return Validate(dst)
}

// Validate runs validator tags on v.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, FieldError{Field: lowerFirst(fe.Field()), Rule: fe.Tag()})
		}
		return BadRequest("validation failed", details)
	}
	return BadRequest("invalid request payload", nil)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
