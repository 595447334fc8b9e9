package common

import (
	"fmt"

	"emperror.dev/errors"
)

// ErrNotFound is returned when operating on a row that does not exist, racing
// deleters treat it as a benign no-op
var ErrNotFound = errors.NewPlain("not found")

// ValidationError is returned for malformed configuration or parameters,
// always before any state was mutated
type ValidationError struct {
	Field  string
	Reason string
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", v.Field, v.Reason)
}

func NewValidationError(field string, reasonf string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(reasonf, args...)}
}

// IsValidationError returns true if the cause of err is a *ValidationError
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
