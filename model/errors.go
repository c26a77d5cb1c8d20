package model

import (
	"github.com/pkg/errors"
)

var (
	ValidationError = errors.New("validation failed")
	maskAny         = errors.WithStack
)

// IsValidation returns true if the cause of the given error is a ValidationError.
func IsValidation(err error) bool {
	return errors.Cause(err) == ValidationError
}
