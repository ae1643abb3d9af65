package core

import "github.com/pkg/errors"

// FieldError ties a validation failure to the struct field that caused it.
// The API layer renders these as a field-to-message JSON object.
type FieldError struct {
	Field string
	Error string
}

// ValidationError wraps a request validation failure together with its
// per-field details. Services return it from Create and Update paths.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown marks an error the server cannot recover from, such as a lost
// database integrity guarantee. The API error handler checks for it with
// IsShutdown and stops the process.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown reports whether err, at its cause, asks for a shutdown.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
