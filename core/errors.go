package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// PersistenceError marks a failure of the underlying store. Callers may retry the whole operation.
type PersistenceError struct {
	Err error
}

func NewPersistenceError(err error) error {
	return &PersistenceError{Err: err}
}

func (err PersistenceError) Error() string {
	if err.Err == nil {
		return "store unavailable"
	}
	return err.Err.Error()
}

func (err PersistenceError) Unwrap() error { return err.Err }

func IsPersistence(err error) bool {
	_, ok := errors.Cause(err).(*PersistenceError)
	return ok
}
