package core

import (
	"fmt"

	"github.com/pkg/errors"
)

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

func (err ValidationError) Unwrap() error { return err.Err }

// AuthError is a failed authentication attempt translated into a user-facing message.
type AuthError struct {
	Code    string
	Message string
}

func (err AuthError) Error() string {
	return err.Message
}

// WriteError wraps a failed write against the record store.
type WriteError struct {
	Op         string
	Collection string
	Err        error
}

func NewWriteError(op, collection string, err error) error {
	return &WriteError{Op: op, Collection: collection, Err: err}
}

func (err *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", err.Op, err.Collection, err.Err)
}

func (err *WriteError) Unwrap() error { return err.Err }

// ReadError wraps a failed read against the record store.
type ReadError struct {
	Op         string
	Collection string
	Err        error
}

func NewReadError(op, collection string, err error) error {
	return &ReadError{Op: op, Collection: collection, Err: err}
}

func (err *ReadError) Error() string {
	return fmt.Sprintf("%s %s: %v", err.Op, err.Collection, err.Err)
}

func (err *ReadError) Unwrap() error { return err.Err }

// MediaAcquisitionError is returned when local audio/video could not be opened.
type MediaAcquisitionError struct {
	Err error
}

func (err *MediaAcquisitionError) Error() string {
	return "acquiring local media: " + err.Err.Error()
}

func (err *MediaAcquisitionError) Unwrap() error { return err.Err }

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
