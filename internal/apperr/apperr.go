// Package apperr provides coded errors shared by the recorder, pipeline and CLI.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an AppError
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodePrecondition    Code = "PRECONDITION"
	CodeCancelled       Code = "CANCELLED"
	CodeExternal        Code = "EXTERNAL"
	CodeIO              Code = "IO"
	CodeInternal        Code = "INTERNAL"
)

// AppError is the base error type with a code, the failing operation and an optional cause.
type AppError struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := e.Message
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Err }

// New creates an AppError.
func New(code Code, op, msg string) *AppError {
	return &AppError{Code: code, Op: op, Message: msg}
}

// Newf creates an AppError with a formatted message.
func Newf(code Code, op, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err. A nil err yields nil.
func Wrap(err error, code Code, op, msg string) error {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Op: op, Message: msg, Err: err}
}

// CodeOf returns the code of the first AppError in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries code anywhere in its chain.
func IsCode(err error, code Code) bool {
	var ae *AppError
	for err != nil {
		if !errors.As(err, &ae) {
			return false
		}
		if ae.Code == code {
			return true
		}
		err = ae.Err
	}
	return false
}
