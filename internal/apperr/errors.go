// Package apperr carries the error taxonomy shared by services, REST handlers
// and the websocket protocol.
package apperr

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// InsufficientFundsError is a user-recoverable rejection of a spend.
type InsufficientFundsError struct {
	Required  int64 `json:"required"`
	Available int64 `json:"available"`
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: need %d, have %d", e.Required, e.Available)
}

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func AlreadyExists(msg string) error {
	return New(CodeAlreadyExists, msg)
}

func Unauthorized(msg string) error {
	return New(CodeUnauthenticated, msg)
}

func Forbidden(msg string) error {
	return New(CodePermissionDenied, msg)
}

func FailedPrecondition(msg string) error {
	return New(CodeFailedPrecondition, msg)
}

func Unavailable(msg string, cause error) error {
	return Wrap(CodeUnavailable, msg, cause)
}

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

func InsufficientFunds(required, available int64) error {
	return &InsufficientFundsError{Required: required, Available: available}
}

// CodeOf returns the code carried by err, CodeInternal for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var funds *InsufficientFundsError
	if errors.As(err, &funds) {
		return CodeInsufficientFunds
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message for err.
func MessageOf(err error) string {
	var funds *InsufficientFundsError
	if errors.As(err, &funds) {
		return funds.Error()
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// AsInsufficientFunds extracts the funds detail from err.
func AsInsufficientFunds(err error) (*InsufficientFundsError, bool) {
	var funds *InsufficientFundsError
	if errors.As(err, &funds) {
		return funds, true
	}
	return nil, false
}
