package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrNetwork          = errors.New("network error")
	ErrProvider         = errors.New("provider error")
	ErrTimeout          = errors.New("timeout")
	ErrCancellation     = errors.New("cancelled")
	ErrUnexpectedStatus = errors.New("unexpected payment status")
)

// Error is the error delivered to a flow's OnError callback.
type Error struct {
	Kind    error
	Message string
	// Raw holds the backend body for passthrough errors.
	Raw json.RawMessage
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(format string, args ...interface{}) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewNetworkError(message string, err error) error {
	return &Error{Kind: ErrNetwork, Message: message, Err: err}
}

func NewProviderError(message string) error {
	return &Error{Kind: ErrProvider, Message: message}
}

func NewTimeoutError(message string) error {
	return &Error{Kind: ErrTimeout, Message: message}
}

func NewCancellationError(message string) error {
	return &Error{Kind: ErrCancellation, Message: message}
}

func NewUnexpectedStatusError(status string, raw json.RawMessage) error {
	return &Error{
		Kind:    ErrUnexpectedStatus,
		Message: fmt.Sprintf("payment returned status %q", status),
		Raw:     raw,
	}
}
