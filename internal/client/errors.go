package client

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected   = errors.New("not connected to relay")
	ErrSignalingError = errors.New("relay signaling error")
	ErrTimeout        = errors.New("timeout")
	ErrClosed         = errors.New("connection closed")
)

// Error records a failed client operation.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
