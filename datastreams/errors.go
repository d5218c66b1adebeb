package datastreams

import (
	"errors"
	"fmt"
)

// ErrorCode represents a generic datastream ErrorCode
type ErrorCode int

const (
	FILTER ErrorCode = iota
	SWITCH_MAP
	JOIN
)

// String converts ErrorCode enum into a string value
func (w ErrorCode) String() string {
	return [...]string{
		"FILTER",
		"SWITCH_MAP",
		"JOIN",
	}[w]
}

// Message converts ErrorCode enum into a human-readable message
func (w ErrorCode) Message(msg string, segment string) string {
	return fmt.Sprintf(
		"datastream %s error (code: %d segment: %s, message: %s)", w.String(), w, segment, msg,
	)
}

// Error defines a custom error type. Err holds the error returned by the user
// defined function, so callers can match it with errors.Is and errors.As.
type Error struct {
	Code    ErrorCode
	Segment string
	Message string
	Err     error
}

// Error implements the Error interface
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, segment string, err error) error {
	return &Error{
		Code:    code,
		Segment: segment,
		Message: code.Message(err.Error(), segment),
		Err:     err,
	}
}

func newFilterError(segment string, err error) error {
	return newError(FILTER, segment, err)
}

func newSwitchMapError(segment string, err error) error {
	return newError(SWITCH_MAP, segment, err)
}

func newJoinError(segment string, err error) error {
	return newError(JOIN, segment, err)
}

func isError(err error, code ErrorCode) bool {
	var dsErr *Error
	if !errors.As(err, &dsErr) {
		return false
	}
	return dsErr.Code == code
}

// IsFilterError checks if the given error is a FILTER error.
// It returns true if the error is a FILTER error, otherwise false.
func IsFilterError(err error) bool {
	return isError(err, FILTER)
}

// IsSwitchMapError checks if the given error was raised by a SwitchMap stage.
func IsSwitchMapError(err error) bool {
	return isError(err, SWITCH_MAP)
}

// IsJoinError checks if the given error was raised by Join.
func IsJoinError(err error) bool {
	return isError(err, JOIN)
}
