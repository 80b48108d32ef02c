package transport

import (
	"errors"
	"fmt"
)

// ErrorClass groups transport errors by cause.
type ErrorClass int

// The error classes a transport reports.
const (
	ErrOther ErrorClass = iota
	ErrBuffer
	ErrCount
	ErrType
	ErrRank
	ErrRoot
	ErrTag
	ErrTruncate
	ErrRequest
	ErrOp
	ErrNotInitialized
	ErrInitialized
	ErrFinalized
)

var classNames = map[ErrorClass]string{
	ErrOther:          "unclassified error",
	ErrBuffer:         "invalid buffer",
	ErrCount:          "invalid count",
	ErrType:           "invalid datatype",
	ErrRank:           "invalid rank",
	ErrRoot:           "invalid root",
	ErrTag:            "invalid tag",
	ErrTruncate:       "message truncated",
	ErrRequest:        "invalid request",
	ErrOp:             "invalid reduction operator",
	ErrNotInitialized: "transport not initialized",
	ErrInitialized:    "transport already initialized",
	ErrFinalized:      "transport already finalized",
}

func (c ErrorClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}

	return fmt.Sprintf("error class %d", int(c))
}

// Error is the error type returned by transports.
type Error struct {
	Class  ErrorClass
	Detail string
}

// Errorf creates an Error of the given class.
func Errorf(class ErrorClass, format string, args ...any) *Error {
	return &Error{Class: class, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Class.String()
	}

	return e.Class.String() + ": " + e.Detail
}

// Is matches errors of the same class, so that a bare &Error{Class: c} can
// be used as a target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Class == e.Class && (t.Detail == "" || t.Detail == e.Detail)
}

// ClassOf returns the class of err, or ErrOther when err does not come from a
// transport.
func ClassOf(err error) ErrorClass {
	var te *Error
	if errors.As(err, &te) {
		return te.Class
	}

	return ErrOther
}

// Describe renders err the way ErrorString implementations usually do.
func Describe(err error) string {
	if err == nil {
		return "no error"
	}

	var te *Error
	if errors.As(err, &te) {
		return te.Error()
	}

	return ErrOther.String() + ": " + err.Error()
}
