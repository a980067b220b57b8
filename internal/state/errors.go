package state

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeAlreadyExists indicates an insert on a key that is already present.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// ErrCodeNotFound indicates a get or update on an absent key.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeDecode indicates stored bytes could not be parsed into the
	// shape the caller expected.
	ErrCodeDecode ErrorCode = "DECODE_ERROR"

	// ErrCodeInvalidKey indicates a malformed key or an unknown namespace.
	ErrCodeInvalidKey ErrorCode = "INVALID_KEY"

	// ErrCodeNamespacePolicy indicates an operation the key's namespace does
	// not allow (upsert on insert-once, delete on non-deletable).
	ErrCodeNamespacePolicy ErrorCode = "NAMESPACE_POLICY"

	// ErrCodeVersionOverflow indicates the version counter is exhausted.
	ErrCodeVersionOverflow ErrorCode = "VERSION_OVERFLOW"

	// ErrCodeInvalidSnapshot indicates a snapshot that cannot seed a store.
	ErrCodeInvalidSnapshot ErrorCode = "INVALID_SNAPSHOT"
)

// Error is returned for every invariant violation detected by the store.
//
// Caller misuse never panics: a process holding signing authority must be
// able to log the error and keep running.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the store operation that failed (e.g. "insert", "update").
	Op string

	// Key is the affected key, if any.
	Key Key

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %s (key=%s)", e.Op, e.Code, msg, e.Key)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, op string, key Key, msg string) *Error {
	return &Error{Code: code, Op: op, Key: key, Message: msg}
}

// NewDecodeError wraps a payload parse failure for key.
func NewDecodeError(op string, key Key, err error) *Error {
	return &Error{
		Code:    ErrCodeDecode,
		Op:      op,
		Key:     key,
		Message: "stored value does not decode",
		Err:     err,
	}
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsAlreadyExists reports whether err is an ErrCodeAlreadyExists error.
func IsAlreadyExists(err error) bool { return CodeOf(err) == ErrCodeAlreadyExists }

// IsNotFound reports whether err is an ErrCodeNotFound error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsDecodeError reports whether err is an ErrCodeDecode error.
func IsDecodeError(err error) bool { return CodeOf(err) == ErrCodeDecode }

// IsPolicyError reports whether err is an ErrCodeNamespacePolicy error.
func IsPolicyError(err error) bool { return CodeOf(err) == ErrCodeNamespacePolicy }
