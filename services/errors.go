package services

import (
	"errors"
	"fmt"
	"log"
)

// Kind classifies a failure so the transport can map it to a status code.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindUnauthenticated Kind = "unauthenticated"
	KindStorage         Kind = "storage_error"
)

// Sentinels for errors.Is checks against a Kind.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrStorage         = &Error{Kind: KindStorage}
)

// Error is the error type returned by every service operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func validationError(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func forbidden(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

func notFound(what string) error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func unauthenticated(message string) error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

// storageError logs the cause and hides it behind a generic message.
func storageError(op string, err error) error {
	log.Printf("storage: %s: %v", op, err)
	return &Error{Kind: KindStorage, Message: "internal storage error", Err: err}
}

// KindOf returns the Kind of err, or KindStorage for errors that did not come from a service.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}
