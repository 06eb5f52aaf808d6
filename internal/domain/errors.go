package domain

import (
	"errors"
	"fmt"
	"strings"
)

// MessageDelimiter joins individual field failures inside a single validation message.
const MessageDelimiter = ":::"

// ErrorKind classifies a failure returned by a use case.
type ErrorKind string

const (
	KindValidation      ErrorKind = "VALIDATION"
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindForbidden       ErrorKind = "FORBIDDEN"
	KindConflict        ErrorKind = "CONFLICT"
	KindUnauthenticated ErrorKind = "UNAUTHENTICATED"
)

// Error is the failure side of every use case and port call.
// It is created where the failure is detected and never reclassified later.
type Error struct {
	Kind    ErrorKind
	Field   string // set for CONFLICT
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := string(e.Kind)
	if e.Message != "" {
		base += ": " + e.Message
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Messages splits the message back into the ordered list of field failures.
func (e *Error) Messages() []string {
	if e == nil || e.Message == "" {
		return nil
	}
	return strings.Split(e.Message, MessageDelimiter)
}

// NewError builds an error of the given kind that keeps err as its cause.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation joins the given failures with MessageDelimiter, preserving order.
func Validation(messages ...string) *Error {
	return &Error{Kind: KindValidation, Message: strings.Join(messages, MessageDelimiter)}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Conflict reports a uniqueness violation on field.
func Conflict(field string, err error) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: field + " is already taken", Err: err}
}

func Unauthenticated(err error) *Error {
	return &Error{Kind: KindUnauthenticated, Message: "unauthenticated", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
