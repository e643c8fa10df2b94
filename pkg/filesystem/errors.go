package filesystem

import (
	"errors"
	"strings"
)

// Kind classifies a filesystem error. The set is closed.
type Kind int

const (
	KindOther Kind = iota
	KindNotFound
	KindPermissionDenied
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindIO:
		return "IO"
	default:
		return "Other"
	}
}

const (
	notFoundText         = "file not found"
	permissionDeniedText = "permission denied"
	ioPrefix             = "I/O error: "
)

// Error is the classified error every filesystem operation fails with.
type Error struct {
	Kind    Kind
	Message string
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its kind.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrIO               = &Error{Kind: KindIO}
	ErrOther            = &Error{Kind: KindOther}
)

func NotFound() *Error {
	return &Error{Kind: KindNotFound}
}

func PermissionDenied() *Error {
	return &Error{Kind: KindPermissionDenied}
}

func IO(message string) *Error {
	return &Error{Kind: KindIO, Message: message}
}

func Other(message string) *Error {
	return &Error{Kind: KindOther, Message: message}
}

// Error renders the form sent across the boundary. ParseError reverses it.
func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return notFoundText
	case KindPermissionDenied:
		return permissionDeniedText
	case KindIO:
		return ioPrefix + e.Message
	default:
		return e.Message
	}
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf reports the kind of err. Errors that are not classified are Other.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindOther
}

// Classify returns err as an *Error, wrapping unclassified errors as Other
// with their message. A nil err stays nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return Other(err.Error())
}

// ParseError classifies an error string received from the other side of the
// boundary.
func ParseError(s string) *Error {
	switch {
	case s == notFoundText:
		return NotFound()
	case s == permissionDeniedText:
		return PermissionDenied()
	case strings.HasPrefix(s, ioPrefix):
		return IO(strings.TrimPrefix(s, ioPrefix))
	default:
		return Other(s)
	}
}

// Reclassify turns err into an Other error prefixed with context, e.g.
// "host fs: file not found". Use it where the original kind must
// deliberately not leak to the caller.
func Reclassify(context string, err error) error {
	if err == nil {
		return nil
	}
	return Other(context + ": " + err.Error())
}
