package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced at the boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindInvalidToken
	KindInvalidArgument
	KindNotFound
	KindForbidden
	KindConflict
	KindUnavailable
	KindRateLimited
)

var kindNames = map[Kind]string{
	KindInternal:        "Internal",
	KindUnauthenticated: "Unauthenticated",
	KindInvalidToken:    "InvalidToken",
	KindInvalidArgument: "InvalidArgument",
	KindNotFound:        "NotFound",
	KindForbidden:       "Forbidden",
	KindConflict:        "Conflict",
	KindUnavailable:     "Unavailable",
	KindRateLimited:     "RateLimited",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error carries a Kind and a caller-facing message. Err is the cause, if any,
// and is never shown to callers.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func WrapError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Unauthenticated(msg string) *Error { return NewError(KindUnauthenticated, msg) }
func InvalidToken(msg string) *Error    { return NewError(KindInvalidToken, msg) }
func InvalidArgument(msg string) *Error { return NewError(KindInvalidArgument, msg) }
func NotFound(msg string) *Error        { return NewError(KindNotFound, msg) }
func Forbidden(msg string) *Error       { return NewError(KindForbidden, msg) }
func Conflict(msg string) *Error        { return NewError(KindConflict, msg) }

func Unavailable(msg string, err error) *Error {
	return WrapError(KindUnavailable, msg, err)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}
