package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidArgument
	KindStoreFailure
	KindConflict
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindStoreFailure:
		return "store_failure"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is the typed failure returned by services and the read-model layer.
// Message is safe to show to clients; Err carries the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperror.ErrNotFound) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrStoreFailure    = &Error{Kind: KindStoreFailure}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrForbidden       = &Error{Kind: KindForbidden}
)

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) error {
	return New(KindNotFound, message)
}

func InvalidArgument(message string) error {
	return New(KindInvalidArgument, message)
}

func Conflict(message string) error {
	return New(KindConflict, message)
}

func Unauthorized(message string) error {
	return New(KindUnauthorized, message)
}

func Forbidden(message string) error {
	return New(KindForbidden, message)
}

// StoreFailure wraps an error returned by the document store. Already-typed
// errors pass through untouched.
func StoreFailure(message string, err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return Wrap(KindStoreFailure, message, err)
}

func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// PublicMessage returns the client-facing text for err. Store and internal
// failures never leak their cause.
func PublicMessage(err error) string {
	var ae *Error
	if !errors.As(err, &ae) {
		return "internal server error"
	}
	switch ae.Kind {
	case KindStoreFailure, KindInternal:
		if ae.Message != "" {
			return ae.Message
		}
		return "internal server error"
	default:
		return ae.Message
	}
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
