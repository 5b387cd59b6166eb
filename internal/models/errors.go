package models

import "errors"

// Kind tags a domain error with a stable, machine-checkable cause.
// The transport layer maps kinds to HTTP statuses.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindSelfInterest      Kind = "self_interest_denied"
	KindDuplicateInterest Kind = "duplicate_interest"
	KindNoSeats           Kind = "no_seats_available"
	KindAlreadyConfirmed  Kind = "already_confirmed"
	KindRideInactive      Kind = "ride_inactive"
	KindAuth              Kind = "auth_error"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf extracts the kind from any error produced by this package,
// or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
