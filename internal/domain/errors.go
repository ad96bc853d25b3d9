package domain

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when an operation is attempted without an
// authenticated actor.
var ErrUnauthorized = errors.New("authentication required")

// BadRequestError is returned for malformed input: missing ids, a
// non-positive page limit, or an unparseable cursor.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string {
	return e.Reason
}

// ForbiddenError is returned when the actor lacks the role or ownership the
// operation requires.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

// ConflictError is returned for state-level refusals: an unrecognized status
// value or a manager reviewing their own application.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// NotFoundError is returned when a referenced entity does not exist.
// Kind names what is missing: "application", "applicant", or "product".
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// UnavailableError is returned when a required downstream dependency could
// not answer an existence check.
type UnavailableError struct {
	Service string
	Cause   error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s service unavailable: %v", e.Service, e.Cause)
	}
	return fmt.Sprintf("%s service unavailable", e.Service)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// VersionConflictError is returned by the store when a mutating write loses
// the optimistic-concurrency race: the row's version no longer matches the
// one the write was based on.
type VersionConflictError struct {
	ApplicationID string
	Version       int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("application %q was modified concurrently (stale version %d)", e.ApplicationID, e.Version)
}
