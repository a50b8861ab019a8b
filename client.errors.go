package main

import (
	"errors"
	"fmt"
)

// Storage level sentinel errors used by the dev service repositories.
var (
	ErrBookNotFound    = errors.New("book not found")
	ErrNotEnoughCopies = errors.New("not enough copies available")
)

// ValidationError reports a client-side precondition failure. It is
// produced before any request is sent and never triggers a retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NotFoundError reports that the service knows no entity with this id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ConflictError reports a service-side business rule rejection, such
// as a borrow that exceeds the true current availability. The service
// message is kept verbatim when it supplies one.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	if e.Message == "" {
		return "request rejected by the library service"
	}
	return e.Message
}

// TransportError wraps a network failure or a non-2xx response with
// no structured message. Status is 0 when the request never reached
// the service.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a NotFoundError at any depth.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is a ValidationError at any depth.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is a ConflictError at any depth.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
