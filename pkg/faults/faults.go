// Package faults defines the failure taxonomy for the submission pipeline.
// Validation-class findings never surface here; they become structured
// conditions. Faults cover the failures that change how an invocation ends:
// integrity mismatches, unavailable collaborators, illegal transitions, and
// uncaught defects.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrIntegrity marks a checksum mismatch. Fatal for the submission.
	ErrIntegrity = errors.New("integrity failure")
	// ErrInfrastructure marks a transient store or collaborator failure. The
	// stage invocation is incomplete and must be retried via redelivery.
	ErrInfrastructure = errors.New("infrastructure failure")
	// ErrSchemaNotFound marks an unrecognized category identifier.
	ErrSchemaNotFound = errors.New("category schema not found")
	// ErrInvalidTransition marks a status change that is not reachable from
	// the submission's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnauthorized marks an action by a caller outside the submission's
	// designated tier.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnknown marks an uncaught defect inside a stage invocation.
	ErrUnknown = errors.New("unknown failure")
)

// Fault pairs a taxonomy class with invocation context. Cause, when set,
// stays reachable through errors.Is/As alongside the class.
type Fault struct {
	Class   error
	Message string
	Cause   error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Class.Error(), f.Message)
}

func (f *Fault) Unwrap() []error {
	if f.Cause != nil {
		return []error{f.Class, f.Cause}
	}
	return []error{f.Class}
}

// New wraps a taxonomy class with a formatted message.
func New(class error, format string, args ...any) *Fault {
	return &Fault{Class: class, Message: fmt.Sprintf(format, args...)}
}

// Infrastructure wraps an underlying error as a transient failure of the
// named collaborator.
func Infrastructure(collaborator string, err error) *Fault {
	return &Fault{
		Class:   ErrInfrastructure,
		Message: fmt.Sprintf("%s: %v", collaborator, err),
		Cause:   err,
	}
}

// Retryable reports whether the failed invocation should be redelivered
// rather than settled.
func Retryable(err error) bool {
	return errors.Is(err, ErrInfrastructure)
}
