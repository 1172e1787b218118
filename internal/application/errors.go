package application

import (
	"errors"

	"github.com/example/trainingcenter/internal/attendance"
	"github.com/example/trainingcenter/internal/lifecycle"
	"github.com/example/trainingcenter/internal/persistence"
	"github.com/example/trainingcenter/internal/recurrence"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist or belongs to another trainer.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique resource is created twice.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidTransition is returned when a lifecycle action is not allowed from the stored status.
	ErrInvalidTransition = errors.New("application: invalid transition")
	// ErrImmutableRecord is returned when a completed session is edited.
	ErrImmutableRecord = errors.New("application: immutable record")
	// ErrNoPattern is returned when a session has to be scheduled for a group without a weekly
	// pattern and no date was supplied.
	ErrNoPattern = errors.New("application: group has no weekly pattern")
	// ErrConflict is returned when concurrent writers kept winning the race for a group counter.
	ErrConflict = errors.New("application: concurrent update")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// NewValidationError builds a ValidationError from a field to message map.
func NewValidationError(fields map[string]string) *ValidationError {
	vErr := &ValidationError{}
	for field, msg := range fields {
		vErr.add(field, msg)
	}
	return vErr
}

// mapDomainError translates lifecycle, recurrence and attendance sentinels into
// application sentinels. The original error stays in the chain.
func mapDomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return errors.Join(ErrInvalidTransition, err)
	case errors.Is(err, lifecycle.ErrImmutableRecord):
		return errors.Join(ErrImmutableRecord, err)
	case errors.Is(err, recurrence.ErrNoPattern):
		return errors.Join(ErrNoPattern, err)
	case errors.Is(err, attendance.ErrInvalidStatus):
		vErr := &ValidationError{}
		vErr.add("status", "status must be one of present, absent, late, excused")
		return vErr
	case errors.Is(err, attendance.ErrMissingStudent):
		vErr := &ValidationError{}
		vErr.add("studentId", "studentId is required")
		return vErr
	}
	return err
}

// mapRepoError translates storage sentinels. Other storage failures surface unchanged.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConcurrentUpdate):
		return ErrConflict
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("record", "record violates a storage constraint")
		return vErr
	}
	return mapDomainError(err)
}
