package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record violates a uniqueness constraint.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConcurrentUpdate is returned when a conditional write lost a race with another writer.
	ErrConcurrentUpdate = errors.New("persistence: concurrent update")
	// ErrConstraintViolation is returned when a record is rejected by a storage constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
