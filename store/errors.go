package store

import (
	"errors"
	"fmt"
)

var (
	// ErrReferenceNotFound is returned when a referenced entity doesn't exist or is deleted.
	ErrReferenceNotFound = errors.New("store: referenced entity not found")

	// ErrNotFound is returned when an entity doesn't exist or is deleted (has TTL <= now).
	ErrNotFound = errors.New("store: entity not found")

	// ErrAlreadyExists is returned when attempting to create an entity with an existing ID.
	ErrAlreadyExists = errors.New("store: entity already exists")

	// ErrHasChildren is returned when attempting to delete an entity that still has
	// active children under a restricting relationship.
	ErrHasChildren = errors.New("store: entity has active children")

	// ErrConcurrentModification is returned when optimistic lock fails (version mismatch).
	ErrConcurrentModification = errors.New("store: entity was modified concurrently")

	// ErrDuplicateValue is returned when a unique constraint is violated.
	ErrDuplicateValue = errors.New("store: duplicate value for unique field")

	// ErrTooManyItems is returned when a write would exceed the DynamoDB transaction limit.
	ErrTooManyItems = errors.New("store: too many items for one transaction")
)

// ReferenceError reports which reference failed its existence check.
type ReferenceError struct {
	Field     string
	ParentRef string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("store: %s references missing entity %s", e.Field, e.ParentRef)
}

func (e *ReferenceError) Is(target error) bool { return target == ErrReferenceNotFound }

// UniqueError reports which unique field collided with an existing entity.
type UniqueError struct {
	Field string
}

func (e *UniqueError) Error() string {
	return fmt.Sprintf("store: duplicate value for unique field %q", e.Field)
}

func (e *UniqueError) Is(target error) bool { return target == ErrDuplicateValue }
