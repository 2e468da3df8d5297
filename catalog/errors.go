package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when an identifier is invalid or does not resolve.
	ErrNotFound = errors.New("catalog: not found")

	// ErrValidationFailed is returned when fields are missing or out of constraint.
	ErrValidationFailed = errors.New("catalog: validation failed")

	// ErrDeleteBlocked is returned when the guard finds dependents.
	ErrDeleteBlocked = errors.New("catalog: delete blocked by dependents")

	// ErrSeedResolution is returned when a positional dataset reference does not
	// resolve to a created entity.
	ErrSeedResolution = errors.New("catalog: seed reference did not resolve")

	// ErrHasDependents is returned by a store when it refuses to delete an author
	// or genre that still has books.
	ErrHasDependents = errors.New("catalog: entity has dependents")

	// ErrDuplicate is returned when a genre name collides with an existing genre.
	ErrDuplicate = errors.New("catalog: duplicate genre name")

	// ErrConflict is returned when an entity changed underneath an update.
	ErrConflict = errors.New("catalog: concurrent modification")

	// ErrUnguardedKind is returned when the guard is asked about a kind it does
	// not protect.
	ErrUnguardedKind = errors.New("catalog: kind has no delete guard")
)

// NotFoundError identifies the entity that could not be found.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("catalog: %s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// FieldError is one failed field constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every failed field constraint of one entity.
type ValidationError struct {
	Kind   Kind
	ID     string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("catalog: invalid %s: %s", e.Kind, strings.Join(msgs, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

func invalid(kind Kind, field, message string) *ValidationError {
	return &ValidationError{Kind: kind, Fields: []FieldError{{Field: field, Message: message}}}
}

// DuplicateGenreError reports a genre name already taken under case-insensitive
// comparison. It matches both ErrDuplicate and ErrValidationFailed.
func DuplicateGenreError(name string) error {
	return fmt.Errorf("%w: %w", ErrDuplicate, invalid(KindGenre, "name", fmt.Sprintf("Genre %q already exists", name)))
}

// MissingReferenceError reports a reference field that does not resolve.
func MissingReferenceError(kind Kind, field, id string) error {
	return invalid(kind, field, fmt.Sprintf("%s does not exist", id))
}

// DeleteBlockedError carries the dependents that blocked a delete.
type DeleteBlockedError struct {
	Kind       Kind
	ID         string
	Dependents []Book
}

func (e *DeleteBlockedError) Error() string {
	return fmt.Sprintf("catalog: cannot delete %s %q: %d dependent books", e.Kind, e.ID, len(e.Dependents))
}

func (e *DeleteBlockedError) Is(target error) bool { return target == ErrDeleteBlocked }

// SeedError is a failure of one dataset item.
type SeedError struct {
	Stage Stage
	Index int
	// Field is the offending field for resolution failures, empty otherwise.
	Field string
	Err   error
}

func (e *SeedError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("catalog: seed %s[%d].%s: %v", e.Stage, e.Index, e.Field, e.Err)
	}
	return fmt.Sprintf("catalog: seed %s[%d]: %v", e.Stage, e.Index, e.Err)
}

func (e *SeedError) Unwrap() error { return e.Err }

// StageError reports that a seeding stage had failures, so later stages did not run.
type StageError struct {
	Stage    Stage
	Failures []*SeedError
}

func (e *StageError) Error() string {
	return fmt.Sprintf("catalog: seed stage %s failed for %d items", e.Stage, len(e.Failures))
}

func (e *StageError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
