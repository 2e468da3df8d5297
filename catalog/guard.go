package catalog

import (
	"context"
	"fmt"
)

// Verdict is the outcome of a pre-delete dependent check.
type Verdict struct {
	Allowed bool
	// Dependents are the books referencing the entity, ordered by title.
	Dependents []Book
}

// Guard checks whether an author or genre may be deleted.
//
// The check and the delete are separate round trips and no lock is held in
// between, so a book created after the check is not seen. Callers re-run the
// check at delete time; see Service.DeleteAuthor.
type Guard struct {
	store Store
}

// NewGuard creates a Guard over store.
func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// CanDelete reports whether the author or genre id has no dependent books.
// Other kinds fail with ErrUnguardedKind; a missing entity fails with ErrNotFound.
func (g *Guard) CanDelete(ctx context.Context, kind Kind, id string) (Verdict, error) {
	filter, err := dependentFilter(kind, id)
	if err != nil {
		return Verdict{}, err
	}

	switch kind {
	case KindAuthor:
		_, err = g.store.GetAuthor(ctx, id)
	case KindGenre:
		_, err = g.store.GetGenre(ctx, id)
	}
	if err != nil {
		return Verdict{}, err
	}

	deps, err := g.dependents(ctx, filter)
	if err != nil {
		return Verdict{}, fmt.Errorf("list dependents of %s %s: %w", kind, id, err)
	}
	return Verdict{Allowed: len(deps) == 0, Dependents: deps}, nil
}

func (g *Guard) dependents(ctx context.Context, filter BookFilter) ([]Book, error) {
	return g.store.ListBooks(ctx, filter, ListOptions{SortBy: "title"})
}

func dependentFilter(kind Kind, id string) (BookFilter, error) {
	switch kind {
	case KindAuthor:
		return BookFilter{AuthorID: id}, nil
	case KindGenre:
		return BookFilter{GenreID: id}, nil
	default:
		return BookFilter{}, fmt.Errorf("%w: %s", ErrUnguardedKind, kind)
	}
}
