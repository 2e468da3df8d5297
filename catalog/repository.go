package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ListOptions controls ordering of list results. An empty SortBy selects the
// kind's default key.
type ListOptions struct {
	SortBy string
}

// BookFilter selects books by foreign key. Empty fields match everything.
type BookFilter struct {
	AuthorID string
	GenreID  string
}

// Matches reports whether b passes the filter.
func (f BookFilter) Matches(b Book) bool {
	if f.AuthorID != "" && b.AuthorID != f.AuthorID {
		return false
	}
	if f.GenreID != "" && !slices.Contains(b.GenreIDs, f.GenreID) {
		return false
	}
	return true
}

// InstanceFilter selects book instances. Empty fields match everything.
type InstanceFilter struct {
	BookID string
	Status Status
}

// Matches reports whether i passes the filter.
func (f InstanceFilter) Matches(i BookInstance) bool {
	if f.BookID != "" && i.BookID != f.BookID {
		return false
	}
	if f.Status != "" && i.Status != f.Status {
		return false
	}
	return true
}

// Validate rejects unknown statuses.
func (f InstanceFilter) Validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return invalid(KindInstance, "status", fmt.Sprintf("unknown status %q", f.Status))
	}
	return nil
}

// GenreStore persists genres.
type GenreStore interface {
	CreateGenre(ctx context.Context, g Genre) (Genre, error)
	GetGenre(ctx context.Context, id string) (Genre, error)
	ListGenres(ctx context.Context, opts ListOptions) ([]Genre, error)
	UpdateGenre(ctx context.Context, g Genre) (Genre, error)
	DeleteGenre(ctx context.Context, id string) error

	// FindGenreByName returns the genre whose name collides with name under
	// case-insensitive collation, or ErrNotFound.
	FindGenreByName(ctx context.Context, name string) (Genre, error)
}

// AuthorStore persists authors.
type AuthorStore interface {
	CreateAuthor(ctx context.Context, a Author) (Author, error)
	GetAuthor(ctx context.Context, id string) (Author, error)
	ListAuthors(ctx context.Context, opts ListOptions) ([]Author, error)
	UpdateAuthor(ctx context.Context, a Author) (Author, error)
	DeleteAuthor(ctx context.Context, id string) error
}

// BookStore persists books.
type BookStore interface {
	CreateBook(ctx context.Context, b Book) (Book, error)
	GetBook(ctx context.Context, id string) (Book, error)
	ListBooks(ctx context.Context, filter BookFilter, opts ListOptions) ([]Book, error)
	UpdateBook(ctx context.Context, b Book) (Book, error)
	DeleteBook(ctx context.Context, id string) error
}

// InstanceStore persists book instances.
type InstanceStore interface {
	CreateInstance(ctx context.Context, i BookInstance) (BookInstance, error)
	GetInstance(ctx context.Context, id string) (BookInstance, error)
	ListInstances(ctx context.Context, filter InstanceFilter, opts ListOptions) ([]BookInstance, error)
	UpdateInstance(ctx context.Context, i BookInstance) (BookInstance, error)
	DeleteInstance(ctx context.Context, id string) error
}

// Store is the entity store for all four kinds.
//
// Create assigns the identifier and returns the stored value. Get, Update and
// Delete fail with ErrNotFound for invalid or unknown identifiers. Create and
// Update fail with ErrValidationFailed, including for references that do not
// resolve. DeleteAuthor and DeleteGenre fail with ErrHasDependents while books
// still reference the entity; DeleteBook leaves its instances in place.
//
// Implementations are safe for concurrent use.
type Store interface {
	GenreStore
	AuthorStore
	BookStore
	InstanceStore
}

type comparers[T any] map[string]func(a, b T) int

var (
	genreSorts = comparers[Genre]{
		"name": func(a, b Genre) int { return strings.Compare(a.Name, b.Name) },
	}
	authorSorts = comparers[Author]{
		"family_name": func(a, b Author) int { return strings.Compare(a.FamilyName, b.FamilyName) },
		"first_name":  func(a, b Author) int { return strings.Compare(a.FirstName, b.FirstName) },
	}
	bookSorts = comparers[Book]{
		"title": func(a, b Book) int { return strings.Compare(a.Title, b.Title) },
	}
	instanceSorts = comparers[BookInstance]{
		"due_back": func(a, b BookInstance) int { return a.DueBack.Compare(b.DueBack) },
		"imprint":  func(a, b BookInstance) int { return strings.Compare(a.Imprint, b.Imprint) },
		"status":   func(a, b BookInstance) int { return cmp.Compare(a.Status, b.Status) },
	}
)

const (
	defaultGenreSort    = "name"
	defaultAuthorSort   = "family_name"
	defaultBookSort     = "title"
	defaultInstanceSort = "due_back"
)

func (c comparers[T]) lookup(kind Kind, key, def string) (func(a, b T) int, error) {
	if key == "" {
		key = def
	}
	fn, ok := c[key]
	if !ok {
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, invalid(kind, "sort", fmt.Sprintf("unknown sort key %q (valid: %s)", key, strings.Join(keys, ", ")))
	}
	return fn, nil
}

func sortEntities[T any](kind Kind, items []T, opts ListOptions, def string, c comparers[T], id func(T) string) error {
	fn, err := c.lookup(kind, opts.SortBy, def)
	if err != nil {
		return err
	}
	// Identifiers are time ordered, so they break ties by insertion order.
	slices.SortFunc(items, func(a, b T) int {
		if r := fn(a, b); r != 0 {
			return r
		}
		return strings.Compare(id(a), id(b))
	})
	return nil
}

// CheckSort validates a sort key for kind without sorting anything.
func CheckSort(kind Kind, opts ListOptions) error {
	var err error
	switch kind {
	case KindGenre:
		_, err = genreSorts.lookup(kind, opts.SortBy, defaultGenreSort)
	case KindAuthor:
		_, err = authorSorts.lookup(kind, opts.SortBy, defaultAuthorSort)
	case KindBook:
		_, err = bookSorts.lookup(kind, opts.SortBy, defaultBookSort)
	case KindInstance:
		_, err = instanceSorts.lookup(kind, opts.SortBy, defaultInstanceSort)
	default:
		err = fmt.Errorf("catalog: unknown kind %q", kind)
	}
	return err
}

// SortGenres orders genres by opts.SortBy (default "name").
func SortGenres(gs []Genre, opts ListOptions) error {
	return sortEntities(KindGenre, gs, opts, defaultGenreSort, genreSorts, func(g Genre) string { return g.ID })
}

// SortAuthors orders authors by opts.SortBy (default "family_name").
func SortAuthors(as []Author, opts ListOptions) error {
	return sortEntities(KindAuthor, as, opts, defaultAuthorSort, authorSorts, func(a Author) string { return a.ID })
}

// SortBooks orders books by opts.SortBy (default "title").
func SortBooks(bs []Book, opts ListOptions) error {
	return sortEntities(KindBook, bs, opts, defaultBookSort, bookSorts, func(b Book) string { return b.ID })
}

// SortInstances orders book instances by opts.SortBy (default "due_back").
func SortInstances(is []BookInstance, opts ListOptions) error {
	return sortEntities(KindInstance, is, opts, defaultInstanceSort, instanceSorts, func(i BookInstance) string { return i.ID })
}
