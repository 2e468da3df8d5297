// Package memstore is an in-memory catalog.Store.
//
// All state sits behind one mutex, so the dependent re-check in DeleteAuthor and
// DeleteGenre is atomic with the delete.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jacentio/shelf/catalog"
)

// Store keeps all entities in maps.
type Store struct {
	mu        sync.RWMutex
	genres    map[string]catalog.Genre
	genreKeys map[string]string // collation key -> genre id
	authors   map[string]catalog.Author
	books     map[string]catalog.Book
	instances map[string]catalog.BookInstance
	now       func() time.Time
}

var _ catalog.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		genres:    make(map[string]catalog.Genre),
		genreKeys: make(map[string]string),
		authors:   make(map[string]catalog.Author),
		books:     make(map[string]catalog.Book),
		instances: make(map[string]catalog.BookInstance),
		now:       time.Now,
	}
}

func notFound(kind catalog.Kind, id string) error {
	return &catalog.NotFoundError{Kind: kind, ID: id}
}

func cloneBook(b catalog.Book) catalog.Book {
	b.GenreIDs = slices.Clone(b.GenreIDs)
	return b
}

// --- Genres ---

func (s *Store) CreateGenre(ctx context.Context, g catalog.Genre) (catalog.Genre, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Genre{}, err
	}
	g, err := catalog.PrepareGenre(g)
	if err != nil {
		return catalog.Genre{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := catalog.NameKey(g.Name)
	if _, taken := s.genreKeys[key]; taken {
		return catalog.Genre{}, catalog.DuplicateGenreError(g.Name)
	}
	g.ID = catalog.NewID()
	s.genres[g.ID] = g
	s.genreKeys[key] = g.ID
	return g, nil
}

func (s *Store) GetGenre(_ context.Context, id string) (catalog.Genre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.genres[id]
	if !ok {
		return catalog.Genre{}, notFound(catalog.KindGenre, id)
	}
	return g, nil
}

func (s *Store) ListGenres(_ context.Context, opts catalog.ListOptions) ([]catalog.Genre, error) {
	s.mu.RLock()
	out := make([]catalog.Genre, 0, len(s.genres))
	for _, g := range s.genres {
		out = append(out, g)
	}
	s.mu.RUnlock()

	if err := catalog.SortGenres(out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateGenre(_ context.Context, g catalog.Genre) (catalog.Genre, error) {
	if !catalog.ValidID(g.ID) {
		return catalog.Genre{}, notFound(catalog.KindGenre, g.ID)
	}
	g, err := catalog.PrepareGenre(g)
	if err != nil {
		return catalog.Genre{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.genres[g.ID]
	if !ok {
		return catalog.Genre{}, notFound(catalog.KindGenre, g.ID)
	}
	key := catalog.NameKey(g.Name)
	if owner, taken := s.genreKeys[key]; taken && owner != g.ID {
		return catalog.Genre{}, catalog.DuplicateGenreError(g.Name)
	}
	delete(s.genreKeys, catalog.NameKey(old.Name))
	s.genreKeys[key] = g.ID
	s.genres[g.ID] = g
	return g, nil
}

func (s *Store) DeleteGenre(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.genres[id]
	if !ok {
		return notFound(catalog.KindGenre, id)
	}
	for _, b := range s.books {
		if slices.Contains(b.GenreIDs, id) {
			return fmt.Errorf("%w: genre %s is referenced by book %s", catalog.ErrHasDependents, id, b.ID)
		}
	}
	delete(s.genreKeys, catalog.NameKey(g.Name))
	delete(s.genres, id)
	return nil
}

func (s *Store) FindGenreByName(_ context.Context, name string) (catalog.Genre, error) {
	key := catalog.NameKey(name)

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.genreKeys[key]
	if !ok {
		return catalog.Genre{}, notFound(catalog.KindGenre, name)
	}
	return s.genres[id], nil
}

// --- Authors ---

func (s *Store) CreateAuthor(ctx context.Context, a catalog.Author) (catalog.Author, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Author{}, err
	}
	a, err := catalog.PrepareAuthor(a)
	if err != nil {
		return catalog.Author{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = catalog.NewID()
	s.authors[a.ID] = a
	return a, nil
}

func (s *Store) GetAuthor(_ context.Context, id string) (catalog.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.authors[id]
	if !ok {
		return catalog.Author{}, notFound(catalog.KindAuthor, id)
	}
	return a, nil
}

func (s *Store) ListAuthors(_ context.Context, opts catalog.ListOptions) ([]catalog.Author, error) {
	s.mu.RLock()
	out := make([]catalog.Author, 0, len(s.authors))
	for _, a := range s.authors {
		out = append(out, a)
	}
	s.mu.RUnlock()

	if err := catalog.SortAuthors(out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateAuthor(_ context.Context, a catalog.Author) (catalog.Author, error) {
	if !catalog.ValidID(a.ID) {
		return catalog.Author{}, notFound(catalog.KindAuthor, a.ID)
	}
	a, err := catalog.PrepareAuthor(a)
	if err != nil {
		return catalog.Author{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authors[a.ID]; !ok {
		return catalog.Author{}, notFound(catalog.KindAuthor, a.ID)
	}
	s.authors[a.ID] = a
	return a, nil
}

func (s *Store) DeleteAuthor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authors[id]; !ok {
		return notFound(catalog.KindAuthor, id)
	}
	for _, b := range s.books {
		if b.AuthorID == id {
			return fmt.Errorf("%w: author %s is referenced by book %s", catalog.ErrHasDependents, id, b.ID)
		}
	}
	delete(s.authors, id)
	return nil
}

// --- Books ---

// checkBookRefs must be called with s.mu held.
func (s *Store) checkBookRefs(b catalog.Book) error {
	if _, ok := s.authors[b.AuthorID]; !ok {
		return catalog.MissingReferenceError(catalog.KindBook, "author_id", b.AuthorID)
	}
	for _, gid := range b.GenreIDs {
		if _, ok := s.genres[gid]; !ok {
			return catalog.MissingReferenceError(catalog.KindBook, "genre_ids", gid)
		}
	}
	return nil
}

func (s *Store) CreateBook(ctx context.Context, b catalog.Book) (catalog.Book, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Book{}, err
	}
	b, err := catalog.PrepareBook(b)
	if err != nil {
		return catalog.Book{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkBookRefs(b); err != nil {
		return catalog.Book{}, err
	}
	b.ID = catalog.NewID()
	s.books[b.ID] = cloneBook(b)
	return b, nil
}

func (s *Store) GetBook(_ context.Context, id string) (catalog.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return catalog.Book{}, notFound(catalog.KindBook, id)
	}
	return cloneBook(b), nil
}

func (s *Store) ListBooks(_ context.Context, filter catalog.BookFilter, opts catalog.ListOptions) ([]catalog.Book, error) {
	if err := catalog.CheckSort(catalog.KindBook, opts); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []catalog.Book
	for _, b := range s.books {
		if filter.Matches(b) {
			out = append(out, cloneBook(b))
		}
	}
	s.mu.RUnlock()

	if err := catalog.SortBooks(out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateBook(_ context.Context, b catalog.Book) (catalog.Book, error) {
	if !catalog.ValidID(b.ID) {
		return catalog.Book{}, notFound(catalog.KindBook, b.ID)
	}
	b, err := catalog.PrepareBook(b)
	if err != nil {
		return catalog.Book{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[b.ID]; !ok {
		return catalog.Book{}, notFound(catalog.KindBook, b.ID)
	}
	if err := s.checkBookRefs(b); err != nil {
		return catalog.Book{}, err
	}
	s.books[b.ID] = cloneBook(b)
	return b, nil
}

// DeleteBook removes a book regardless of its instances.
func (s *Store) DeleteBook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return notFound(catalog.KindBook, id)
	}
	delete(s.books, id)
	return nil
}

// --- Book instances ---

func (s *Store) CreateInstance(ctx context.Context, i catalog.BookInstance) (catalog.BookInstance, error) {
	if err := ctx.Err(); err != nil {
		return catalog.BookInstance{}, err
	}
	i, err := catalog.PrepareInstance(i, s.now())
	if err != nil {
		return catalog.BookInstance{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[i.BookID]; !ok {
		return catalog.BookInstance{}, catalog.MissingReferenceError(catalog.KindInstance, "book_id", i.BookID)
	}
	i.ID = catalog.NewID()
	s.instances[i.ID] = i
	return i, nil
}

func (s *Store) GetInstance(_ context.Context, id string) (catalog.BookInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.instances[id]
	if !ok {
		return catalog.BookInstance{}, notFound(catalog.KindInstance, id)
	}
	return i, nil
}

func (s *Store) ListInstances(_ context.Context, filter catalog.InstanceFilter, opts catalog.ListOptions) ([]catalog.BookInstance, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := catalog.CheckSort(catalog.KindInstance, opts); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []catalog.BookInstance
	for _, i := range s.instances {
		if filter.Matches(i) {
			out = append(out, i)
		}
	}
	s.mu.RUnlock()

	if err := catalog.SortInstances(out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateInstance(_ context.Context, i catalog.BookInstance) (catalog.BookInstance, error) {
	if !catalog.ValidID(i.ID) {
		return catalog.BookInstance{}, notFound(catalog.KindInstance, i.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.instances[i.ID]
	if !ok {
		return catalog.BookInstance{}, notFound(catalog.KindInstance, i.ID)
	}
	// an update without a due date keeps the stored one
	if i.DueBack.IsZero() {
		i.DueBack = old.DueBack
	}
	i, err := catalog.PrepareInstance(i, s.now())
	if err != nil {
		return catalog.BookInstance{}, err
	}
	if _, ok := s.books[i.BookID]; !ok {
		return catalog.BookInstance{}, catalog.MissingReferenceError(catalog.KindInstance, "book_id", i.BookID)
	}
	s.instances[i.ID] = i
	return i, nil
}

func (s *Store) DeleteInstance(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[id]; !ok {
		return notFound(catalog.KindInstance, id)
	}
	delete(s.instances, id)
	return nil
}
