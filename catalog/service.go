package catalog

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jacentio/shelf/internal/logging"
)

// Service is the entry point for the operator shell. It wraps a Store with the
// guarded delete flow and the deduplicating genre create.
type Service struct {
	store    Store
	guard    *Guard
	resolver *Resolver
	logger   *slog.Logger
}

// NewService creates a Service. A nil logger means slog.Default().
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		guard:    NewGuard(store),
		resolver: NewResolver(store),
		logger:   logger,
	}
}

// Store returns the underlying entity store.
func (s *Service) Store() Store { return s.store }

// Guard returns the service's guard.
func (s *Service) Guard() *Guard { return s.guard }

// Resolver returns the service's genre resolver.
func (s *Service) Resolver() *Resolver { return s.resolver }

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logging.Enrich(ctx, s.logger)
}

// CreateGenre creates a genre unless one with the same name under
// case-insensitive comparison exists, in which case that one is returned with
// created == false.
func (s *Service) CreateGenre(ctx context.Context, name string) (Genre, bool, error) {
	g, err := PrepareGenre(Genre{Name: name})
	if err != nil {
		return Genre{}, false, err
	}

	genre, created, err := s.resolver.FindOrCreate(ctx, g)
	if err != nil {
		return Genre{}, false, err
	}
	if created {
		s.log(ctx).Info("genre created", "id", genre.ID, "name", genre.Name)
	} else {
		s.log(ctx).Info("genre already exists", "id", genre.ID, "name", genre.Name)
	}
	return genre, created, nil
}

// DeleteAuthor deletes an author that no book references.
func (s *Service) DeleteAuthor(ctx context.Context, id string) error {
	return s.guardedDelete(ctx, KindAuthor, id, s.store.DeleteAuthor)
}

// DeleteGenre deletes a genre that no book references.
func (s *Service) DeleteGenre(ctx context.Context, id string) error {
	return s.guardedDelete(ctx, KindGenre, id, s.store.DeleteGenre)
}

// DeleteBook deletes a book. Its instances are left in place.
func (s *Service) DeleteBook(ctx context.Context, id string) error {
	if err := s.store.DeleteBook(ctx, id); err != nil {
		return err
	}
	s.log(ctx).Info("book deleted", "id", id)
	return nil
}

// DeleteInstance deletes a book instance.
func (s *Service) DeleteInstance(ctx context.Context, id string) error {
	if err := s.store.DeleteInstance(ctx, id); err != nil {
		return err
	}
	s.log(ctx).Info("book instance deleted", "id", id)
	return nil
}

// guardedDelete re-runs the guard, deletes, then looks for dependents that
// slipped in between the check and the delete.
func (s *Service) guardedDelete(ctx context.Context, kind Kind, id string, del func(context.Context, string) error) error {
	verdict, err := s.guard.CanDelete(ctx, kind, id)
	if err != nil {
		return err
	}
	if !verdict.Allowed {
		return &DeleteBlockedError{Kind: kind, ID: id, Dependents: verdict.Dependents}
	}

	if err := del(ctx, id); err != nil {
		if !errors.Is(err, ErrHasDependents) {
			return err
		}
		blocked := &DeleteBlockedError{Kind: kind, ID: id}
		if verdict, gerr := s.guard.CanDelete(ctx, kind, id); gerr == nil {
			blocked.Dependents = verdict.Dependents
		}
		return blocked
	}

	logger := s.log(ctx).With("kind", kind, "id", id)
	logger.Info("entity deleted")

	filter, _ := dependentFilter(kind, id)
	deps, err := s.guard.dependents(ctx, filter)
	if err != nil {
		logger.Warn("post-delete dependent check failed", "error", err)
		return nil
	}
	if len(deps) > 0 {
		ids := make([]string, len(deps))
		for i, b := range deps {
			ids[i] = b.ID
		}
		logger.Warn("dependents created during delete; references now dangle", "dependents", ids)
	}
	return nil
}

// AuthorDetail is an author with the books they wrote.
type AuthorDetail struct {
	Author Author `json:"author"`
	Books  []Book `json:"books"`
}

// GenreDetail is a genre with its books.
type GenreDetail struct {
	Genre Genre  `json:"genre"`
	Books []Book `json:"books"`
}

// BookDetail is a book with its author, genres and instances.
type BookDetail struct {
	Book      Book           `json:"book"`
	Author    Author         `json:"author"`
	Genres    []Genre        `json:"genres"`
	Instances []BookInstance `json:"instances"`
}

// AuthorDetail fetches an author and their books concurrently.
func (s *Service) AuthorDetail(ctx context.Context, id string) (AuthorDetail, error) {
	var d AuthorDetail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Author, err = s.store.GetAuthor(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		d.Books, err = s.store.ListBooks(gctx, BookFilter{AuthorID: id}, ListOptions{SortBy: "title"})
		return err
	})
	if err := g.Wait(); err != nil {
		return AuthorDetail{}, err
	}
	return d, nil
}

// GenreDetail fetches a genre and its books concurrently.
func (s *Service) GenreDetail(ctx context.Context, id string) (GenreDetail, error) {
	var d GenreDetail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Genre, err = s.store.GetGenre(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		d.Books, err = s.store.ListBooks(gctx, BookFilter{GenreID: id}, ListOptions{SortBy: "title"})
		return err
	})
	if err := g.Wait(); err != nil {
		return GenreDetail{}, err
	}
	return d, nil
}

// BookDetail fetches a book, then its author, genres and instances concurrently.
func (s *Service) BookDetail(ctx context.Context, id string) (BookDetail, error) {
	book, err := s.store.GetBook(ctx, id)
	if err != nil {
		return BookDetail{}, err
	}

	d := BookDetail{Book: book, Genres: make([]Genre, len(book.GenreIDs))}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Author, err = s.store.GetAuthor(gctx, book.AuthorID)
		return err
	})
	for i, gid := range book.GenreIDs {
		g.Go(func() (err error) {
			d.Genres[i], err = s.store.GetGenre(gctx, gid)
			return err
		})
	}
	g.Go(func() (err error) {
		d.Instances, err = s.store.ListInstances(gctx, InstanceFilter{BookID: id}, ListOptions{})
		return err
	})
	if err := g.Wait(); err != nil {
		return BookDetail{}, err
	}
	return d, nil
}
