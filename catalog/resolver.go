package catalog

import (
	"context"
	"errors"
)

// Resolver finds genres by name under case-insensitive collation. The
// interactive create path and the seeder both go through it, so they agree on
// what counts as a duplicate.
type Resolver struct {
	genres GenreStore
}

// NewResolver creates a Resolver over genres.
func NewResolver(genres GenreStore) *Resolver {
	return &Resolver{genres: genres}
}

// FindByNameCaseInsensitive returns the genre whose name collides with name,
// or ErrNotFound.
func (r *Resolver) FindByNameCaseInsensitive(ctx context.Context, name string) (Genre, error) {
	return r.genres.FindGenreByName(ctx, name)
}

// FindOrCreate returns the existing genre colliding with g.Name, or creates g.
// created is false when an existing genre was returned. A create that loses a
// race to a concurrent create of the same name returns the winner. A create
// cancelled by an overlapping write (ErrConflict) with the name still free is
// tried once more.
func (r *Resolver) FindOrCreate(ctx context.Context, g Genre) (Genre, bool, error) {
	genre, created, err := r.findOrCreate(ctx, g)
	if errors.Is(err, ErrConflict) {
		return r.findOrCreate(ctx, g)
	}
	return genre, created, err
}

func (r *Resolver) findOrCreate(ctx context.Context, g Genre) (Genre, bool, error) {
	existing, err := r.FindByNameCaseInsensitive(ctx, g.Name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Genre{}, false, err
	}

	genre, err := r.genres.CreateGenre(ctx, g)
	if err == nil {
		return genre, true, nil
	}
	if !errors.Is(err, ErrDuplicate) && !errors.Is(err, ErrConflict) {
		return Genre{}, false, err
	}

	existing, ferr := r.FindByNameCaseInsensitive(ctx, g.Name)
	if ferr != nil {
		return Genre{}, false, err
	}
	return existing, false, nil
}
