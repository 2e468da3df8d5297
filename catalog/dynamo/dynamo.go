// Package dynamo is a catalog.Store on DynamoDB. Reference checks, unique genre
// names and restricted deletes are enforced by the store package.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/shelf/catalog"
	"github.com/jacentio/shelf/store"
)

// Store implements catalog.Store.
type Store struct {
	entities *store.Store
	tables   Tables
	now      func() time.Time
}

var _ catalog.Store = (*Store)(nil)

// New creates a Store over client.
func New(client store.DynamoDBAPI, cfg Config) *Store {
	cfg = cfg.resolve()
	return &Store{
		entities: store.NewWithRegistry(client, cfg.Store, NewRegistry(cfg.Tables)),
		tables:   cfg.Tables,
		now:      time.Now,
	}
}

// Entities returns the underlying entity store.
func (s *Store) Entities() *store.Store { return s.entities }

// Tables returns the entity table names.
func (s *Store) Tables() Tables { return s.tables }

func (s *Store) genre(id string) genreEntity {
	return genreEntity{entity: entity{kind: catalog.KindGenre, table: s.tables.Genres, id: id}}
}

func (s *Store) author(id string) entity {
	return entity{kind: catalog.KindAuthor, table: s.tables.Authors, id: id}
}

func (s *Store) book(b catalog.Book) bookEntity {
	return bookEntity{
		entity:       entity{kind: catalog.KindBook, table: s.tables.Books, id: b.ID},
		authorID:     b.AuthorID,
		genreIDs:     b.GenreIDs,
		authorsTable: s.tables.Authors,
		genresTable:  s.tables.Genres,
	}
}

func (s *Store) instance(i catalog.BookInstance) instanceEntity {
	return instanceEntity{
		entity:     entity{kind: catalog.KindInstance, table: s.tables.Instances, id: i.ID},
		bookID:     i.BookID,
		booksTable: s.tables.Books,
	}
}

// mapError translates store errors into catalog errors.
func mapError(kind catalog.Kind, id string, err error) error {
	var refErr *store.ReferenceError
	var uniqueErr *store.UniqueError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &refErr):
		return catalog.MissingReferenceError(kind, refErr.Field, refID(refErr.ParentRef))
	case errors.As(err, &uniqueErr):
		return fmt.Errorf("%w: %s %s: %v", catalog.ErrDuplicate, kind, id, err)
	case errors.Is(err, store.ErrNotFound):
		return &catalog.NotFoundError{Kind: kind, ID: id}
	case errors.Is(err, store.ErrHasChildren):
		return fmt.Errorf("%w: %s %s", catalog.ErrHasDependents, kind, id)
	case errors.Is(err, store.ErrConcurrentModification):
		return fmt.Errorf("%w: %s %s", catalog.ErrConflict, kind, id)
	default:
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
}

// get loads a live item and decodes it into out.
func (s *Store) get(ctx context.Context, kind catalog.Kind, table, id string, out any) (*store.Item, error) {
	if !catalog.ValidID(id) {
		return nil, &catalog.NotFoundError{Kind: kind, ID: id}
	}
	item, err := s.entities.Get(ctx, table, key(id))
	if err != nil {
		return nil, mapError(kind, id, err)
	}
	if err := attributevalue.UnmarshalMap(item.Raw, out); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return item, nil
}

// scan decodes every live item of table, optionally filtered.
func scan[R any](ctx context.Context, s *Store, input store.ScanInput) ([]R, error) {
	items, err := s.entities.Scan(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", input.TableName, err)
	}
	return decodeAll[R](items)
}

func decodeAll[R any](items []*store.Item) ([]R, error) {
	out := make([]R, 0, len(items))
	for _, item := range items {
		var r R
		if err := attributevalue.UnmarshalMap(item.Raw, &r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", item.EntityRef, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// children loads the live children of parentRef stored in table.
func children[R any](ctx context.Context, s *Store, parentRef, table string) ([]R, error) {
	refs, err := s.entities.QueryActiveChildren(ctx, parentRef)
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", parentRef, err)
	}
	seen := make(map[string]bool, len(refs))
	var keys []store.PK
	for _, c := range refs {
		if c.TableName != table || seen[c.Ref] {
			continue
		}
		seen[c.Ref] = true
		keys = append(keys, c.Key)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	items, err := s.entities.BatchGet(ctx, table, keys)
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", parentRef, err)
	}
	return decodeAll[R](items)
}

func marshal(kind catalog.Kind, rec any) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return item, nil
}

// --- Genres ---

func (s *Store) CreateGenre(ctx context.Context, g catalog.Genre) (catalog.Genre, error) {
	g, err := catalog.PrepareGenre(g)
	if err != nil {
		return catalog.Genre{}, err
	}
	g.ID = catalog.NewID()

	rec := toGenreRecord(g)
	item, err := marshal(catalog.KindGenre, rec)
	if err != nil {
		return catalog.Genre{}, err
	}
	e := s.genre(g.ID)
	e.nameKey = rec.NameKey
	if err := s.entities.Create(ctx, e, item); err != nil {
		return catalog.Genre{}, genreError(g, err)
	}
	return g, nil
}

func genreError(g catalog.Genre, err error) error {
	if errors.Is(err, store.ErrDuplicateValue) {
		return catalog.DuplicateGenreError(g.Name)
	}
	return mapError(catalog.KindGenre, g.ID, err)
}

func (s *Store) GetGenre(ctx context.Context, id string) (catalog.Genre, error) {
	var rec genreRecord
	if _, err := s.get(ctx, catalog.KindGenre, s.tables.Genres, id, &rec); err != nil {
		return catalog.Genre{}, err
	}
	return rec.genre(), nil
}

func (s *Store) ListGenres(ctx context.Context, opts catalog.ListOptions) ([]catalog.Genre, error) {
	if err := catalog.CheckSort(catalog.KindGenre, opts); err != nil {
		return nil, err
	}
	recs, err := scan[genreRecord](ctx, s, store.ScanInput{TableName: s.tables.Genres})
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Genre, len(recs))
	for i, r := range recs {
		out[i] = r.genre()
	}
	if err := catalog.SortGenres(out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateGenre(ctx context.Context, g catalog.Genre) (catalog.Genre, error) {
	var current genreRecord
	item, err := s.get(ctx, catalog.KindGenre, s.tables.Genres, g.ID, &current)
	if err != nil {
		return catalog.Genre{}, err
	}
	g, err = catalog.PrepareGenre(g)
	if err != nil {
		return catalog.Genre{}, err
	}

	rec := toGenreRecord(g)
	attrs, err := marshal(catalog.KindGenre, rec)
	if err != nil {
		return catalog.Genre{}, err
	}
	e := s.genre(g.ID)
	e.nameKey = rec.NameKey
	if err := s.entities.Update(ctx, e, attrs, item.Version); err != nil {
		return catalog.Genre{}, genreError(g, err)
	}
	return g, nil
}

func (s *Store) DeleteGenre(ctx context.Context, id string) error {
	if !catalog.ValidID(id) {
		return &catalog.NotFoundError{Kind: catalog.KindGenre, ID: id}
	}
	return mapError(catalog.KindGenre, id, s.entities.Delete(ctx, s.genre(id), store.DeleteOptions{}))
}

// FindGenreByName resolves name through the unique constraint on its collation
// key, so it sees genres as soon as their create commits.
func (s *Store) FindGenreByName(ctx context.Context, name string) (catalog.Genre, error) {
	owner, err := s.entities.LookupUnique(ctx, s.tables.Genres, string(catalog.KindGenre), "name_key", catalog.NameKey(name))
	if errors.Is(err, store.ErrNotFound) {
		return catalog.Genre{}, &catalog.NotFoundError{Kind: catalog.KindGenre, ID: name}
	}
	if err != nil {
		return catalog.Genre{}, fmt.Errorf("find genre %q: %w", name, err)
	}
	return s.GetGenre(ctx, refID(owner))
}

// --- Authors ---

func (s *Store) CreateAuthor(ctx context.Context, a catalog.Author) (catalog.Author, error) {
	a, err := catalog.PrepareAuthor(a)
	if err != nil {
		return catalog.Author{}, err
	}
	a.ID = catalog.NewID()

	item, err := marshal(catalog.KindAuthor, toAuthorRecord(a))
	if err != nil {
		return catalog.Author{}, err
	}
	if err := s.entities.Create(ctx, s.author(a.ID), item); err != nil {
		return catalog.Author{}, mapError(catalog.KindAuthor, a.ID, err)
	}
	return a, nil
}

func (s *Store) GetAuthor(ctx context.Context, id string) (catalog.Author, error) {
	var rec authorRecord
	if _, err := s.get(ctx, catalog.KindAuthor, s.tables.Authors, id, &rec); err != nil {
		return catalog.Author{}, err
	}
	return rec.author(), nil
}

func (s *Store) ListAuthors(ctx context.Context, opts catalog.ListOptions) ([]catalog.Author, error) {
	if err := catalog.CheckSort(catalog.KindAuthor, opts); err != nil {
		return nil, err
	}
	recs, err := scan[authorRecord](ctx, s, store.ScanInput{TableName: s.tables.Authors})
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Author, len(recs))
	for i, r := range recs {
		out[i] = r.author()
	}
	if err := catalog.SortAuthors(out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateAuthor(ctx context.Context, a catalog.Author) (catalog.Author, error) {
	var current authorRecord
	item, err := s.get(ctx, catalog.KindAuthor, s.tables.Authors, a.ID, &current)
	if err != nil {
		return catalog.Author{}, err
	}
	a, err = catalog.PrepareAuthor(a)
	if err != nil {
		return catalog.Author{}, err
	}

	attrs, err := marshal(catalog.KindAuthor, toAuthorRecord(a))
	if err != nil {
		return catalog.Author{}, err
	}
	if err := s.entities.Update(ctx, s.author(a.ID), attrs, item.Version); err != nil {
		return catalog.Author{}, mapError(catalog.KindAuthor, a.ID, err)
	}
	return a, nil
}

func (s *Store) DeleteAuthor(ctx context.Context, id string) error {
	if !catalog.ValidID(id) {
		return &catalog.NotFoundError{Kind: catalog.KindAuthor, ID: id}
	}
	return mapError(catalog.KindAuthor, id, s.entities.Delete(ctx, s.author(id), store.DeleteOptions{}))
}

// --- Books ---

func (s *Store) CreateBook(ctx context.Context, b catalog.Book) (catalog.Book, error) {
	b, err := catalog.PrepareBook(b)
	if err != nil {
		return catalog.Book{}, err
	}
	b.ID = catalog.NewID()

	item, err := marshal(catalog.KindBook, toBookRecord(b))
	if err != nil {
		return catalog.Book{}, err
	}
	if err := s.entities.Create(ctx, s.book(b), item); err != nil {
		return catalog.Book{}, mapError(catalog.KindBook, b.ID, err)
	}
	return b, nil
}

func (s *Store) GetBook(ctx context.Context, id string) (catalog.Book, error) {
	var rec bookRecord
	if _, err := s.get(ctx, catalog.KindBook, s.tables.Books, id, &rec); err != nil {
		return catalog.Book{}, err
	}
	return rec.book(), nil
}

// ListBooks reads a filtered list through the reference rows of the author or
// genre, and scans the table otherwise.
func (s *Store) ListBooks(ctx context.Context, filter catalog.BookFilter, opts catalog.ListOptions) ([]catalog.Book, error) {
	if err := catalog.CheckSort(catalog.KindBook, opts); err != nil {
		return nil, err
	}

	var recs []bookRecord
	var err error
	switch {
	case filter.AuthorID != "":
		recs, err = children[bookRecord](ctx, s, ref(catalog.KindAuthor, filter.AuthorID), s.tables.Books)
	case filter.GenreID != "":
		recs, err = children[bookRecord](ctx, s, ref(catalog.KindGenre, filter.GenreID), s.tables.Books)
	default:
		recs, err = scan[bookRecord](ctx, s, store.ScanInput{TableName: s.tables.Books})
	}
	if err != nil {
		return nil, err
	}

	out := make([]catalog.Book, 0, len(recs))
	for _, r := range recs {
		if b := r.book(); filter.Matches(b) {
			out = append(out, b)
		}
	}
	if err := catalog.SortBooks(out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateBook(ctx context.Context, b catalog.Book) (catalog.Book, error) {
	var current bookRecord
	item, err := s.get(ctx, catalog.KindBook, s.tables.Books, b.ID, &current)
	if err != nil {
		return catalog.Book{}, err
	}
	b, err = catalog.PrepareBook(b)
	if err != nil {
		return catalog.Book{}, err
	}

	attrs, err := marshal(catalog.KindBook, toBookRecord(b))
	if err != nil {
		return catalog.Book{}, err
	}
	if err := s.entities.Update(ctx, s.book(b), attrs, item.Version); err != nil {
		return catalog.Book{}, mapError(catalog.KindBook, b.ID, err)
	}
	return b, nil
}

// DeleteBook deletes a book. Its instances keep pointing at it.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	if !catalog.ValidID(id) {
		return &catalog.NotFoundError{Kind: catalog.KindBook, ID: id}
	}
	return mapError(catalog.KindBook, id, s.entities.Delete(ctx, s.book(catalog.Book{ID: id}), store.DeleteOptions{}))
}

// --- Book instances ---

func (s *Store) CreateInstance(ctx context.Context, i catalog.BookInstance) (catalog.BookInstance, error) {
	i, err := catalog.PrepareInstance(i, s.now())
	if err != nil {
		return catalog.BookInstance{}, err
	}
	i.ID = catalog.NewID()

	item, err := marshal(catalog.KindInstance, toInstanceRecord(i))
	if err != nil {
		return catalog.BookInstance{}, err
	}
	if err := s.entities.Create(ctx, s.instance(i), item); err != nil {
		return catalog.BookInstance{}, mapError(catalog.KindInstance, i.ID, err)
	}
	return i, nil
}

func (s *Store) GetInstance(ctx context.Context, id string) (catalog.BookInstance, error) {
	var rec instanceRecord
	if _, err := s.get(ctx, catalog.KindInstance, s.tables.Instances, id, &rec); err != nil {
		return catalog.BookInstance{}, err
	}
	return rec.instance(), nil
}

// ListInstances reads a book's instances through its reference rows. A status
// filter alone becomes a scan filter.
func (s *Store) ListInstances(ctx context.Context, filter catalog.InstanceFilter, opts catalog.ListOptions) ([]catalog.BookInstance, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := catalog.CheckSort(catalog.KindInstance, opts); err != nil {
		return nil, err
	}

	var recs []instanceRecord
	var err error
	switch {
	case filter.BookID != "":
		recs, err = children[instanceRecord](ctx, s, ref(catalog.KindBook, filter.BookID), s.tables.Instances)
	case filter.Status != "":
		recs, err = scan[instanceRecord](ctx, s, store.ScanInput{
			TableName:                 s.tables.Instances,
			FilterExpression:          "#status = :status",
			ExpressionAttributeNames:  map[string]string{"#status": "status"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":status": &types.AttributeValueMemberS{Value: string(filter.Status)}},
		})
	default:
		recs, err = scan[instanceRecord](ctx, s, store.ScanInput{TableName: s.tables.Instances})
	}
	if err != nil {
		return nil, err
	}

	out := make([]catalog.BookInstance, 0, len(recs))
	for _, r := range recs {
		if i := r.instance(); filter.Matches(i) {
			out = append(out, i)
		}
	}
	if err := catalog.SortInstances(out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateInstance(ctx context.Context, i catalog.BookInstance) (catalog.BookInstance, error) {
	var current instanceRecord
	item, err := s.get(ctx, catalog.KindInstance, s.tables.Instances, i.ID, &current)
	if err != nil {
		return catalog.BookInstance{}, err
	}
	if i.DueBack.IsZero() {
		i.DueBack = current.DueBack
	}
	i, err = catalog.PrepareInstance(i, s.now())
	if err != nil {
		return catalog.BookInstance{}, err
	}

	attrs, err := marshal(catalog.KindInstance, toInstanceRecord(i))
	if err != nil {
		return catalog.BookInstance{}, err
	}
	if err := s.entities.Update(ctx, s.instance(i), attrs, item.Version); err != nil {
		return catalog.BookInstance{}, mapError(catalog.KindInstance, i.ID, err)
	}
	return i, nil
}

func (s *Store) DeleteInstance(ctx context.Context, id string) error {
	if !catalog.ValidID(id) {
		return &catalog.NotFoundError{Kind: catalog.KindInstance, ID: id}
	}
	return mapError(catalog.KindInstance, id, s.entities.Delete(ctx, s.instance(catalog.BookInstance{ID: id}), store.DeleteOptions{}))
}
