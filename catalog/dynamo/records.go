package dynamo

import (
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/shelf/catalog"
	"github.com/jacentio/shelf/store"
)

// Optional attributes are written as NULL rather than omitted, so that the
// SET-only update path clears them.

type genreRecord struct {
	ID      string `dynamodbav:"id"`
	Name    string `dynamodbav:"name"`
	NameKey string `dynamodbav:"name_key"`
}

type authorRecord struct {
	ID          string     `dynamodbav:"id"`
	FirstName   string     `dynamodbav:"first_name"`
	FamilyName  string     `dynamodbav:"family_name"`
	DateOfBirth *time.Time `dynamodbav:"date_of_birth"`
	DateOfDeath *time.Time `dynamodbav:"date_of_death"`
}

type bookRecord struct {
	ID       string   `dynamodbav:"id"`
	Title    string   `dynamodbav:"title"`
	Summary  string   `dynamodbav:"summary"`
	ISBN     string   `dynamodbav:"isbn"`
	AuthorID string   `dynamodbav:"author_id"`
	GenreIDs []string `dynamodbav:"genre_ids"`
}

type instanceRecord struct {
	ID      string    `dynamodbav:"id"`
	BookID  string    `dynamodbav:"book_id"`
	Imprint string    `dynamodbav:"imprint"`
	Status  string    `dynamodbav:"status"`
	DueBack time.Time `dynamodbav:"due_back"`
}

func toGenreRecord(g catalog.Genre) genreRecord {
	return genreRecord{ID: g.ID, Name: g.Name, NameKey: catalog.NameKey(g.Name)}
}

func (r genreRecord) genre() catalog.Genre {
	return catalog.Genre{ID: r.ID, Name: r.Name}
}

func toAuthorRecord(a catalog.Author) authorRecord {
	return authorRecord(a)
}

func (r authorRecord) author() catalog.Author {
	return catalog.Author(r)
}

func toBookRecord(b catalog.Book) bookRecord {
	return bookRecord(b)
}

func (r bookRecord) book() catalog.Book {
	return catalog.Book(r)
}

func toInstanceRecord(i catalog.BookInstance) instanceRecord {
	return instanceRecord{ID: i.ID, BookID: i.BookID, Imprint: i.Imprint, Status: string(i.Status), DueBack: i.DueBack}
}

func (r instanceRecord) instance() catalog.BookInstance {
	return catalog.BookInstance{ID: r.ID, BookID: r.BookID, Imprint: r.Imprint, Status: catalog.Status(r.Status), DueBack: r.DueBack}
}

// entity adapts a catalog entity to store.Entity.
type entity struct {
	kind  catalog.Kind
	table string
	id    string
}

func (e entity) TableName() string  { return e.table }
func (e entity) EntityType() string { return string(e.kind) }
func (e entity) EntityRef() string  { return ref(e.kind, e.id) }
func (e entity) GetKey() store.PK   { return key(e.id) }

func key(id string) store.PK {
	return store.PK{"id": &types.AttributeValueMemberS{Value: id}}
}

func ref(kind catalog.Kind, id string) string {
	return string(kind) + "#" + id
}

// refID returns the identifier part of an entity reference.
func refID(entityRef string) string {
	_, id, _ := strings.Cut(entityRef, "#")
	return id
}

type genreEntity struct {
	entity
	nameKey string
}

func (g genreEntity) UniqueFields() map[string]string {
	return map[string]string{"name_key": g.nameKey}
}

type bookEntity struct {
	entity
	authorID     string
	genreIDs     []string
	authorsTable string
	genresTable  string
}

func (b bookEntity) References() []store.Reference {
	refs := []store.Reference{{
		Field:     "author_id",
		ParentRef: ref(catalog.KindAuthor, b.authorID),
		Check:     &store.ConditionCheck{TableName: b.authorsTable, Key: key(b.authorID)},
	}}
	for _, id := range b.genreIDs {
		refs = append(refs, store.Reference{
			Field:     "genre_ids",
			ParentRef: ref(catalog.KindGenre, id),
			Check:     &store.ConditionCheck{TableName: b.genresTable, Key: key(id)},
		})
	}
	return refs
}

type instanceEntity struct {
	entity
	bookID     string
	booksTable string
}

func (i instanceEntity) References() []store.Reference {
	return []store.Reference{{
		Field:     "book_id",
		ParentRef: ref(catalog.KindBook, i.bookID),
		Check:     &store.ConditionCheck{TableName: i.booksTable, Key: key(i.bookID)},
	}}
}

var (
	_ store.UniqueFielder = genreEntity{}
	_ store.Referencer    = bookEntity{}
	_ store.Referencer    = instanceEntity{}
)
