package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind names an entity kind. The values double as the entity type in store
// references ("author#<id>").
type Kind string

const (
	KindGenre    Kind = "genre"
	KindAuthor   Kind = "author"
	KindBook     Kind = "book"
	KindInstance Kind = "bookinstance"
)

// Status is the availability of a book instance.
type Status string

const (
	StatusAvailable   Status = "Available"
	StatusMaintenance Status = "Maintenance"
	StatusLoaned      Status = "Loaned"
	StatusReserved    Status = "Reserved"
)

// Statuses lists every valid Status.
func Statuses() []Status {
	return []Status{StatusAvailable, StatusMaintenance, StatusLoaned, StatusReserved}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses() {
		if s == v {
			return true
		}
	}
	return false
}

const dateLayout = "Jan 2, 2006"

// Genre is a book category.
type Genre struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required,min=3,max=100"`
}

// URL returns the genre's catalog path.
func (g Genre) URL() string { return "/catalog/genre/" + g.ID }

// Author writes books.
type Author struct {
	ID          string     `json:"id"`
	FirstName   string     `json:"first_name" validate:"required,max=100,alphanumunicode"`
	FamilyName  string     `json:"family_name" validate:"required,max=100,alphanumunicode"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	DateOfDeath *time.Time `json:"date_of_death,omitempty"`
}

// Name returns "Family, First", or "" when either part is missing.
func (a Author) Name() string {
	if a.FirstName == "" || a.FamilyName == "" {
		return ""
	}
	return a.FamilyName + ", " + a.FirstName
}

// Lifespan renders the known dates as "birth - death".
func (a Author) Lifespan() string {
	var birth, death string
	if a.DateOfBirth != nil {
		birth = a.DateOfBirth.Format(dateLayout)
	}
	if a.DateOfDeath != nil {
		death = a.DateOfDeath.Format(dateLayout)
	}
	if birth == "" && death == "" {
		return ""
	}
	return strings.TrimSpace(birth + " - " + death)
}

// URL returns the author's catalog path.
func (a Author) URL() string { return "/catalog/author/" + a.ID }

// Book is a title by one author in any number of genres.
type Book struct {
	ID       string   `json:"id"`
	Title    string   `json:"title" validate:"required"`
	Summary  string   `json:"summary" validate:"required"`
	ISBN     string   `json:"isbn" validate:"required"`
	AuthorID string   `json:"author_id" validate:"required,uuid"`
	GenreIDs []string `json:"genre_ids" validate:"dive,uuid"`
}

// URL returns the book's catalog path.
func (b Book) URL() string { return "/catalog/book/" + b.ID }

// BookInstance is one physical copy of a book.
type BookInstance struct {
	ID      string    `json:"id"`
	BookID  string    `json:"book_id" validate:"required,uuid"`
	Imprint string    `json:"imprint" validate:"required"`
	Status  Status    `json:"status" validate:"required,oneof=Available Maintenance Loaned Reserved"`
	DueBack time.Time `json:"due_back"`
}

// URL returns the instance's catalog path.
func (i BookInstance) URL() string { return "/catalog/bookinstance/" + i.ID }

// DueBackFormatted renders DueBack as a medium date.
func (i BookInstance) DueBackFormatted() string {
	if i.DueBack.IsZero() {
		return ""
	}
	return i.DueBack.Format(dateLayout)
}

// NewID returns a fresh time-ordered identifier. Identifiers created later
// compare greater, so they break sort ties by insertion order.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ValidID reports whether id is a syntactically valid identifier.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}
