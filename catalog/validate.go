package catalog

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their JSON names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

var fieldLabels = map[string]string{
	"name":        "Genre name",
	"first_name":  "First name",
	"family_name": "Family name",
	"title":       "Title",
	"summary":     "Summary",
	"isbn":        "ISBN",
	"author_id":   "Author",
	"book_id":     "Book",
	"imprint":     "Imprint",
	"status":      "Status",
}

func label(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}

// validateStruct runs tag validation and converts failures into a *ValidationError.
func validateStruct(kind Kind, id string, s any) *ValidationError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return invalid(kind, "", err.Error())
	}

	out := &ValidationError{Kind: kind, ID: id}
	for _, fe := range verrs {
		field := fe.Field()
		if strings.HasPrefix(field, "genre_ids") {
			field = "genre_ids"
		}
		param := fe.Param()

		var message string
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("%s must be specified", label(field))
		case "min":
			message = fmt.Sprintf("%s must contain at least %s characters", label(field), param)
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", label(field), param)
		case "alphanumunicode":
			message = fmt.Sprintf("%s has non-alphanumeric characters", label(field))
		case "uuid":
			message = fmt.Sprintf("%q is not a valid identifier", fe.Value())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", label(field), strings.ReplaceAll(param, " ", ", "))
		default:
			message = fmt.Sprintf("%s is invalid", label(field))
		}
		out.Fields = append(out.Fields, FieldError{Field: field, Message: message})
	}
	return out
}

// PrepareGenre normalizes and validates a genre. The returned genre is what
// stores persist.
func PrepareGenre(g Genre) (Genre, error) {
	g.Name = NormalizeName(g.Name)
	if verr := validateStruct(KindGenre, g.ID, g); verr != nil {
		return g, verr
	}
	return g, nil
}

// PrepareAuthor trims and validates an author.
func PrepareAuthor(a Author) (Author, error) {
	a.FirstName = strings.TrimSpace(a.FirstName)
	a.FamilyName = strings.TrimSpace(a.FamilyName)

	verr := validateStruct(KindAuthor, a.ID, a)
	if a.DateOfBirth != nil && a.DateOfDeath != nil && a.DateOfDeath.Before(*a.DateOfBirth) {
		if verr == nil {
			verr = &ValidationError{Kind: KindAuthor, ID: a.ID}
		}
		verr.Fields = append(verr.Fields, FieldError{
			Field:   "date_of_death",
			Message: "Date of death must not be before date of birth",
		})
	}
	if verr != nil {
		return a, verr
	}
	return a, nil
}

// PrepareBook trims, deduplicates genre references and validates a book.
func PrepareBook(b Book) (Book, error) {
	b.Title = strings.TrimSpace(b.Title)
	b.Summary = strings.TrimSpace(b.Summary)
	b.ISBN = strings.TrimSpace(b.ISBN)
	b.GenreIDs = dedupe(b.GenreIDs)

	if verr := validateStruct(KindBook, b.ID, b); verr != nil {
		return b, verr
	}
	return b, nil
}

// PrepareInstance applies defaults and validates a book instance. A missing
// status becomes Maintenance and a zero due date becomes now.
func PrepareInstance(i BookInstance, now time.Time) (BookInstance, error) {
	i.Imprint = strings.TrimSpace(i.Imprint)
	if i.Status == "" {
		i.Status = StatusMaintenance
	}
	if i.DueBack.IsZero() {
		i.DueBack = now
	}

	if verr := validateStruct(KindInstance, i.ID, i); verr != nil {
		return i, verr
	}
	return i, nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
