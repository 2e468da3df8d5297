package catalog

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GenreSeed is a dataset genre.
type GenreSeed struct {
	Name string `yaml:"name" json:"name"`
}

// AuthorSeed is a dataset author.
type AuthorSeed struct {
	FirstName   string     `yaml:"first_name" json:"first_name"`
	FamilyName  string     `yaml:"family_name" json:"family_name"`
	DateOfBirth *time.Time `yaml:"date_of_birth,omitempty" json:"date_of_birth,omitempty"`
	DateOfDeath *time.Time `yaml:"date_of_death,omitempty" json:"date_of_death,omitempty"`
}

// BookSeed is a dataset book. Author and Genres are indices into the
// dataset's Authors and Genres.
type BookSeed struct {
	Title   string `yaml:"title" json:"title"`
	Summary string `yaml:"summary" json:"summary"`
	ISBN    string `yaml:"isbn" json:"isbn"`
	Author  int    `yaml:"author" json:"author"`
	Genres  []int  `yaml:"genres,omitempty" json:"genres,omitempty"`
}

// InstanceSeed is a dataset book instance. Book is an index into the dataset's
// Books. Empty Status and nil DueBack take the store defaults.
type InstanceSeed struct {
	Book    int        `yaml:"book" json:"book"`
	Imprint string     `yaml:"imprint" json:"imprint"`
	Status  Status     `yaml:"status,omitempty" json:"status,omitempty"`
	DueBack *time.Time `yaml:"due_back,omitempty" json:"due_back,omitempty"`
}

// Dataset is the seeder input. Cross references are positional indices, since
// the dataset is written before any entity exists. The seeder never modifies it.
type Dataset struct {
	Genres    []GenreSeed    `yaml:"genres" json:"genres"`
	Authors   []AuthorSeed   `yaml:"authors" json:"authors"`
	Books     []BookSeed     `yaml:"books" json:"books"`
	Instances []InstanceSeed `yaml:"instances" json:"instances"`
}

// DefaultDataset returns the built-in sample catalog: three genres, one author,
// two books and one instance of the second book.
func DefaultDataset() Dataset {
	return Dataset{
		Genres: []GenreSeed{
			{Name: "genre-a"},
			{Name: "genre-b"},
			{Name: "genre-c"},
		},
		Authors: []AuthorSeed{
			{FirstName: "Fake", FamilyName: "Author"},
		},
		Books: []BookSeed{
			{Title: "Book-1", Summary: "summary 1", ISBN: "1", Author: 0, Genres: []int{0, 1, 2}},
			{Title: "Book-2", Summary: "summary 2", ISBN: "2", Author: 0},
		},
		Instances: []InstanceSeed{
			{Book: 1, Imprint: "XYZ", Status: StatusMaintenance},
		},
	}
}

// LoadDataset decodes a YAML dataset. Unknown keys are rejected.
func LoadDataset(r io.Reader) (Dataset, error) {
	var d Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		if err == io.EOF {
			return Dataset{}, nil
		}
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return d, nil
}

// LoadDatasetFile reads a YAML dataset from path.
func LoadDatasetFile(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer f.Close()

	d, err := LoadDataset(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// ValidateDataset checks every positional reference against the sizes of the
// referenced arrays, without touching a store.
func ValidateDataset(d Dataset) []*SeedError {
	var failures []*SeedError
	check := func(stage Stage, index int, field string, ref int, target Stage, size int) {
		if ref < 0 || ref >= size {
			failures = append(failures, &SeedError{
				Stage: stage,
				Index: index,
				Field: field,
				Err:   fmt.Errorf("%w: %s index %d out of range (%d entries)", ErrSeedResolution, target, ref, size),
			})
		}
	}

	for i, b := range d.Books {
		check(StageBooks, i, "author", b.Author, StageAuthors, len(d.Authors))
		for j, g := range b.Genres {
			check(StageBooks, i, fmt.Sprintf("genres[%d]", j), g, StageGenres, len(d.Genres))
		}
	}
	for i, inst := range d.Instances {
		check(StageInstances, i, "book", inst.Book, StageBooks, len(d.Books))
	}
	return failures
}
