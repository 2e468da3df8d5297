package dynamo

import (
	"github.com/jacentio/shelf/catalog"
	"github.com/jacentio/shelf/store"
)

// Tables names the entity tables.
type Tables struct {
	Genres    string
	Authors   string
	Books     string
	Instances string
}

// DefaultTables returns the entity table names under prefix.
func DefaultTables(prefix string) Tables {
	return Tables{
		Genres:    prefix + "genres",
		Authors:   prefix + "authors",
		Books:     prefix + "books",
		Instances: prefix + "book_instances",
	}
}

// Config configures a Store.
type Config struct {
	// TablePrefix is prepended to every table name, including the reference and
	// unique constraint tables when they are left at their defaults.
	TablePrefix string

	// Tables overrides the entity table names. Empty names fall back to
	// DefaultTables(TablePrefix).
	Tables Tables

	// Store configures the underlying store.
	Store store.Config
}

func (c Config) resolve() Config {
	def := DefaultTables(c.TablePrefix)
	if c.Tables.Genres == "" {
		c.Tables.Genres = def.Genres
	}
	if c.Tables.Authors == "" {
		c.Tables.Authors = def.Authors
	}
	if c.Tables.Books == "" {
		c.Tables.Books = def.Books
	}
	if c.Tables.Instances == "" {
		c.Tables.Instances = def.Instances
	}

	base := store.DefaultConfig()
	if c.Store.RelationshipTable == "" {
		c.Store.RelationshipTable = c.TablePrefix + base.RelationshipTable
	}
	if c.Store.UniqueTable == "" {
		c.Store.UniqueTable = c.TablePrefix + base.UniqueTable
	}
	return c
}

// NewRegistry returns the catalog's relationships. Authors and genres cannot be
// deleted while books reference them; books can be deleted regardless of their
// instances.
func NewRegistry(t Tables) *store.Registry {
	r := store.NewRegistry()
	r.Register(store.Relationship{
		ParentType:     string(catalog.KindAuthor),
		ChildType:      string(catalog.KindBook),
		ChildTableName: t.Books,
		ReferenceAttr:  "author_id",
		OnDelete:       store.Restrict,
	})
	r.Register(store.Relationship{
		ParentType:     string(catalog.KindGenre),
		ChildType:      string(catalog.KindBook),
		ChildTableName: t.Books,
		ReferenceAttr:  "genre_ids",
		OnDelete:       store.Restrict,
	})
	r.Register(store.Relationship{
		ParentType:     string(catalog.KindBook),
		ChildType:      string(catalog.KindInstance),
		ChildTableName: t.Instances,
		ReferenceAttr:  "book_id",
		OnDelete:       store.Ignore,
	})
	return r
}
