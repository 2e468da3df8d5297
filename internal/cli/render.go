package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jacentio/shelf/catalog"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// seedResult is the output of the seed command.
type seedResult struct {
	Report *catalog.Report                   `json:"report"`
	Counts map[catalog.Stage]catalog.Counts `json:"counts"`
}

func (r seedResult) renderText(w io.Writer) error {
	fmt.Fprintf(w, "Run %s\n", r.Report.RunID)
	tw := newTable(w)
	fmt.Fprintln(tw, "STAGE\tCREATED\tEXISTING\tFAILED")
	for _, stage := range catalog.Stages() {
		c, ok := r.Counts[stage]
		if !ok {
			fmt.Fprintf(tw, "%s\t-\t-\t-\n", stage)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", stage, c.Created, c.Existing, c.Failed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, sr := range r.Report.Stages {
		for _, f := range sr.Failures() {
			fmt.Fprintf(w, "  %v\n", f)
		}
	}
	return nil
}

// genreResult is the output of genre create and genre find.
type genreResult struct {
	Genre   catalog.Genre `json:"genre"`
	Created bool          `json:"created"`
}

func (r genreResult) renderText(w io.Writer) error {
	verb := "exists"
	if r.Created {
		verb = "created"
	}
	_, err := fmt.Fprintf(w, "%s\t%s (%s)\n", r.Genre.ID, r.Genre.Name, verb)
	return err
}

// listResult is the output of the list command.
type listResult struct {
	Kind      catalog.Kind           `json:"kind"`
	Genres    []catalog.Genre        `json:"genres,omitempty"`
	Authors   []catalog.Author       `json:"authors,omitempty"`
	Books     []catalog.Book         `json:"books,omitempty"`
	Instances []catalog.BookInstance `json:"instances,omitempty"`
}

func (r listResult) renderText(w io.Writer) error {
	tw := newTable(w)
	switch r.Kind {
	case catalog.KindGenre:
		fmt.Fprintln(tw, "ID\tNAME")
		for _, g := range r.Genres {
			fmt.Fprintf(tw, "%s\t%s\n", g.ID, g.Name)
		}
	case catalog.KindAuthor:
		fmt.Fprintln(tw, "ID\tNAME\tLIFESPAN")
		for _, a := range r.Authors {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", a.ID, a.Name(), a.Lifespan())
		}
	case catalog.KindBook:
		writeBooks(tw, r.Books)
	case catalog.KindInstance:
		writeInstances(tw, r.Instances)
	}
	return tw.Flush()
}

func writeBooks(w io.Writer, books []catalog.Book) {
	fmt.Fprintln(w, "ID\tTITLE\tISBN\tAUTHOR")
	for _, b := range books {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Title, b.ISBN, b.AuthorID)
	}
}

func writeInstances(w io.Writer, instances []catalog.BookInstance) {
	fmt.Fprintln(w, "ID\tBOOK\tIMPRINT\tSTATUS\tDUE BACK")
	for _, i := range instances {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", i.ID, i.BookID, i.Imprint, i.Status, i.DueBackFormatted())
	}
}

// verdictResult is the output of can-delete, and the details of a blocked delete.
type verdictResult struct {
	Kind       catalog.Kind   `json:"kind"`
	ID         string         `json:"id"`
	Allowed    bool           `json:"allowed"`
	Dependents []catalog.Book `json:"dependents,omitempty"`
}

func (r verdictResult) renderText(w io.Writer) error {
	if r.Allowed {
		_, err := fmt.Fprintf(w, "%s %s can be deleted\n", r.Kind, r.ID)
		return err
	}
	fmt.Fprintf(w, "%s %s is referenced by %d book(s):\n", r.Kind, r.ID, len(r.Dependents))
	tw := newTable(w)
	writeBooks(tw, r.Dependents)
	return tw.Flush()
}

// deleteResult is the output of the delete command.
type deleteResult struct {
	Kind    catalog.Kind `json:"kind"`
	ID      string       `json:"id"`
	Deleted bool         `json:"deleted"`
}

func (r deleteResult) renderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "deleted %s %s\n", r.Kind, r.ID)
	return err
}

type authorDetail catalog.AuthorDetail

func (d authorDetail) renderText(w io.Writer) error {
	fmt.Fprintf(w, "Author: %s\n", d.Author.Name())
	if ls := d.Author.Lifespan(); ls != "" {
		fmt.Fprintf(w, "Lifespan: %s\n", ls)
	}
	fmt.Fprintln(w)
	tw := newTable(w)
	writeBooks(tw, d.Books)
	return tw.Flush()
}

type genreDetail catalog.GenreDetail

func (d genreDetail) renderText(w io.Writer) error {
	fmt.Fprintf(w, "Genre: %s\n\n", d.Genre.Name)
	tw := newTable(w)
	writeBooks(tw, d.Books)
	return tw.Flush()
}

type bookDetail catalog.BookDetail

func (d bookDetail) renderText(w io.Writer) error {
	names := make([]string, len(d.Genres))
	for i, g := range d.Genres {
		names[i] = g.Name
	}
	fmt.Fprintf(w, "Title: %s\n", d.Book.Title)
	fmt.Fprintf(w, "Author: %s\n", d.Author.Name())
	fmt.Fprintf(w, "Summary: %s\n", d.Book.Summary)
	fmt.Fprintf(w, "ISBN: %s\n", d.Book.ISBN)
	fmt.Fprintf(w, "Genre: %s\n\n", strings.Join(names, ", "))
	tw := newTable(w)
	writeInstances(tw, d.Instances)
	return tw.Flush()
}
