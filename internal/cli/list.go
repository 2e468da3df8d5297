package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/shelf/catalog"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	SortBy string
	Author string
	Genre  string
	Book   string
	Status string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <genres|authors|books|instances>",
		Short: "List catalog entities",
		Long: `List catalog entities in sorted order.

Default order: genres by name, authors by family name, books by title,
instances by due date. Ties keep creation order.

Examples:
  shelf list books --author 0190f6f4-...
  shelf list instances --status Available --sort imprint`,
		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.SortBy, "sort", "s", "", "sort key (default depends on kind)")
	cmd.Flags().StringVar(&opts.Author, "author", "", "books: only this author's")
	cmd.Flags().StringVar(&opts.Genre, "genre", "", "books: only this genre's")
	cmd.Flags().StringVar(&opts.Book, "book", "", "instances: only copies of this book")
	cmd.Flags().StringVar(&opts.Status, "status", "", "instances: only this status")

	return cmd
}

func runList(opts *ListOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	kind, err := parseKind(arg)
	if err != nil {
		return err
	}
	if err := opts.checkFilters(kind); err != nil {
		return err
	}
	lo := catalog.ListOptions{SortBy: opts.SortBy}
	if err := catalog.CheckSort(kind, lo); err != nil {
		return formatter.Fail("list "+arg, err, nil)
	}

	ctx, cancel, svc, err := opts.service(cmd)
	if err != nil {
		return formatter.Fail("list "+arg, err, nil)
	}
	defer cancel()
	store := svc.Store()

	result := listResult{Kind: kind}
	switch kind {
	case catalog.KindGenre:
		result.Genres, err = store.ListGenres(ctx, lo)
	case catalog.KindAuthor:
		result.Authors, err = store.ListAuthors(ctx, lo)
	case catalog.KindBook:
		result.Books, err = store.ListBooks(ctx, catalog.BookFilter{AuthorID: opts.Author, GenreID: opts.Genre}, lo)
	case catalog.KindInstance:
		filter := catalog.InstanceFilter{BookID: opts.Book, Status: catalog.Status(opts.Status)}
		if err = filter.Validate(); err == nil {
			result.Instances, err = store.ListInstances(ctx, filter, lo)
		}
	}
	if err != nil {
		return formatter.Fail("list "+arg, err, nil)
	}

	formatter.VerboseLog("Listed %d genre(s), %d author(s), %d book(s), %d instance(s)",
		len(result.Genres), len(result.Authors), len(result.Books), len(result.Instances))
	return formatter.Success(result)
}

// checkFilters rejects filter flags that do not apply to kind.
func (o *ListOptions) checkFilters(kind catalog.Kind) error {
	bookFilter := o.Author != "" || o.Genre != ""
	instanceFilter := o.Book != "" || o.Status != ""
	switch {
	case bookFilter && kind != catalog.KindBook:
		return NewExitError(ExitCommandError, fmt.Sprintf("--author and --genre only apply to books, not %s", kind))
	case instanceFilter && kind != catalog.KindInstance:
		return NewExitError(ExitCommandError, fmt.Sprintf("--book and --status only apply to instances, not %s", kind))
	}
	return nil
}
